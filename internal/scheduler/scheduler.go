// Package scheduler runs jobs on managed nodes. Scheduler.Run is one
// attempt of one job; Runner drives an iteration over every pending job
// with a bounded pool; Executor chains iterations into plays and plays into
// replays of the failed tests.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/uber-go/tally/v4"
	"golang.org/x/sync/semaphore"

	"github.com/zosci/ce/internal/job"
	"github.com/zosci/ce/internal/logger"
	"github.com/zosci/ce/internal/node"
	"github.com/zosci/ce/internal/remote"
)

// Defaults for Config fields.
const (
	DefaultTimeout = 300 * time.Second
	DefaultMaxJob  = 6
	DefaultBal     = 3
	DefaultMaxNode = 6
)

// Config holds the thresholds that drive retries and rebalancing.
type Config struct {
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// MaxJob is the failure count at which a job stops being scheduled.
	MaxJob int
	// Bal is the failure count at which a job moves to another node.
	Bal int
	// MaxNode is how many balanced jobs a node tolerates before it goes
	// offline.
	MaxNode int
	// Throttle enforces one job per node, and one job across the fleet
	// while any node is offline.
	Throttle bool
	// Env is exported before every job command.
	Env map[string]string

	// Workers multiplies the node count to size the pool.
	Workers int
	// Itr caps the iterations of one play.
	Itr int
	// Replay caps the number of plays.
	Replay int
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		Timeout:  DefaultTimeout,
		MaxJob:   DefaultMaxJob,
		Bal:      DefaultBal,
		MaxNode:  DefaultMaxNode,
		Throttle: true,
		Workers:  1,
		Itr:      1,
		Replay:   1,
	}
}

// Options carries the ambient collaborators. Zero values pick the real
// clock, a no-op metrics scope and the default logger.
type Options struct {
	Clock clock.Clock
	Scope tally.Scope
	Log   logger.Logger
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Scope == nil {
		o.Scope = tally.NoopScope
	}
	if o.Log == nil {
		o.Log = logger.Default()
	}
	return o
}

// Scheduler owns the registries of one play.
type Scheduler struct {
	cfg      Config
	nodes    *node.Registry
	jobs     *job.Registry
	remote   remote.Executor
	balancer *Balancer
	// fleet holds one unit per execution. While any node is offline a job
	// needs the whole capacity, so it only starts when nothing else runs.
	fleet    *semaphore.Weighted
	capacity int64

	clock   clock.Clock
	metrics *metrics
	log     logger.Logger
}

func New(cfg Config, nodes *node.Registry, jobs *job.Registry, exec remote.Executor, opts Options) *Scheduler {
	opts = opts.withDefaults()
	capacity := int64(max(nodes.Len(), 1))
	return &Scheduler{
		cfg:      cfg,
		nodes:    nodes,
		jobs:     jobs,
		remote:   exec,
		balancer: NewBalancer(nodes, cfg.MaxNode, opts.Log),
		fleet:    semaphore.NewWeighted(capacity),
		capacity: capacity,
		clock:    opts.Clock,
		metrics:  newMetrics(opts.Scope),
		log:      opts.Log,
	}
}

func (s *Scheduler) Nodes() *node.Registry { return s.nodes }
func (s *Scheduler) Jobs() *job.Registry   { return s.jobs }
func (s *Scheduler) Config() Config        { return s.cfg }

// attempt is the bookkeeping for one Run call.
type attempt struct {
	job   *job.Job
	node  *node.Node
	host  string
	start string
}

func (a attempt) message(elapsed time.Duration, rc job.ReturnCode, reason string) string {
	return fmt.Sprintf("Job id=%d, host=%s, start=%s, elapsed=%s, rc=%d, msg=%s",
		a.job.ID(), a.host, a.start, job.FormatElapsed(elapsed), rc.Code(), reason)
}

// Run makes one attempt at job id and returns the attempt's return code and
// a one line description. All outcomes are folded into job and node state;
// an error means the job or its node could not be looked up.
func (s *Scheduler) Run(ctx context.Context, id int) (job.ReturnCode, string, error) {
	j, err := s.jobs.Lookup(id)
	if err != nil {
		return job.RCInternalError, "", err
	}
	host := j.Hostname()
	n, err := s.nodes.Lookup(host)
	if err != nil {
		return job.RCInternalError, "", err
	}
	a := attempt{job: j, node: n, host: host, start: s.clock.Now().Format("15:04:05")}

	online := s.nodes.OnlineCount()
	if online == 0 {
		return s.noNodes(a), a.message(0, job.RCNoNodesOnline, s.noNodesReason()), nil
	}

	if !n.Online() {
		return s.evacuate(a)
	}

	if s.cfg.Throttle {
		if !n.TryAcquire(id) {
			return s.busy(a, fmt.Sprintf("Managed node is not able to execute job id=%d, %s.",
				n.RunningJobID(), s.fleetCounts()))
		}
		defer n.Release(id)

		weight, ok := s.admit()
		if !ok {
			return s.busy(a, fmt.Sprintf("Managed nodes are degraded and run one job at a time, job id=%d is passed over, %s.",
				id, s.fleetCounts()))
		}
		defer s.fleet.Release(weight)
	}

	return s.execute(ctx, a)
}

// admit takes the fleet weight for one execution. Offline is terminal, so
// a node dropping out between the first check and the acquire is caught by
// the second check.
func (s *Scheduler) admit() (int64, bool) {
	if s.nodes.OfflineCount() == 0 {
		if !s.fleet.TryAcquire(1) {
			return 0, false
		}
		if s.nodes.OfflineCount() == 0 {
			return 1, true
		}
		s.fleet.Release(1)
	}
	if !s.fleet.TryAcquire(s.capacity) {
		return 0, false
	}
	return s.capacity, true
}

func (s *Scheduler) fleetCounts() string {
	return fmt.Sprintf("nodes=%d, offline=%d, online=%d",
		s.nodes.Len(), s.nodes.OfflineCount(), s.nodes.OnlineCount())
}

func (s *Scheduler) noNodesReason() string {
	return fmt.Sprintf("There are no managed nodes online to run jobs, %s.", s.fleetCounts())
}

func (s *Scheduler) noNodes(a attempt) job.ReturnCode {
	rc := job.RCNoNodesOnline
	reason := s.noNodesReason()
	a.job.SetRC(rc)
	a.job.IncrementFailure()
	a.node.AddFailedJob(a.job.ID())
	a.job.AppendLog(job.LogEntry{
		JobID:    a.job.ID(),
		Hostname: a.host,
		DateTime: a.start,
		Message:  a.message(0, rc, reason),
		Output:   reason,
	}, false)
	s.metrics.noNodes.Inc(1)
	return rc
}

// busy passes the job over without running it and moves it elsewhere.
func (s *Scheduler) busy(a attempt, reason string) (job.ReturnCode, string, error) {
	rc := job.RCNodeBusy
	msg := a.message(0, rc, reason)

	a.job.SetRC(rc)
	a.node.AddBalancedJob(a.job.ID())
	s.balancer.Reassign(a.job)
	s.metrics.busy.Inc(1)
	return rc, msg, nil
}

// evacuate passes over a job whose node is offline and moves it to an
// online node. The attempt is not held against the job.
func (s *Scheduler) evacuate(a attempt) (job.ReturnCode, string, error) {
	rc := job.RCNodeBusy
	next, _ := s.balancer.Evacuate(a.job)
	reason := fmt.Sprintf("Managed node=%s is offline, job is reassigned to managed node=%s, %s.",
		a.host, next, s.fleetCounts())
	msg := a.message(0, rc, reason)

	a.job.SetRC(rc)
	s.metrics.busy.Inc(1)
	return rc, msg, nil
}

func (s *Scheduler) execute(ctx context.Context, a attempt) (job.ReturnCode, string, error) {
	id := a.job.ID()
	command := job.BuildCommand(a.job, a.node)

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	began := s.clock.Now()
	res := s.remote.Execute(runCtx, remote.Command{
		Host:   a.host,
		User:   a.node.User,
		Script: command,
		Env:    s.cfg.Env,
	})
	elapsed := s.clock.Since(began)
	a.job.SetElapsed(elapsed)
	s.metrics.elapsed.Record(elapsed)

	entry := job.LogEntry{
		JobID:    id,
		Hostname: a.host,
		DateTime: a.start,
		Command:  command,
		Output:   string(res.Output),
	}

	// Cancelled from above: the run is being torn down, so the attempt
	// is not held against the job.
	if ctx.Err() != nil && !res.TimedOut {
		rc := job.RCInterrupted
		a.job.SetRC(rc)
		return rc, a.message(elapsed, rc, rc.Label()), nil
	}

	var rc job.ReturnCode
	var reason string
	switch {
	case res.TimedOut:
		rc = job.RCTimeout
		reason = fmt.Sprintf("Job has exceeded subprocess timeout=%d", int(s.cfg.Timeout/time.Second))
		entry.Output = reason
		s.metrics.timeout.Inc(1)
		s.log.Warn("job %d on %s timed out after %s; the remote process may still be running", id, a.host, s.cfg.Timeout)
	case res.Err != nil:
		rc = job.RCInternalError
		reason = rc.Label()
		entry.Output = res.Err.Error()
		s.log.Error("job %d on %s could not run: %v", id, a.host, res.Err)
	case res.ExitCode == 0:
		rc = job.RCSuccess
		a.job.MarkSuccess(elapsed)
		entry.Message = a.message(elapsed, rc, rc.Label())
		a.job.AppendLog(entry, true)
		s.metrics.success.Inc(1)
		return rc, entry.Message, nil
	default:
		rc = job.ReturnCode(res.ExitCode)
		reason = rc.Label()
	}

	failures := a.job.IncrementFailure()
	a.node.AddFailedJob(id)
	s.metrics.failure.Inc(1)

	switch {
	case failures >= s.cfg.MaxJob:
		rc = job.RCExceeded
		reason = fmt.Sprintf("Test exceeded allowable failures=%d.", s.cfg.MaxJob)
		s.metrics.exceeded.Inc(1)
	case failures == s.cfg.Bal:
		rc = job.RCRebalanced
		if s.balancer.MarkBalanced(a.node, id) {
			s.metrics.offline.Inc(1)
		}
		next, _ := s.balancer.Reassign(a.job)
		reason = fmt.Sprintf("Job is reassigned to managed node=%s, job exceeded allowable balance=%d.", next, s.cfg.Bal)
		s.metrics.rebalanced.Inc(1)
	}

	a.job.SetRC(rc)
	entry.Message = a.message(elapsed, rc, reason)
	a.job.AppendLog(entry, false)
	return rc, entry.Message, nil
}
