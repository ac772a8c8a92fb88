package scheduler

import (
	"context"
	"time"

	"github.com/zosci/ce/internal/job"
	"github.com/zosci/ce/internal/node"
	"github.com/zosci/ce/internal/remote"
	"github.com/zosci/ce/internal/stats"
)

// Discoverer builds the registries of a play.
type Discoverer interface {
	DiscoverNodes(ctx context.Context) (*node.Registry, error)
	// BuildJobs collects tests, or uses replay verbatim when non-empty.
	BuildJobs(ctx context.Context, nodes *node.Registry, replay []string) (*job.Registry, error)
}

// Play is one discovery and scheduling cycle. Plays after the first
// replay the tests that failed in the previous one.
type Play struct {
	Number int
	Total  int
	Tests  []string
	Replay bool
}

// IterationSummary describes one pass of the pool within a play.
type IterationSummary struct {
	Number    int
	Completed int
	Pending   int
	Elapsed   time.Duration
}

// PlayResult is everything reported about a finished play.
type PlayResult struct {
	Play       Play
	Nodes      []string
	Threads    int
	Iterations []IterationSummary
	Stats      stats.Statistics
	Elapsed    time.Duration
	MaxJob     int
}

// PlayReporter observes the executor. Callbacks run on the executor's
// goroutine, except that Runner lines are delivered through Line from
// worker goroutines.
type PlayReporter interface {
	PlayStarted(p Play, nodes *node.Registry)
	IterationStarted(p Play, iteration, pending int)
	Line(line string)
	IterationFinished(p Play, it IterationSummary)
	PlayFinished(res PlayResult)
}

// Executor runs plays until one passes or the replay budget is spent.
type Executor struct {
	Config     Config
	Discoverer Discoverer
	Remote     remote.Executor
	Reporter   PlayReporter
	Options    Options
}

// Execute returns the result of every play and the run's exit code: 0 when
// the last play had no failed jobs, 1 otherwise. An error is returned only
// when a play could not be set up.
func (e *Executor) Execute(ctx context.Context) ([]PlayResult, int, error) {
	opts := e.Options.withDefaults()
	rep := e.Reporter
	if rep == nil {
		rep = nopReporter{}
	}
	total := max(e.Config.Replay, 1)

	var results []PlayResult
	play := Play{Number: 1, Total: total}
	for {
		res, err := e.runPlay(ctx, play, rep, opts)
		if err != nil {
			return results, 1, err
		}
		results = append(results, res)

		if res.Stats.FailedCount == 0 {
			return results, 0, nil
		}
		if play.Number >= total || ctx.Err() != nil {
			return results, 1, nil
		}
		play = Play{
			Number: play.Number + 1,
			Total:  total,
			Tests:  res.Stats.FailedTests,
			Replay: true,
		}
	}
}

func (e *Executor) runPlay(ctx context.Context, play Play, rep PlayReporter, opts Options) (PlayResult, error) {
	began := opts.Clock.Now()

	nodes, err := e.Discoverer.DiscoverNodes(ctx)
	if err != nil {
		return PlayResult{}, err
	}
	rep.PlayStarted(play, nodes)

	var replay []string
	if play.Replay {
		replay = play.Tests
	}
	jobs, err := e.Discoverer.BuildJobs(ctx, nodes, replay)
	if err != nil {
		return PlayResult{}, err
	}

	sched := New(e.Config, nodes, jobs, e.Remote, opts)
	runner := NewRunner(sched)
	runner.Print = rep.Line

	res := PlayResult{
		Play:    play,
		Nodes:   nodes.Hostnames(),
		Threads: runner.PoolSize(),
		MaxJob:  e.Config.MaxJob,
	}

	st := stats.Collect(jobs, e.Config.MaxJob)
	for it := 1; st.SuccessCount != st.TotalCount && it <= e.Config.Itr; it++ {
		if ctx.Err() != nil {
			opts.Log.Warn("play %d stopped before iteration %d: %v", play.Number, it, ctx.Err())
			break
		}
		sched.metrics.pending.Update(float64(st.Pending()))
		rep.IterationStarted(play, it, st.Pending())

		start := opts.Clock.Now()
		runner.RunIteration(ctx)

		done := st.SuccessCount
		st = stats.Collect(jobs, e.Config.MaxJob)
		summary := IterationSummary{
			Number:    it,
			Completed: st.SuccessCount - done,
			Pending:   st.FailedCount,
			Elapsed:   opts.Clock.Since(start),
		}
		res.Iterations = append(res.Iterations, summary)
		rep.IterationFinished(play, summary)
	}
	sched.metrics.pending.Update(float64(st.Pending()))

	res.Stats = st
	res.Elapsed = opts.Clock.Since(began)
	rep.PlayFinished(res)
	return res, nil
}

type nopReporter struct{}

func (nopReporter) PlayStarted(Play, *node.Registry)         {}
func (nopReporter) IterationStarted(Play, int, int)          {}
func (nopReporter) Line(string)                              {}
func (nopReporter) IterationFinished(Play, IterationSummary) {}
func (nopReporter) PlayFinished(PlayResult)                  {}
