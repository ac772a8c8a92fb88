package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally/v4"

	"github.com/zosci/ce/internal/job"
	"github.com/zosci/ce/internal/logger"
	"github.com/zosci/ce/internal/node"
	"github.com/zosci/ce/internal/remote"
)

type executorFunc func(ctx context.Context, cmd remote.Command) remote.Result

func (f executorFunc) Execute(ctx context.Context, cmd remote.Command) remote.Result {
	return f(ctx, cmd)
}

// slowExecutor succeeds after a short sleep and tracks how many commands
// overlap on each host.
type slowExecutor struct {
	delay time.Duration

	mu       sync.Mutex
	inflight map[string]int
	peak     map[string]int
	calls    int
}

func newSlowExecutor(delay time.Duration) *slowExecutor {
	return &slowExecutor{delay: delay, inflight: map[string]int{}, peak: map[string]int{}}
}

func (e *slowExecutor) Execute(ctx context.Context, cmd remote.Command) remote.Result {
	e.mu.Lock()
	e.calls++
	e.inflight[cmd.Host]++
	e.peak[cmd.Host] = max(e.peak[cmd.Host], e.inflight[cmd.Host])
	e.mu.Unlock()

	time.Sleep(e.delay)

	e.mu.Lock()
	e.inflight[cmd.Host]--
	e.mu.Unlock()
	return remote.Result{}
}

func (e *slowExecutor) Peak(host string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.peak[host]
}

func newNodes(hosts ...string) *node.Registry {
	r := node.NewRegistry()
	for _, h := range hosts {
		r.Add(node.New(node.Identity{Hostname: h, User: "omvsadm", Zoau: "/zoau", Pyz: "/pyz"}))
	}
	return r
}

// newJobs deals n jobs named tests/a.py::t<i> round robin over nodes.
func newJobs(t *testing.T, nodes *node.Registry, n int) *job.Registry {
	t.Helper()
	jobs := job.NewRegistry()
	hosts := nodes.Hostnames()
	for i := 0; i < n; i++ {
		host := hosts[i%len(hosts)]
		nd, err := nodes.Lookup(host)
		require.NoError(t, err)
		jobs.Add(job.New(i, fmt.Sprintf("tests/a.py::t%d", i), host, job.Options{}))
		nd.AddAssigned()
	}
	return jobs
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = 5 * time.Second
	return cfg
}

func testOptions() (Options, tally.TestScope, *clock.Mock) {
	scope := tally.NewTestScope("", nil)
	mock := clock.NewMock()
	return Options{Clock: mock, Scope: scope, Log: logger.Noop()}, scope, mock
}

func counter(scope tally.TestScope, name string) int64 {
	c, ok := scope.Snapshot().Counters()[name+"+"]
	if !ok {
		return 0
	}
	return c.Value()
}

func mustJob(t *testing.T, jobs *job.Registry, id int) *job.Job {
	t.Helper()
	j, err := jobs.Lookup(id)
	require.NoError(t, err)
	return j
}

func mustNode(t *testing.T, nodes *node.Registry, host string) *node.Node {
	t.Helper()
	n, err := nodes.Lookup(host)
	require.NoError(t, err)
	return n
}

func lastLog(t *testing.T, j *job.Job) job.LogEntry {
	t.Helper()
	logs := j.Logs()
	require.NotEmpty(t, logs)
	return logs[len(logs)-1]
}
