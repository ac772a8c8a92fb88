package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ceerrors "github.com/zosci/ce/internal/errors"
	"github.com/zosci/ce/internal/logger"
	"github.com/zosci/ce/internal/node"
)

// fakeCollector returns fixed identifiers and records requests.
type fakeCollector struct {
	mu       sync.Mutex
	ids      []string
	err      error
	requests []CollectRequest
}

func (c *fakeCollector) Collect(_ context.Context, req CollectRequest) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	return c.ids, c.err
}

func downProber(down ...string) Prober {
	return ProberFunc(func(_ context.Context, host string) error {
		for _, d := range down {
			if d == host {
				return &ProbeError{Host: host, Reason: ProbeFailUnreachable}
			}
		}
		return nil
	})
}

type failingLister struct{}

func (failingLister) List(context.Context) ([]string, error) {
	return nil, errors.New("venv.sh: not found")
}

func registryOf(hosts ...string) *node.Registry {
	r := node.NewRegistry()
	for _, h := range hosts {
		r.Add(node.New(node.Identity{Hostname: h}))
	}
	return r
}

func TestGetNodes_ExplicitHostnames(t *testing.T) {
	opts := NodeOptions{
		User:      "omvsadm",
		Zoau:      "/zoau",
		Pyz:       "/pyz",
		Volumes:   []string{"222222"},
		Hostnames: []string{"ec03", "ec01", "ec02", "ec01"},
		Log:       logger.Noop(),
	}

	nodes, err := GetNodes(context.Background(), opts, failingLister{}, downProber("ec02"))
	require.NoError(t, err)

	assert.Equal(t, []string{"ec01", "ec03"}, nodes.Hostnames())
	for _, n := range nodes.Nodes() {
		assert.True(t, n.Online())
		assert.Equal(t, "omvsadm", n.User)
		assert.Equal(t, []string{"222222"}, n.Volumes)
	}
}

func TestGetNodes_FromLister(t *testing.T) {
	nodes, err := GetNodes(context.Background(),
		NodeOptions{Log: logger.Noop()},
		StaticLister{"ec01", "ec02"},
		downProber())
	require.NoError(t, err)
	assert.Equal(t, 2, nodes.OnlineCount())
}

func TestGetNodes_NoneRespond(t *testing.T) {
	nodes, err := GetNodes(context.Background(),
		NodeOptions{Hostnames: []string{"ec01", "ec02"}, Log: logger.Noop()},
		nil,
		downProber("ec01", "ec02"))

	require.NoError(t, err, "an empty registry is reported when jobs are built")
	assert.Equal(t, 0, nodes.Len())
}

func TestGetNodes_ListerErrors(t *testing.T) {
	_, err := GetNodes(context.Background(), NodeOptions{Log: logger.Noop()}, failingLister{}, downProber())
	assert.True(t, ceerrors.IsCode(err, ceerrors.ErrDiscovery))

	_, err = GetNodes(context.Background(), NodeOptions{Log: logger.Noop()}, nil, downProber())
	assert.True(t, ceerrors.IsCode(err, ceerrors.ErrDiscovery))
}

func TestGetJobs_NoNodes(t *testing.T) {
	collector := &fakeCollector{ids: []string{"tests/a.py::t"}}

	jobs, err := GetJobs(context.Background(), node.NewRegistry(), JobOptions{Testsuite: "a.py"}, collector, nil)

	assert.ErrorIs(t, err, ErrNoNodesAvailable)
	assert.True(t, ceerrors.IsCode(err, ceerrors.ErrNodes))
	assert.Nil(t, jobs)
	assert.Empty(t, collector.requests, "no collection happens without nodes")
}

func TestGetJobs_RoundRobin(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "test_copy.py"), nil, 0o644))

	var ids []string
	for _, c := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		ids = append(ids, "tests/test_copy.py::test_"+c)
	}
	nodes := registryOf("ec03", "ec01", "ec02")

	jobs, err := GetJobs(context.Background(), nodes,
		JobOptions{Testsuite: "test_copy.py", Root: root, Capture: true, Verbosity: 2},
		&fakeCollector{ids: ids}, nil)
	require.NoError(t, err)
	require.Equal(t, 7, jobs.Len())

	hostnames := nodes.Hostnames()
	for _, j := range jobs.Jobs() {
		assert.Equal(t, hostnames[j.ID()%3], j.Hostname(), "job %d", j.ID())
		assert.Equal(t, ids[j.ID()], j.TestCase())
		assert.True(t, j.Options().Capture)
		assert.Equal(t, 2, j.Options().Verbosity)
	}

	counts := map[string]int{}
	for _, n := range nodes.Nodes() {
		counts[n.Hostname] = n.AssignedCount()
	}
	assert.Equal(t, map[string]int{"ec01": 3, "ec02": 2, "ec03": 2}, counts)
}

func TestGetJobs_Replay(t *testing.T) {
	collector := &fakeCollector{}
	replay := []string{"tests/a.py::t1", "b.py::t2"}

	jobs, err := GetJobs(context.Background(), registryOf("ec01"), JobOptions{}, collector, replay)
	require.NoError(t, err)

	var got []string
	for _, j := range jobs.Jobs() {
		got = append(got, j.TestCase())
	}
	assert.Equal(t, []string{"tests/a.py::t1", "tests/b.py::t2"}, got)
	assert.Empty(t, collector.requests)
}

func TestGetJobs_SkipAndDedupe(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "functional"), 0o755))

	collector := &fakeCollector{ids: []string{
		"functional/test_a.py::test_one[p1]",
		"functional/test_a.py::test_one[p2]",
		"functional/test_a.py::test_two",
		"functional/test_a.py::test_two",
		"functional/test_a.py::test_three",
	}}

	jobs, err := GetJobs(context.Background(), registryOf("ec01", "ec02"), JobOptions{
		Tests: "functional",
		Skip:  "functional/test_b.py, tests/functional/test_a.py::test_one functional/test_a.py::test_three",
		Root:  root,
	}, collector, nil)
	require.NoError(t, err)

	var got []string
	for _, j := range jobs.Jobs() {
		got = append(got, j.TestCase())
	}
	assert.Equal(t, []string{"tests/functional/test_a.py::test_two"}, got)

	require.Len(t, collector.requests, 1)
	assert.Equal(t, CollectRequest{
		Paths:  []string{"functional"},
		Ignore: []string{"functional/test_b.py"},
	}, collector.requests[0])
}

func TestGetJobs_PrefixDisabled(t *testing.T) {
	jobs, err := GetJobs(context.Background(), registryOf("ec01"), JobOptions{Prefix: "-"}, nil, []string{"a.py::t"})
	require.NoError(t, err)
	j, err := jobs.Lookup(0)
	require.NoError(t, err)
	assert.Equal(t, "a.py::t", j.TestCase())
}

func TestGetJobs_CollectionErrors(t *testing.T) {
	nodes := registryOf("ec01")

	_, err := GetJobs(context.Background(), nodes, JobOptions{}, &fakeCollector{}, nil)
	assert.True(t, ceerrors.IsCode(err, ceerrors.ErrDiscovery), "nothing to collect")

	_, err = GetJobs(context.Background(), nodes, JobOptions{Testsuite: "missing.py", Root: t.TempDir()}, &fakeCollector{}, nil)
	assert.True(t, ceerrors.IsCode(err, ceerrors.ErrDiscovery), "missing path")

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"), nil, 0o644))
	_, err = GetJobs(context.Background(), nodes, JobOptions{Testsuite: "a.py", Root: root},
		&fakeCollector{err: errors.New("exit status 2")}, nil)
	assert.True(t, ceerrors.IsCode(err, ceerrors.ErrDiscovery), "collector failure")
}

func TestService(t *testing.T) {
	s := &Service{
		NodeOptions: NodeOptions{Hostnames: []string{"ec01"}, Log: logger.Noop()},
		Prober:      downProber(),
		Collector:   &fakeCollector{},
	}

	nodes, err := s.DiscoverNodes(context.Background())
	require.NoError(t, err)

	jobs, err := s.BuildJobs(context.Background(), nodes, []string{"tests/a.py::t"})
	require.NoError(t, err)
	assert.Equal(t, 1, jobs.Len())
}
