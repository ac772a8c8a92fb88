package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zosci/ce/internal/errors"
	"github.com/zosci/ce/internal/job"
	"github.com/zosci/ce/internal/node"
	"github.com/zosci/ce/internal/util"
)

// DefaultTestPrefix is prepended to identifiers that lack it.
const DefaultTestPrefix = "tests/"

// ErrNoNodesAvailable is returned when jobs are requested for an empty node
// registry. It ends the run.
var ErrNoNodesAvailable = errors.New(errors.ErrNodes,
	"There are no managed nodes online to run jobs",
	"Check --hostnames or the discovery command, and that nodes answer the liveness probe.")

// JobOptions describe which tests become jobs.
type JobOptions struct {
	// Testsuite lists test files; Tests lists test directories. Both are
	// comma or space delimited and exactly one is normally set.
	Testsuite string
	Tests     string
	// Skip lists files to ignore during collection and individual test
	// cases (path::case) to drop afterwards.
	Skip string

	Capture   bool
	Verbosity int

	// Prefix is prepended to identifiers that lack it. Empty means
	// DefaultTestPrefix; "-" disables prefixing.
	Prefix string
	// Root resolves relative paths for the existence check.
	Root string
}

func (o JobOptions) prefix() string {
	switch o.Prefix {
	case "":
		return DefaultTestPrefix
	case "-":
		return ""
	}
	return o.Prefix
}

// GetJobs builds the job registry for one play. In replay mode (non-empty
// replay) the identifiers are used as given; otherwise they are collected.
// Jobs are dealt round robin over the sorted hostnames, so job i starts on
// hostnames[i mod N].
func GetJobs(ctx context.Context, nodes *node.Registry, opts JobOptions, collector Collector, replay []string) (*job.Registry, error) {
	hostnames := nodes.Hostnames()
	if len(hostnames) == 0 {
		return nil, ErrNoNodesAvailable
	}

	var ids []string
	if len(replay) > 0 {
		ids = replay
	} else {
		collected, err := collect(ctx, opts, collector)
		if err != nil {
			return nil, err
		}
		ids = collected
	}

	prefix := opts.prefix()
	ids = dedupe(withPrefix(ids, prefix))

	jobs := job.NewRegistry()
	jobOpts := job.Options{Capture: opts.Capture, Verbosity: opts.Verbosity}
	for i, id := range ids {
		host := hostnames[i%len(hostnames)]
		n, err := nodes.Lookup(host)
		if err != nil {
			return nil, err
		}
		jobs.Add(job.New(i, id, host, jobOpts))
		n.AddAssigned()
	}
	return jobs, nil
}

func collect(ctx context.Context, opts JobOptions, collector Collector) ([]string, error) {
	paths := append(util.SplitList(opts.Testsuite), util.SplitList(opts.Tests)...)
	if len(paths) == 0 {
		return nil, errors.New(errors.ErrDiscovery,
			"No tests to collect",
			"Pass --testsuite with test files or --tests with test directories.")
	}
	for _, p := range paths {
		full := p
		if !filepath.IsAbs(p) && opts.Root != "" {
			full = filepath.Join(opts.Root, p)
		}
		if _, err := os.Stat(full); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrDiscovery,
				fmt.Sprintf("Test path %q does not exist", p),
				"Check the paths given to --testsuite or --tests.")
		}
	}

	var ignore, skipCases []string
	for _, s := range util.SplitList(opts.Skip) {
		if strings.Contains(s, "::") {
			skipCases = append(skipCases, s)
		} else {
			ignore = append(ignore, s)
		}
	}

	ids, err := collector.Collect(ctx, CollectRequest{Paths: paths, Ignore: ignore})
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrDiscovery,
			"Test collection failed",
			"Run the collect command by hand to see the error.")
	}
	return dropSkipped(ids, skipCases, opts.prefix()), nil
}

// dropSkipped removes identifiers naming a skipped test case. A skip
// without parameters ("file::case") also drops every parametrization of
// that case.
func dropSkipped(ids, skips []string, prefix string) []string {
	if len(skips) == 0 {
		return ids
	}
	skipSet := make(map[string]struct{}, len(skips))
	for _, s := range withPrefix(skips, prefix) {
		skipSet[s] = struct{}{}
	}

	out := ids[:0:0]
	for _, id := range ids {
		key := addPrefix(id, prefix)
		if _, ok := skipSet[key]; ok {
			continue
		}
		if i := strings.Index(key, "["); i != -1 {
			if _, ok := skipSet[key[:i]]; ok {
				continue
			}
		}
		out = append(out, id)
	}
	return out
}

func withPrefix(ids []string, prefix string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = addPrefix(id, prefix)
	}
	return out
}

func addPrefix(id, prefix string) string {
	if prefix == "" || strings.HasPrefix(id, prefix) {
		return id
	}
	return prefix + id
}
