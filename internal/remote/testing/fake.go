// Package testing provides a scripted remote.Executor for tests.
package testing

import (
	"context"
	"strings"
	"sync"

	"github.com/zosci/ce/internal/remote"
)

var _ remote.Executor = (*FakeExecutor)(nil)

type rule struct {
	match   string
	results []remote.Result
	hang    bool
}

// FakeExecutor returns scripted results for commands whose script
// contains a registered substring. Each rule replays its results in order
// and repeats the last one. Unmatched commands get Default.
type FakeExecutor struct {
	Default remote.Result

	mu       sync.Mutex
	rules    []*rule
	calls    []remote.Command
	inflight map[string]int
	peak     map[string]int
	total    int
	maxTotal int
}

func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{
		inflight: make(map[string]int),
		peak:     make(map[string]int),
	}
}

// On scripts the results for scripts containing match.
func (f *FakeExecutor) On(match string, results ...remote.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, &rule{match: match, results: results})
}

// OnHang makes scripts containing match block until their context ends.
func (f *FakeExecutor) OnHang(match string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, &rule{match: match, hang: true})
}

func (f *FakeExecutor) Execute(ctx context.Context, cmd remote.Command) remote.Result {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.inflight[cmd.Host]++
	f.peak[cmd.Host] = max(f.peak[cmd.Host], f.inflight[cmd.Host])
	f.total++
	f.maxTotal = max(f.maxTotal, f.total)

	res, hang := f.Default, false
	for _, r := range f.rules {
		if !strings.Contains(cmd.Script, r.match) {
			continue
		}
		if r.hang {
			hang = true
			break
		}
		if len(r.results) > 0 {
			res = r.results[0]
			if len(r.results) > 1 {
				r.results = r.results[1:]
			}
		}
		break
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inflight[cmd.Host]--
		f.total--
		f.mu.Unlock()
	}()

	if hang {
		<-ctx.Done()
		return remote.Result{ExitCode: -1, TimedOut: ctx.Err() == context.DeadlineExceeded, Err: canceledErr(ctx)}
	}
	return res
}

func canceledErr(ctx context.Context) error {
	if ctx.Err() == context.Canceled {
		return ctx.Err()
	}
	return nil
}

// Calls returns every command received, in order.
func (f *FakeExecutor) Calls() []remote.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]remote.Command(nil), f.calls...)
}

// CallCount counts commands whose script contains match.
func (f *FakeExecutor) CallCount(match string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.Contains(c.Script, match) {
			n++
		}
	}
	return n
}

// PeakConcurrency returns the most commands that ran on host at once.
func (f *FakeExecutor) PeakConcurrency(host string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak[host]
}

// PeakTotal returns the most commands that ran at once across all hosts.
func (f *FakeExecutor) PeakTotal() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxTotal
}
