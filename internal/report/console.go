// Package report renders plays for people: console output while a run is
// in progress, HTML pages per job state when a play ends, and a results
// log of every console line once the run is over.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/zosci/ce/internal/errors"
	"github.com/zosci/ce/internal/job"
	"github.com/zosci/ce/internal/logger"
	"github.com/zosci/ce/internal/node"
	"github.com/zosci/ce/internal/scheduler"
	"github.com/zosci/ce/internal/stats"
	"github.com/zosci/ce/internal/ui"
)

var _ scheduler.PlayReporter = (*Console)(nil)

// Options configure a Console.
type Options struct {
	Out io.Writer
	Err io.Writer
	// Verbose prints per state test lists and log entries after each play.
	Verbose bool
	// Dir receives the HTML pages and the results log. Empty disables
	// both.
	Dir string
	// RunID names the results log.
	RunID string
	Log   logger.Logger
}

// Console prints play progress and keeps a plain copy of every line for
// the results log. It is safe for the concurrent Line calls made by the
// scheduler's workers.
type Console struct {
	opts Options

	mu        sync.Mutex
	lines     []string
	artifacts []string
}

func NewConsole(opts Options) *Console {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if opts.Log == nil {
		opts.Log = logger.Default()
	}
	return &Console{opts: opts}
}

// emit prints s to w and records it.
func (c *Console) emit(w io.Writer, s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, s)
	fmt.Fprintln(w, s)
}

// record keeps s for the results log without printing it.
func (c *Console) record(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, s)
}

func (c *Console) print(w io.Writer, s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(w, s)
}

func playOf(p scheduler.Play) string {
	if p.Total > 1 {
		return fmt.Sprintf("%d of %d ", p.Number, p.Total)
	}
	return strconv.Itoa(p.Number) + " "
}

func (c *Console) PlayStarted(p scheduler.Play, nodes *node.Registry) {
	c.emit(c.opts.Out, fmt.Sprintf("\n%s\n[START] PLAY %sstarted.\n%s", playRule, playOf(p), playRule))

	all := nodes.Nodes()
	if len(all) == 0 {
		return
	}
	c.emit(c.opts.Out, fmt.Sprintf("[INFO] There are %d managed nodes serving this play.", len(all)))

	rows := make([][]string, 0, len(all))
	for i, n := range all {
		c.record(fmt.Sprintf("[INFO] Node %d = %s", i+1, n.Hostname))
		rows = append(rows, []string{strconv.Itoa(i + 1), n.Hostname, statusCell(n)})
	}
	c.print(c.opts.Out, ui.RenderTable([]string{"#", "Managed node", "Status"}, rows))
}

func statusCell(n *node.Node) string {
	if n.Online() {
		return ui.Success(ui.SymbolComplete + " " + n.Status().Label())
	}
	return ui.Error(ui.SymbolSkipped + " " + n.Status().Label())
}

func (c *Console) IterationStarted(_ scheduler.Play, iteration, pending int) {
	c.emit(c.opts.Out, fmt.Sprintf("\n%s\n[START] Thread pool iteration = %d, pending = %d.\n%s",
		iterationRule, iteration, pending, iterationRule))
}

func (c *Console) Line(line string) {
	w := c.opts.Out
	if !strings.HasPrefix(line, "[INFO]") {
		w = c.opts.Err
	}
	c.emit(w, line)
}

func (c *Console) IterationFinished(_ scheduler.Play, it scheduler.IterationSummary) {
	c.emit(c.opts.Out, fmt.Sprintf("%s\n[END] Thread pool iteration = %d, pending = %d.\n%s",
		iterationRule, it.Number, it.Pending, iterationRule))
}

func (c *Console) PlayFinished(res scheduler.PlayResult) {
	st := res.Stats
	play := res.Play

	c.emit(c.opts.Out, fmt.Sprintf("\n%s\n[RESULTS] for play %s.\n%s", iterationRule, playOf(play), iterationRule))
	c.emit(c.opts.Out, fmt.Sprintf("All %d thread pool iterations completed in %s time, with %d threads running concurrently.",
		len(res.Iterations), job.FormatElapsed(res.Elapsed), res.Threads))

	for _, it := range res.Iterations {
		c.emit(c.opts.Out, fmt.Sprintf("- Thread pool iteration %d completed %d job(s) in %s time, pending %d job(s).",
			it.Number, it.Completed, job.FormatElapsed(it.Elapsed), it.Pending))
	}

	for _, line := range summaryLines(st, res.MaxJob) {
		c.record(line)
	}
	c.print(c.opts.Out, ui.RenderPlaySummary(ui.PlaySummary{
		Total:      st.TotalCount,
		Passed:     st.SuccessCount,
		Failed:     st.FailedCount,
		Exceeded:   st.ExceededCount,
		Rebalanced: st.RebalancedCount,
		MaxJob:     res.MaxJob,
	}))

	c.emit(c.opts.Out, fmt.Sprintf("\n%s\n[END] PLAY %sended.\n%s", playRule, playOf(play), playRule))

	if c.opts.Verbose {
		c.printDetails(st)
	}
	if c.opts.Dir != "" {
		written, err := WriteHTML(c.opts.Dir, play.Number, st)
		c.mu.Lock()
		c.artifacts = append(c.artifacts, written...)
		c.mu.Unlock()
		if err != nil {
			c.opts.Log.Warn("couldn't write HTML report for play %d: %v", play.Number, err)
		}
	}
}

func summaryLines(st stats.Statistics, maxjob int) []string {
	return []string{
		fmt.Sprintf("Number of jobs queued to be run = %d.", st.TotalCount),
		fmt.Sprintf("Number of jobs that run successfully = %d.", st.SuccessCount),
		fmt.Sprintf("Total number of jobs that failed = %d.", st.FailedCount),
		fmt.Sprintf("Number of jobs that failed great than or equal to %d times = %d.", maxjob, st.ExceededCount),
		fmt.Sprintf("Number of jobs that failed less than %d times = %d.", maxjob, st.RetryableCount()),
		fmt.Sprintf("Number of jobs that were balanced = %d.", st.RebalancedCount),
	}
}

// printDetails prints failed and exceeded jobs to stderr and successful
// ones to stdout.
func (c *Console) printDetails(st stats.Statistics) {
	sections := []struct {
		state job.State
		w     io.Writer
		tests []string
		logs  []job.LogEntry
	}{
		{job.Failure, c.opts.Err, st.FailedTests, st.FailedLog},
		{job.Exceeded, c.opts.Err, st.ExceededTests, st.ExceededLog},
		{job.Success, c.opts.Out, st.SuccessTests, st.SuccessLog},
	}
	for _, sec := range sections {
		if tests := FormatTests(sec.tests, sec.state); tests != "" {
			c.print(sec.w, tests)
		}
		for _, e := range sec.logs {
			c.print(sec.w, FormatLogEntry(e, sec.state))
		}
	}
}

// Lines returns every recorded line.
func (c *Console) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

// Artifacts returns the HTML pages written so far.
func (c *Console) Artifacts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.artifacts...)
}

// ResultsPath is the results log location for a run.
func ResultsPath(dir, runID string) string {
	return filepath.Join(dir, fmt.Sprintf("concurrent-executor-log-%s.txt", runID))
}

// WriteResults writes every recorded line to the results log and returns
// its path. It does nothing when no directory is configured.
func (c *Console) WriteResults() (string, error) {
	if c.opts.Dir == "" {
		return "", nil
	}
	path := ResultsPath(c.opts.Dir, c.opts.RunID)

	var b strings.Builder
	for _, line := range c.Lines() {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrReport,
			"Couldn't write the results log",
			fmt.Sprintf("Check that %s exists and is writable, or pass --report-dir.", c.opts.Dir))
	}
	return path, nil
}
