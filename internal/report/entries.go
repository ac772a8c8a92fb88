package report

import (
	"fmt"
	"slices"
	"strings"

	"github.com/zosci/ce/internal/job"
	"github.com/zosci/ce/internal/output"
)

const (
	playRule      = "================================================="
	iterationRule = "-----------------------------------------------------------"
	entryRule     = "------------------------------------------------------------"
)

// sortedByJob orders entries by job id, keeping attempt order within a job.
func sortedByJob(logs []job.LogEntry) []job.LogEntry {
	out := slices.Clone(logs)
	slices.SortStableFunc(out, func(a, b job.LogEntry) int { return a.JobID - b.JobID })
	return out
}

// FormatLogEntry renders one attempt as the bracketed block printed in
// verbose mode.
func FormatLogEntry(e job.LogEntry, state job.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n[START] [%s] log entry.\n%s\n", entryRule, state.Label(), entryRule)
	fmt.Fprintf(&b, "\tJob ID: %d\n", e.JobID)
	fmt.Fprintf(&b, "\tHostname: %s\n", e.Hostname)
	fmt.Fprintf(&b, "\tDate time: %s\n", e.DateTime)
	fmt.Fprintf(&b, "\tCommand:  %s\n", e.Command)
	fmt.Fprintf(&b, "\tMessage:  %s\n", e.Message)
	if result := resultOf(e); result != "" {
		fmt.Fprintf(&b, "\tResult:   %s\n", result)
	}
	lines := strings.Split(e.Output, "\n")
	for i, line := range lines {
		lines[i] = output.Highlight(line)
	}
	fmt.Fprintf(&b, "\tStdout: \n\t%s\n", strings.Join(lines, "\n\t"))
	fmt.Fprintf(&b, "%s\n[END] [%s] log entry.\n%s", entryRule, state.Label(), entryRule)
	return b.String()
}

// FormatTests renders the test cases of a state, or "" when there are none.
func FormatTests(tests []string, state job.State) string {
	if len(tests) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n[START] [%s] test cases.\n%s\n", entryRule, state.Label(), entryRule)
	for _, tc := range tests {
		fmt.Fprintf(&b, "\t%s\n", tc)
	}
	fmt.Fprintf(&b, "%s\n[END] [%s] test cases.\n%s", entryRule, state.Label(), entryRule)
	return b.String()
}

// resultOf is pytest's summary of the attempt, followed by its first
// failure when there is one.
func resultOf(e job.LogEntry) string {
	o := output.Parse(e.Output)
	if o.Empty() {
		return ""
	}
	if first := o.FirstFailure(); first != "" {
		return o.String() + "; " + first
	}
	return o.String()
}
