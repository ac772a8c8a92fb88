// Package output reads the test runner's console output back: the
// outcome counts of an attempt, its failures, and which lines deserve
// highlighting.
package output

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/zosci/ce/internal/ui"
)

// Failure is one failed test with the location and assertion message
// pytest printed for it.
type Failure struct {
	TestName string
	File     string
	Line     int
	Message  string
}

// Outcome summarizes one pytest invocation.
type Outcome struct {
	Passed   int
	Failed   int
	Skipped  int
	Errors   int
	Failures []Failure
	// SummaryLine is pytest's closing line without the '=' rule, e.g.
	// "1 failed, 2 passed in 0.03s".
	SummaryLine string
}

var (
	// tests/test_example.py::test_pass PASSED [ 33%]
	resultPattern = regexp.MustCompile(`^(.+?::\S+)\s+(PASSED|FAILED|SKIPPED|ERROR|XFAIL|XPASS)\b`)

	// ____________________ test_fail ____________________
	failureHeaderPattern = regexp.MustCompile(`^_+\s+(\S+)\s+_+$`)

	// tests/test_example.py:5: AssertionError
	locationPattern = regexp.MustCompile(`^(.+?\.py):(\d+):\s+\S+`)

	// E       AssertionError: Math is broken
	assertionPattern = regexp.MustCompile(`^E\s+(.*)$`)

	// ===== 1 failed, 1 passed, 1 skipped in 0.03s =====
	summaryPattern = regexp.MustCompile(`^=+\s*((\d+\s+\w+(?:,\s*\d+\s+\w+)*)\s+in\s+[\d.]+s.*?)\s*=+$`)
	countPattern   = regexp.MustCompile(`(\d+)\s+(\w+)`)

	failuresStart = regexp.MustCompile(`^=+\s*(FAILURES|ERRORS)\s*=+$`)
	failuresEnd   = regexp.MustCompile(`^=+\s*(short test summary|warnings summary|\d+\s+\w+)`)
)

// Parse reads the combined output of a pytest run.
func Parse(out string) Outcome {
	var (
		o          Outcome
		inFailures bool
		current    *Failure
		fromLines  Outcome
	)
	finish := func() {
		if current != nil && current.TestName != "" {
			current.Message = strings.TrimSpace(current.Message)
			o.Failures = append(o.Failures, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)

		if m := summaryPattern.FindStringSubmatch(trimmed); m != nil {
			finish()
			inFailures = false
			o.SummaryLine = m[1]
			countSummary(&o, m[2])
			continue
		}
		if failuresStart.MatchString(trimmed) {
			inFailures = true
			continue
		}
		if inFailures && failuresEnd.MatchString(trimmed) {
			finish()
			inFailures = false
			continue
		}

		if inFailures {
			if m := failureHeaderPattern.FindStringSubmatch(trimmed); m != nil {
				finish()
				current = &Failure{TestName: m[1]}
				continue
			}
			if current == nil {
				continue
			}
			if m := locationPattern.FindStringSubmatch(trimmed); m != nil {
				current.File = m[1]
				current.Line, _ = strconv.Atoi(m[2])
				continue
			}
			if m := assertionPattern.FindStringSubmatch(trimmed); m != nil {
				if current.Message != "" {
					current.Message += "\n"
				}
				current.Message += strings.TrimSpace(m[1])
			}
			continue
		}

		if m := resultPattern.FindStringSubmatch(trimmed); m != nil {
			switch m[2] {
			case "PASSED", "XPASS":
				fromLines.Passed++
			case "FAILED":
				fromLines.Failed++
			case "SKIPPED", "XFAIL":
				fromLines.Skipped++
			case "ERROR":
				fromLines.Errors++
			}
		}
	}
	finish()

	if o.SummaryLine == "" {
		o.Passed, o.Failed, o.Skipped, o.Errors = fromLines.Passed, fromLines.Failed, fromLines.Skipped, fromLines.Errors
	}
	return o
}

func countSummary(o *Outcome, counts string) {
	for _, m := range countPattern.FindAllStringSubmatch(counts, -1) {
		n, _ := strconv.Atoi(m[1])
		switch m[2] {
		case "passed", "xpassed":
			o.Passed += n
		case "failed":
			o.Failed += n
		case "skipped", "xfailed", "deselected":
			o.Skipped += n
		case "error", "errors":
			o.Errors += n
		}
	}
}

// Empty reports whether nothing pytest-shaped was found.
func (o Outcome) Empty() bool {
	return o.SummaryLine == "" && o.Passed+o.Failed+o.Skipped+o.Errors == 0
}

// String is pytest's own summary when it printed one, otherwise the counts
// seen on result lines.
func (o Outcome) String() string {
	if o.SummaryLine != "" {
		return o.SummaryLine
	}
	var parts []string
	for _, c := range []struct {
		n    int
		name string
	}{{o.Failed, "failed"}, {o.Passed, "passed"}, {o.Skipped, "skipped"}, {o.Errors, "error"}} {
		if c.n > 0 {
			parts = append(parts, strconv.Itoa(c.n)+" "+c.name)
		}
	}
	return strings.Join(parts, ", ")
}

// FirstFailure is the location and message of the first failure, or "".
func (o Outcome) FirstFailure() string {
	if len(o.Failures) == 0 {
		return ""
	}
	f := o.Failures[0]
	s := f.TestName
	if f.File != "" {
		s += " (" + f.File
		if f.Line > 0 {
			s += ":" + strconv.Itoa(f.Line)
		}
		s += ")"
	}
	if msg, _, _ := strings.Cut(f.Message, "\n"); msg != "" {
		s += ": " + msg
	}
	return s
}

// Highlight colors result, assertion and error lines of pytest output.
// Other lines pass through unchanged.
func Highlight(line string) string {
	trimmed := strings.TrimSpace(line)
	if m := resultPattern.FindStringSubmatch(trimmed); m != nil {
		switch m[2] {
		case "PASSED", "XPASS":
			return ui.Success(line)
		case "SKIPPED", "XFAIL":
			return ui.Warning(line)
		}
		return ui.Error(line)
	}
	if isErrorLine(trimmed) {
		return ui.Error(line)
	}
	return line
}

// isErrorLine checks if a line appears to be an error message.
func isErrorLine(trimmed string) bool {
	if strings.HasPrefix(trimmed, "E ") || strings.HasPrefix(trimmed, "FAILED") {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, prefix := range []string{"error:", "fatal:", "panic:", "exception:", "traceback ("} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
