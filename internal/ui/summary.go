package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zosci/ce/internal/util"
)

// PlaySummary holds the counts shown when a play ends.
type PlaySummary struct {
	Total      int
	Passed     int
	Failed     int
	Exceeded   int
	Rebalanced int
	MaxJob     int
}

// RenderPlaySummary renders the counts as a two column table followed by
// a one line verdict.
func RenderPlaySummary(s PlaySummary) string {
	rows := [][]string{
		{"Jobs queued", strconv.Itoa(s.Total)},
		{"Jobs passed", strconv.Itoa(s.Passed)},
		{"Jobs failed", strconv.Itoa(s.Failed)},
		{fmt.Sprintf("Failed >= %d times", s.MaxJob), strconv.Itoa(s.Exceeded)},
		{fmt.Sprintf("Failed < %d times", s.MaxJob), strconv.Itoa(s.Failed - s.Exceeded)},
		{"Jobs balanced", strconv.Itoa(s.Rebalanced)},
	}

	var sb strings.Builder
	sb.WriteString(RenderTable([]string{"Result", "Count"}, rows))
	sb.WriteString("\n")
	sb.WriteString(Verdict(s))
	return sb.String()
}

// Verdict is the colored one line outcome of a play.
func Verdict(s PlaySummary) string {
	if s.Failed == 0 {
		return Success(fmt.Sprintf("%s %d %s passed", SymbolSuccess, s.Passed, util.Pluralize(s.Passed, "job", "jobs")))
	}
	return Error(fmt.Sprintf("%s %d of %d %s failed", SymbolFail, s.Failed, s.Total, util.Pluralize(s.Total, "job", "jobs")))
}
