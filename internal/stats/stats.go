// Package stats aggregates job outcomes for reporting.
package stats

import "github.com/zosci/ce/internal/job"

// Statistics summarizes a job registry. Failed counts every job that did
// not succeed, so Exceeded is a subset of Failed.
type Statistics struct {
	TotalCount int

	SuccessCount int
	SuccessTests []string
	SuccessLog   []job.LogEntry

	FailedCount int
	FailedTests []string
	FailedLog   []job.LogEntry

	RebalancedCount int

	ExceededCount int
	ExceededTests []string
	ExceededLog   []job.LogEntry
}

// Pending returns how many jobs have yet to succeed.
func (s Statistics) Pending() int {
	return s.TotalCount - s.SuccessCount
}

// RetryableCount is the number of failed jobs still under maxjob.
func (s Statistics) RetryableCount() int {
	return s.FailedCount - s.ExceededCount
}

// Collect walks jobs in id order. It does not modify them.
func Collect(jobs *job.Registry, maxjob int) Statistics {
	var s Statistics
	for _, j := range jobs.Jobs() {
		s.TotalCount++
		if j.Rebalanced() {
			s.RebalancedCount++
		}

		if j.Successful() {
			s.SuccessCount++
			s.SuccessTests = append(s.SuccessTests, j.TestCase())
			s.SuccessLog = append(s.SuccessLog, j.SuccessLogs()...)
			continue
		}

		s.FailedCount++
		s.FailedTests = append(s.FailedTests, j.TestCase())
		s.FailedLog = append(s.FailedLog, j.Logs()...)

		if j.Exceeded(maxjob) {
			s.ExceededCount++
			s.ExceededTests = append(s.ExceededTests, j.TestCase())
			s.ExceededLog = append(s.ExceededLog, j.Logs()...)
		}
	}
	return s
}
