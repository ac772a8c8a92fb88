// Package job models the unit of work dispatched to nodes: one test case,
// its host history, and the outcome of every attempt.
package job

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// LogEntry is one recorded attempt of a job.
type LogEntry struct {
	JobID    int
	Hostname string
	DateTime string
	Command  string
	Message  string
	Output   string
}

// Options control how the test runner command is built.
type Options struct {
	Capture     bool
	Verbosity   int
	HostPattern string
}

// Job is a single test case. Its mutable fields are guarded by mu; the
// scheduler guarantees attempts of one job never overlap.
type Job struct {
	id       int
	testCase string
	opts     Options

	mu         sync.Mutex
	hostnames  []string
	failures   int
	rc         ReturnCode
	successful bool
	elapsed    time.Duration
	logs       []LogEntry
	successLog []LogEntry
}

// New creates a job for testCase initially assigned to hostname.
func New(id int, testCase, hostname string, opts Options) *Job {
	if opts.HostPattern == "" {
		opts.HostPattern = "all"
	}
	return &Job{
		id:        id,
		testCase:  testCase,
		opts:      opts,
		hostnames: []string{hostname},
		rc:        RCUnset,
	}
}

func (j *Job) ID() int          { return j.id }
func (j *Job) TestCase() string { return j.testCase }
func (j *Job) Options() Options { return j.opts }

// Hostname returns the node the job is currently assigned to.
func (j *Job) Hostname() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.hostnames[len(j.hostnames)-1]
}

// Hostnames returns the assignment history, oldest first.
func (j *Job) Hostnames() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return slices.Clone(j.hostnames)
}

// Assign appends hostname to the history, making it the current host.
func (j *Job) Assign(hostname string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.hostnames = append(j.hostnames, hostname)
}

// Rebalanced reports whether the job has ever moved to another node.
func (j *Job) Rebalanced() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.hostnames) > 1
}

func (j *Job) Failures() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.failures
}

// IncrementFailure adds one failure and returns the new count.
func (j *Job) IncrementFailure() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.failures++
	return j.failures
}

func (j *Job) RC() ReturnCode {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.rc
}

// SetRC records the return code of the latest attempt. It is ignored once
// the job has succeeded.
func (j *Job) SetRC(rc ReturnCode) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.successful {
		return
	}
	j.rc = rc
}

// MarkSuccess records a successful attempt that took elapsed.
func (j *Job) MarkSuccess(elapsed time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.successful = true
	j.rc = RCSuccess
	j.elapsed = elapsed
}

func (j *Job) Successful() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.successful
}

// Exceeded reports whether the job has used up its failure budget.
func (j *Job) Exceeded(maxjob int) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return !j.successful && j.failures >= maxjob
}

// State classifies the job for reporting.
func (j *Job) State(maxjob int) State {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch {
	case j.successful:
		return Success
	case j.failures >= maxjob:
		return Exceeded
	default:
		return Failure
	}
}

// SetElapsed records the duration of the latest attempt.
func (j *Job) SetElapsed(d time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.elapsed = d
}

func (j *Job) Elapsed() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.elapsed
}

// AppendLog records an attempt in the full log and, when success is set,
// also in the success log.
func (j *Job) AppendLog(entry LogEntry, success bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.logs = append(j.logs, entry)
	if success {
		j.successLog = append(j.successLog, entry)
	}
}

// Logs returns every recorded attempt.
func (j *Job) Logs() []LogEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return slices.Clone(j.logs)
}

// SuccessLogs returns the successful attempts.
func (j *Job) SuccessLogs() []LogEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return slices.Clone(j.successLog)
}

func (j *Job) String() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return fmt.Sprintf("Job(id=%d, test=%s, host=%s, failures=%d, rc=%d)",
		j.id, j.testCase, j.hostnames[len(j.hostnames)-1], j.failures, j.rc)
}

// FormatElapsed renders d as HH:MM:SS.ss.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int(d / time.Minute)
	d -= time.Duration(minutes) * time.Minute
	return fmt.Sprintf("%02d:%02d:%05.2f", hours, minutes, d.Seconds())
}
