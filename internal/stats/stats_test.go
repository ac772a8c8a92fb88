package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zosci/ce/internal/job"
)

func TestCollect(t *testing.T) {
	jobs := job.NewRegistry()

	passed := job.New(0, "tests/a.py::pass", "ec01", job.Options{})
	passed.AppendLog(job.LogEntry{JobID: 0, Message: "ok"}, true)
	passed.MarkSuccess(time.Second)
	jobs.Add(passed)

	flaky := job.New(1, "tests/a.py::flaky", "ec02", job.Options{})
	flaky.IncrementFailure()
	flaky.AppendLog(job.LogEntry{JobID: 1, Message: "failed once"}, false)
	flaky.Assign("ec01")
	jobs.Add(flaky)

	broken := job.New(2, "tests/a.py::broken", "ec03", job.Options{})
	for i := 0; i < 6; i++ {
		broken.IncrementFailure()
		broken.AppendLog(job.LogEntry{JobID: 2, Message: "failed"}, false)
	}
	broken.Assign("ec02")
	jobs.Add(broken)

	s := Collect(jobs, 6)

	assert.Equal(t, 3, s.TotalCount)
	assert.Equal(t, 1, s.SuccessCount)
	assert.Equal(t, []string{"tests/a.py::pass"}, s.SuccessTests)
	assert.Len(t, s.SuccessLog, 1)

	assert.Equal(t, 2, s.FailedCount)
	assert.Equal(t, []string{"tests/a.py::flaky", "tests/a.py::broken"}, s.FailedTests)
	assert.Len(t, s.FailedLog, 7)

	assert.Equal(t, 1, s.ExceededCount)
	assert.Equal(t, []string{"tests/a.py::broken"}, s.ExceededTests)
	assert.Len(t, s.ExceededLog, 6)

	assert.Equal(t, 2, s.RebalancedCount)
	assert.Equal(t, 2, s.Pending())
	assert.Equal(t, 1, s.RetryableCount())
}

func TestCollect_Empty(t *testing.T) {
	s := Collect(job.NewRegistry(), 6)
	assert.Equal(t, Statistics{}, s)
	assert.Equal(t, 0, s.Pending())
}

func TestCollect_DoesNotMutate(t *testing.T) {
	jobs := job.NewRegistry()
	j := job.New(0, "t", "ec01", job.Options{})
	j.IncrementFailure()
	jobs.Add(j)

	Collect(jobs, 1)
	Collect(jobs, 1)

	assert.Equal(t, 1, j.Failures())
	assert.Equal(t, []string{"ec01"}, j.Hostnames())
}
