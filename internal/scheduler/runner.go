package scheduler

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zosci/ce/internal/job"
)

// Runner submits every pending job of a Scheduler to a bounded pool.
type Runner struct {
	sched   *Scheduler
	workers int
	// Print, when set, receives each result line as it is produced.
	Print func(line string)
}

func NewRunner(s *Scheduler) *Runner {
	return &Runner{sched: s, workers: s.cfg.Workers}
}

// PoolSize is nodes times the worker multiplier, at least one.
func (r *Runner) PoolSize() int {
	workers := max(r.workers, 1)
	return max(r.sched.nodes.Len()*workers, 1)
}

// RunIteration runs one attempt of every job that has neither succeeded
// nor exceeded its failure budget, and returns one line per attempt in
// completion order. A panicking attempt is reported as an [ERROR] line and
// does not stop the others.
func (r *Runner) RunIteration(ctx context.Context) []string {
	var (
		mu    sync.Mutex
		lines []string
	)
	record := func(line string) {
		mu.Lock()
		lines = append(lines, line)
		mu.Unlock()
		if r.Print != nil {
			r.Print(line)
		}
	}

	var g errgroup.Group
	g.SetLimit(r.PoolSize())

	for _, id := range r.sched.jobs.Pending(r.sched.cfg.MaxJob) {
		if ctx.Err() != nil {
			record(fmt.Sprintf("[ERROR] Executor cancelled job, message = job id=%d was not submitted: %v", id, ctx.Err()))
			continue
		}
		id := id
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					r.sched.log.Error("job %d panicked: %v", id, p)
					record(fmt.Sprintf("[ERROR] Executor exception occurred with error: %v", p))
				}
			}()

			rc, msg, err := r.sched.Run(ctx, id)
			if err != nil {
				record(fmt.Sprintf("[ERROR] Executor exception occurred with error: %v", err))
				return nil
			}
			record(resultLine(rc, msg))
			return nil
		})
	}
	_ = g.Wait()
	return lines
}

func resultLine(rc job.ReturnCode, msg string) string {
	level := "WARN"
	if rc == job.RCSuccess {
		level = "INFO"
	}
	return fmt.Sprintf("[%s] Executor message = %s", level, msg)
}
