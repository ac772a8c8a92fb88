package scheduler

import "github.com/uber-go/tally/v4"

type metrics struct {
	success    tally.Counter
	failure    tally.Counter
	rebalanced tally.Counter
	exceeded   tally.Counter
	timeout    tally.Counter
	busy       tally.Counter
	noNodes    tally.Counter
	offline    tally.Counter
	elapsed    tally.Timer
	pending    tally.Gauge
}

func newMetrics(scope tally.Scope) *metrics {
	jobs := scope.SubScope("jobs")
	return &metrics{
		success:    jobs.Counter("success"),
		failure:    jobs.Counter("failure"),
		rebalanced: jobs.Counter("rebalanced"),
		exceeded:   jobs.Counter("exceeded"),
		timeout:    jobs.Counter("timeout"),
		busy:       jobs.Counter("busy"),
		noNodes:    jobs.Counter("no_nodes"),
		offline:    scope.SubScope("nodes").Counter("offline"),
		elapsed:    jobs.Timer("elapsed"),
		pending:    scope.SubScope("plays").Gauge("pending"),
	}
}
