// Package metrics builds the tally scope the scheduler reports through.
// There is no metrics backend; values are written to the debug log when
// the scope flushes, and summarized once at the end of a run.
package metrics

import (
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/uber-go/tally/v4"

	"github.com/zosci/ce/internal/logger"
)

// DefaultInterval is how often the root scope flushes to the reporter.
const DefaultInterval = 10 * time.Second

// Options configure NewScope.
type Options struct {
	Prefix   string
	Tags     map[string]string
	Interval time.Duration
	Log      logger.Logger
}

// NewScope returns a root scope reporting to a LogReporter, and the
// closer that flushes it. Callers must Close it before exit.
func NewScope(opts Options) (tally.Scope, io.Closer, *LogReporter) {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	reporter := NewLogReporter(opts.Log)
	scope, closer := tally.NewRootScope(tally.ScopeOptions{
		Prefix:    opts.Prefix,
		Tags:      opts.Tags,
		Reporter:  reporter,
		Separator: tally.DefaultSeparator,
	}, opts.Interval)
	return scope, closer, reporter
}

// LogReporter is a tally.StatsReporter that logs every reported value at
// debug level and keeps running totals for counters and the latest value
// of gauges.
type LogReporter struct {
	log logger.Logger

	mu       sync.Mutex
	counters map[string]int64
	gauges   map[string]float64
	timers   map[string]time.Duration
}

var _ tally.StatsReporter = (*LogReporter)(nil)

func NewLogReporter(log logger.Logger) *LogReporter {
	if log == nil {
		log = logger.NewEnvLogger("metrics")
	}
	return &LogReporter{
		log:      log,
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
		timers:   make(map[string]time.Duration),
	}
}

func (r *LogReporter) ReportCounter(name string, tags map[string]string, value int64) {
	r.mu.Lock()
	r.counters[name] += value
	r.mu.Unlock()
	r.log.Debug("counter %s%s += %d", name, formatTags(tags), value)
}

func (r *LogReporter) ReportGauge(name string, tags map[string]string, value float64) {
	r.mu.Lock()
	r.gauges[name] = value
	r.mu.Unlock()
	r.log.Debug("gauge %s%s = %g", name, formatTags(tags), value)
}

func (r *LogReporter) ReportTimer(name string, tags map[string]string, interval time.Duration) {
	r.mu.Lock()
	r.timers[name] += interval
	r.mu.Unlock()
	r.log.Debug("timer %s%s %s", name, formatTags(tags), interval)
}

func (r *LogReporter) ReportHistogramValueSamples(name string, tags map[string]string, _ tally.Buckets, lower, upper float64, samples int64) {
	r.log.Debug("histogram %s%s [%g, %g) %d samples", name, formatTags(tags), lower, upper, samples)
}

func (r *LogReporter) ReportHistogramDurationSamples(name string, tags map[string]string, _ tally.Buckets, lower, upper time.Duration, samples int64) {
	r.log.Debug("histogram %s%s [%s, %s) %d samples", name, formatTags(tags), lower, upper, samples)
}

func (r *LogReporter) Capabilities() tally.Capabilities {
	return r
}

func (r *LogReporter) Reporting() bool { return true }
func (r *LogReporter) Tagging() bool   { return true }

func (r *LogReporter) Flush() {}

// Counter returns the total reported for a counter.
func (r *LogReporter) Counter(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[name]
}

// Gauge returns the last value reported for a gauge.
func (r *LogReporter) Gauge(name string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.gauges[name]
	return v, ok
}

// TimerTotal returns the sum of every interval reported for a timer.
func (r *LogReporter) TimerTotal(name string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timers[name]
}

// Summary renders counter totals as "name=value" pairs in name order.
func (r *LogReporter) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.counters))
	for name := range r.counters {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+strconv.FormatInt(r.counters[name], 10))
	}
	return strings.Join(parts, " ")
}

func formatTags(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+tags[k])
	}
	return "{" + strings.Join(pairs, ",") + "}"
}
