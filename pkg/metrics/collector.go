package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"compose-shim/pkg/log"
)

const namespace = "compose_shim"

// Outcome labels of an invocation.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
	OutcomeError  = "error"
)

// Collector records every external command the shim runs. A nil *Collector
// is valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewCollector registers the shim metrics on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	return NewCollectorWith(reg, reg)
}

// NewCollectorWith registers the shim metrics on reg. g is used by
// LogSummary and may be nil.
func NewCollectorWith(reg prometheus.Registerer, g prometheus.Gatherer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		gatherer: g,
		invocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocations_total",
				Help:      "Total number of external commands run, by outcome",
			},
			[]string{"program", "subcommand", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "invocation_duration_seconds",
				Help:      "Wall time of external commands in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"program", "subcommand"},
		),
	}
}

// RecordInvocation counts one finished command. err is a failure to run the
// command at all; a nonzero exitCode counts as failed.
func (c *Collector) RecordInvocation(program, subcommand string, exitCode int, err error, d time.Duration) {
	if c == nil {
		return
	}

	outcome := OutcomeOK
	switch {
	case err != nil:
		outcome = OutcomeError
	case exitCode != 0:
		outcome = OutcomeFailed
	}

	c.invocations.WithLabelValues(program, subcommand, outcome).Inc()
	c.duration.WithLabelValues(program, subcommand).Observe(d.Seconds())
}

// LogSummary writes one debug line per metric family.
func (c *Collector) LogSummary() {
	if c == nil || c.gatherer == nil {
		return
	}

	families, err := c.gatherer.Gather()
	if err != nil {
		log.Warn("Failed to gather metrics", "error", err)
		return
	}
	for _, mf := range families {
		var total float64
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
		log.Debug("Metric summary", "name", mf.GetName(), "series", len(mf.GetMetric()), "total", total)
	}
}
