// Package metrics counts verification outcomes in a Prometheus registry.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lukemcguire/linkguard/result"
)

// Metrics implements verifier.Observer. Each instance owns its registry so
// several runs in one process never share counters.
type Metrics struct {
	registry *prometheus.Registry

	ChecksTotal   *prometheus.CounterVec
	CheckDuration prometheus.Histogram
	Fallbacks     prometheus.Counter
}

// New registers the linkguard collectors in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkguard_checks_total",
				Help: "Total number of link checks by outcome and failure category.",
			},
			[]string{"outcome", "category"}, // outcome: working, broken
		),
		CheckDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "linkguard_check_duration_seconds",
				Help:    "Duration of link checks, including time spent waiting for a slot.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		Fallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "linkguard_fallbacks_total",
				Help: "Total number of HEAD requests retried with GET.",
			},
		),
	}
}

// CheckFinished records one finished check.
func (m *Metrics) CheckFinished(res result.LinkResult) {
	outcome := "working"
	if res.IsBroken {
		outcome = "broken"
	}
	category := string(res.Category)
	if category == "" {
		category = "none"
	}
	m.ChecksTotal.WithLabelValues(outcome, category).Inc()
	m.CheckDuration.Observe(res.Elapsed.Seconds())
}

// FallbackUsed records one HEAD request retried with GET.
func (m *Metrics) FallbackUsed() {
	m.Fallbacks.Inc()
}

// Registry exposes the registry, e.g. for an HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteFile writes the registry in the text exposition format, for the node
// exporter's textfile collector.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
