// Package metrics holds the Prometheus collectors for imports and the web
// surface. Each Metrics owns its registry so tests and embedded servers do
// not collide on the global one.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "notepipe"

// Metrics groups every collector notepipe exports.
type Metrics struct {
	Registry *prometheus.Registry

	RequestCounter  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	NotesNormalized       *prometheus.CounterVec
	ResourcesMaterialized *prometheus.CounterVec
	UnresolvedReferences  prometheus.Counter
	RateLimitedNotes      prometheus.Counter
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		NotesNormalized: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "import",
				Name:      "notes_total",
				Help:      "Notes processed by the importer, by outcome",
			},
			[]string{"outcome"}, // written, skipped, failed
		),
		ResourcesMaterialized: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "import",
				Name:      "resources_materialized_total",
				Help:      "Resource files written into note folders",
			},
			[]string{"kind"}, // images, attachments
		),
		UnresolvedReferences: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "import",
				Name:      "unresolved_references_total",
				Help:      "Resource references dropped because they could not be resolved",
			},
		),
		RateLimitedNotes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "import",
				Name:      "notes_rate_limited_total",
				Help:      "Notes skipped after the rate limit retry ceiling",
			},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ImportTotals sums the import counters of the registry, keyed by metric
// name without the namespace and subsystem. Counters never touched are
// absent.
func (m *Metrics) ImportTotals() (map[string]float64, error) {
	families, err := m.Registry.Gather()
	if err != nil {
		return nil, err
	}
	prefix := namespace + "_import_"
	totals := make(map[string]float64)
	for _, family := range families {
		name, ok := strings.CutPrefix(family.GetName(), prefix)
		if !ok {
			continue
		}
		var sum float64
		for _, metric := range family.GetMetric() {
			sum += metric.GetCounter().GetValue()
		}
		totals[name] = sum
	}
	return totals, nil
}
