// Package metrics exposes Prometheus collectors for the router, the worker and
// the outbox relay.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maltedev/product-extractor/internal/scrapeerr"
)

// Metrics bundles the collectors on a dedicated registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Registry           *prometheus.Registry
	ItemsProcessed     *prometheus.CounterVec
	ErrorsTotal        *prometheus.CounterVec
	ExtractionDuration *prometheus.HistogramVec
	OutboxPending      prometheus.Gauge
	OutboxDeadLetter   prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	itemsProcessed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractor_items_processed_total",
			Help: "Items checked by the worker, by resulting status.",
		},
		[]string{"status"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractor_errors_total",
			Help: "Extraction errors by kind.",
		},
		[]string{"kind"},
	)
	extractionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "extractor_extraction_duration_seconds",
			Help:    "Time from routing to extracted product, by domain.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 15, 30, 60, 120},
		},
		[]string{"domain"},
	)
	outboxPending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "extractor_outbox_pending_events",
		Help: "Outbox events waiting to be relayed.",
	})
	outboxDead := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "extractor_outbox_dead_letter_events",
		Help: "Outbox events that exhausted their retries.",
	})

	registry.MustRegister(
		itemsProcessed, errorsTotal, extractionDuration, outboxPending, outboxDead,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		Registry:           registry,
		ItemsProcessed:     itemsProcessed,
		ErrorsTotal:        errorsTotal,
		ExtractionDuration: extractionDuration,
		OutboxPending:      outboxPending,
		OutboxDeadLetter:   outboxDead,
	}
}

// ObserveExtraction records one routed extraction. Errors are counted by
// scrapeerr kind.
func (m *Metrics) ObserveExtraction(domain string, d time.Duration, err error) {
	if m == nil {
		return
	}
	if domain == "" {
		domain = "unknown"
	}
	m.ExtractionDuration.WithLabelValues(domain).Observe(d.Seconds())
	if err != nil {
		m.ErrorsTotal.WithLabelValues(scrapeerr.Kind(err)).Inc()
	}
}

// IncItemProcessed counts a finished worker check.
func (m *Metrics) IncItemProcessed(status string) {
	if m == nil {
		return
	}
	m.ItemsProcessed.WithLabelValues(status).Inc()
}

func (m *Metrics) SetOutboxBacklog(pending, dead int64) {
	if m == nil {
		return
	}
	m.OutboxPending.Set(float64(pending))
	m.OutboxDeadLetter.Set(float64(dead))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
