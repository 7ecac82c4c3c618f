// Package metrics holds the Prometheus collectors of the playground.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "playground"

// Command outcomes used as the status label.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics groups the collectors updated by a session.
type Metrics struct {
	registry *prometheus.Registry

	Commands        *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	Chunks          prometheus.Gauge
	Pages           prometheus.Gauge
	Entities        prometheus.Gauge
	Rechunks        prometheus.Counter
}

// New creates the collectors and registers them on a fresh registry
// together with the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Total number of dispatched commands",
			},
			[]string{"command", "status"},
		),
		CommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Duration of dispatched commands",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"command"},
		),
		Chunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chunks",
			Help:      "Number of chunks in the current chunk table",
		}),
		Pages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pages",
			Help:      "Number of loaded pages",
		}),
		Entities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_entities",
			Help:      "Number of entities written by the last ingest",
		}),
		Rechunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rechunks_total",
			Help:      "Total number of chunk table rebuilds",
		}),
	}

	m.registry.MustRegister(
		m.Commands,
		m.CommandDuration,
		m.Chunks,
		m.Pages,
		m.Entities,
		m.Rechunks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCommand records one command outcome. A nil receiver is a no-op so
// callers need not check whether metrics are enabled.
func (m *Metrics) ObserveCommand(command string, started time.Time, err error) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.Commands.WithLabelValues(command, status).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(time.Since(started).Seconds())
}

// ObserveChunks records a chunk table rebuild.
func (m *Metrics) ObserveChunks(pages, chunks int) {
	if m == nil {
		return
	}
	m.Rechunks.Inc()
	m.Pages.Set(float64(pages))
	m.Chunks.Set(float64(chunks))
}

// ObserveEntities records the entity count of an ingest.
func (m *Metrics) ObserveEntities(n int) {
	if m == nil {
		return
	}
	m.Entities.Set(float64(n))
}
