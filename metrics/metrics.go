// Package metrics exposes prometheus metrics for the request pipelines.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	promNamespace      = "atrium"
	promServeSubsystem = "serve"
)

// Metrics collects the per-request measurements of the dispatcher.
type Metrics struct {
	registry *prometheus.Registry
	serve    *prometheus.HistogramVec
	errors   *prometheus.CounterVec
}

// New creates the metrics collectors on a fresh registry.
func New() *Metrics {
	serve := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: promNamespace,
		Subsystem: promServeSubsystem,
		Name:      "host_duration_seconds",
		Help:      "Duration in seconds of serving a request, partitioned by host, pipeline and status code.",
	}, []string{"host", "pipeline", "code"})

	errors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promServeSubsystem,
		Name:      "error_total",
		Help:      "The total of auth rejections and upstream failures, partitioned by host and status code.",
	}, []string{"host", "code"})

	registry := prometheus.NewRegistry()
	registry.MustRegister(serve, errors)

	return &Metrics{registry: registry, serve: serve, errors: errors}
}

// MeasureServe records one served request.
func (m *Metrics) MeasureServe(host, pipeline string, code int, start time.Time) {
	label := strconv.Itoa(code)
	m.serve.WithLabelValues(host, pipeline, label).Observe(time.Since(start).Seconds())
	if code >= 400 {
		m.errors.WithLabelValues(host, label).Inc()
	}
}

// Handler serves the prometheus scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
