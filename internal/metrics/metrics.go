// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"StageSentinel/internal/model"
)

// Registry holds all StageSentinel metrics on a private Prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	Generations        *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	Transitions        *prometheus.CounterVec
	Alerts             prometheus.Counter
	FeedUnread         prometheus.Gauge
	HTTPRequests       *prometheus.CounterVec
}

// NewRegistry creates and registers every collector.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stagesentinel_generations_total",
				Help: "Series generated, by source and result",
			},
			[]string{"source", "result"},
		),
		GenerationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stagesentinel_generation_duration_seconds",
				Help:    "Time spent generating and summarizing one series",
				Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stagesentinel_transitions_total",
				Help: "Stage transitions alerted by the scheduler",
			},
			[]string{"from", "to"},
		),
		Alerts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stagesentinel_alerts_total",
				Help: "Alerts added to the feed",
			},
		),
		FeedUnread: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stagesentinel_feed_unread",
				Help: "Unread alerts in the feed",
			},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stagesentinel_http_requests_total",
				Help: "HTTP requests by route template and status code",
			},
			[]string{"route", "code"},
		),
	}

	r.reg.MustRegister(
		r.Generations,
		r.GenerationDuration,
		r.Transitions,
		r.Alerts,
		r.FeedUnread,
		r.HTTPRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveGeneration records one generation attempt.
func (r *Registry) ObserveGeneration(source string, seconds float64, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.Generations.WithLabelValues(source, result).Inc()
	r.GenerationDuration.Observe(seconds)
}

// ObserveTransition counts one alerted from→to change.
func (r *Registry) ObserveTransition(from, to model.Stage) {
	r.Transitions.WithLabelValues(strconv.Itoa(int(from)), strconv.Itoa(int(to))).Inc()
}

// ObserveRequest counts one HTTP response.
func (r *Registry) ObserveRequest(route string, code int) {
	r.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Gatherer exposes the underlying registry for tests and custom handlers.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
