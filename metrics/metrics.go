// Package metrics exposes Prometheus collectors for the signup flow.
package metrics

import (
	"net/http"
	"time"

	"HealthBot/flow"
	"HealthBot/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "signup"

// Collector implements flow.Hooks on top of a private registry.
type Collector struct {
	registry *prometheus.Registry

	started          prometheus.Counter
	advanced         *prometheus.CounterVec
	retreated        *prometheus.CounterVec
	validationFailed *prometheus.CounterVec
	submissions      *prometheus.CounterVec
	submitDuration   prometheus.Histogram
}

var _ flow.Hooks = (*Collector)(nil)

func New(variant model.Variant) *Collector {
	labels := prometheus.Labels{"variant": string(variant)}
	c := &Collector{
		registry: prometheus.NewRegistry(),
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "started_total",
			Help:        "Count of signups started.",
			ConstLabels: labels,
		}),
		advanced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "step_advanced_total",
			Help:        "Count of successful forward transitions, by the step that was left.",
			ConstLabels: labels,
		}, []string{"step"}),
		retreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "step_retreated_total",
			Help:        "Count of backward transitions, by the step that was left.",
			ConstLabels: labels,
		}, []string{"step"}),
		validationFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "validation_failed_total",
			Help:        "Count of field errors raised, by step and field.",
			ConstLabels: labels,
		}, []string{"step", "field"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "submissions_total",
			Help:        "Count of finished gateway calls, by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		submitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "submit_duration_seconds",
			Help:        "Latency of gateway calls.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.started,
		c.advanced,
		c.retreated,
		c.validationFailed,
		c.submissions,
		c.submitDuration,
	)
	return c
}

func (c *Collector) Started() {
	c.started.Inc()
}

func (c *Collector) Advanced(step string) {
	c.advanced.WithLabelValues(step).Inc()
}

func (c *Collector) Retreated(step string) {
	c.retreated.WithLabelValues(step).Inc()
}

func (c *Collector) ValidationFailed(step string, errs model.FieldErrors) {
	for field := range errs {
		c.validationFailed.WithLabelValues(step, field).Inc()
	}
}

func (c *Collector) Submitted(success bool, took time.Duration) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	c.submissions.WithLabelValues(outcome).Inc()
	c.submitDuration.Observe(took.Seconds())
}

// Handler serves /metrics and a /healthz liveness probe.
func (c *Collector) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
