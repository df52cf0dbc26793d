// Package metrics exposes conversion pipeline counters on a private
// Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mediaconv/internal/queue"
)

const namespace = "mediaconv"

// StatsSource reports current queue counts.
type StatsSource interface {
	Stats() queue.Stats
}

// Metrics holds the conversion collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	enqueued     *prometheus.CounterVec
	deduplicated *prometheus.CounterVec
	decisions    *prometheus.CounterVec
	outcomes     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

// New registers collectors on a fresh registry. stats may be nil.
func New(stats StatsSource) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		enqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_enqueued_total",
			Help:      "Conversion items created, by kind",
		}, []string{"kind"}),
		deduplicated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_deduplicated_total",
			Help:      "Enqueue requests absorbed by an active item, by kind",
		}, []string{"kind"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Evaluate-and-enqueue outcomes, by kind and outcome",
		}, []string{"kind", "outcome"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_finished_total",
			Help:      "Conversion items reaching a terminal status",
		}, []string{"kind", "status", "error_kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Wall time from claim to terminal status",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 14), // 0.5s to ~68m
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		m.enqueued, m.deduplicated, m.decisions, m.outcomes, m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if stats != nil {
		m.registry.MustRegister(newQueueCollector(stats))
	}
	return m
}

// Registry exposes the underlying registry for tests and custom handlers.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Enqueued counts a created item or a deduplicated request.
func (m *Metrics) Enqueued(kind queue.Kind, created bool) {
	if m == nil {
		return
	}
	if created {
		m.enqueued.WithLabelValues(string(kind)).Inc()
		return
	}
	m.deduplicated.WithLabelValues(string(kind)).Inc()
}

// Evaluated counts an evaluate-and-enqueue outcome.
func (m *Metrics) Evaluated(kind queue.Kind, outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(kind), outcome).Inc()
}

// Finished records a terminal item and its processing time.
func (m *Metrics) Finished(item queue.Item) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(string(item.Kind), string(item.Status), item.ErrorKind).Inc()
	if !item.StartedAt.IsZero() && !item.CompletedAt.IsZero() {
		m.duration.WithLabelValues(string(item.Kind)).Observe(item.CompletedAt.Sub(item.StartedAt).Seconds())
	}
}

// ObserveDuration records a processing time directly.
func (m *Metrics) ObserveDuration(kind queue.Kind, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(string(kind)).Observe(d.Seconds())
}

type queueCollector struct {
	stats StatsSource
	desc  *prometheus.Desc
}

func newQueueCollector(stats StatsSource) *queueCollector {
	return &queueCollector{
		stats: stats,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "queue", "items"),
			"Conversion items tracked in memory, by status",
			[]string{"status"}, nil,
		),
	}
}

func (c *queueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *queueCollector) Collect(ch chan<- prometheus.Metric) {
	counts := c.stats.Stats().ByStatus()
	for _, status := range queue.AllStatuses() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(counts[status]), string(status))
	}
}
