package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "modelsync"

// Metrics holds the collectors of one server on its own registry
type Metrics struct {
	registry *prometheus.Registry

	changesApplied *prometheus.CounterVec
	changesFailed  *prometheus.CounterVec
	atomicChanges  prometheus.Counter
	applyDuration  prometheus.Histogram
	subscriptions  prometheus.Gauge
	dropped        prometheus.Counter
}

// New registers every collector on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		changesApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changes_applied_total",
			Help:      "Changes applied to the model, by kind",
		}, []string{"kind"}),
		changesFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changes_failed_total",
			Help:      "Changes rejected by the model, by kind",
		}, []string{"kind"}),
		atomicChanges: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "atomic_changes_total",
			Help:      "Atomic changes delivered to subscribers",
		}),
		applyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "apply_duration_seconds",
			Help:      "Time spent applying and dispatching one change",
			Buckets:   prometheus.DefBuckets,
		}),
		subscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscriptions",
			Help:      "Open streaming subscriptions",
		}),
		dropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriptions_dropped_total",
			Help:      "Subscriptions closed because the client could not keep up",
		}),
	}
}

// ObserveChange records the outcome of one pushed change
func (m *Metrics) ObserveChange(kind string, start time.Time, err error) {
	if err != nil {
		m.changesFailed.WithLabelValues(kind).Inc()
		return
	}
	m.changesApplied.WithLabelValues(kind).Inc()
	m.applyDuration.Observe(time.Since(start).Seconds())
}

// AtomicChangeDelivered counts one change sent to a subscriber
func (m *Metrics) AtomicChangeDelivered() { m.atomicChanges.Inc() }

// SubscriptionOpened increments the open subscriptions gauge
func (m *Metrics) SubscriptionOpened() { m.subscriptions.Inc() }

// SubscriptionClosed decrements the open subscriptions gauge
func (m *Metrics) SubscriptionClosed() { m.subscriptions.Dec() }

// SubscriptionDropped counts a subscriber closed on overflow
func (m *Metrics) SubscriptionDropped() { m.dropped.Inc() }

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
