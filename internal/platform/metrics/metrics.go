// Package metrics registers the application's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	UsersRegistered   prometheus.Counter
	Logins            *prometheus.CounterVec
	RequestLatency    *prometheus.HistogramVec
	AnalyticsEvents   prometheus.Counter
	AnalyticsDropped  prometheus.Counter
	AnalyticsRedacted *prometheus.CounterVec
	AnalyticsPruned   prometheus.Counter
	AuditFailures     prometheus.Counter
	AuditPublished    prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		UsersRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "portal_users_registered_total",
			Help: "Total number of users registered.",
		}),
		Logins: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		AnalyticsEvents: promauto.NewCounter(prometheus.CounterOpts{
			Name: "portal_analytics_events_total",
			Help: "Analytics events accepted.",
		}),
		AnalyticsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "portal_analytics_events_dropped_total",
			Help: "Analytics events rejected by schema validation.",
		}),
		AnalyticsRedacted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_analytics_redactions_total",
			Help: "PII redactions applied to analytics properties, by kind.",
		}, []string{"kind"}),
		AnalyticsPruned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "portal_analytics_events_pruned_total",
			Help: "Analytics events deleted by the retention job.",
		}),
		AuditFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "portal_audit_persist_failures_total",
			Help: "Audit events that could not be persisted.",
		}),
		AuditPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "portal_audit_events_published_total",
			Help: "Audit events relayed to Kafka.",
		}),
	}
}

// Adapters for the analytics service's observer interfaces. Event names
// and drop reasons are not used as labels.

func (m *Metrics) EventAccepted(string) {
	m.AnalyticsEvents.Inc()
}

func (m *Metrics) EventDropped(string) {
	m.AnalyticsDropped.Inc()
}

func (m *Metrics) ObserveRedaction(kind string) {
	m.AnalyticsRedacted.WithLabelValues(kind).Inc()
}

func (m *Metrics) EventsPruned(count int64) {
	m.AnalyticsPruned.Add(float64(count))
}
