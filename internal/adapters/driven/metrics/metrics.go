// Package metrics exports service metrics to Prometheus.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/sercha-sign/internal/core/domain"
	"github.com/custodia-labs/sercha-sign/internal/core/ports/driven"
)

const (
	namespace   = "sercha_sign"
	eventLabel  = "event"
	actionLabel = "action"
)

// Verify interface compliance
var _ driven.Metrics = (*Metrics)(nil)

// Metrics holds the collectors the service reports to
type Metrics struct {
	registry *prometheus.Registry

	serverVersion *prometheus.GaugeVec

	transitionsTotal   *prometheus.CounterVec
	lockContendedTotal prometheus.Counter

	notificationsEnqueuedTotal  *prometheus.CounterVec
	notificationsDeliveredTotal *prometheus.CounterVec
	notificationsFailedTotal    *prometheus.CounterVec

	requestSeconds *prometheus.HistogramVec
}

// New creates Metrics on a fresh registry with the process and Go
// runtime collectors installed.
func New(version string) (*Metrics, error) {
	reg := prometheus.NewRegistry()

	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}

	m := &Metrics{
		registry: reg,
		serverVersion: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "version",
			Help:      "Which version is running. 1 for 'server_version' label with current version.",
		}, []string{"server_version"}),
		transitionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "transitions_total",
			Help:      "Committed document transitions by audit event type.",
		}, []string{eventLabel}),
		lockContendedTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "lock_contended_total",
			Help:      "Requests that gave up waiting for a document lock.",
		}),
		notificationsEnqueuedTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "enqueued_total",
			Help:      "Notifications handed to the queue.",
		}, []string{actionLabel}),
		notificationsDeliveredTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "delivered_total",
			Help:      "Notifications delivered successfully.",
		}, []string{actionLabel}),
		notificationsFailedTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "failed_total",
			Help:      "Failed notification delivery attempts.",
		}, []string{actionLabel}),
		requestSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method, route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	m.serverVersion.WithLabelValues(version).Set(1)

	return m, nil
}

// Transition counts a committed transition
func (m *Metrics) Transition(event domain.EventType) {
	m.transitionsTotal.WithLabelValues(string(event)).Inc()
}

// LockContended counts a lock wait that ran out
func (m *Metrics) LockContended() {
	m.lockContendedTotal.Inc()
}

// NotificationEnqueued counts an enqueued notification
func (m *Metrics) NotificationEnqueued(action domain.NotificationAction) {
	m.notificationsEnqueuedTotal.WithLabelValues(string(action)).Inc()
}

// NotificationDelivered counts a delivered notification
func (m *Metrics) NotificationDelivered(action domain.NotificationAction) {
	m.notificationsDeliveredTotal.WithLabelValues(string(action)).Inc()
}

// NotificationFailed counts a failed delivery attempt
func (m *Metrics) NotificationFailed(action domain.NotificationAction) {
	m.notificationsFailedTotal.WithLabelValues(string(action)).Inc()
}

// ObserveRequest records the latency of one HTTP request
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.requestSeconds.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Registry returns the registry of the metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
