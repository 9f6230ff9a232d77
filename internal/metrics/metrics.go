// Package metrics holds the Prometheus collectors for LifeSync. All
// collectors live on a private registry; a nil *Metrics is valid and
// records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Registry *prometheus.Registry

	ProgressProcessed *prometheus.CounterVec
	XPAwarded         prometheus.Counter
	LevelUps          prometheus.Counter
	Achievements      *prometheus.CounterVec

	RuleEvaluations *prometheus.CounterVec
	RuleFirings     prometheus.Counter
	WebhookRequests *prometheus.CounterVec
	WebhookDuration prometheus.Histogram

	NotificationsCreated *prometheus.CounterVec
	WebSocketClients     prometheus.Gauge

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates a Metrics with every collector registered on a fresh registry,
// alongside the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		ProgressProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lifesync",
			Subsystem: "gamification",
			Name:      "progress_processed_total",
			Help:      "Progress updates run through the reward ledger.",
		}, []string{"category", "status"}),

		XPAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lifesync",
			Subsystem: "gamification",
			Name:      "xp_awarded_total",
			Help:      "Total XP granted.",
		}),

		LevelUps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lifesync",
			Subsystem: "gamification",
			Name:      "level_ups_total",
			Help:      "Total level transitions.",
		}),

		Achievements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lifesync",
			Subsystem: "gamification",
			Name:      "achievements_total",
			Help:      "Achievements awarded by id.",
		}, []string{"achievement"}),

		RuleEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lifesync",
			Subsystem: "automation",
			Name:      "rule_evaluations_total",
			Help:      "Automation rules evaluated against device events.",
		}, []string{"result"}),

		RuleFirings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lifesync",
			Subsystem: "automation",
			Name:      "rule_firings_total",
			Help:      "Automation rules whose action was dispatched.",
		}),

		WebhookRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lifesync",
			Subsystem: "webhook",
			Name:      "requests_total",
			Help:      "Outbound device webhook requests.",
		}, []string{"status"}),

		WebhookDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lifesync",
			Subsystem: "webhook",
			Name:      "request_duration_seconds",
			Help:      "Outbound device webhook duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		NotificationsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lifesync",
			Subsystem: "notification",
			Name:      "created_total",
			Help:      "Notifications stored by type.",
		}, []string{"type"}),

		WebSocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lifesync",
			Subsystem: "websocket",
			Name:      "clients",
			Help:      "Connected WebSocket clients.",
		}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lifesync",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lifesync",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ProgressProcessed,
		m.XPAwarded,
		m.LevelUps,
		m.Achievements,
		m.RuleEvaluations,
		m.RuleFirings,
		m.WebhookRequests,
		m.WebhookDuration,
		m.NotificationsCreated,
		m.WebSocketClients,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) ObserveProgress(category, status string) {
	if m == nil {
		return
	}
	m.ProgressProcessed.WithLabelValues(category, status).Inc()
}

func (m *Metrics) ObserveRewards(xp, levelUps int, achievements []string) {
	if m == nil {
		return
	}
	if xp > 0 {
		m.XPAwarded.Add(float64(xp))
	}
	if levelUps > 0 {
		m.LevelUps.Add(float64(levelUps))
	}
	for _, a := range achievements {
		m.Achievements.WithLabelValues(a).Inc()
	}
}

func (m *Metrics) ObserveRule(matched bool) {
	if m == nil {
		return
	}
	result := "skipped"
	if matched {
		result = "matched"
	}
	m.RuleEvaluations.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveFiring() {
	if m == nil {
		return
	}
	m.RuleFirings.Inc()
}

func (m *Metrics) ObserveWebhook(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.WebhookRequests.WithLabelValues(status).Inc()
	m.WebhookDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveNotification(notifType string) {
	if m == nil {
		return
	}
	m.NotificationsCreated.WithLabelValues(notifType).Inc()
}

func (m *Metrics) AddWebSocketClients(delta int) {
	if m == nil {
		return
	}
	m.WebSocketClients.Add(float64(delta))
}

func (m *Metrics) ObserveHTTP(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method).Observe(d.Seconds())
}
