package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the service. All helper methods
// are safe on a nil receiver.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	WebhookEventsTotal *prometheus.CounterVec
	SubmissionsTotal   *prometheus.CounterVec
	QuotaBlockedTotal  prometheus.Counter
	RefundsTotal       prometheus.Counter
	ProgressStreams    prometheus.Gauge
	ReconciledTotal    *prometheus.CounterVec
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "estimate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "estimate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "estimate_billing_webhook_events_total",
				Help: "Payment webhook events by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		SubmissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "estimate_submissions_total",
				Help: "Estimate submissions by outcome",
			},
			[]string{"outcome"},
		),
		QuotaBlockedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "estimate_quota_blocked_total",
			Help: "Submissions redirected to checkout by the free-tier gate",
		}),
		RefundsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "estimate_usage_refunds_total",
			Help: "Usage units returned for failed estimates",
		}),
		ProgressStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "estimate_progress_streams",
			Help: "Open progress event streams",
		}),
		ReconciledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "estimate_subscription_sweep_total",
				Help: "Subscriptions re-read by the lapsed-subscription sweep",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.WebhookEventsTotal,
		m.SubmissionsTotal,
		m.QuotaBlockedTotal,
		m.RefundsTotal,
		m.ProgressStreams,
		m.ReconciledTotal,
	)

	return m
}

func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) WebhookEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.WebhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) Submission(outcome string) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) QuotaBlocked() {
	if m == nil {
		return
	}
	m.QuotaBlockedTotal.Inc()
}

func (m *Metrics) Refund() {
	if m == nil {
		return
	}
	m.RefundsTotal.Inc()
}

func (m *Metrics) StreamOpened() {
	if m == nil {
		return
	}
	m.ProgressStreams.Inc()
}

func (m *Metrics) StreamClosed() {
	if m == nil {
		return
	}
	m.ProgressStreams.Dec()
}

func (m *Metrics) Reconciled(outcome string) {
	if m == nil {
		return
	}
	m.ReconciledTotal.WithLabelValues(outcome).Inc()
}
