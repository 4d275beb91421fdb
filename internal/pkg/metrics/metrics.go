package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 服务端 Prometheus 指标
type Metrics struct {
	EntitlementDecisions *prometheus.CounterVec
	PaymentEvents        *prometheus.CounterVec
	ReportJobs           *prometheus.CounterVec
	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
}

// New 创建并注册指标
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EntitlementDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agripulse_entitlement_decisions_total",
			Help: "Entitlement gate decisions by capability and result.",
		}, []string{"capability", "result"}),
		PaymentEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agripulse_payment_events_total",
			Help: "Payment confirmations and failures by provider.",
		}, []string{"provider", "outcome", "applied"}),
		ReportJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agripulse_report_jobs_total",
			Help: "Report generation jobs by type and final status.",
		}, []string{"type", "status"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agripulse_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agripulse_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.EntitlementDecisions,
			m.PaymentEvents,
			m.ReportJobs,
			m.HTTPRequests,
			m.HTTPDuration,
		)
	}
	return m
}

// Entitlement 记录一次权限判定
func (m *Metrics) Entitlement(capability, result string) {
	if m == nil {
		return
	}
	m.EntitlementDecisions.WithLabelValues(capability, result).Inc()
}

// Payment 记录一次支付事件
func (m *Metrics) Payment(provider, outcome string, applied bool) {
	if m == nil {
		return
	}
	a := "false"
	if applied {
		a = "true"
	}
	m.PaymentEvents.WithLabelValues(provider, outcome, a).Inc()
}

// Report 记录报表任务结果
func (m *Metrics) Report(reportType, status string) {
	if m == nil {
		return
	}
	m.ReportJobs.WithLabelValues(reportType, status).Inc()
}

// Request 记录 HTTP 请求
func (m *Metrics) Request(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(seconds)
}
