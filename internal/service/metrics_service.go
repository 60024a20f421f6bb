package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Checkout outcomes recorded by the orchestrator.
const (
	CheckoutOutcomeCreated    = "created"
	CheckoutOutcomeReused     = "reused"
	CheckoutOutcomeRecreated  = "recreated"
	CheckoutOutcomeRejected   = "rejected"
	CheckoutOutcomeGatewayErr = "gateway_error"
)

// MetricsService encapsulates Prometheus instrumentation. All methods are nil-safe.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	checkouts       *prometheus.CounterVec
	discountReasons *prometheus.CounterVec
	autoHeals       prometheus.Counter
	gatewayDuration *prometheus.HistogramVec
	webhookEvents   *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_requests_total",
		Help: "Checkout requests by payment kind and outcome",
	}, []string{"kind", "outcome"})

	discountReasons := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_discount_reasons_total",
		Help: "Enrollment amounts decided, by reason",
	}, []string{"reason"})

	autoHeals := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_payment_auto_heals_total",
		Help: "Pre-enrollment payments synthesized for manually approved applications",
	})

	gatewayDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_request_duration_seconds",
		Help:    "Latency of payment gateway calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})

	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_events_total",
		Help: "Gateway webhook deliveries by event and outcome",
	}, []string{"event", "outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, checkouts, discountReasons, autoHeals, gatewayDuration, webhookEvents, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		checkouts:       checkouts,
		discountReasons: discountReasons,
		autoHeals:       autoHeals,
		gatewayDuration: gatewayDuration,
		webhookEvents:   webhookEvents,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCheckout counts a checkout request outcome.
func (m *MetricsService) RecordCheckout(kind, outcome string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(kind, outcome).Inc()
}

// RecordDiscountReason counts the rule that decided an enrollment amount.
func (m *MetricsService) RecordDiscountReason(reason string) {
	if m == nil {
		return
	}
	m.discountReasons.WithLabelValues(reason).Inc()
}

// RecordAutoHeal counts a synthesized pre-enrollment payment.
func (m *MetricsService) RecordAutoHeal() {
	if m == nil {
		return
	}
	m.autoHeals.Inc()
}

// ObserveGatewayCall records gateway latency. status is 0 on transport failure.
func (m *MetricsService) ObserveGatewayCall(operation string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.gatewayDuration.WithLabelValues(operation, fmt.Sprintf("%d", status)).Observe(duration.Seconds())
}

// RecordWebhook counts a webhook delivery.
func (m *MetricsService) RecordWebhook(event, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(event, outcome).Inc()
}
