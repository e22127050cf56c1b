/**
 * @description
 * Prometheus collectors for HTTP traffic and payment activity.
 */
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Fblink88/ComunidadElMaiten/internal/domain"
)

// Recorder owns the collectors and the registry they are exposed from.
type Recorder struct {
	registry          *prometheus.Registry
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	paymentsGenerated prometheus.Counter
	transitions       *prometheus.CounterVec
	webhookCallbacks  *prometheus.CounterVec
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "condominio",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "condominio",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		paymentsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "condominio",
			Name:      "payments_generated_total",
			Help:      "Pending payments opened by monthly billing.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "condominio",
			Name:      "payment_transitions_total",
			Help:      "Payment status transitions by source and resulting status.",
		}, []string{"source", "status"}),
		webhookCallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "condominio",
			Name:      "gateway_webhook_callbacks_total",
			Help:      "Gateway callbacks by processing outcome.",
		}, []string{"outcome"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.httpRequests,
		r.httpDuration,
		r.paymentsGenerated,
		r.transitions,
		r.webhookCallbacks,
	)
	return r
}

// PaymentsGenerated counts payments opened while billing a period.
func (r *Recorder) PaymentsGenerated(_ string, count int) {
	r.paymentsGenerated.Add(float64(count))
}

// PaymentTransitioned counts one payment status change.
func (r *Recorder) PaymentTransitioned(source string, status domain.PaymentStatus) {
	r.transitions.WithLabelValues(source, string(status)).Inc()
}

// WebhookProcessed counts one gateway callback.
func (r *Recorder) WebhookProcessed(outcome string) {
	r.webhookCallbacks.WithLabelValues(outcome).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency keyed by the chi route pattern.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)

		route := "unmatched"
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		r.httpRequests.WithLabelValues(req.Method, route, strconv.Itoa(status)).Inc()
		r.httpDuration.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())
	})
}
