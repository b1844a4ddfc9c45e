// Package metrics exposes the login-security counters. All recording
// methods are safe on a nil *Metrics so components can run without them.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "loginguard"

type Metrics struct {
	LoginOutcomes   *prometheus.CounterVec
	CaptchaAttempts *prometheus.CounterVec
	SessionsEnded   *prometheus.CounterVec
	LedgerLockouts  prometheus.Counter

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates every collector and registers it on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		LoginOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_outcomes_total",
			Help:      "Login submissions by outcome kind",
		}, []string{"kind"}),
		CaptchaAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captcha_attempts_total",
			Help:      "Resolved captcha attempts by result",
		}, []string{"result"}),
		SessionsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Sessions ended from the registry view by path and status",
		}, []string{"path", "status"}),
		LedgerLockouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_lockouts_total",
			Help:      "Lockouts started by the attempt ledger",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) LoginOutcome(kind string) {
	if m == nil {
		return
	}
	m.LoginOutcomes.WithLabelValues(kind).Inc()
}

func (m *Metrics) CaptchaAttempt(satisfied bool) {
	if m == nil {
		return
	}
	result := "failed"
	if satisfied {
		result = "satisfied"
	}
	m.CaptchaAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) SessionEnded(current bool, err error) {
	if m == nil {
		return
	}
	path, status := "other", "ok"
	if current {
		path = "current"
	}
	if err != nil {
		status = "failed"
	}
	m.SessionsEnded.WithLabelValues(path, status).Inc()
}

func (m *Metrics) Lockout() {
	if m == nil {
		return
	}
	m.LedgerLockouts.Inc()
}

// Middleware records request counts and latency keyed by the chi route
// pattern, which keeps label cardinality bounded
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the prometheus text format
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
