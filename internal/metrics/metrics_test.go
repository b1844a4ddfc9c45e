package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/sunvolt/loginguard/internal/metrics"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.LoginOutcome("invalid")
	m.LoginOutcome("invalid")
	m.LoginOutcome("success")
	m.CaptchaAttempt(true)
	m.CaptchaAttempt(false)
	m.SessionEnded(true, nil)
	m.SessionEnded(false, errors.New("x"))
	m.Lockout()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LoginOutcomes.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginOutcomes.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CaptchaAttempts.WithLabelValues("satisfied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CaptchaAttempts.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsEnded.WithLabelValues("current", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsEnded.WithLabelValues("other", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerLockouts))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.LoginOutcome("success")
		m.CaptchaAttempt(true)
		m.SessionEnded(true, nil)
		m.Lockout()
	})

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, m.Middleware(h))
}

func TestMetrics_MiddlewareUsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Delete("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/sessions/"+id, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("DELETE", "/sessions/{id}", "204")))

	rec := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(), "loginguard_http_requests_total"))
}
