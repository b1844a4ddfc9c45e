package routes_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunvolt/loginguard/internal/auth"
	"github.com/sunvolt/loginguard/internal/handlers"
	"github.com/sunvolt/loginguard/internal/metrics"
	"github.com/sunvolt/loginguard/internal/models"
	"github.com/sunvolt/loginguard/internal/routes"
)

const testSecret = "routes-test-secret-with-32-chars!"

type stubSessions struct{ active bool }

func (s stubSessions) IsActive(context.Context, string) (bool, error)       { return s.active, nil }
func (s stubSessions) Touch(context.Context, string, time.Duration) error { return nil }

type stubUsers map[string]*models.User

func (s stubUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, models.ErrNotFound
}

func newTestRouter(t *testing.T) (http.Handler, *auth.TokenManager) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tm := auth.NewTokenManager(testSecret, time.Hour)
	reg := prometheus.NewRegistry()

	deps := routes.Dependencies{
		Auth:     handlers.NewAuthHandler(&handlers.MockClientStates{}, &handlers.MockSignOuter{}, handlers.AuthHandlerConfig{}, logger, nil),
		Sessions: handlers.NewSessionHandler(&handlers.MockSessionRegistry{}, auth.CookieConfig{}, logger),
		Admin:    handlers.NewAdminHandler(&handlers.MockPolicyService{}, logger, nil),
		Health:   handlers.NewHealthHandler(&handlers.MockHealthChecker{}, logger),

		TokenManager: tm,
		SessionStore: stubSessions{active: true},
		Users: stubUsers{
			"admin-1":  {ID: "admin-1", Role: "admin", Status: "active"},
			"editor-1": {ID: "editor-1", Role: "editor", Status: "active"},
		},

		Metrics:        metrics.New(reg),
		MetricsHandler: metrics.Handler(reg),
		Logger:         logger,
	}

	return routes.NewRouter(routes.RouterConfig{Env: "development", LoginRateLimit: 100}, deps), tm
}

func sessionCookie(t *testing.T, tm *auth.TokenManager, userID string) *http.Cookie {
	t.Helper()
	token, _, err := tm.IssueSessionToken(&models.User{ID: userID}, "3b241101-e2bb-4255-8caf-4136c566a962")
	require.NoError(t, err)
	return &http.Cookie{Name: auth.SessionCookieName, Value: token}
}

func TestRouter_PublicRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/auth/lockout", http.StatusOK},
		{"GET", "/auth/captcha", http.StatusOK},
		{"POST", "/auth/captcha/refresh", http.StatusNoContent},
		{"GET", "/metrics", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRouter_IssuesClientCookie(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/auth/lockout", nil))

	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.ClientCookieName {
			found = true
		}
	}
	assert.True(t, found, "first contact gets a client id cookie")
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestRouter_ProtectedRoutesRequireSession(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, path := range []string{"/sessions", "/admin/security-policy"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestRouter_AdminRequiresAdminRole(t *testing.T) {
	router, tm := newTestRouter(t)

	tests := []struct {
		userID string
		want   int
	}{
		{"admin-1", http.StatusOK},
		{"editor-1", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.userID, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/admin/security-policy", nil)
			req.AddCookie(sessionCookie(t, tm, tt.userID))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRouter_SessionsWithValidSession(t *testing.T) {
	router, tm := newTestRouter(t)

	req := httptest.NewRequest("GET", "/sessions", nil)
	req.AddCookie(sessionCookie(t, tm, "editor-1"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"sessions":[]}`, w.Body.String())
}
