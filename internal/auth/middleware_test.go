package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunvolt/loginguard/internal/models"
)

type MockSessionChecker struct {
	IsActiveFunc func(ctx context.Context, id string) (bool, error)
	TouchFunc    func(ctx context.Context, id string, idle time.Duration) error
}

func (m *MockSessionChecker) IsActive(ctx context.Context, id string) (bool, error) {
	if m.IsActiveFunc != nil {
		return m.IsActiveFunc(ctx, id)
	}
	return true, nil
}

func (m *MockSessionChecker) Touch(ctx context.Context, id string, idle time.Duration) error {
	if m.TouchFunc != nil {
		return m.TouchFunc(ctx, id, idle)
	}
	return nil
}

type MockUserRepository struct {
	GetByIDFunc func(ctx context.Context, id string) (*models.User, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return m.GetByIDFunc(ctx, id)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func claimsEcho(t *testing.T, seen **models.TokenClaims) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestSessionMiddleware(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour)
	token, _, err := tm.IssueSessionToken(testUser(), "session-1")
	require.NoError(t, err)

	tests := []struct {
		name       string
		setup      func(r *http.Request)
		checker    *MockSessionChecker
		wantStatus int
	}{
		{
			name:       "cookie token",
			setup:      func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token}) },
			checker:    &MockSessionChecker{},
			wantStatus: http.StatusOK,
		},
		{
			name:       "bearer token",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) },
			checker:    &MockSessionChecker{},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing token",
			setup:      func(r *http.Request) {},
			checker:    &MockSessionChecker{},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "garbage token",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") },
			checker:    &MockSessionChecker{},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:  "ended session",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) },
			checker: &MockSessionChecker{IsActiveFunc: func(context.Context, string) (bool, error) {
				return false, nil
			}},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:  "store failure",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) },
			checker: &MockSessionChecker{IsActiveFunc: func(context.Context, string) (bool, error) {
				return false, errors.New("db down")
			}},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *models.TokenClaims
			mw := SessionMiddleware(tm, tt.checker, func() time.Duration { return time.Hour }, discardLogger())

			req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			mw(claimsEcho(t, &seen)).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				require.NotNil(t, seen)
				assert.Equal(t, "session-1", seen.SessionID())
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

func TestSessionMiddleware_TouchesSession(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour)
	token, _, err := tm.IssueSessionToken(testUser(), "session-1")
	require.NoError(t, err)

	var touchedID string
	var touchedIdle time.Duration
	checker := &MockSessionChecker{TouchFunc: func(_ context.Context, id string, idle time.Duration) error {
		touchedID, touchedIdle = id, idle
		return errors.New("ignored")
	}}

	var seen *models.TokenClaims
	mw := SessionMiddleware(tm, checker, func() time.Duration { return 30 * time.Minute }, discardLogger())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	mw(claimsEcho(t, &seen)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "touch failures do not block the request")
	assert.Equal(t, "session-1", touchedID)
	assert.Equal(t, 30*time.Minute, touchedIdle)
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		claims     *models.TokenClaims
		user       *models.User
		err        error
		wantStatus int
	}{
		{"no claims", nil, nil, nil, http.StatusUnauthorized},
		{"admin", &models.TokenClaims{UserID: "u"}, &models.User{Role: "admin", Status: "active"}, nil, http.StatusOK},
		{"demoted editor", &models.TokenClaims{UserID: "u", Role: "admin"}, &models.User{Role: "editor", Status: "active"}, nil, http.StatusForbidden},
		{"suspended admin", &models.TokenClaims{UserID: "u"}, &models.User{Role: "admin", Status: "suspended"}, nil, http.StatusForbidden},
		{"deleted user", &models.TokenClaims{UserID: "u"}, nil, models.ErrNotFound, http.StatusUnauthorized},
		{"db error", &models.TokenClaims{UserID: "u"}, nil, errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockUserRepository{GetByIDFunc: func(context.Context, string) (*models.User, error) {
				return tt.user, tt.err
			}}
			handler := RequireRole(repo, "admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.claims != nil {
				req = req.WithContext(WithClaims(req.Context(), tt.claims))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestCookies_RoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSessionCookie(rec, "tok", time.Now().Add(time.Hour), CookieConfig{Secure: true, SameSite: "strict"})
	SetClientCookie(rec, "client-1", CookieConfig{SameSite: "lax"})

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	token, err := GetSessionCookie(req)
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
	client, err := GetClientCookie(req)
	require.NoError(t, err)
	assert.Equal(t, "client-1", client)

	rec = httptest.NewRecorder()
	ClearSessionCookie(rec, CookieConfig{})
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Less(t, cleared[0].MaxAge, 0)
}
