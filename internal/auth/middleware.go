package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sunvolt/loginguard/internal/models"
	pkghttp "github.com/sunvolt/loginguard/pkg/http"
)

type contextKey string

const claimsContextKey contextKey = "session_claims"

// SessionChecker reports whether a session row is still live and records
// activity on it
type SessionChecker interface {
	IsActive(ctx context.Context, id string) (bool, error)
	Touch(ctx context.Context, id string, idle time.Duration) error
}

// IdleTimeout returns the current idle session lifetime
type IdleTimeout func() time.Duration

// SessionMiddleware authenticates requests by session token (cookie first,
// then Bearer header). A token whose session row is gone is rejected, which
// is how ending a session revokes it.
func SessionMiddleware(tm *TokenManager, sessions SessionChecker, idle IdleTimeout, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := tokenFromRequest(r)
			if tokenString == "" {
				pkghttp.WriteUnauthorized(w, "authentication required")
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				pkghttp.WriteUnauthorized(w, "invalid or expired session")
				return
			}

			active, err := sessions.IsActive(r.Context(), claims.SessionID())
			if err != nil {
				logger.Error("session lookup failed", slog.Any("error", err))
				pkghttp.WriteServiceUnavailable(w, "unable to verify session")
				return
			}
			if !active {
				pkghttp.WriteUnauthorized(w, "session has ended")
				return
			}

			if idle != nil {
				if d := idle(); d > 0 {
					if err := sessions.Touch(r.Context(), claims.SessionID(), d); err != nil {
						logger.Warn("failed to record session activity", slog.Any("error", err))
					}
				}
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if token, err := GetSessionCookie(r); err == nil && token != "" {
		return token
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// UserRepository fetches the current state of an account
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// RequireRole enforces the role stored on the account, not the one in the
// token, so a demotion takes effect immediately
func RequireRole(userRepo UserRepository, role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				pkghttp.WriteUnauthorized(w, "authentication required")
				return
			}

			user, err := userRepo.GetByID(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					pkghttp.WriteUnauthorized(w, "user not found")
					return
				}
				pkghttp.WriteInternalError(w, "internal server error")
				return
			}

			if user.Role != role || !user.IsActive() {
				pkghttp.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WithClaims returns a context carrying the caller's session claims
func WithClaims(ctx context.Context, claims *models.TokenClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext returns the caller's claims, or nil when unauthenticated
func ClaimsFromContext(ctx context.Context) *models.TokenClaims {
	claims, ok := ctx.Value(claimsContextKey).(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}
