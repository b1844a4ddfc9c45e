package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/sunvolt/loginguard/internal/auth"
)

type clientIDKey struct{}

// ClientID makes sure every request carries an opaque browser id. The id
// scopes the attempt ledger and the captcha challenge; it is not a
// credential. Missing or malformed cookies are replaced with a fresh id.
func ClientID(cookies auth.CookieConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := auth.GetClientCookie(r)
			if err != nil || !validClientID(id) {
				id = uuid.NewString()
				auth.SetClientCookie(w, id, cookies)
			}

			next.ServeHTTP(w, r.WithContext(WithClientID(r.Context(), id)))
		})
	}
}

func WithClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientIDKey{}, id)
}

// ClientIDFromContext returns the id set by ClientID, or "" outside of it
func ClientIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(clientIDKey{}).(string)
	return id
}

func validClientID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}
