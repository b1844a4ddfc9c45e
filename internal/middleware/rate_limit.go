package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	pkghttp "github.com/sunvolt/loginguard/pkg/http"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	IP                *pkghttp.IPConfig
}

// DefaultAuthRateLimit returns the limit applied to login and captcha answers
func DefaultAuthRateLimit(ip *pkghttp.IPConfig) RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 20,
		IP:                ip,
	}
}

// RateLimitByIP limits requests per client IP. It is a coarse flood guard
// and does not touch the attempt ledger.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, config.IP), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Rate limit exceeded", 60)
		}),
	)
}
