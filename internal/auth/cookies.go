package auth

import (
	"net/http"
	"time"
)

const (
	SessionCookieName = "lg_session"
	ClientCookieName  = "lg_client"

	// client ids outlive sessions so a lockout survives a closed tab
	clientCookieMaxAge = 365 * 24 * time.Hour
)

// CookieConfig holds cookie configuration settings
type CookieConfig struct {
	Domain   string // empty = current host only
	Secure   bool
	SameSite string // "strict", "lax", or "none"
}

// SetSessionCookie stores the session token in an httpOnly cookie
func SetSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.Domain,
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	})
}

// ClearSessionCookie expires the session cookie
func ClearSessionCookie(w http.ResponseWriter, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	})
}

// GetSessionCookie retrieves the session token from cookies
func GetSessionCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

// SetClientCookie stores the opaque browser client id
func SetClientCookie(w http.ResponseWriter, clientID string, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     ClientCookieName,
		Value:    clientID,
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   int(clientCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	})
}

func GetClientCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(ClientCookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

func parseSameSite(sameSite string) http.SameSite {
	switch sameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
