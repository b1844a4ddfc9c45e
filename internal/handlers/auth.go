package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sunvolt/loginguard/internal/auth"
	"github.com/sunvolt/loginguard/internal/captcha"
	"github.com/sunvolt/loginguard/internal/middleware"
	"github.com/sunvolt/loginguard/internal/models"
	"github.com/sunvolt/loginguard/internal/services"
	pkghttp "github.com/sunvolt/loginguard/pkg/http"
	"github.com/sunvolt/loginguard/pkg/logger"
)

// LoginFlow is the login orchestrator of a single client
type LoginFlow interface {
	Submit(ctx context.Context, creds services.Credentials) services.Outcome
	Status(ctx context.Context) (services.LockoutStatus, error)
}

// CaptchaChallenge is the challenge widget of a single client
type CaptchaChallenge interface {
	Refresh()
	Attempt(input string) captcha.Result
	WritePNG(w io.Writer) error
}

// ClientStateProvider resolves per-client components from the client id
type ClientStateProvider interface {
	LoginFlow(clientID string) LoginFlow
	Challenge(clientID string) CaptchaChallenge
}

type clientStates struct {
	states *services.ClientStates
}

// NewClientStateProvider exposes services.ClientStates to the handlers
func NewClientStateProvider(states *services.ClientStates) ClientStateProvider {
	return clientStates{states: states}
}

func (c clientStates) LoginFlow(clientID string) LoginFlow {
	return c.states.Get(clientID).Login
}

func (c clientStates) Challenge(clientID string) CaptchaChallenge {
	return c.states.Get(clientID).Challenge
}

// AuthHandlerConfig holds the transport settings of the auth endpoints
type AuthHandlerConfig struct {
	Cookies   auth.CookieConfig
	IP        *pkghttp.IPConfig
	LoginPath string
}

// AuthHandler serves the captcha, lockout, login and logout endpoints
type AuthHandler struct {
	states  ClientStateProvider
	signOut services.SignOuter
	cfg     AuthHandlerConfig
	logger  *slog.Logger
	audit   *logger.AuditLogger
}

func NewAuthHandler(states ClientStateProvider, signOut services.SignOuter, cfg AuthHandlerConfig, logger *slog.Logger, audit *logger.AuditLogger) *AuthHandler {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	return &AuthHandler{states: states, signOut: signOut, cfg: cfg, logger: logger, audit: audit}
}

// Request DTOs

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
	Secret     string `json:"secret" validate:"required,max=1024"`
}

// CaptchaAnswerRequest is the body of POST /auth/captcha/verify
type CaptchaAnswerRequest struct {
	Answer string `json:"answer" validate:"max=64"`
}

// LoginResponse is the outcome of a submission plus the session expiry on success
type LoginResponse struct {
	services.Outcome
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Captcha handles GET /auth/captcha
func (h *AuthHandler) Captcha(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.states.Challenge(clientID).WritePNG(&buf); err != nil {
		h.logger.Error("failed to render captcha", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Failed to render challenge")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// RefreshCaptcha handles POST /auth/captcha/refresh
func (h *AuthHandler) RefreshCaptcha(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}

	h.states.Challenge(clientID).Refresh()
	w.WriteHeader(http.StatusNoContent)
}

// VerifyCaptcha handles POST /auth/captcha/verify
func (h *AuthHandler) VerifyCaptcha(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}

	var req CaptchaAnswerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	res := h.states.Challenge(clientID).Attempt(req.Answer)
	if res.Resolved {
		h.audit.Log(r.Context(), logger.AuditEvent{
			EventType: logger.EventCaptchaVerified,
			ClientID:  clientID,
			IPAddress: pkghttp.ExtractClientIP(r, h.cfg.IP),
			Success:   res.Satisfied,
		})
	}

	pkghttp.WriteJSON(w, http.StatusOK, res)
}

// Lockout handles GET /auth/lockout
func (h *AuthHandler) Lockout(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}

	status, err := h.states.LoginFlow(clientID).Status(r.Context())
	if err != nil {
		h.logger.Error("failed to read lockout status", slog.Any("error", err))
		pkghttp.WriteServiceUnavailable(w, "Sign-in is temporarily unavailable. Please try again.")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, status)
}

// Login handles POST /auth/login. Every outcome is answered with the same
// body shape; the status code tells the front-end which one it got.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientID(w, r)
	if !ok {
		return
	}

	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	out := h.states.LoginFlow(clientID).Submit(r.Context(), services.Credentials{
		Identifier: req.Identifier,
		Secret:     req.Secret,
		Origin: services.RequestOrigin{
			ClientID:  clientID,
			IPAddress: pkghttp.ExtractClientIP(r, h.cfg.IP),
			UserAgent: pkghttp.ClientDescriptor(r),
		},
	})

	resp := LoginResponse{Outcome: out}
	if out.Kind == services.OutcomeSuccess && out.Session != nil {
		auth.SetSessionCookie(w, out.Session.Token, out.Session.ExpiresAt, h.cfg.Cookies)
		resp.ExpiresAt = &out.Session.ExpiresAt
	}
	if out.Kind == services.OutcomeLocked && out.RetryAfterMinutes > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(out.RetryAfterMinutes*60))
	}

	pkghttp.WriteJSON(w, outcomeStatus(out), resp)
}

// Logout handles POST /auth/logout. The cookie is cleared even when the
// session could not be revoked.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	err := h.signOut.SignOut(r.Context(), h.cfg.LoginPath)
	auth.ClearSessionCookie(w, h.cfg.Cookies)

	switch {
	case err == nil:
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"redirect": h.cfg.LoginPath})
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Not signed in")
	default:
		h.logger.Error("sign-out failed", slog.Any("error", err))
		pkghttp.WriteServiceUnavailable(w, "Sign-out could not be completed")
	}
}

func (h *AuthHandler) clientID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := middleware.ClientIDFromContext(r.Context())
	if id == "" {
		pkghttp.WriteBadRequest(w, "Missing client id")
		return "", false
	}
	return id, true
}

func outcomeStatus(out services.Outcome) int {
	switch out.Kind {
	case services.OutcomeSuccess:
		return http.StatusOK
	case services.OutcomeInvalid:
		return http.StatusUnauthorized
	case services.OutcomeLocked:
		return http.StatusTooManyRequests
	case services.OutcomeCaptchaRequired:
		return http.StatusPreconditionRequired
	}
	if errors.Is(out.Err, models.ErrSubmissionInFlight) {
		return http.StatusConflict
	}
	return http.StatusServiceUnavailable
}
