package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sunvolt/loginguard/internal/auth"
	"github.com/sunvolt/loginguard/internal/models"
	"github.com/sunvolt/loginguard/internal/services"
	pkghttp "github.com/sunvolt/loginguard/pkg/http"
)

// SessionRegistryInterface is the caller's view of their own sessions
type SessionRegistryInterface interface {
	List(ctx context.Context) ([]models.SessionRecord, error)
	EndSession(ctx context.Context, id string, nav services.Navigator) services.EndResult
}

// SessionHandler serves the active-sessions page
type SessionHandler struct {
	registry SessionRegistryInterface
	cookies  auth.CookieConfig
	logger   *slog.Logger
}

func NewSessionHandler(registry SessionRegistryInterface, cookies auth.CookieConfig, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{registry: registry, cookies: cookies, logger: logger}
}

// SessionListResponse is the body of GET /sessions
type SessionListResponse struct {
	Sessions []models.SessionRecord `json:"sessions"`
}

// EndSessionResponse is the body of DELETE /sessions/{id}. Sessions is the
// list as the store reports it after the action, so a failed deletion still
// shows the row. When the list could not be read at all the body is an
// EndSessionFailure instead and the client keeps what it already shows.
type EndSessionResponse struct {
	Sessions []models.SessionRecord `json:"sessions"`
	Redirect string                 `json:"redirect,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// EndSessionFailure is returned when no session list is available
type EndSessionFailure struct {
	Error string `json:"error"`
}

// List handles GET /sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.registry.List(r.Context())
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			pkghttp.WriteUnauthorized(w, "Not signed in")
			return
		}
		h.logger.Error("failed to list sessions", slog.Any("error", err))
		pkghttp.WriteServiceUnavailable(w, "Failed to load sessions")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, SessionListResponse{Sessions: nonNil(records)})
}

// End handles DELETE /sessions/{id}
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid session id")
		return
	}

	navigated := false
	res := h.registry.EndSession(r.Context(), id, services.NavigatorFunc(func(string) {
		navigated = true
	}))
	if navigated {
		// the browser is leaving with the session it just ended
		auth.ClearSessionCookie(w, h.cookies)
	}

	resp := EndSessionResponse{Sessions: nonNil(res.Sessions), Redirect: res.Redirect}
	status := http.StatusOK
	switch {
	case res.Err == nil:
	case errors.Is(res.Err, models.ErrNotFound):
		status = http.StatusNotFound
		resp.Error = "Session not found"
	case errors.Is(res.Err, models.ErrUnauthorized):
		status = http.StatusUnauthorized
		resp.Error = "Not signed in"
	case errors.Is(res.Err, models.ErrSignOutFailed):
		status = http.StatusBadGateway
		resp.Error = "Signing out failed. Please sign in again to end this session."
	default:
		h.logger.Warn("failed to end session", slog.String("session_id", id), slog.Any("error", res.Err))
		status = http.StatusBadGateway
		resp.Error = "Failed to end session. Please try again."
	}

	if res.Err != nil && res.Sessions == nil {
		pkghttp.WriteJSON(w, status, EndSessionFailure{Error: resp.Error})
		return
	}
	pkghttp.WriteJSON(w, status, resp)
}

func nonNil(records []models.SessionRecord) []models.SessionRecord {
	if records == nil {
		return []models.SessionRecord{}
	}
	return records
}
