package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sunvolt/loginguard/internal/auth"
	"github.com/sunvolt/loginguard/internal/models"
	pkghttp "github.com/sunvolt/loginguard/pkg/http"
	"github.com/sunvolt/loginguard/pkg/logger"
)

// PolicyServiceInterface reads and updates the security policy
type PolicyServiceInterface interface {
	Current() models.SecurityPolicy
	Update(ctx context.Context, next models.SecurityPolicy) (models.SecurityPolicy, error)
}

// AdminHandler serves the security settings of the back-office
type AdminHandler struct {
	policy PolicyServiceInterface
	logger *slog.Logger
	audit  *logger.AuditLogger
}

func NewAdminHandler(policy PolicyServiceInterface, logger *slog.Logger, audit *logger.AuditLogger) *AdminHandler {
	return &AdminHandler{policy: policy, logger: logger, audit: audit}
}

// UpdatePolicyRequest is the body of PUT /admin/security-policy
type UpdatePolicyRequest struct {
	MaxLoginAttempts       int     `json:"maxLoginAttempts" validate:"required,gte=1,lte=100"`
	LockoutDurationMinutes float64 `json:"lockoutDurationMinutes" validate:"gte=0,lte=1440"`
	CaptchaEnabled         bool    `json:"captchaEnabled"`
	SessionTimeoutMinutes  float64 `json:"sessionTimeoutMinutes" validate:"gte=0,lte=10080"`
}

// GetSecurityPolicy handles GET /admin/security-policy
func (h *AdminHandler) GetSecurityPolicy(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, h.policy.Current())
}

// UpdateSecurityPolicy handles PUT /admin/security-policy
func (h *AdminHandler) UpdateSecurityPolicy(w http.ResponseWriter, r *http.Request) {
	var req UpdatePolicyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	updated, err := h.policy.Update(r.Context(), models.SecurityPolicy{
		MaxLoginAttempts:       req.MaxLoginAttempts,
		LockoutDurationMinutes: req.LockoutDurationMinutes,
		CaptchaEnabled:         req.CaptchaEnabled,
		SessionTimeoutMinutes:  req.SessionTimeoutMinutes,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid security policy")
		case errors.Is(err, models.ErrForbidden):
			pkghttp.WriteForbidden(w, "Security policy is read-only")
		default:
			h.logger.Error("failed to update security policy", slog.Any("error", err))
			pkghttp.WriteInternalError(w, "Failed to update security policy")
		}
		return
	}

	event := logger.AuditEvent{
		EventType: logger.EventPolicyUpdated,
		Success:   true,
		Metadata: map[string]string{
			"max_login_attempts": strconv.Itoa(updated.MaxLoginAttempts),
			"captcha_enabled":    strconv.FormatBool(updated.CaptchaEnabled),
		},
	}
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
		event.UserID = claims.UserID
	}
	h.audit.Log(r.Context(), event)

	pkghttp.WriteJSON(w, http.StatusOK, updated)
}
