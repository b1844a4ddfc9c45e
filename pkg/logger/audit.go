package logger

import (
	"context"
	"log/slog"
	"time"
)

// Audit event types emitted by the login flow
const (
	EventLoginSuccess    = "login_success"
	EventLoginFailed     = "login_failed"
	EventLoginLocked     = "login_locked"
	EventLoginBlocked    = "login_blocked"
	EventCaptchaVerified = "captcha_verified"
	EventSessionEnded    = "session_ended"
	EventSignOut         = "sign_out"
	EventPolicyUpdated   = "policy_updated"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	UserID        string
	Identifier    string // raw login identifier, masked before logging
	ClientID      string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger writes security events as structured log lines
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

// Log writes one audit record. Failures are logged at warn level. A nil
// AuditLogger discards events.
func (al *AuditLogger) Log(ctx context.Context, event AuditEvent) {
	if al == nil {
		return
	}
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.Identifier != "" {
		attrs = append(attrs, slog.String("identifier", SanitizedIdentifier(event.Identifier)))
	}
	if event.ClientID != "" {
		attrs = append(attrs, slog.String("client_id", event.ClientID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}

// LogSessionEnded records a session being ended by its owner
func (al *AuditLogger) LogSessionEnded(ctx context.Context, userID, sessionID string, current bool, err error) {
	path := "other"
	if current {
		path = "current"
	}

	event := AuditEvent{
		EventType: EventSessionEnded,
		UserID:    userID,
		Success:   err == nil,
		Metadata:  map[string]string{"session_id": sessionID, "path": path},
	}
	if err != nil {
		event.FailureReason = err.Error()
	}
	al.Log(ctx, event)
}
