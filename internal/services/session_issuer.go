package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sunvolt/loginguard/internal/models"
)

// SessionCreator stores a new session row
type SessionCreator interface {
	Create(ctx context.Context, s *models.Session) error
}

// TokenIssuer signs a session token whose id is the session id
type TokenIssuer interface {
	IssueSessionToken(user *models.User, sessionID string) (string, time.Time, error)
}

// SessionIssuer is the session-creation path handed successful logins
type SessionIssuer struct {
	sessions SessionCreator
	tokens   TokenIssuer
	policy   PolicyReader
	logger   *slog.Logger
	now      func() time.Time
}

func NewSessionIssuer(sessions SessionCreator, tokens TokenIssuer, policy PolicyReader, logger *slog.Logger) *SessionIssuer {
	return &SessionIssuer{sessions: sessions, tokens: tokens, policy: policy, logger: logger, now: time.Now}
}

// StartSession creates the session row first so a token never exists for a
// session the store does not know about
func (s *SessionIssuer) StartSession(ctx context.Context, user *models.User, origin RequestOrigin) (*IssuedSession, error) {
	if user == nil {
		return nil, fmt.Errorf("start session: %w", models.ErrBadRequest)
	}

	id := uuid.NewString()
	token, tokenExpiry, err := s.tokens.IssueSessionToken(user, id)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	now := s.now()
	expiresAt := tokenExpiry
	if idle := s.policy.Current().SessionTimeout(); idle > 0 && now.Add(idle).Before(expiresAt) {
		expiresAt = now.Add(idle)
	}

	session := &models.Session{
		ID:             id,
		UserID:         user.ID,
		IPAddress:      origin.IPAddress,
		UserAgent:      origin.UserAgent,
		CreatedAt:      now,
		LastAccessedAt: now,
		ExpiresAt:      expiresAt,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("session started",
		slog.String("user_id", user.ID),
		slog.String("session_id", id),
	)

	return &IssuedSession{SessionID: id, Token: token, ExpiresAt: tokenExpiry}, nil
}
