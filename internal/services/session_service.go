package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sunvolt/loginguard/internal/auth"
	"github.com/sunvolt/loginguard/internal/metrics"
	"github.com/sunvolt/loginguard/internal/models"
	"github.com/sunvolt/loginguard/pkg/logger"
)

// SessionStore lists and deletes the caller's sessions
type SessionStore interface {
	List(ctx context.Context) ([]models.SessionRecord, error)
	Delete(ctx context.Context, id string) error
}

// SignOuter ends the caller's own authenticated context
type SignOuter interface {
	SignOut(ctx context.Context, redirectTarget string) error
}

// Navigator moves the caller to another page
type Navigator interface {
	Navigate(target string)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(target string)

func (f NavigatorFunc) Navigate(target string) { f(target) }

// EndResult is the state of the registry view after an end-session action
type EndResult struct {
	Sessions []models.SessionRecord `json:"sessions"`
	Redirect string                 `json:"redirect,omitempty"`
	Err      error                  `json:"-"`
}

type SessionRegistryConfig struct {
	LoginPath       string
	EndCurrentDelay time.Duration
}

// SessionRegistry lets a user see their active sessions and end any of them
type SessionRegistry struct {
	store   SessionStore
	signOut SignOuter
	cfg     SessionRegistryConfig
	logger  *slog.Logger
	audit   *logger.AuditLogger
	metrics *metrics.Metrics
	sleep   func(time.Duration)

	mu      sync.Mutex
	pending map[string]int
}

func NewSessionRegistry(store SessionStore, signOut SignOuter, cfg SessionRegistryConfig, logger *slog.Logger, audit *logger.AuditLogger, m *metrics.Metrics) *SessionRegistry {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	return &SessionRegistry{
		store:   store,
		signOut: signOut,
		cfg:     cfg,
		logger:  logger,
		audit:   audit,
		metrics: m,
		sleep:   time.Sleep,
		pending: make(map[string]int),
	}
}

// List returns the sessions in store order
func (s *SessionRegistry) List(ctx context.Context) ([]models.SessionRecord, error) {
	return s.store.List(ctx)
}

// Pending reports whether an end-session request for id is in flight
func (s *SessionRegistry) Pending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[id] > 0
}

func (s *SessionRegistry) markPending(id string) func() {
	s.mu.Lock()
	s.pending[id]++
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.pending[id]--; s.pending[id] <= 0 {
			delete(s.pending, id)
		}
	}
}

// EndSession ends one session. Ending the caller's own session signs out
// first and only deletes the row directly if sign-out fails; either way the
// caller is sent to the login page. Other sessions are deleted directly and
// the list is re-fetched. Failures never remove a row from the result and
// are never retried.
func (s *SessionRegistry) EndSession(ctx context.Context, id string, nav Navigator) EndResult {
	done := s.markPending(id)
	defer done()

	records, err := s.store.List(ctx)
	if err != nil {
		// nothing was touched; Sessions stays nil because there is no
		// trustworthy list to show
		return EndResult{Err: fmt.Errorf("%w: %w", models.ErrSessionDeletionFailed, err)}
	}

	target, ok := findSession(records, id)
	if !ok {
		return EndResult{Sessions: records, Err: models.ErrNotFound}
	}

	ownerID := target.OwnerUserID
	if target.IsCurrent {
		return s.endCurrent(ctx, ownerID, id, records, nav)
	}

	delErr := s.store.Delete(ctx, id)
	s.record(ctx, ownerID, id, false, delErr)

	refreshed, listErr := s.store.List(ctx)
	if listErr != nil {
		s.logger.Warn("failed to refresh sessions", slog.Any("error", listErr))
		refreshed = records
	}

	result := EndResult{Sessions: refreshed}
	switch {
	case delErr != nil:
		result.Err = fmt.Errorf("%w: %v", models.ErrSessionDeletionFailed, delErr)
	case listErr != nil:
		result.Err = fmt.Errorf("refresh sessions: %w", listErr)
	}
	return result
}

func (s *SessionRegistry) endCurrent(ctx context.Context, ownerID, id string, records []models.SessionRecord, nav Navigator) EndResult {
	// the caller may go away during the delay; the sign-out must still run
	detached := context.WithoutCancel(ctx)
	if s.cfg.EndCurrentDelay > 0 {
		s.sleep(s.cfg.EndCurrentDelay)
	}

	var endErr error
	if err := s.signOut.SignOut(detached, s.cfg.LoginPath); err != nil {
		s.logger.Warn("sign-out failed, deleting session directly", slog.Any("error", err))
		if delErr := s.store.Delete(detached, id); delErr != nil {
			endErr = fmt.Errorf("%w: %v", models.ErrSignOutFailed, errors.Join(err, delErr))
		}
	}
	s.record(detached, ownerID, id, true, endErr)

	result := EndResult{Redirect: s.cfg.LoginPath, Err: endErr}
	if endErr != nil {
		// the session is still live, so the caller must keep seeing it
		result.Sessions = records
		if refreshed, err := s.store.List(detached); err == nil {
			result.Sessions = refreshed
		} else {
			s.logger.Warn("failed to refresh sessions", slog.Any("error", err))
		}
	}

	if nav != nil {
		nav.Navigate(s.cfg.LoginPath)
	}
	return result
}

func (s *SessionRegistry) record(ctx context.Context, ownerID, id string, current bool, err error) {
	s.metrics.SessionEnded(current, err)
	s.audit.LogSessionEnded(ctx, ownerID, id, current, err)
}

func findSession(records []models.SessionRecord, id string) (models.SessionRecord, bool) {
	for _, r := range records {
		if r.ID == id {
			return r, true
		}
	}
	return models.SessionRecord{}, false
}

// CallerSessionRepository is the row-level session store
type CallerSessionRepository interface {
	ListForUser(ctx context.Context, userID, currentID string) ([]models.SessionRecord, error)
	DeleteForUser(ctx context.Context, userID, sessionID string) error
}

// CallerSessionStore scopes the session repository to the authenticated
// caller found in the request context
type CallerSessionStore struct {
	repo CallerSessionRepository
}

func NewCallerSessionStore(repo CallerSessionRepository) *CallerSessionStore {
	return &CallerSessionStore{repo: repo}
}

func (s *CallerSessionStore) List(ctx context.Context) ([]models.SessionRecord, error) {
	claims := auth.ClaimsFromContext(ctx)
	if claims == nil {
		return nil, models.ErrUnauthorized
	}
	return s.repo.ListForUser(ctx, claims.UserID, claims.SessionID())
}

func (s *CallerSessionStore) Delete(ctx context.Context, id string) error {
	claims := auth.ClaimsFromContext(ctx)
	if claims == nil {
		return models.ErrUnauthorized
	}
	return s.repo.DeleteForUser(ctx, claims.UserID, id)
}

// SessionSignOut revokes the caller's current session. It is the same
// mechanism POST /auth/logout uses.
type SessionSignOut struct {
	repo  CallerSessionRepository
	audit *logger.AuditLogger
}

func NewSessionSignOut(repo CallerSessionRepository, audit *logger.AuditLogger) *SessionSignOut {
	return &SessionSignOut{repo: repo, audit: audit}
}

func (s *SessionSignOut) SignOut(ctx context.Context, redirectTarget string) error {
	claims := auth.ClaimsFromContext(ctx)
	if claims == nil {
		return models.ErrUnauthorized
	}

	err := s.repo.DeleteForUser(ctx, claims.UserID, claims.SessionID())
	if errors.Is(err, models.ErrNotFound) {
		// already gone: the caller is signed out either way
		err = nil
	}

	event := logger.AuditEvent{
		EventType: logger.EventSignOut,
		UserID:    claims.UserID,
		Success:   err == nil,
		Metadata:  map[string]string{"session_id": claims.SessionID(), "redirect": redirectTarget},
	}
	if err != nil {
		event.FailureReason = err.Error()
	}
	s.audit.Log(ctx, event)

	return err
}
