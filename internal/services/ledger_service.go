package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sunvolt/loginguard/internal/metrics"
	"github.com/sunvolt/loginguard/internal/models"
)

// LedgerKey is the fixed slot the ledger record is stored under. The ledger
// runs before authentication so it is never keyed by user.
const LedgerKey = "loginAttempts"

// KVStore is a client-scoped key-value slot
type KVStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// LedgerStore persists one client's ledger record
type LedgerStore interface {
	// Read returns nil, nil when no record exists
	Read(ctx context.Context) (*models.LedgerRecord, error)
	Write(ctx context.Context, rec models.LedgerRecord) error
	Remove(ctx context.Context) error
}

// KVLedgerStore stores the record as JSON under LedgerKey
type KVLedgerStore struct {
	kv KVStore
}

func NewKVLedgerStore(kv KVStore) *KVLedgerStore {
	return &KVLedgerStore{kv: kv}
}

func (s *KVLedgerStore) Read(ctx context.Context) (*models.LedgerRecord, error) {
	raw, ok, err := s.kv.Get(ctx, LedgerKey)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var rec models.LedgerRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrCorruptPersistedState, err)
	}
	if rec.Attempts < 0 {
		return nil, fmt.Errorf("%w: negative attempt count", models.ErrCorruptPersistedState)
	}
	return &rec, nil
}

func (s *KVLedgerStore) Write(ctx context.Context, rec models.LedgerRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := s.kv.Set(ctx, LedgerKey, string(raw)); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}

func (s *KVLedgerStore) Remove(ctx context.Context) error {
	if err := s.kv.Delete(ctx, LedgerKey); err != nil {
		return fmt.Errorf("remove ledger: %w", err)
	}
	return nil
}

// AttemptLedger tracks consecutive failed logins for one client and derives
// the lockout window from them. Lockout expiry is evaluated on read; there
// are no timers.
type AttemptLedger struct {
	store   LedgerStore
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewAttemptLedger(store LedgerStore, logger *slog.Logger, m *metrics.Metrics) *AttemptLedger {
	return &AttemptLedger{
		store:   store,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// WithClock replaces the time source
func (l *AttemptLedger) WithClock(now func() time.Time) *AttemptLedger {
	l.now = now
	return l
}

// Now returns the ledger's notion of the current time
func (l *AttemptLedger) Now() time.Time {
	return l.now()
}

// State returns the current record. Missing and corrupt records read as
// Open(0), and so does an expired lockout, which is removed. A store that
// cannot be read at all yields ErrLedgerUnavailable: a lockout may be hiding
// behind the outage.
func (l *AttemptLedger) State(ctx context.Context, policy models.SecurityPolicy) (models.LedgerRecord, error) {
	rec, err := l.store.Read(ctx)
	if errors.Is(err, models.ErrCorruptPersistedState) {
		l.logger.Warn("ledger record corrupt, treating as absent", slog.Any("error", err))
		return models.OpenRecord(policy.MaxLoginAttempts), nil
	}
	if err != nil {
		l.logger.Error("ledger store unavailable", slog.Any("error", err))
		return models.LedgerRecord{}, fmt.Errorf("%w: %w", models.ErrLedgerUnavailable, err)
	}
	if rec == nil {
		return models.OpenRecord(policy.MaxLoginAttempts), nil
	}

	now := l.now()
	if models.IsStaleAt(*rec, now) {
		if err := l.store.Remove(ctx); err != nil {
			l.logger.Error("failed to remove expired lockout", slog.Any("error", err))
		}
		return models.OpenRecord(policy.MaxLoginAttempts), nil
	}

	// policy changes never reclassify an existing lockout
	rec.MaxAttempts = policy.MaxLoginAttempts
	rec.IsLocked = models.IsLockedAt(*rec, now)
	return *rec, nil
}

// RecordFailure applies one rejected credential check. lockedNow reports
// whether this failure started a lockout.
func (l *AttemptLedger) RecordFailure(ctx context.Context, policy models.SecurityPolicy) (models.LedgerRecord, bool, error) {
	rec, err := l.State(ctx, policy)
	if err != nil {
		return rec, false, err
	}
	if rec.IsLocked {
		// callers check State first; a locked ledger ignores further failures
		return rec, false, nil
	}

	now := l.now()
	rec.Attempts++
	rec.MaxAttempts = policy.MaxLoginAttempts

	lockedNow := rec.Attempts >= policy.MaxLoginAttempts
	if lockedNow && policy.LockoutDuration() <= 0 {
		// a zero-length lockout is over as soon as it starts: start a new window
		l.Clear(ctx)
		return models.OpenRecord(policy.MaxLoginAttempts), false, nil
	}
	if lockedNow {
		until := now.Add(policy.LockoutDuration())
		rec.IsLocked = true
		rec.LockoutUntil = &until
		l.metrics.Lockout()
	}

	l.persist(ctx, rec)

	return rec, lockedNow, nil
}

// Clear removes the persisted record, returning the ledger to Open(0)
func (l *AttemptLedger) Clear(ctx context.Context) {
	if err := l.store.Remove(ctx); err != nil {
		l.logger.Error("failed to clear ledger", slog.Any("error", err))
	}
}

func (l *AttemptLedger) persist(ctx context.Context, rec models.LedgerRecord) {
	if err := l.store.Write(ctx, rec); err != nil {
		l.logger.Error("failed to persist ledger", slog.Any("error", err))
	}
}
