package background

import (
	"context"
	"log/slog"
	"time"
)

// ExpiredSessionPurger removes session rows past their expiry
type ExpiredSessionPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// StaleStatePurger removes persisted client state not written since cutoff
type StaleStatePurger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupConfig controls the cleanup schedule
type CleanupConfig struct {
	Interval time.Duration
	// StateRetention is how long an untouched client ledger is kept. Zero
	// disables the client state sweep.
	StateRetention time.Duration
}

// CleanupManager periodically removes expired sessions and abandoned client
// ledgers from the database
type CleanupManager struct {
	sessions ExpiredSessionPurger
	state    StaleStatePurger
	logger   *slog.Logger
	cfg      CleanupConfig
	now      func() time.Time
	stopCh   chan struct{}
}

// NewCleanupManager creates a new cleanup manager. state may be nil when
// ledgers are not kept in the database.
func NewCleanupManager(sessions ExpiredSessionPurger, state StaleStatePurger, logger *slog.Logger, cfg CleanupConfig) *CleanupManager {
	return &CleanupManager{
		sessions: sessions,
		state:    state,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start runs a cleanup immediately and then on every tick until ctx is
// cancelled or Stop is called
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.cfg.Interval)
	defer ticker.Stop()

	cm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce performs a single cleanup pass
func (cm *CleanupManager) RunOnce(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := cm.sessions.DeleteExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to delete expired sessions", slog.Any("error", err))
	} else if rows > 0 {
		cm.logger.Info("expired sessions deleted", slog.Int64("rows_deleted", rows))
	}

	if cm.state == nil || cm.cfg.StateRetention <= 0 {
		return
	}

	rows, err = cm.state.DeleteOlderThan(cleanupCtx, cm.now().Add(-cm.cfg.StateRetention))
	if err != nil {
		cm.logger.Error("failed to delete stale client state", slog.Any("error", err))
		return
	}
	if rows > 0 {
		cm.logger.Info("stale client state deleted", slog.Int64("rows_deleted", rows))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
