package background

import (
	"context"
	"log/slog"
	"time"
)

// PolicyRefresh reloads the security policy
type PolicyRefresh interface {
	Refresh(ctx context.Context) error
}

// PolicyRefresher keeps the in-memory security policy in step with the
// database, so changes made by another instance show up without a restart
type PolicyRefresher struct {
	policy   PolicyRefresh
	interval time.Duration
	logger   *slog.Logger
}

func NewPolicyRefresher(policy PolicyRefresh, interval time.Duration, logger *slog.Logger) *PolicyRefresher {
	return &PolicyRefresher{policy: policy, interval: interval, logger: logger}
}

// Start refreshes on every tick until ctx is cancelled. Failures are logged
// by the provider and the last known policy stays in effect.
func (p *PolicyRefresher) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			refreshCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_ = p.policy.Refresh(refreshCtx)
			cancel()
		case <-ctx.Done():
			p.logger.Info("policy refresher stopped")
			return
		}
	}
}
