package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/go-playground/validator/v10"

	"github.com/sunvolt/loginguard/internal/models"
)

// PolicySource loads the stored security policy. A nil policy with a nil
// error means none has been configured.
type PolicySource interface {
	Load(ctx context.Context) (*models.SecurityPolicy, error)
}

// PolicyWriter persists an updated policy
type PolicyWriter interface {
	Save(ctx context.Context, p models.SecurityPolicy) error
}

// StaticPolicySource always returns the same policy
type StaticPolicySource struct {
	Policy *models.SecurityPolicy
}

func (s StaticPolicySource) Load(context.Context) (*models.SecurityPolicy, error) {
	if s.Policy == nil {
		return nil, nil
	}
	p := *s.Policy
	return &p, nil
}

// PolicyProvider holds the latest known policy. Reads are lock-free so every
// login decision sees the most recent value without caching it.
type PolicyProvider struct {
	source   PolicySource
	writer   PolicyWriter
	validate *validator.Validate
	logger   *slog.Logger
	current  atomic.Pointer[models.SecurityPolicy]
}

// NewPolicyProvider starts out with the defaults until Refresh succeeds.
// writer may be nil, in which case Update is unavailable.
func NewPolicyProvider(source PolicySource, writer PolicyWriter, logger *slog.Logger) *PolicyProvider {
	p := &PolicyProvider{
		source:   source,
		writer:   writer,
		validate: validator.New(),
		logger:   logger,
	}
	def := models.DefaultSecurityPolicy()
	p.current.Store(&def)
	return p
}

// Current returns the latest policy, already normalized
func (p *PolicyProvider) Current() models.SecurityPolicy {
	return *p.current.Load()
}

// Refresh reloads the policy. On failure the previous value is kept and
// ErrPolicyUnavailable is returned; login is never blocked by it.
func (p *PolicyProvider) Refresh(ctx context.Context) error {
	loaded, err := p.source.Load(ctx)
	if err != nil {
		p.logger.Warn("security policy unavailable, keeping last known value", slog.Any("error", err))
		return fmt.Errorf("%w: %v", models.ErrPolicyUnavailable, err)
	}

	next := models.DefaultSecurityPolicy()
	if loaded != nil {
		next = loaded.Normalize()
	}

	prev := p.current.Swap(&next)
	if *prev != next {
		p.logger.Info("security policy updated",
			slog.Int("max_login_attempts", next.MaxLoginAttempts),
			slog.Float64("lockout_duration_minutes", next.LockoutDurationMinutes),
			slog.Bool("captcha_enabled", next.CaptchaEnabled),
			slog.Float64("session_timeout_minutes", next.SessionTimeoutMinutes),
		)
	}
	return nil
}

// Update validates and stores a new policy, then makes it current
func (p *PolicyProvider) Update(ctx context.Context, next models.SecurityPolicy) (models.SecurityPolicy, error) {
	if p.writer == nil {
		return models.SecurityPolicy{}, fmt.Errorf("policy is read-only: %w", models.ErrForbidden)
	}
	if err := p.validate.Struct(next); err != nil {
		return models.SecurityPolicy{}, fmt.Errorf("%w: %v", models.ErrBadRequest, err)
	}

	if err := p.writer.Save(ctx, next); err != nil {
		return models.SecurityPolicy{}, fmt.Errorf("save policy: %w", err)
	}

	normalized := next.Normalize()
	p.current.Store(&normalized)
	return normalized, nil
}
