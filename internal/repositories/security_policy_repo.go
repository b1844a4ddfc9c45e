package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sunvolt/loginguard/internal/database"
	"github.com/sunvolt/loginguard/internal/models"
)

// SecurityPolicyRepository reads and writes the single-row security_settings table
type SecurityPolicyRepository struct {
	pool *pgxpool.Pool
}

func NewSecurityPolicyRepository(db *database.DB) *SecurityPolicyRepository {
	return &SecurityPolicyRepository{pool: db.Pool}
}

// Load returns the stored policy, or nil when none has been saved yet
func (r *SecurityPolicyRepository) Load(ctx context.Context) (*models.SecurityPolicy, error) {
	query := `
		SELECT max_login_attempts, lockout_duration_minutes, captcha_enabled, session_timeout_minutes
		FROM security_settings WHERE id = 1
	`

	var p models.SecurityPolicy
	err := r.pool.QueryRow(ctx, query).Scan(
		&p.MaxLoginAttempts, &p.LockoutDurationMinutes, &p.CaptchaEnabled, &p.SessionTimeoutMinutes,
	)
	if err != nil {
		mapped := database.MapPostgresError(err)
		if errors.Is(mapped, models.ErrNotFound) {
			return nil, nil
		}
		return nil, mapped
	}
	return &p, nil
}

// Save upserts the policy row
func (r *SecurityPolicyRepository) Save(ctx context.Context, p models.SecurityPolicy) error {
	query := `
		INSERT INTO security_settings (id, max_login_attempts, lockout_duration_minutes, captcha_enabled, session_timeout_minutes, updated_at)
		VALUES (1, $1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			max_login_attempts = EXCLUDED.max_login_attempts,
			lockout_duration_minutes = EXCLUDED.lockout_duration_minutes,
			captcha_enabled = EXCLUDED.captcha_enabled,
			session_timeout_minutes = EXCLUDED.session_timeout_minutes,
			updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query,
		p.MaxLoginAttempts, p.LockoutDurationMinutes, p.CaptchaEnabled, p.SessionTimeoutMinutes,
	)
	return database.MapPostgresError(err)
}
