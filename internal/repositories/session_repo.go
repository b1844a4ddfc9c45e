package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sunvolt/loginguard/internal/database"
	"github.com/sunvolt/loginguard/internal/models"
)

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{pool: db.Pool}
}

// Create stores a new session row
func (r *SessionRepository) Create(ctx context.Context, s *models.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, ip_address, user_agent, created_at, last_accessed_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		s.ID, s.UserID, s.IPAddress, s.UserAgent, s.CreatedAt, s.LastAccessedAt, s.ExpiresAt,
	)
	return database.MapPostgresError(err)
}

// IsActive reports whether the session exists and has not expired
func (r *SessionRepository) IsActive(ctx context.Context, id string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM sessions WHERE id = $1 AND expires_at > NOW())`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

// ListForUser returns the user's unexpired sessions, newest first. The row
// matching currentID is flagged as current.
func (r *SessionRepository) ListForUser(ctx context.Context, userID, currentID string) ([]models.SessionRecord, error) {
	query := `
		SELECT id, user_id, ip_address, user_agent, created_at, last_accessed_at,
		       id::text = $2 AS is_current
		FROM sessions
		WHERE user_id = $1 AND expires_at > NOW()
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID, currentID)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return scanSessionRecords(rows)
}

func scanSessionRecords(rows pgx.Rows) ([]models.SessionRecord, error) {
	defer rows.Close()

	records := make([]models.SessionRecord, 0)
	for rows.Next() {
		var rec models.SessionRecord
		if err := rows.Scan(
			&rec.ID, &rec.OwnerUserID, &rec.OriginAddress, &rec.ClientDescriptor,
			&rec.CreatedAt, &rec.LastAccessedAt, &rec.IsCurrent,
		); err != nil {
			return nil, database.MapPostgresError(err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, database.MapPostgresError(err)
	}
	return records, nil
}

// DeleteForUser removes one of the user's sessions. Sessions owned by
// someone else are reported as not found.
func (r *SessionRepository) DeleteForUser(ctx context.Context, userID, sessionID string) error {
	query := `DELETE FROM sessions WHERE id = $1 AND user_id = $2`

	tag, err := r.pool.Exec(ctx, query, sessionID, userID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Touch records activity and slides the expiry forward by idle
func (r *SessionRepository) Touch(ctx context.Context, id string, idle time.Duration) error {
	query := `
		UPDATE sessions
		SET last_accessed_at = NOW(), expires_at = NOW() + make_interval(secs => $2)
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query, id, idle.Seconds())
	return database.MapPostgresError(err)
}

// DeleteExpired removes sessions past their expiry (call periodically)
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at < $1`

	result, err := r.pool.Exec(ctx, query, time.Now())
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
