package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sunvolt/loginguard/internal/database"
	"github.com/sunvolt/loginguard/internal/models"
)

// ClientKVRepository backs the postgres ledger store (table client_kv)
type ClientKVRepository struct {
	pool *pgxpool.Pool
}

func NewClientKVRepository(db *database.DB) *ClientKVRepository {
	return &ClientKVRepository{pool: db.Pool}
}

func (r *ClientKVRepository) Get(ctx context.Context, clientID, key string) (string, bool, error) {
	query := `SELECT value FROM client_kv WHERE client_key = $1 AND key = $2`

	var value string
	err := r.pool.QueryRow(ctx, query, clientID, key).Scan(&value)
	if err != nil {
		mapped := database.MapPostgresError(err)
		if errors.Is(mapped, models.ErrNotFound) {
			return "", false, nil
		}
		return "", false, mapped
	}
	return value, true, nil
}

func (r *ClientKVRepository) Put(ctx context.Context, clientID, key, value string) error {
	query := `
		INSERT INTO client_kv (client_key, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (client_key, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query, clientID, key, value)
	return database.MapPostgresError(err)
}

func (r *ClientKVRepository) Delete(ctx context.Context, clientID, key string) error {
	query := `DELETE FROM client_kv WHERE client_key = $1 AND key = $2`

	_, err := r.pool.Exec(ctx, query, clientID, key)
	return database.MapPostgresError(err)
}

// DeleteOlderThan prunes rows untouched since before cutoff
func (r *ClientKVRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM client_kv WHERE updated_at < $1`

	result, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
