package repositories

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sunvolt/loginguard/internal/database"
	"github.com/sunvolt/loginguard/internal/models"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner covers both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const userColumns = `id, email, password_hash, name, role, status, created_at, updated_at`

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	err := scanner.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Name,
		&user.Role, &user.Status, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &user, nil
}

// GetByEmail looks a user up case-insensitively
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUserRow(r.pool.QueryRow(ctx, query, strings.TrimSpace(email)))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

// Create inserts a user; the password must already be hashed
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (email, password_hash, name, role, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query,
		strings.TrimSpace(user.Email), user.PasswordHash, user.Name, user.Role, user.Status,
	))
}

// UpdateStatus changes an account's status (active, suspended, disabled)
func (r *UserRepository) UpdateStatus(ctx context.Context, id, status string) error {
	query := `UPDATE users SET status = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
