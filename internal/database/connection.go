package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sunvolt/loginguard/internal/config"
)

const (
	applicationName = "loginguard"
	connectTimeout  = 10 * time.Second
	pingTimeout     = 2 * time.Second
)

// DB wraps the pgx pool shared by every repository
type DB struct {
	Pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewConnection opens the pool and fails fast when the database is not
// reachable, so the server never starts half-connected
func NewConnection(cfg *config.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName

	return open(poolConfig, logger)
}

// NewConnectionFromURL is used where only a connection string is at hand,
// such as a throwaway test container
func NewConnectionFromURL(url string, logger *slog.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	return open(poolConfig, logger)
}

func open(poolConfig *pgxpool.Config, logger *slog.Logger) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database %s: %w", poolConfig.ConnConfig.Database, err)
	}

	logger.Info("database connected",
		slog.String("host", poolConfig.ConnConfig.Host),
		slog.String("database", poolConfig.ConnConfig.Database),
		slog.Int("max_conns", int(poolConfig.MaxConns)),
	)
	return &DB{Pool: pool, logger: logger}, nil
}

func (db *DB) Close() {
	db.Pool.Close()
	db.logger.Info("database pool closed")
}

// HealthCheck is what /health reports on. A pool with no usable connection
// fails even if the server process itself is fine.
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.Pool.Ping(ctx); err != nil {
		stat := db.Pool.Stat()
		db.logger.Warn("database ping failed",
			slog.Int("total_conns", int(stat.TotalConns())),
			slog.Int("idle_conns", int(stat.IdleConns())),
			slog.Any("error", err),
		)
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}
