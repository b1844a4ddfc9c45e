package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/sunvolt/loginguard/internal/config"
	"github.com/sunvolt/loginguard/internal/database"
	"github.com/sunvolt/loginguard/internal/kvstore"
	"github.com/sunvolt/loginguard/internal/repositories"
	"github.com/sunvolt/loginguard/internal/services"
)

// backend is what the commands operate on
type backend interface {
	KV(ctx context.Context) (kvstore.Provider, error)
	Policy(ctx context.Context) (*services.PolicyProvider, error)
	Accounts(ctx context.Context) (*services.AccountService, error)
	Migrate(ctx context.Context) error
	MigrationVersion(ctx context.Context) (int64, error)
	Close()
}

// dbBackend connects to the same database and ledger store as the server,
// lazily on first use
type dbBackend struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *database.DB
	redis  *redis.Client
}

func newDBBackend(cfg *config.Config, logger *slog.Logger) *dbBackend {
	return &dbBackend{cfg: cfg, logger: logger}
}

func (b *dbBackend) conn() (*database.DB, error) {
	if b.db != nil {
		return b.db, nil
	}
	db, err := database.NewConnection(&b.cfg.Database, b.logger)
	if err != nil {
		return nil, err
	}
	b.db = db
	return db, nil
}

func (b *dbBackend) KV(ctx context.Context) (kvstore.Provider, error) {
	opts := kvstore.Options{
		Backend: b.cfg.Ledger.Backend,
		FileDir: b.cfg.Ledger.FileDir,
	}

	switch b.cfg.Ledger.Backend {
	case kvstore.BackendMemory:
		return nil, fmt.Errorf("ledger backend is memory; records only exist inside the running server")
	case kvstore.BackendRedis:
		b.redis = redis.NewClient(&redis.Options{
			Addr:     b.cfg.Redis.Addr,
			Password: b.cfg.Redis.Password,
			DB:       b.cfg.Redis.DB,
		})
		if err := b.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis unreachable: %w", err)
		}
		opts.Redis = b.redis
		opts.RedisTTL = b.cfg.Ledger.ClientStateTTL
	case kvstore.BackendPostgres:
		db, err := b.conn()
		if err != nil {
			return nil, err
		}
		opts.Table = repositories.NewClientKVRepository(db)
	}

	return kvstore.New(opts)
}

func (b *dbBackend) Policy(ctx context.Context) (*services.PolicyProvider, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	repo := repositories.NewSecurityPolicyRepository(db)
	p := services.NewPolicyProvider(repo, repo, b.logger)
	if err := p.Refresh(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (b *dbBackend) Accounts(context.Context) (*services.AccountService, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	return services.NewAccountService(repositories.NewUserRepository(db), b.logger), nil
}

func (b *dbBackend) Migrate(ctx context.Context) error {
	db, err := b.conn()
	if err != nil {
		return err
	}
	return database.Migrate(ctx, db.Pool, b.logger)
}

func (b *dbBackend) MigrationVersion(ctx context.Context) (int64, error) {
	db, err := b.conn()
	if err != nil {
		return 0, err
	}
	return database.MigrationStatus(ctx, db.Pool)
}

func (b *dbBackend) Close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.db != nil {
		b.db.Close()
	}
}
