package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/sunvolt/loginguard/internal/auth"
	"github.com/sunvolt/loginguard/internal/background"
	"github.com/sunvolt/loginguard/internal/captcha"
	"github.com/sunvolt/loginguard/internal/config"
	"github.com/sunvolt/loginguard/internal/database"
	"github.com/sunvolt/loginguard/internal/handlers"
	"github.com/sunvolt/loginguard/internal/kvstore"
	"github.com/sunvolt/loginguard/internal/metrics"
	"github.com/sunvolt/loginguard/internal/repositories"
	"github.com/sunvolt/loginguard/internal/routes"
	"github.com/sunvolt/loginguard/internal/services"
	pkghttp "github.com/sunvolt/loginguard/pkg/http"
	pkglogger "github.com/sunvolt/loginguard/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env), slog.String("ledger_backend", cfg.Ledger.Backend))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// maxLockoutDuration matches the upper bound accepted by the admin policy API
const maxLockoutDuration = 24 * time.Hour

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = database.Migrate(migrateCtx, db.Pool, logger)
	cancel()
	if err != nil {
		return err
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	policyRepo := repositories.NewSecurityPolicyRepository(db)
	kvRepo := repositories.NewClientKVRepository(db)

	// Ledger storage. Persisted records outlive the in-memory client state so
	// a lockout survives even the longest configurable duration.
	ledgerRetention := max(cfg.Ledger.ClientStateTTL, maxLockoutDuration)
	var redisClient *redis.Client
	if cfg.Ledger.Backend == kvstore.BackendRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	kvOpts := kvstore.Options{
		Backend:  cfg.Ledger.Backend,
		FileDir:  cfg.Ledger.FileDir,
		RedisTTL: ledgerRetention,
		Table:    kvRepo,
	}
	if redisClient != nil {
		kvOpts.Redis = redisClient
	}
	kv, err := kvstore.New(kvOpts)
	if err != nil {
		return err
	}

	// Metrics and audit
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promRegistry)
	auditLogger := pkglogger.NewAuditLogger(logger)

	// Security policy
	policy := services.NewPolicyProvider(policyRepo, policyRepo, logger)
	if err := policy.Refresh(ctx); err != nil {
		logger.Warn("starting with default security policy", slog.Any("error", err))
	}

	// Bootstrap first admin user if configured
	accounts := services.NewAccountService(userRepo, logger)
	bootstrapCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	created, err := accounts.EnsureAdmin(bootstrapCtx, os.Getenv("ADMIN_EMAIL"), os.Getenv("ADMIN_PASSWORD"))
	cancel()
	if err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	} else if created {
		logger.Info("admin user created")
	}

	// Login flow
	timing := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:   cfg.Auth.TimingDelayBase,
		RandomDelay: cfg.Auth.TimingDelayRandom,
	})
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTokenExpiry)
	checker := services.NewPasswordCredentialChecker(userRepo, timing, logger)
	issuer := services.NewSessionIssuer(sessionRepo, tokenManager, policy, logger)

	rendererCfg := captcha.DefaultRendererConfig()
	rendererCfg.Width = cfg.Captcha.Width
	rendererCfg.Height = cfg.Captcha.Height
	states := services.NewClientStates(kv, services.LoginDependencies{
		Checker: checker,
		Starter: issuer,
		Policy:  policy,
		Logger:  logger,
		Audit:   auditLogger,
		Metrics: m,
	}, captcha.NewGenerator(), captcha.NewRenderer(rendererCfg), cfg.Ledger.ClientStateTTL)

	// Session registry
	signOut := services.NewSessionSignOut(sessionRepo, auditLogger)
	sessionRegistry := services.NewSessionRegistry(
		services.NewCallerSessionStore(sessionRepo),
		signOut,
		services.SessionRegistryConfig{
			LoginPath:       cfg.Auth.LoginPath,
			EndCurrentDelay: cfg.Auth.EndCurrentSessionDelay,
		},
		logger, auditLogger, m,
	)

	// Handlers
	ipConfig := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	cookies := auth.CookieConfig{
		Domain:   cfg.Server.CookieDomain,
		Secure:   cfg.Server.IsProduction(),
		SameSite: cfg.Server.CookieSameSite,
	}

	router := routes.NewRouter(routes.RouterConfig{
		Env:            cfg.Server.Env,
		Cookies:        cookies,
		IP:             ipConfig,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		LoginRateLimit: cfg.Server.LoginRateLimit,
	}, routes.Dependencies{
		Auth: handlers.NewAuthHandler(handlers.NewClientStateProvider(states), signOut, handlers.AuthHandlerConfig{
			Cookies:   cookies,
			IP:        ipConfig,
			LoginPath: cfg.Auth.LoginPath,
		}, logger, auditLogger),
		Sessions:       handlers.NewSessionHandler(sessionRegistry, cookies, logger),
		Admin:          handlers.NewAdminHandler(policy, logger, auditLogger),
		Health:         handlers.NewHealthHandler(db, logger),
		TokenManager:   tokenManager,
		SessionStore:   sessionRepo,
		IdleTimeout:    func() time.Duration { return policy.Current().SessionTimeout() },
		Users:          userRepo,
		Metrics:        m,
		MetricsHandler: metrics.Handler(promRegistry),
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Background jobs
	var statePurger background.StaleStatePurger
	if cfg.Ledger.Backend == kvstore.BackendPostgres {
		statePurger = kvRepo
	}
	cleanupManager := background.NewCleanupManager(sessionRepo, statePurger, logger, background.CleanupConfig{
		Interval:       cfg.Auth.SessionCleanupInterval,
		StateRetention: ledgerRetention,
	})
	refresher := background.NewPolicyRefresher(policy, cfg.Auth.PolicyRefreshInterval, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		cleanupManager.Start(gctx)
		return nil
	})
	g.Go(func() error {
		refresher.Start(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
