package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Ledger   LedgerConfig
	Captcha  CaptchaConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port         string
	Env          string
	LogLevel     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	TrustedProxies []string
	AllowedOrigins []string
	CookieDomain   string
	CookieSameSite string

	LoginRateLimit int // requests per minute per IP
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret              string
	SessionTokenExpiry     time.Duration
	SessionCleanupInterval time.Duration
	PolicyRefreshInterval  time.Duration
	EndCurrentSessionDelay time.Duration
	LoginPath              string
	TimingDelayBase        time.Duration
	TimingDelayRandom      time.Duration
}

// LedgerConfig selects where attempt ledgers are persisted
type LedgerConfig struct {
	Backend        string
	FileDir        string
	ClientStateTTL time.Duration
}

type CaptchaConfig struct {
	Width  int
	Height int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "loginguard"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Env:          env,
			LogLevel:     getEnv("LOG_LEVEL", "info"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),

			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
			CookieDomain:   getEnv("COOKIE_DOMAIN", ""),
			CookieSameSite: strings.ToLower(getEnv("COOKIE_SAMESITE", "strict")),

			LoginRateLimit: getEnvAsInt("LOGIN_RATE_LIMIT", 20),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret:              jwtSecret,
			SessionTokenExpiry:     getEnvAsDuration("SESSION_TOKEN_EXPIRY", 12*time.Hour),
			SessionCleanupInterval: getEnvAsDuration("SESSION_CLEANUP_INTERVAL", 15*time.Minute),
			PolicyRefreshInterval:  getEnvAsDuration("POLICY_REFRESH_INTERVAL", 30*time.Second),
			EndCurrentSessionDelay: getEnvAsDuration("END_CURRENT_SESSION_DELAY", 300*time.Millisecond),
			LoginPath:              getEnv("LOGIN_PATH", "/login"),
			TimingDelayBase:        time.Duration(getEnvAsInt("TIMING_DELAY_BASE_MS", 500)) * time.Millisecond,
			TimingDelayRandom:      time.Duration(getEnvAsInt("TIMING_DELAY_RANDOM_MS", 100)) * time.Millisecond,
		},
		Ledger: LedgerConfig{
			Backend:        strings.ToLower(getEnv("LEDGER_BACKEND", "memory")),
			FileDir:        getEnv("LEDGER_FILE_DIR", "./data/ledger"),
			ClientStateTTL: getEnvAsDuration("CLIENT_STATE_TTL", 30*time.Minute),
		},
		Captcha: CaptchaConfig{
			Width:  getEnvAsInt("CAPTCHA_WIDTH", 180),
			Height: getEnvAsInt("CAPTCHA_HEIGHT", 60),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	switch cfg.Ledger.Backend {
	case "memory", "file", "redis", "postgres":
	default:
		return nil, fmt.Errorf("LEDGER_BACKEND must be one of memory, file, redis, postgres (got %q)", cfg.Ledger.Backend)
	}

	return cfg, nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// IsProduction reports whether cookies must be marked Secure
func (c *ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
