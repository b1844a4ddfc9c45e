package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	t.Setenv("DB_PASSWORD", "test")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	durations := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"ReadTimeout", cfg.Server.ReadTimeout, 15 * time.Second},
		{"WriteTimeout", cfg.Server.WriteTimeout, 15 * time.Second},
		{"IdleTimeout", cfg.Server.IdleTimeout, 60 * time.Second},
		{"SessionTokenExpiry", cfg.Auth.SessionTokenExpiry, 12 * time.Hour},
		{"EndCurrentSessionDelay", cfg.Auth.EndCurrentSessionDelay, 300 * time.Millisecond},
		{"TimingDelayBase", cfg.Auth.TimingDelayBase, 500 * time.Millisecond},
		{"ClientStateTTL", cfg.Ledger.ClientStateTTL, 30 * time.Minute},
	}

	for _, tt := range durations {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}

	if cfg.Ledger.Backend != "memory" {
		t.Errorf("Ledger.Backend: got %q, want memory", cfg.Ledger.Backend)
	}
	if cfg.Auth.LoginPath != "/login" {
		t.Errorf("LoginPath: got %q, want /login", cfg.Auth.LoginPath)
	}
	if cfg.Server.CookieSameSite != "strict" {
		t.Errorf("CookieSameSite: got %q, want strict", cfg.Server.CookieSameSite)
	}
	if cfg.Server.LoginRateLimit != 20 {
		t.Errorf("LoginRateLimit: got %d, want 20", cfg.Server.LoginRateLimit)
	}
	if cfg.Server.AllowedOrigins != nil {
		t.Errorf("AllowedOrigins: got %v, want none", cfg.Server.AllowedOrigins)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequired(t)
	t.Setenv("LEDGER_BACKEND", "Redis")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("END_CURRENT_SESSION_DELAY", "1s")
	t.Setenv("TIMING_DELAY_RANDOM_MS", "0")
	t.Setenv("LOGIN_PATH", "/admin/login")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, ,172.16.0.0/12")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Ledger.Backend != "redis" {
		t.Errorf("Ledger.Backend: got %q, want redis", cfg.Ledger.Backend)
	}
	if cfg.Redis.Addr != "cache:6380" || cfg.Redis.DB != 2 {
		t.Errorf("Redis: got %+v", cfg.Redis)
	}
	if cfg.Auth.EndCurrentSessionDelay != time.Second {
		t.Errorf("EndCurrentSessionDelay: got %v, want 1s", cfg.Auth.EndCurrentSessionDelay)
	}
	if cfg.Auth.TimingDelayRandom != 0 {
		t.Errorf("TimingDelayRandom: got %v, want 0", cfg.Auth.TimingDelayRandom)
	}
	if cfg.Auth.LoginPath != "/admin/login" {
		t.Errorf("LoginPath: got %q", cfg.Auth.LoginPath)
	}
	if len(cfg.Server.TrustedProxies) != 2 || cfg.Server.TrustedProxies[1] != "172.16.0.0/12" {
		t.Errorf("TrustedProxies: got %v", cfg.Server.TrustedProxies)
	}
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_READ_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout: got %v, want 15s", cfg.Server.ReadTimeout)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing JWT secret", map[string]string{"JWT_SECRET": "", "DB_PASSWORD": "test"}},
		{"missing DB password", map[string]string{"JWT_SECRET": "test-secret-32-characters-long!", "DB_PASSWORD": ""}},
		{"short secret in production", map[string]string{"JWT_SECRET": "only-twenty-chars!!!", "DB_PASSWORD": "x", "ENV": "production"}},
		{"unknown ledger backend", map[string]string{"JWT_SECRET": "test-secret-32-characters-long!", "DB_PASSWORD": "x", "LEDGER_BACKEND": "etcd"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("Load() = nil, want error")
			}
		})
	}
}

func TestValidateJWTSecret_WeakValues(t *testing.T) {
	if err := validateJWTSecret("changeme", "development"); err == nil {
		t.Error("short weak secret accepted")
	}
	if err := validateJWTSecret("a-perfectly-fine-dev-secret", "development"); err != nil {
		t.Errorf("valid secret rejected: %v", err)
	}
}
