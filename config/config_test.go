package config

import (
	"os"
	"path/filepath"
	"testing"

	"smart-trading-engine/internal/sizing"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Auth.TokenDurationMinutes != 60 || cfg.Auth.BcryptCost != 12 {
		t.Errorf("unexpected auth defaults: %+v", cfg.Auth)
	}
	if cfg.Engine.ConfidenceThreshold != 70 || cfg.Engine.MaxOpenTrades != 1 {
		t.Errorf("unexpected engine defaults: %+v", cfg.Engine)
	}
	if cfg.Engine.FeeTier != sizing.FeeTierDefault {
		t.Errorf("expected the default fee tier, got %s", cfg.Engine.FeeTier)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("the defaults must validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("a missing file must not fail: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected defaults, got port %d", cfg.Server.Port)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := writeConfigFile(t, `{
		"server": {"port": 9090},
		"engine": {"confidence_threshold": 80, "max_open_trades": 2, "fee_tier": "vip"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Engine.ConfidenceThreshold != 80 || cfg.Engine.MaxOpenTrades != 2 {
		t.Errorf("unexpected engine config: %+v", cfg.Engine)
	}
	if cfg.Engine.FeeTier != sizing.FeeTierVIP {
		t.Errorf("expected the vip tier, got %s", cfg.Engine.FeeTier)
	}
	// Untouched sections keep their defaults.
	if cfg.Auth.TokenDurationMinutes != 60 {
		t.Errorf("expected default token duration, got %d", cfg.Auth.TokenDurationMinutes)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfigFile(t, `{"server": {"prot": 9090}}`)
	if _, err := Load(path); err == nil {
		t.Fatal("a misspelled key must fail to load")
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := writeConfigFile(t, `{"server":`)
	if _, err := Load(path); err == nil {
		t.Fatal("truncated JSON must fail to load")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "7777")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("REDIS_ADDR", "cache.internal:6379")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("expected port 7777, got %d", cfg.Server.Port)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("expected db.internal, got %s", cfg.Database.Host)
	}
	if cfg.Redis.Addr != "cache.internal:6379" || !cfg.Redis.Enabled {
		t.Errorf("a redis address must enable redis: %+v", cfg.Redis)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Errorf("expected env-secret, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("expected DEBUG, got %s", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"zero token duration", func(c *Config) { c.Auth.TokenDurationMinutes = 0 }},
		{"confidence over 100", func(c *Config) { c.Engine.ConfidenceThreshold = 120 }},
		{"zero open trades", func(c *Config) { c.Engine.MaxOpenTrades = 0 }},
		{"unknown fee tier", func(c *Config) { c.Engine.FeeTier = "platinum" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}
