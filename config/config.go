// Package config loads the engine configuration from an explicit JSON file
// with environment-variable overrides. Unknown JSON keys are rejected so a
// typo fails at startup rather than silently using a default.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"smart-trading-engine/internal/database"
	"smart-trading-engine/internal/logging"
	"smart-trading-engine/internal/sizing"
	"smart-trading-engine/internal/vault"
)

// ServerConfig holds the HTTP server settings
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// RedisConfig holds the Redis connection settings
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// AuthConfig holds JWT and password settings
type AuthConfig struct {
	JWTSecret            string `json:"jwt_secret"`
	TokenDurationMinutes int    `json:"token_duration_minutes"`
	BcryptCost           int    `json:"bcrypt_cost"`
}

// EngineConfig holds decision-engine tuning
type EngineConfig struct {
	ConfidenceThreshold float64        `json:"confidence_threshold"`
	MaxOpenTrades       int            `json:"max_open_trades"`
	FeeTier             sizing.FeeTier `json:"fee_tier"`
}

// DatabaseConfig wraps the pool settings with an enable switch
type DatabaseConfig struct {
	Enabled bool `json:"enabled"`
	database.Config
}

// Config is the full application configuration
type Config struct {
	Server   ServerConfig      `json:"server"`
	Database DatabaseConfig    `json:"database"`
	Redis    RedisConfig       `json:"redis"`
	Vault    vault.Config      `json:"vault"`
	Auth     AuthConfig        `json:"auth"`
	Logging  logging.Config    `json:"logging"`
	Engine   EngineConfig      `json:"engine"`
	Fees     sizing.FeeSchedule `json:"fees"`
}

// Default returns the baseline configuration
func Default() Config {
	return Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Database: DatabaseConfig{
			Config: database.Config{
				Host:     "localhost",
				Port:     5432,
				User:     "postgres",
				Database: "trading_engine",
				SSLMode:  "disable",
			},
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Auth: AuthConfig{
			TokenDurationMinutes: 60,
			BcryptCost:           12,
		},
		Logging: logging.Config{Level: "INFO", Output: "stdout", Component: "engine"},
		Engine: EngineConfig{
			ConfidenceThreshold: 70,
			MaxOpenTrades:       1,
			FeeTier:             sizing.FeeTierDefault,
		},
		Fees: sizing.DefaultFeeSchedule(),
	}
}

// Load reads the configuration file, applies environment overrides, and
// validates the result. A missing file is not an error; defaults plus
// environment apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("open config file: %w", err)
			}
		} else {
			defer file.Close()
			decoder := json.NewDecoder(file)
			decoder.DisallowUnknownFields()
			if err := decoder.Decode(&cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database.Database = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("VAULT_ADDR"); v != "" {
		cfg.Vault.Address = v
		cfg.Vault.Enabled = true
	}
	if v := os.Getenv("VAULT_TOKEN"); v != "" {
		cfg.Vault.Token = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for values that cannot work
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Auth.TokenDurationMinutes <= 0 {
		return fmt.Errorf("token duration must be positive, got %d", c.Auth.TokenDurationMinutes)
	}
	if c.Engine.ConfidenceThreshold < 0 || c.Engine.ConfidenceThreshold > 100 {
		return fmt.Errorf("confidence threshold must be 0-100, got %.1f", c.Engine.ConfidenceThreshold)
	}
	if c.Engine.MaxOpenTrades < 1 {
		return fmt.Errorf("max open trades must be at least 1, got %d", c.Engine.MaxOpenTrades)
	}
	switch c.Engine.FeeTier {
	case sizing.FeeTierDefault, sizing.FeeTierVIP, sizing.FeeTierPromo:
	default:
		return fmt.Errorf("unknown fee tier: %q", c.Engine.FeeTier)
	}
	return nil
}
