// Package config loads runtime configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime settings for the governance and treasury core.
type Config struct {
	// ListenAddr serves /metrics and /healthz.
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	// DBPath is the SQLite database file.
	DBPath string `env:"DB_PATH" envDefault:"./data/governance.db"`

	// RegistryURL is the base URL of the membership registry service.
	RegistryURL string `env:"REGISTRY_URL" envDefault:"http://localhost:8081"`

	// RegistryTimeout bounds every registry call.
	RegistryTimeout time.Duration `env:"REGISTRY_TIMEOUT" envDefault:"5s"`

	// ApprovalThreshold is the absolute withdrawal amount above which an
	// admin approval step is required. Zero disables the rule.
	ApprovalThreshold float64 `env:"APPROVAL_THRESHOLD" envDefault:"1000"`

	// ApprovalFraction routes withdrawals exceeding this fraction of the
	// available balance through approval. Zero disables the rule.
	ApprovalFraction float64 `env:"APPROVAL_FRACTION" envDefault:"0"`

	// SweepInterval is how often the expiry sweeper runs.
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`

	// RedisAddr enables the Redis event publisher when non-empty;
	// otherwise events go to the structured log.
	RedisAddr string `env:"REDIS_ADDR" envDefault:""`
}

// Load parses configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
