// Package config loads the full service configuration from the
// environment, with an optional .env file for local development.
package config

import (
	"errors"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/skystash/skystash/internal/api"
	"github.com/skystash/skystash/internal/blob"
	"github.com/skystash/skystash/internal/httpserver"
	"github.com/skystash/skystash/internal/lifecycle"
	"github.com/skystash/skystash/internal/logger"
	"github.com/skystash/skystash/internal/pg"
	"github.com/skystash/skystash/internal/quota"
	"github.com/skystash/skystash/internal/upload"
)

var (
	ErrParsingConfig = errors.New("failed to parse config from env")

	dotenvOnce sync.Once
)

// Config aggregates per-concern configs; each nested struct carries its
// own env tags so packages stay usable on their own.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"skystash"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	Log       logger.Config
	HTTP      httpserver.Config
	PG        pg.Config
	Blob      blob.Config
	Quota     quota.Config
	Upload    upload.Config
	Lifecycle lifecycle.Config
	API       api.Config
}

// Load parses the environment into a Config. The .env file is loaded at
// most once per process and its absence is not an error.
func Load() (Config, error) {
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}
