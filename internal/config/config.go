package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
)

const (
	envDevelopment = "development"
	envProduction  = "production"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	Env  string `env:"APP_ENV" envDefault:"development"`
	Port string `env:"PORT" envDefault:"8080"`

	DBPath string `env:"DB_PATH" envDefault:"./dev.db"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT"`
	LogOutput string `env:"LOG_OUTPUT" envDefault:"stdout"`

	HTTPReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	MaxUploadBytes   int64         `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`

	RedisAddr      string        `env:"REDIS_ADDR"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	ImportDedupTTL time.Duration `env:"IMPORT_DEDUP_TTL" envDefault:"720h"`

	MeliBaseURL     string `env:"MELI_API_BASE_URL" envDefault:"https://api.mercadolibre.com"`
	MeliAccessToken string `env:"MELI_ACCESS_TOKEN"`
	MeliSellerID    string `env:"MELI_SELLER_ID"`

	SeedCatalog bool `env:"SEED_CATALOG" envDefault:"true"`
}

// Load reads .env (if present) and the process environment into a Config.
func Load() (Config, error) {
	// Local development convenience; production injects real env vars.
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return parse()
}

func parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Env != envDevelopment && cfg.Env != envProduction {
		return Config{}, fmt.Errorf("APP_ENV must be %q or %q, got %q", envDevelopment, envProduction, cfg.Env)
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
		if cfg.IsProduction() {
			cfg.LogFormat = "json"
		}
	}
	if cfg.MaxUploadBytes <= 0 {
		return Config{}, fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}

	return cfg, nil
}

// IsProduction reports whether the process runs with APP_ENV=production.
func (c Config) IsProduction() bool {
	return c.Env == envProduction
}

// MeliEnabled reports whether the Mercado Livre order pull is configured.
func (c Config) MeliEnabled() bool {
	return c.MeliAccessToken != "" && c.MeliSellerID != ""
}
