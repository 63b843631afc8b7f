// Package config loads runtime settings from the environment.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/ka2n/x402search/api/failcode"
	"github.com/morikuni/failure/v2"
)

var validate = validator.New()

// Config captures every knob the search, ledger and fetch components consume
type Config struct {
	// Upstream search API
	SearchAPIKey  string        `env:"EXA_API_KEY"`
	SearchURL     string        `env:"EXA_SEARCH_URL" envDefault:"https://api.exa.ai/search" validate:"required,url"`
	SearchTimeout time.Duration `env:"SEARCH_TIMEOUT" envDefault:"20s" validate:"gt=0"`

	// Ledger
	LedgerURL       string        `env:"LEDGER_API_URL" validate:"omitempty,url"`
	LedgerAPIKey    string        `env:"LEDGER_API_KEY"`
	TrackingEnabled bool          `env:"LEDGER_TRACKING_ENABLED" envDefault:"true"`
	CacheEnabled    bool          `env:"LICENSE_CACHE_ENABLED" envDefault:"true"`
	CacheTTL        time.Duration `env:"LICENSE_CACHE_TTL" envDefault:"10m" validate:"gt=0"`
	LicenseTimeout  time.Duration `env:"LICENSE_CHECK_TIMEOUT" envDefault:"5s" validate:"gt=0"`
	AcquireTimeout  time.Duration `env:"LICENSE_ACQUIRE_TIMEOUT" envDefault:"15s" validate:"gt=0"`
	UsageTimeout    time.Duration `env:"USAGE_LOG_TIMEOUT" envDefault:"5s" validate:"gt=0"`

	// Licensed fetch
	FetchTimeout     time.Duration `env:"FETCH_TIMEOUT" envDefault:"15s" validate:"gt=0"`
	FetchMaxChars    int           `env:"FETCH_MAX_CHARS" envDefault:"20000" validate:"gt=0"`
	FetchConcurrency int           `env:"FETCH_CONCURRENCY" envDefault:"1" validate:"gte=1,lte=16"`
	FetchMarkdown    bool          `env:"FETCH_MARKDOWN" envDefault:"false"`
	UserAgent        string        `env:"FETCH_USER_AGENT" envDefault:"x402search/0.1 (+licensed-fetch)"`
}

// Load parses the environment into a validated Config
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, failure.New(failcode.Configuration,
			failure.Message("Failed to parse environment configuration"),
			failure.Context{"error": err.Error()},
		)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return failure.New(failcode.Configuration,
			failure.Message("Invalid configuration"),
			failure.Context{"error": err.Error()},
		)
	}
	return nil
}

// HasLedgerCredential reports whether authenticated ledger calls can be made
func (c Config) HasLedgerCredential() bool {
	return c.LedgerAPIKey != ""
}
