// Package config loads shinyhunt settings from SHINYHUNT_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/emiliopalmerini/shinyhunt/internal/logging"
)

// Prefix is prepended to every variable name.
const Prefix = "SHINYHUNT_"

const (
	BackendTurso = "turso"
	BackendFile  = "file"
)

// Database holds Turso/libsql connection settings. An empty URL selects a
// local database file in the XDG data directory.
type Database struct {
	URL       string `env:"DATABASE_URL"`
	AuthToken string `env:"AUTH_TOKEN"`
}

// Otel holds OTEL metrics exporter settings.
type Otel struct {
	Enabled  bool   `env:"ENABLED"`
	Endpoint string `env:"ENDPOINT"`
	Insecure bool   `env:"INSECURE"`
}

// Config is the full runtime configuration.
type Config struct {
	Database Database
	Otel     Otel `envPrefix:"OTEL_"`

	// Backend selects where hunt snapshots are persisted: turso or file.
	Backend  string `env:"BACKEND" envDefault:"turso"`
	OddsFile string `env:"ODDS_FILE"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"warn"`

	SaveThrottle    time.Duration `env:"SAVE_THROTTLE" envDefault:"500ms"`
	ToggleDebounce  time.Duration `env:"TOGGLE_DEBOUNCE" envDefault:"500ms"`
	TeardownTimeout time.Duration `env:"TEARDOWN_TIMEOUT" envDefault:"3s"`
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom reads the configuration from environ instead of the process
// environment. Keys include the prefix.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.Backend != BackendTurso && c.Backend != BackendFile {
		errs = append(errs, fmt.Errorf("%sBACKEND must be %q or %q, got %q", Prefix, BackendTurso, BackendFile, c.Backend))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("%sLOG_LEVEL: %w", Prefix, err))
	}
	for name, d := range map[string]time.Duration{
		"SAVE_THROTTLE":    c.SaveThrottle,
		"TOGGLE_DEBOUNCE":  c.ToggleDebounce,
		"TEARDOWN_TIMEOUT": c.TeardownTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s%s must not be negative, got %s", Prefix, name, d))
		}
	}
	if c.TeardownTimeout == 0 {
		errs = append(errs, fmt.Errorf("%sTEARDOWN_TIMEOUT must be positive", Prefix))
	}
	if c.Otel.Enabled && c.Otel.Endpoint == "" {
		errs = append(errs, fmt.Errorf("%sOTEL_ENDPOINT is required when OTEL is enabled", Prefix))
	}
	return errors.Join(errs...)
}
