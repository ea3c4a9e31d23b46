// Package config loads and validates the gateway's configuration from an
// optional YAML file with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "90s" or "5m" parse
// naturally.
type Duration time.Duration

// UnmarshalYAML parses a duration string via time.ParseDuration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds every tunable of the gateway process.
type Config struct {
	// Listen is the gateway's HTTP listen address.
	Listen string `yaml:"listen" validate:"required"`

	// ReapInterval is how often the reaper sweeps the registry.
	ReapInterval Duration `yaml:"reapInterval" validate:"gt=0"`

	// StaleTimeout is the heartbeat age beyond which an instance is
	// evicted. Keep it several multiples of the backends' heartbeat
	// interval.
	StaleTimeout Duration `yaml:"staleTimeout" validate:"gt=0"`

	// ForwardTimeout bounds a single forwarded backend query.
	ForwardTimeout Duration `yaml:"forwardTimeout" validate:"gt=0"`

	// MarkerExtensions are the file extensions recognized as workload
	// definition files during path-based resolution.
	MarkerExtensions []string `yaml:"markerExtensions" validate:"min=1,dive,startswith=."`

	// QueryPath is the endpoint path on each backend that accepts
	// query envelopes.
	QueryPath string `yaml:"queryPath" validate:"required,startswith=/"`
}

// Default returns the configuration used when no file and no overrides
// are present.
func Default() Config {
	return Config{
		Listen:           ":7071",
		ReapInterval:     Duration(60 * time.Second),
		StaleTimeout:     Duration(5 * time.Minute),
		ForwardTimeout:   Duration(30 * time.Second),
		MarkerExtensions: []string{".sln"},
		QueryPath:        "/query",
	}
}

// Load builds the effective configuration: defaults, then the YAML file
// at path (skipped when path is empty or the file does not exist), then
// CODEBRIDGE_* environment overrides, then validation.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration's structural constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyEnv overlays CODEBRIDGE_* environment variables onto cfg.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("CODEBRIDGE_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("CODEBRIDGE_QUERY_PATH"); v != "" {
		cfg.QueryPath = v
	}
	if v := os.Getenv("CODEBRIDGE_MARKER_EXTENSIONS"); v != "" {
		cfg.MarkerExtensions = strings.Split(v, ",")
	}
	for _, ent := range []struct {
		key string
		dst *Duration
	}{
		{"CODEBRIDGE_REAP_INTERVAL", &cfg.ReapInterval},
		{"CODEBRIDGE_STALE_TIMEOUT", &cfg.StaleTimeout},
		{"CODEBRIDGE_FORWARD_TIMEOUT", &cfg.ForwardTimeout},
	} {
		v := os.Getenv(ent.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", ent.key, v, err)
		}
		*ent.dst = Duration(parsed)
	}
	return nil
}
