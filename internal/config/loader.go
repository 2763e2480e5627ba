package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/opengolfcoach/bridge/internal/domain/registry"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if BRIDGE_CONFIG is set
//  3. env (prefix BRIDGE_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("BRIDGE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: BRIDGE_LISTEN_PORT, BRIDGE_UNIT_SYSTEM, ...
	// Map env keys like BRIDGE_LISTEN_PORT -> listen_port (flat keys).
	envProvider := env.Provider("BRIDGE_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "bridge_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the bridge cannot run with. Unknown data
// point ids are a hard error so a typo never silently hides a field.
func (c *Config) Validate() error {
	if c.ListenPort < 1 || c.ListenPort > 65535 {
		return fmt.Errorf("%w: listen_port %d out of range", ErrInvalidConfig, c.ListenPort)
	}
	if c.DisplayPort < 1 || c.DisplayPort > 65535 {
		return fmt.Errorf("%w: display_port %d out of range", ErrInvalidConfig, c.DisplayPort)
	}
	switch c.SessionPolicy {
	case "reject", "replace":
	default:
		return fmt.Errorf("%w: session_policy must be reject or replace, got %q", ErrInvalidConfig, c.SessionPolicy)
	}
	switch c.UnitSystem {
	case "imperial", "metric":
	default:
		return fmt.Errorf("%w: unit_system must be imperial or metric, got %q", ErrInvalidConfig, c.UnitSystem)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	}
	if c.HistoryLimit < 1 {
		return fmt.Errorf("%w: history_limit must be positive", ErrInvalidConfig)
	}
	for _, id := range c.EnabledDataPoints {
		if _, ok := registry.Lookup(id); !ok {
			return fmt.Errorf("%w: unknown data point id %q", ErrInvalidConfig, id)
		}
	}
	return nil
}

// DisplayURL returns the display host websocket URL.
func (c *Config) DisplayURL() string {
	return fmt.Sprintf("ws://%s:%d", c.DisplayHost, c.DisplayPort)
}

// ListenAddr returns the launch monitor listen address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ListenHost, c.ListenPort)
}

// CalculatorAddr returns the enrichment calculator address.
func (c *Config) CalculatorAddr() string {
	return fmt.Sprintf("%s:%d", c.CalculatorHost, c.CalculatorPort)
}
