package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/podium-gg/podium/internal/domain/model"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if PODIUM_CONFIG is set
//  3. env (prefix PODIUM_)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("PODIUM_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: PODIUM_ADDR, PODIUM_QUEUE_SIZE, ...
	// Keys keep their underscores to match the koanf tags; a double
	// underscore descends into nested sections (PODIUM_KAFKA__TOPIC).
	envProvider := env.Provider("PODIUM_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "podium_")
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.MaxScore < 1 {
		return fmt.Errorf("%w: max_score must be positive", ErrInvalidConfig)
	}
	if c.RateLimitPerHour < 1 {
		return fmt.Errorf("%w: rate_limit_per_hour must be positive", ErrInvalidConfig)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalidConfig, c.Timezone)
	}
	for _, w := range c.Windows {
		if !model.WindowKind(w).Valid() {
			return fmt.Errorf("%w: unknown window %q", ErrInvalidConfig, w)
		}
	}
	switch c.AntiCheatFailMode {
	case "open", "closed":
	default:
		return fmt.Errorf("%w: anti_cheat_fail_mode must be open or closed", ErrInvalidConfig)
	}
	return nil
}

// WindowKinds converts the configured window names to their typed form.
func (c *Config) WindowKinds() []model.WindowKind {
	kinds := make([]model.WindowKind, 0, len(c.Windows))
	for _, w := range c.Windows {
		kinds = append(kinds, model.WindowKind(w))
	}
	return kinds
}

// Location resolves the configured timezone. Validation guarantees the
// lookup succeeds after Load.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
