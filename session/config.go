package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ianchi/ifit"
)

// envPrefix is the environment variable prefix for Timeouts overrides.
// IFIT_RESPONSE_TIMEOUT -> response_timeout, following the same
// strip-and-lowercase mapping dantte-lp-gobfd uses for its daemon config.
const envPrefix = "IFIT_"

// Config wraps the three durations a Session constructor accepts
// (SPEC_FULL.md §6), in the koanf-tagged shape LoadConfig unmarshals into.
type Config struct {
	ResponseTimeout time.Duration `koanf:"response_timeout"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	MonitorInterval time.Duration `koanf:"monitor_interval"`
}

// Timeouts converts Config to the ifit.Timeouts the Session uses internally.
func (c Config) Timeouts() ifit.Timeouts {
	return ifit.Timeouts{
		ResponseTimeout: c.ResponseTimeout,
		ConnectTimeout:  c.ConnectTimeout,
		MonitorInterval: c.MonitorInterval,
	}
}

// DefaultConfig mirrors ifit.DefaultTimeouts in the koanf-tagged shape.
func DefaultConfig() Config {
	t := ifit.DefaultTimeouts()
	return Config{
		ResponseTimeout: t.ResponseTimeout,
		ConnectTimeout:  t.ConnectTimeout,
		MonitorInterval: t.MonitorInterval,
	}
}

// LoadConfig reads Timeouts from an optional YAML file at path, overlaid with
// IFIT_-prefixed environment variables, falling back to the spec defaults for
// anything neither source sets. path may be empty, in which case only
// defaults and environment overrides apply.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	defaultMap := map[string]any{
		"response_timeout": defaults.ResponseTimeout.String(),
		"connect_timeout":  defaults.ConnectTimeout.String(),
		"monitor_interval": defaults.MonitorInterval.String(),
	}
	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return Config{}, fmt.Errorf("session: set default %s: %w", key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("session: load config from %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return Config{}, fmt.Errorf("session: load env overrides: %w", err)
	}

	cfg := Config{}
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("session: unmarshal config: %w", err)
	}
	return cfg, nil
}

// envKeyMapper maps IFIT_RESPONSE_TIMEOUT to response_timeout, matching the
// flat koanf tags on Config -- the koanf instance's "." delimiter is for
// nested YAML keys, not env names, so this must not touch underscores.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	return strings.ToLower(s)
}
