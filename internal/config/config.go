// Package config loads revgate settings from an optional YAML or TOML file
// and REVGATE_* environment variables. Command-line flags override both and
// are applied by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/spf13/viper"

	"github.com/sprite-ai/revgate/internal/aggregate"
	"github.com/sprite-ai/revgate/internal/cache"
	"github.com/sprite-ai/revgate/internal/dispatch"
	"github.com/sprite-ai/revgate/internal/gate"
)

const (
	DefaultTimeout  = 2 * time.Minute
	DefaultLogLevel = "warn"
	DefaultFormat   = "text"
)

// Config holds every setting that is not specific to one invocation.
type Config struct {
	MaxParallel  int64               `mapstructure:"max_parallel" yaml:"max_parallel"`
	Timeout      time.Duration       `mapstructure:"timeout" yaml:"timeout"` // session deadline
	Grace        time.Duration       `mapstructure:"grace" yaml:"grace"`
	Format       string              `mapstructure:"format" yaml:"format"`
	Policy       map[string]string   `mapstructure:"policy" yaml:"policy,omitempty"`     // severity -> tier
	Families     map[string][]string `mapstructure:"families" yaml:"families,omitempty"` // family -> categories
	RegistryFile string              `mapstructure:"registry_file" yaml:"registry_file,omitempty"`
	Cache        cache.Config        `mapstructure:"cache" yaml:"cache"`
	LogLevel     string              `mapstructure:"log_level" yaml:"log_level"`
	Serve        ServeConfig         `mapstructure:"serve" yaml:"serve"`
}

// ServeConfig configures the HTTP API.
type ServeConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// Load reads the config file at filePath when it exists, then applies any
// REVGATE_* environment variables on top. An empty filePath reads only the
// environment.
func Load(filePath string) (*Config, error) {
	v := newViper()

	if filePath != "" {
		v.SetConfigFile(filePath)
		if _, err := os.Stat(filePath); !errors.Is(err, fs.ErrNotExist) {
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", filePath, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration with no file or environment
// applied.
func Default() *Config {
	cfg := &Config{}
	if err := newViper().Unmarshal(cfg); err != nil {
		panic(err)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("max_parallel", dispatch.DefaultMaxParallel)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("grace", dispatch.DefaultGrace)
	v.SetDefault("format", DefaultFormat)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("cache.backend", "none")
	v.SetDefault("cache.prefix", "revgate")
	v.SetDefault("cache.ttl", 7*24*time.Hour)
	v.SetDefault("serve.addr", "127.0.0.1")
	v.SetDefault("serve.port", 6142)

	// BindEnv only fails when called without a key.
	for key, envs := range envBindings {
		_ = v.BindEnv(slices.Insert(envs, 0, key)...)
	}
	return v
}

// envBindings maps config keys to the environment variables that can set
// them, preferred name first.
var envBindings = map[string][]string{
	"max_parallel":     {"REVGATE_MAX_PARALLEL"},
	"timeout":          {"REVGATE_TIMEOUT"},
	"grace":            {"REVGATE_GRACE"},
	"format":           {"REVGATE_FORMAT"},
	"registry_file":    {"REVGATE_REGISTRY_FILE", "REVGATE_REGISTRY"},
	"log_level":        {"REVGATE_LOG_LEVEL"},
	"cache.backend":    {"REVGATE_CACHE_BACKEND", "REVGATE_CACHE"},
	"cache.path":       {"REVGATE_CACHE_PATH"},
	"cache.redis_addr": {"REVGATE_REDIS_ADDR", "REDIS_ADDR"},
	"cache.prefix":     {"REVGATE_CACHE_PREFIX"},
	"cache.ttl":        {"REVGATE_CACHE_TTL"},
	"serve.addr":       {"REVGATE_ADDR"},
	"serve.port":       {"REVGATE_PORT"},
}

// Validate checks values that would otherwise fail later in the pipeline.
func (c *Config) Validate() error {
	if c.MaxParallel < 1 {
		return fmt.Errorf("max_parallel must be at least 1, got %d", c.MaxParallel)
	}
	if c.Timeout < 0 || c.Grace < 0 {
		return fmt.Errorf("timeout and grace must not be negative")
	}
	if _, err := c.GatePolicy(); err != nil {
		return err
	}
	if _, err := c.FamilyTable(); err != nil {
		return fmt.Errorf("families: %w", err)
	}
	return nil
}

// GatePolicy returns the default policy with any configured overrides.
func (c *Config) GatePolicy() (gate.Policy, error) {
	return gate.ParsePolicy(c.Policy)
}

// FamilyTable returns the default families with configured ones layered on
// top.
func (c *Config) FamilyTable() (aggregate.Families, error) {
	fam, err := aggregate.ParseFamilies(c.Families)
	if err != nil {
		return nil, err
	}
	return aggregate.DefaultFamilies().Merge(fam), nil
}

// DispatchConfig returns the dispatcher settings. Cache and logger are left
// for the caller.
func (c *Config) DispatchConfig() dispatch.Config {
	return dispatch.Config{
		MaxParallel:     c.MaxParallel,
		SessionDeadline: c.Timeout,
		Grace:           c.Grace,
	}
}
