// Package config loads navgen settings from navgen.yaml, NAVGEN_*
// environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/syssam/navgen/compiler"
	"github.com/syssam/navgen/compiler/gen"
	"github.com/syssam/navgen/compiler/usage"
)

// FileName is the base name of the config file, without extension.
const FileName = "navgen"

// EnvPrefix prefixes the environment variables overriding the config.
const EnvPrefix = "NAVGEN"

// Config holds the settings of a navgen run.
type Config struct {
	// Dir is the module directory packages are loaded from.
	Dir            string   `mapstructure:"dir"`
	Patterns       []string `mapstructure:"patterns"`
	BuildTags      []string `mapstructure:"build_tags"`
	EntityPackages []string `mapstructure:"entity_packages"`
	Terminals      []string `mapstructure:"terminals"`
	MaxDepth       int      `mapstructure:"max_depth"`
	Fallback       bool     `mapstructure:"fallback"`
	Runtime        string   `mapstructure:"runtime"`
	Header         string   `mapstructure:"header"`
	Workers        int      `mapstructure:"workers"`
	CacheSize      int      `mapstructure:"cache_size"`
	// Store is the usage snapshot file, relative to Dir. Empty disables it.
	Store   string `mapstructure:"store"`
	Verbose bool   `mapstructure:"verbose"`
}

// New returns a viper instance with the defaults and environment bindings
// of navgen. Flags are bound to it by the caller.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("dir", ".")
	v.SetDefault("patterns", []string{"./..."})
	v.SetDefault("build_tags", []string{})
	v.SetDefault("entity_packages", []string{})
	v.SetDefault("terminals", []string{})
	v.SetDefault("max_depth", gen.DefaultMaxDepth)
	v.SetDefault("fallback", true)
	v.SetDefault("runtime", gen.DefaultRuntimePackage)
	v.SetDefault("header", gen.DefaultHeader)
	v.SetDefault("workers", 0)
	v.SetDefault("cache_size", compiler.DefaultCacheSize)
	v.SetDefault("store", usage.DefaultStorePath)
	v.SetDefault("verbose", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads navgen.yaml from dir, if present, and returns the merged
// settings. A missing config file is not an error.
func Load(v *viper.Viper, dir string) (*Config, error) {
	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Used returns the config file that was read, if any.
func Used(v *viper.Viper) string {
	return v.ConfigFileUsed()
}

func (c *Config) validate() error {
	var errs []error
	if c.MaxDepth < 1 {
		errs = append(errs, fmt.Errorf("max_depth must be at least 1, got %d", c.MaxDepth))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers cannot be negative, got %d", c.Workers))
	}
	if c.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("cache_size cannot be negative, got %d", c.CacheSize))
	}
	if len(c.Patterns) == 0 {
		errs = append(errs, errors.New("patterns cannot be empty"))
	}
	return errors.Join(errs...)
}

// StorePath returns the usage snapshot path, or "" when disabled.
func (c *Config) StorePath() string {
	if c.Store == "" || filepath.IsAbs(c.Store) {
		return c.Store
	}
	return filepath.Join(c.Dir, c.Store)
}

// GenOptions converts the settings to generation options.
func (c *Config) GenOptions() []gen.Option {
	opts := []gen.Option{
		gen.WithMaxDepth(c.MaxDepth),
		gen.WithFallback(c.Fallback),
		gen.WithRuntimePackage(c.Runtime),
		gen.WithHeader(c.Header),
	}
	if c.Workers > 0 {
		opts = append(opts, gen.WithWorkers(c.Workers))
	}
	return opts
}

// PipelineOptions converts the settings to pipeline options.
func (c *Config) PipelineOptions(log *zap.Logger) []compiler.Option {
	opts := []compiler.Option{
		compiler.WithLogger(log),
		compiler.WithGenOptions(c.GenOptions()...),
		compiler.WithCacheSize(c.CacheSize),
		compiler.WithEntityPackages(c.EntityPackages...),
	}
	if len(c.Terminals) > 0 {
		opts = append(opts, compiler.WithTerminals(c.Terminals...))
	}
	if p := c.StorePath(); p != "" {
		opts = append(opts, compiler.WithStore(usage.NewStore(p)))
	}
	return opts
}

// BuildFlags returns the go build flags for loading packages.
func (c *Config) BuildFlags() []string {
	if len(c.BuildTags) == 0 {
		return nil
	}
	return []string{"-tags=" + strings.Join(c.BuildTags, ",")}
}
