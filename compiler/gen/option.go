package gen

import (
	"errors"
	"runtime"
	"strings"
)

// Defaults applied by NewConfig.
const (
	DefaultHeader         = "// Code generated by navgen. DO NOT EDIT."
	DefaultRuntimePackage = "github.com/syssam/navgen"
	DefaultMaxDepth       = 2
	DefaultNavSuffix      = "_nav.go"
	DefaultProjSuffix     = "_projection.go"
)

// Config holds the generation settings.
type Config struct {
	// Header is written at the top of every generated file.
	Header string
	// RuntimePackage is the import path of the package generated code calls
	// into for loading and descriptors.
	RuntimePackage string
	// MaxDepth bounds the length of planned paths.
	MaxDepth int
	// Fallback enables the one-level-deeper default set of shapes for
	// entities with no observed usage.
	Fallback bool
	// Workers bounds per-entity parallelism.
	Workers int
	// NavSuffix and ProjectionSuffix name the generated files.
	NavSuffix        string
	ProjectionSuffix string
}

// Option configures code generation.
type Option func(*Config) error

// WithHeader sets the file header comment.
func WithHeader(header string) Option {
	return func(c *Config) error {
		if header != "" && !strings.HasPrefix(header, "//") {
			return NewConfigError("Header", header, "header must be a line comment")
		}
		c.Header = header
		return nil
	}
}

// WithRuntimePackage sets the import path of the runtime package.
func WithRuntimePackage(pkg string) Option {
	return func(c *Config) error {
		if pkg == "" {
			return NewConfigError("RuntimePackage", nil, "runtime package cannot be empty")
		}
		c.RuntimePackage = pkg
		return nil
	}
}

// WithMaxDepth sets the maximum planned path length.
func WithMaxDepth(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return NewConfigError("MaxDepth", n, "max depth must be at least 1")
		}
		c.MaxDepth = n
		return nil
	}
}

// WithFallback toggles fallback shapes for entities without observed usage.
func WithFallback(enabled bool) Option {
	return func(c *Config) error {
		c.Fallback = enabled
		return nil
	}
}

// WithWorkers sets the number of parallel workers.
func WithWorkers(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return NewConfigError("Workers", n, "workers must be positive")
		}
		c.Workers = n
		return nil
	}
}

// WithFileSuffixes sets the suffixes of navigation and projection files.
func WithFileSuffixes(nav, projection string) Option {
	return func(c *Config) error {
		if !strings.HasSuffix(nav, ".go") || !strings.HasSuffix(projection, ".go") || nav == projection {
			return NewConfigError("FileSuffixes", nav+","+projection, "suffixes must be distinct and end in .go")
		}
		c.NavSuffix = nav
		c.ProjectionSuffix = projection
		return nil
	}
}

// Apply applies options to the config.
// It returns the first error encountered.
func (c *Config) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	return nil
}

// ApplyAll applies options and collects all errors.
// Returns a joined error if any options failed.
func (c *Config) ApplyAll(opts ...Option) error {
	var errs []error
	for _, opt := range opts {
		if err := opt(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DefaultConfig returns the configuration used when no option is given.
func DefaultConfig() *Config {
	return &Config{
		Header:           DefaultHeader,
		RuntimePackage:   DefaultRuntimePackage,
		MaxDepth:         DefaultMaxDepth,
		Fallback:         true,
		Workers:          runtime.GOMAXPROCS(0),
		NavSuffix:        DefaultNavSuffix,
		ProjectionSuffix: DefaultProjSuffix,
	}
}

// NewConfig creates a new Config from the defaults and the given options.
func NewConfig(opts ...Option) (*Config, error) {
	c := DefaultConfig()
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

// MustNewConfig creates a new Config with the given options.
// It panics if any option fails.
func MustNewConfig(opts ...Option) *Config {
	c, err := NewConfig(opts...)
	if err != nil {
		panic(err)
	}
	return c
}
