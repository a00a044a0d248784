// Command navgen generates navigation builders, shapes and projections for
// the entity structs of a Go module, driven by the navigation chains its
// code executes.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/syssam/navgen/internal/config"
)

var (
	// Version information, set at build time.
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is the state shared by the subcommands of one invocation.
type app struct {
	v      *viper.Viper
	out    io.Writer
	errOut io.Writer
	cfg    *config.Config
	log    *zap.Logger
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{v: config.New(), out: out, errOut: errOut}
	root := &cobra.Command{
		Use:   "navgen",
		Short: "Usage-driven navigation code generation for Go entities",
		Long: `navgen discovers the relationship paths your code navigates, such as

  shop.QueryOrder(src).WithCustomer(...).WithLines().All(ctx)

and generates, next to each entity, the builders and shape types those paths
need, plus projection functions for structs marked //navgen:projection.
Entities without observed usage get every two-level path.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.String("dir", ".", "module directory to load packages from")
	flags.StringSlice("tags", nil, "build tags used when loading packages")
	flags.StringSlice("entity-pkg", nil, "import paths whose exported structs are all entities")
	flags.StringSlice("terminal", nil, "method names ending a navigation chain (default All, First, Only and variants)")
	flags.Int("max-depth", 2, "maximum relationship path length")
	flags.Bool("fallback", true, "generate every two-level path for entities without observed usage")
	flags.String("store", "", "usage snapshot file, relative to --dir (default .navgen/usage.msgpack)")
	flags.Int("workers", 0, "parallel workers (default GOMAXPROCS)")
	flags.BoolP("verbose", "v", false, "log pipeline stages")
	for key, flag := range map[string]string{
		"dir":             "dir",
		"build_tags":      "tags",
		"entity_packages": "entity-pkg",
		"terminals":       "terminal",
		"max_depth":       "max-depth",
		"fallback":        "fallback",
		"store":           "store",
		"workers":         "workers",
		"verbose":         "verbose",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		newGenerateCmd(a),
		newUsageCmd(a),
		newWatchCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads the configuration and builds the logger.
func (a *app) setup() error {
	dir := a.v.GetString("dir")
	cfg, err := config.Load(a.v, dir)
	if err != nil {
		return err
	}
	a.cfg = cfg
	log, err := newLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.log = log.With(zap.String("run", uuid.NewString()))
	if used := config.Used(a.v); used != "" {
		a.log.Debug("config loaded", zap.String("file", used))
	}
	return nil
}

// newLogger returns a development logger when verbose, otherwise a
// production logger reporting warnings and errors only.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "navgen version: %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Git commit: %s\n", GitCommit)
		},
	}
}
