package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/syssam/navgen/compiler"
	"github.com/syssam/navgen/compiler/diag"
	"github.com/syssam/navgen/compiler/gen"
	"github.com/syssam/navgen/compiler/load"
)

func newGenerateCmd(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "generate [packages]",
		Short: "Generate navigation and projection files",
		Long: `Load the packages matching the patterns (default ./...), discover the
navigation chains they execute and write <entity>_nav.go and
<companion>_projection.go files next to the declarations.

Examples:
  # Generate for the whole module
  navgen generate

  # Only the shop and api packages, printing what would be written
  navgen generate ./shop/... ./api/... --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline()
			if err != nil {
				return err
			}
			_, err = a.generate(cmd.Context(), p, args, dryRun)
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list the files that would be written without writing them")
	return cmd
}

// pipeline builds the pipeline for the loaded configuration.
func (a *app) pipeline() (*compiler.Pipeline, error) {
	return compiler.New(a.cfg.PipelineOptions(a.log)...)
}

// snapshot loads the packages matching patterns, or the configured ones.
func (a *app) snapshot(ctx context.Context, patterns []string) (*load.Snapshot, error) {
	if len(patterns) == 0 {
		patterns = a.cfg.Patterns
	}
	start := time.Now()
	snap, err := load.Load(ctx, a.cfg.Dir, a.cfg.BuildFlags(), patterns...)
	if err != nil {
		return nil, err
	}
	a.log.Debug("packages loaded",
		zap.Strings("patterns", patterns),
		zap.Int("files", len(snap.Files())),
		zap.Int("errors", len(snap.Errors)),
		zap.Duration("took", time.Since(start)))
	return snap, nil
}

// generate runs one generation and writes its files.
func (a *app) generate(ctx context.Context, p *compiler.Pipeline, patterns []string, dryRun bool) (*compiler.Result, error) {
	snap, err := a.snapshot(ctx, patterns)
	if err != nil {
		return nil, err
	}
	res, err := p.Run(ctx, snap)
	if err != nil {
		return nil, err
	}
	if err := diag.Fprint(a.errOut, res.Diagnostics); err != nil {
		return nil, err
	}

	files := res.Generation.Files
	if dryRun {
		for _, f := range files {
			fmt.Fprintln(a.out, a.rel(f.Path()))
		}
		return res, nil
	}
	w := gen.NewWriter().WithWorkers(p.Config().Workers)
	if err := w.Write(ctx, files); err != nil {
		return nil, err
	}
	m := w.Metrics()
	fmt.Fprintf(a.out, "navgen: %d file(s) written, %d unchanged; %s\n",
		m.FilesWritten, m.FilesUnchanged, diag.Summary(res.Diagnostics))
	a.log.Debug("files written",
		zap.Int("written", m.FilesWritten),
		zap.Int("unchanged", m.FilesUnchanged),
		zap.Int64("bytes", m.TotalBytes),
		zap.Bool("cache_hit", res.CacheHit))
	return res, nil
}

// rel returns path relative to the module directory when possible.
func (a *app) rel(path string) string {
	dir, err := filepath.Abs(a.cfg.Dir)
	if err != nil {
		return path
	}
	if r, err := filepath.Rel(dir, path); err == nil {
		return r
	}
	return path
}
