package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/syssam/navgen/internal/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [packages]",
		Short: "Regenerate whenever Go files change",
		Long: `Generate once, then watch the module directory and regenerate after .go
files change. Generated files are ignored, and unchanged inputs are served
from the analysis cache.

Press Ctrl+C to stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, err := a.pipeline()
			if err != nil {
				return err
			}
			if _, err := a.generate(ctx, p, args, false); err != nil {
				return err
			}
			cfg := p.Config()
			w, err := watch.New(a.cfg.Dir, func(ctx context.Context, files []string) error {
				a.log.Info("regenerating", zap.Strings("changed", files))
				_, err := a.generate(ctx, p, args, false)
				return err
			},
				watch.WithLogger(a.log),
				watch.WithIgnore("*"+cfg.NavSuffix, "*"+cfg.ProjectionSuffix),
			)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "navgen: watching %s\n", a.cfg.Dir)
			return w.Run(ctx)
		},
	}
}
