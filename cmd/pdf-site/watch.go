package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-render the index whenever the mirror changes",
	Long: `Watch renders the index once, then keeps running and renders again
whenever PDFs are added to or removed from the mirror directory. With
--interval it also runs a sync pass on that schedule, so new editions show
up without an external scheduler.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.finish()

		if err := a.render(); err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(cmd.Context())

		g.Go(func() error {
			return a.mirror.Watch(gctx, a.cfg.WatchDebounce, a.logger, func() {
				if err := a.render(); err != nil {
					a.logger.Error("render failed", slog.String("error", err.Error()))
				}
			})
		})

		if interval > 0 {
			g.Go(func() error {
				a.syncLoop(gctx, interval)
				return nil
			})
		}

		a.logger.Info("watching mirror",
			slog.String("dir", a.mirror.Dir()),
			slog.Duration("debounce", a.cfg.WatchDebounce),
			slog.Duration("sync_interval", interval),
		)

		if err := g.Wait(); err != nil && cmd.Context().Err() == nil {
			return err
		}

		a.logger.Info("watch stopped")

		return nil
	},
}

// syncLoop runs a sync pass immediately and then every interval until ctx
// is cancelled. A failed pass is logged and retried at the next tick.
func (a *app) syncLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := a.sync(ctx, false); err != nil && ctx.Err() == nil {
			a.logger.Error("sync failed", slog.String("error", err.Error()))
		}

		a.finish()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func init() {
	watchCmd.Flags().Duration("interval", 0, "also sync from the bucket at this interval (0 disables)")

	rootCmd.AddCommand(watchCmd)
}
