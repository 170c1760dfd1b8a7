package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"courtedge/internal/config"
	httpserver "courtedge/internal/interfaces/http"
	"courtedge/internal/models"
)

func newServeCmd(configPath *string) *cobra.Command {
	var (
		fixtureDir string
		addr       string
		interval   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve health, metrics and the latest run; rescan on an interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sys, err := build(ctx, cfg, fixtureDir)
			if err != nil {
				return err
			}
			defer sys.close()

			var archive httpserver.RunSource
			if sys.store != nil {
				archive = sys.store
			}
			srv := httpserver.NewServer(cfg.HTTP.Addr, archive)

			if interval > 0 {
				go rescanLoop(ctx, sys, srv, interval, cfg.RunTimeout)
			}
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&fixtureDir, "fixtures", "", "fixture directory (overrides config)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "rescan interval (0 = serve only)")
	return cmd
}

func rescanLoop(ctx context.Context, sys *system, srv *httpserver.Server, interval, runTimeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	run := func() {
		runCtx := ctx
		var cancel context.CancelFunc
		if runTimeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, runTimeout)
			defer cancel()
		}
		out, err := sys.app.Analyze(runCtx, models.RunInput{})
		if err != nil {
			log.Warn().Err(err).Msg("scheduled run failed")
			return
		}
		srv.Publish(out)
	}

	run()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
