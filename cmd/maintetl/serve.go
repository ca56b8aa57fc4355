package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/maintetl/internal/pipeline"
	"github.com/JonMunkholm/maintetl/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run API and optionally re-run on a schedule",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		limiter := pipeline.NewRunLimiter(cfg.Server.RunWaitTime)
		server := web.NewServer(a.pipeline, limiter, a.metrics.Registry(), cfg.Server)

		// Background jobs stop with the command context
		jobCtx, cancelJobs := context.WithCancel(ctx)
		defer cancelJobs()
		go pipeline.StartScheduler(jobCtx, a.pipeline, limiter, cfg.Schedule.Interval)

		serveErr := make(chan error, 1)
		go func() { serveErr <- server.Start() }()

		select {
		case err := <-serveErr:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
			return err
		}
		slog.Info("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
