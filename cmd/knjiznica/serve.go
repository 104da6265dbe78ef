package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/knjiznica/internal/api"
	"github.com/erazemk/knjiznica/internal/config"
	"github.com/erazemk/knjiznica/internal/library"
	"github.com/erazemk/knjiznica/internal/metrics"
)

// viewRefreshInterval bounds how stale the overdue gauges can get without
// any write.
const viewRefreshInterval = 15 * time.Minute

func newServeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&cfg.Address, "addr", "a", cfg.Address, "listen address (env KNJIZNICA_ADDR)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	m := metrics.New()
	lib, database, err := openLibrary(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer database.Close()

	router := api.NewRouter(lib, api.Limits{
		MaxImportBytes: cfg.MaxImportBytes,
		MaxCoverBytes:  cfg.MaxCoverBytes,
	}, m.Handler())

	server := &http.Server{
		Addr:              cfg.Address,
		Handler:           api.LoggingMiddleware(router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go refreshPeriodically(ctx, lib)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server started", "addr", cfg.Address)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}

	slog.Info("server stopped, closing database")
	return nil
}

// refreshPeriodically reloads the view so status gauges follow the calendar.
func refreshPeriodically(ctx context.Context, lib *library.Manager) {
	ticker := time.NewTicker(viewRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lib.Refresh(ctx); err != nil {
				slog.Error("periodic refresh failed", "error", err)
			}
		}
	}
}
