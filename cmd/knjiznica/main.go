// Command knjiznica manages a library catalog: it serves the HTTP API and
// offers the same operations as subcommands.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/erazemk/knjiznica/internal/config"
	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/library"
	"github.com/erazemk/knjiznica/internal/metrics"
	"github.com/erazemk/knjiznica/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand(config.Load())
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "knjiznica: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(cfg *config.Config) *cobra.Command {
	var verbose bool
	var closeLog func()

	cmd := &cobra.Command{
		Use:   "knjiznica",
		Short: "Library catalog and lending",
		Long: `knjiznica keeps a catalog of books in a SQLite database, tracks loans and
overdue returns, and imports or exports the whole catalog as JSON or CSV.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if verbose || cmd.Name() == "serve" {
				level = slog.LevelInfo
			}
			cleanup, err := setupLogger(cfg.LogPath, level)
			if err != nil {
				return err
			}
			closeLog = cleanup
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if closeLog != nil {
				closeLog()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&cfg.DBPath, "db", "d", cfg.DBPath, "SQLite database path (env KNJIZNICA_DB)")
	flags.StringVarP(&cfg.LogPath, "log", "l", cfg.LogPath, "log file path (env KNJIZNICA_LOG)")
	flags.StringVar(&cfg.DatabaseName, "name", cfg.DatabaseName, "database name written into exports (env KNJIZNICA_NAME)")
	flags.BoolVar(&cfg.Seed, "seed", cfg.Seed, "seed the sample catalog when creating a new database (env KNJIZNICA_SEED)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log informational messages")

	cmd.AddCommand(
		newServeCmd(cfg),
		newListCmd(cfg),
		newAddCmd(cfg),
		newLendCmd(cfg),
		newReturnCmd(cfg),
		newDeleteCmd(cfg),
		newStatsCmd(cfg),
		newExportCmd(cfg),
		newImportCmd(cfg),
	)
	return cmd
}

// openLibrary opens the database, creating and seeding it on first run, and
// loads the catalog view. The caller closes the returned database.
func openLibrary(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*library.Manager, *sql.DB, error) {
	_, statErr := os.Stat(cfg.DBPath)
	fresh := errors.Is(statErr, os.ErrNotExist)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}

	if err := db.EnsureSchema(database); err != nil {
		database.Close()
		return nil, nil, err
	}

	if fresh && cfg.Seed {
		n, err := store.SeedBooks(ctx, database, store.DefaultBooks)
		if err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("seeding catalog: %w", err)
		}
		slog.Info("database created", "path", cfg.DBPath, "seeded", n)
	}

	opts := []library.Option{library.WithDatabaseName(cfg.DatabaseName)}
	if m != nil {
		opts = append(opts, library.WithMetrics(m))
	}

	lib, err := library.New(ctx, database, opts...)
	if err != nil {
		database.Close()
		return nil, nil, err
	}

	slog.Info("database ready", "path", cfg.DBPath, "books", len(lib.View()))
	return lib, database, nil
}
