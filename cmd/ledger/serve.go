package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomyedwab/ledger/accounts"
	"github.com/tomyedwab/ledger/audit"
	"github.com/tomyedwab/ledger/commands"
	"github.com/tomyedwab/ledger/config"
	"github.com/tomyedwab/ledger/database"
	"github.com/tomyedwab/ledger/host"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve front-end commands over stdin/stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	logger.Info("Starting ledger backend", "data_dir", cfg.DataDir)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger, os.Stdin, os.Stdout)
}

// serve runs the backend until in is exhausted or ctx is cancelled.
// Cancellation is a normal shutdown and returns nil.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, in io.Reader, out io.Writer) error {
	manager := database.NewManager(databaseOptions(cfg, logger))
	defer manager.Close()

	// Initialization must not block startup. A failure closes Ready, Serve
	// returns the error and main exits non-zero.
	manager.Start(ctx, func(err error) {
		logger.Error("Database initialization failed", "error", err)
	})

	h := host.New(in, out, logger)
	err := h.Serve(ctx, manager.Ready(), func() (host.Dispatcher, error) {
		if err := manager.Err(); err != nil {
			return nil, err
		}
		db := manager.Database()
		logger.Info("Database ready", "path", db.Path())

		auditLogger := audit.NewLogger(db.GetDB())
		if cfg.AuditRetention > 0 {
			removed, err := auditLogger.DeleteOldEvents(ctx, cfg.AuditRetention)
			if err != nil {
				logger.Warn("Failed to prune audit events", "error", err)
			} else if removed > 0 {
				logger.Info("Pruned audit events", "removed", removed)
			}
		}

		registry := commands.NewRegistry(logger)
		commands.RegisterAccounts(registry, accounts.NewRepository(db, auditLogger, logger), auditLogger)
		logger.Info("Commands registered", "commands", registry.Names())
		return registry, nil
	})
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		logger.Info("Shutting down")
		return nil
	}
	return err
}
