package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tomyedwab/ledger/config"
	"github.com/tomyedwab/ledger/database"
)

var (
	// Global flags
	dataDir  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Ledger backend",
	Long: `Backend process for the ledger desktop application.

Without a subcommand it runs "serve": the database is opened in the
background and commands from the front-end are read from stdin, one JSON
object per line, with responses written to stdout.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory holding the ledger database (default ~/"+config.AppDirName+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
}

// loadConfig applies command-line flags on top of config.Load.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, cfg.Validate()
}

// newLogger writes JSON to stderr; stdout belongs to the command channel.
func newLogger(cfg *config.Config) *slog.Logger {
	level, err := cfg.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func databaseOptions(cfg *config.Config, logger *slog.Logger) database.Options {
	return database.Options{
		Path:         cfg.DatabasePath(),
		MaxOpenConns: cfg.MaxOpenConns,
		BusyTimeout:  cfg.BusyTimeout,
		Logger:       logger,
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
