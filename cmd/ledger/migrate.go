package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomyedwab/ledger/database"
	"github.com/tomyedwab/ledger/database/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations and show their status",
	Long: `Open the ledger database, apply any pending migrations and print
the status of every known migration. Migrations are forward-only.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		// Open runs the migrations.
		db, err := database.Open(cmd.Context(), databaseOptions(cfg, logger))
		if err != nil {
			return err
		}
		defer db.Close()

		states, err := migrations.Status(cmd.Context(), db.GetDB())
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Database: %s\n\n", db.Path())
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
		for _, s := range states {
			applied := "pending"
			if s.AppliedAt != nil {
				applied = s.AppliedAt.UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%04d\t%s\t%s\n", s.Version, s.Name, applied)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
