package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tomyedwab/ledger/accounts"
	"github.com/tomyedwab/ledger/database"
)

var jsonOutput bool

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Inspect ledger accounts",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		db, err := database.Open(cmd.Context(), databaseOptions(cfg, logger))
		if err != nil {
			return err
		}
		defer db.Close()

		list, err := accounts.NewRepository(db, nil, logger).Fetch(cmd.Context())
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(list)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tBALANCE\tDESCRIPTION")
		for _, a := range list {
			description := "-"
			if a.Description != nil {
				description = *a.Description
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s %s\t%s\n",
				a.ID, a.Name, a.AccountType, a.BalanceDecimal().StringFixed(2), a.Currency, description)
		}
		return w.Flush()
	},
}

func init() {
	accountsListCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	accountsCmd.AddCommand(accountsListCmd)
	rootCmd.AddCommand(accountsCmd)
}
