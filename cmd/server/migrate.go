package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newMigrateCmd applies pending migrations and exits. serve does the same on start-up.
func newMigrateCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), f)
			if err != nil {
				return err
			}
			defer a.close()
			fmt.Fprintf(cmd.OutOrStdout(), "database %s is up to date\n", a.cfg.Database.Driver)
			return nil
		},
	}
}
