package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"p9e.in/siteprogress/config"
)

func migrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and seed the configured admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeDB(db)

			if err := config.SeedAdmin(db, a.settings.Admin, a.log); err != nil {
				return fmt.Errorf("seed admin: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
