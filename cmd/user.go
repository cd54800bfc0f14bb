package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"p9e.in/siteprogress/models"
)

func userCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(userAddCommand(a), userListCommand(a))
	return cmd
}

func userAddCommand(a *app) *cobra.Command {
	var password, role string
	cmd := &cobra.Command{
		Use:   "add USERNAME",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, st, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeDB(db)

			u, err := st.CreateUser(cmd.Context(), args[0], password, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n", u.Role, u.Username, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "Login password (required)")
	cmd.Flags().StringVar(&role, "role", models.RoleEngineer, "Role: admin, engineer or viewer")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func userListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, st, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeDB(db)

			users, err := st.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUSERNAME\tROLE")
			for _, u := range users {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", u.ID, u.Username, u.Role)
			}
			return tw.Flush()
		},
	}
}
