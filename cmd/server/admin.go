package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/soaringjerry/Canvass/internal/services"
)

// newCreateAdminCmd provisions an ADMIN account. Admins cannot be registered over HTTP.
func newCreateAdminCmd(f *rootFlags) *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), f)
			if err != nil {
				return err
			}
			defer a.close()
			// tokens are never issued here
			authSvc := services.NewAuthService(a.store, nil, 0)
			u, err := authSvc.CreateAdmin(cmd.Context(), name, email, password)
			if err != nil {
				var se *services.ServiceError
				if errors.As(err, &se) {
					return fmt.Errorf("create admin: %s", se.Message)
				}
				return err
			}
			a.log.Info("admin created", zap.String("user_id", u.ID), zap.String("email", u.Email))
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", u.Email, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
