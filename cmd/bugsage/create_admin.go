package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bugsage-dev/bugsage/internal/domain"
	"github.com/bugsage-dev/bugsage/internal/repository"
	"github.com/bugsage-dev/bugsage/internal/service"
)

func newCreateAdminCmd() *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			authService := service.NewAuthService(rt.cfg.Auth, service.AuthDependencies{
				UserRepo: repository.NewUserRepository(rt.pg.Pool),
				Logger:   rt.logger,
			})
			user, err := authService.Register(cmd.Context(), service.RegisterInput{
				Name:     name,
				Email:    email,
				Password: password,
				Role:     string(domain.UserRoleAdmin),
			})
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (id %d)\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "login password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
