package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bugsage-dev/bugsage/internal/persistence"
)

func newMigrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long:  "Applies every migration file not yet recorded in schema_migrations. Safe to run multiple times.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			if dir == "" {
				dir = rt.cfg.Postgres.MigrationsDir
			}
			if err := persistence.RunMigrations(cmd.Context(), rt.pg.Pool, dir, rt.logger); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "migrations directory (defaults to POSTGRES_MIGRATIONS_DIR)")
	return cmd
}
