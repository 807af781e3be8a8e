package main

import (
	"errors"

	"github.com/behaviorschool/ceu-api/internal/platform/postgres"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down|status|version|reset]",
	Short: "Apply or inspect database migrations",
	Long: `Runs a goose command against the configured database using the
migrations embedded in the binary. Defaults to "up".`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{postgres.MigrateUp, postgres.MigrateDown, postgres.MigrateStatus, postgres.MigrateVersion, postgres.MigrateReset},
	RunE:      runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	command := postgres.MigrateUp
	if len(args) > 0 {
		command = args[0]
	}

	return withBackend(cmd.Context(), func(b *backend) error {
		if b.migrate == nil {
			return errors.New("migrations are not available for this backend")
		}
		if err := b.migrate(cmd.Context(), command); err != nil {
			return err
		}
		cmd.Printf("Migration %s completed.\n", command)
		return nil
	})
}
