package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one lifecycle and compliance sweep",
	Long: `Begins approved events whose start date has passed, completes events
whose end date has passed and marks providers with an expired approval as
lapsed. The server runs the same sweep on a schedule.`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	return withBackend(cmd.Context(), func(b *backend) error {
		if err := b.sweeper.Sweep(cmd.Context()); err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}
		cmd.Println("Sweep completed.")
		return nil
	})
}
