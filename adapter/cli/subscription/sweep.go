package subscription

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire every subscription whose end date has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp()
			if err != nil {
				return err
			}

			report, err := app.Sweeper.Sweep(cmd.Context(), app.Clock())
			fmt.Fprintf(cmd.OutOrStdout(), "Sweep finished: scanned=%d expired=%d skipped=%d failed=%d\n",
				report.Scanned, report.Expired, report.Skipped, report.Failed)
			if err != nil {
				return fmt.Errorf("sweep finished with errors: %w", err)
			}
			return nil
		},
	}
}
