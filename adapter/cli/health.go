package cli

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/estatecrm/pkg/observability"
	"github.com/spf13/cobra"
)

var errUnhealthy = errors.New("service unhealthy")

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check database, cache and publisher health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := GetApp()
			if app == nil || app.Health == nil {
				return errors.New("application not initialized - database connection required")
			}

			report := app.Health.Report(cmd.Context())
			out := cmd.OutOrStdout()
			for _, name := range report.Names() {
				result := report.Checks[name]
				fmt.Fprintf(out, "%-10s %s", name, result.Status)
				if result.Message != "" {
					fmt.Fprintf(out, " (%s)", result.Message)
				}
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "%-10s %s\n", "overall", report.Status)

			if report.Status == observability.HealthStatusUnhealthy {
				return errUnhealthy
			}
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(newHealthCmd())
}
