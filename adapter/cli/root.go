package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/estatecrm/pkg/observability"
	"github.com/spf13/cobra"
)

var logger = slog.Default()

type timerKey struct{}

var rootCmd = &cobra.Command{
	Use:   "estatecrm",
	Short: "estatecrm - real-estate CRM subscription admin",
	Long: `estatecrm manages paid access subscriptions for the real-estate CRM.

Administrators create, activate, extend and cancel subscriptions,
inspect the audit history and run the expiration sweep by hand.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx = observability.WithOperation(observability.NewRequestContext(ctx, ""), cmd.CommandPath())
		timer := observability.StartTimer(cmd.CommandPath()).WithLogger(logger)
		cmd.SetContext(context.WithValue(ctx, timerKey{}, timer))
		logger.DebugContext(ctx, "command started")
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		if timer, ok := cmd.Context().Value(timerKey{}).(*observability.Timer); ok {
			timer.Stop(cmd.Context(), nil)
		}
	},
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	cmd, err := rootCmd.ExecuteContextC(ctx)
	if err != nil {
		logger.DebugContext(ctx, "command failed", "command", cmd.CommandPath(), "error", err)
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return 1
	}
	return 0
}

// AddCommand registers a command group under the root.
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// SetLogger replaces the CLI logger. A nil logger is ignored.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}
