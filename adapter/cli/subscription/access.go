package subscription

import (
	"fmt"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/spf13/cobra"
)

func newAccessCmd() *cobra.Command {
	var userID, category, location string

	cmd := &cobra.Command{
		Use:   "access",
		Short: "Check whether a user has access right now",
		Long: `Check access for a user. With --category and --location the check is
limited to that scope.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp()
			if err != nil {
				return err
			}
			user, err := parseID("user", userID)
			if err != nil {
				return err
			}
			if (category == "") != (location == "") {
				return fmt.Errorf("--category and --location must be given together")
			}

			ctx := cmd.Context()
			now := app.Clock()
			var granted bool
			if category != "" {
				var scope domain.Scope
				if scope.CategoryID, err = parseID("category", category); err != nil {
					return err
				}
				if scope.LocationID, err = parseID("location", location); err != nil {
					return err
				}
				granted, err = app.AccessGate.HasScopeAccess(ctx, user, scope, now)
			} else {
				granted, err = app.AccessGate.HasAccess(ctx, user, now)
			}
			if err != nil {
				return fmt.Errorf("failed to check access: %w", err)
			}

			if granted {
				fmt.Fprintln(cmd.OutOrStdout(), "access: granted")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "access: denied")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&category, "category", "", "category id")
	cmd.Flags().StringVar(&location, "location", "", "location id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
