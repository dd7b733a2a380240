package subscription

import (
	"fmt"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/application/commands"
	"github.com/spf13/cobra"
)

func newActivateCmd() *cobra.Command {
	var payment, notes string
	var hours int

	cmd := &cobra.Command{
		Use:   "activate [subscription-id]",
		Short: "Activate a pending subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp()
			if err != nil {
				return err
			}
			admin, err := adminID(cmd, app)
			if err != nil {
				return err
			}
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}

			result, err := app.ActivateSubscriptionHandler.Handle(cmd.Context(), commands.ActivateSubscriptionCommand{
				SubscriptionID: id,
				AdminID:        admin,
				PaymentMethod:  payment,
				Notes:          notes,
				DurationHours:  hours,
			})
			if err != nil {
				return fmt.Errorf("failed to activate subscription: %w", err)
			}
			printResult(cmd.OutOrStdout(), "activated", result)
			return nil
		},
	}

	cmd.Flags().StringVar(&payment, "payment", "", "payment method")
	cmd.Flags().StringVar(&notes, "notes", "", "admin notes")
	cmd.Flags().IntVar(&hours, "hours", 0, "duration override in hours")
	_ = cmd.MarkFlagRequired("payment")
	return cmd
}

func newExtendCmd() *cobra.Command {
	var payment, notes, price string
	var hours int

	cmd := &cobra.Command{
		Use:   "extend [subscription-id]",
		Short: "Extend an active or extension-pending subscription",
		Long: `Extend a subscription by its tariff duration (or --hours). Time still
left on the subscription is kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp()
			if err != nil {
				return err
			}
			admin, err := adminID(cmd, app)
			if err != nil {
				return err
			}
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			newPrice, err := parsePrice(price)
			if err != nil {
				return err
			}

			result, err := app.ExtendSubscriptionHandler.Handle(cmd.Context(), commands.ExtendSubscriptionCommand{
				SubscriptionID: id,
				AdminID:        admin,
				PaymentMethod:  payment,
				NewPrice:       newPrice,
				Notes:          notes,
				DurationHours:  hours,
			})
			if err != nil {
				return fmt.Errorf("failed to extend subscription: %w", err)
			}
			printResult(cmd.OutOrStdout(), "extended", result)
			return nil
		},
	}

	cmd.Flags().StringVar(&payment, "payment", "", "payment method")
	cmd.Flags().StringVar(&price, "price", "", "new price paid")
	cmd.Flags().StringVar(&notes, "notes", "", "admin notes")
	cmd.Flags().IntVar(&hours, "hours", 0, "duration override in hours")
	_ = cmd.MarkFlagRequired("payment")
	return cmd
}

func newCancelCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel [subscription-id]",
		Short: "Cancel a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp()
			if err != nil {
				return err
			}
			admin, err := adminID(cmd, app)
			if err != nil {
				return err
			}
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}

			result, err := app.CancelSubscriptionHandler.Handle(cmd.Context(), commands.CancelSubscriptionCommand{
				SubscriptionID: id,
				ActorID:        admin,
				Reason:         reason,
			})
			if err != nil {
				return fmt.Errorf("failed to cancel subscription: %w", err)
			}
			printResult(cmd.OutOrStdout(), "cancelled", result)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "cancellation reason")
	return cmd
}

func newToggleCmd() *cobra.Command {
	var userID string
	var enabled bool

	cmd := &cobra.Command{
		Use:   "toggle [subscription-id]",
		Short: "Set a subscription's enabled flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp()
			if err != nil {
				return err
			}
			id, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			user, err := parseID("user", userID)
			if err != nil {
				return err
			}

			result, err := app.ToggleEnabledHandler.Handle(cmd.Context(), commands.ToggleEnabledCommand{
				SubscriptionID: id,
				UserID:         user,
				Enabled:        enabled,
			})
			if err != nil {
				return fmt.Errorf("failed to toggle subscription: %w", err)
			}
			verb := "disabled"
			if enabled {
				verb = "enabled"
			}
			printResult(cmd.OutOrStdout(), verb, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "owning user id")
	cmd.Flags().BoolVar(&enabled, "enabled", true, "enable (true) or disable (false)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("enabled")
	return cmd
}
