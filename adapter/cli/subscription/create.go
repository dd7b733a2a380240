package subscription

import (
	"fmt"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/application/commands"
	"github.com/spf13/cobra"
)

func newCreateCmd() *cobra.Command {
	var (
		userID, tariff, category, location string
		activate                           bool
		payment, notes, price              string
		hours                              int
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a subscription for a user",
		Long: `Create a subscription on behalf of a user. The price comes from the
catalog unless --price is given.

Examples:
  estatecrm subscription create --user <id> --tariff premium_30 --category <id> --location <id>
  estatecrm subscription create --user <id> --tariff premium_7 --category <id> --location <id> --activate --payment cash`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp()
			if err != nil {
				return err
			}
			admin, err := adminID(cmd, app)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			c := commands.CreateSubscriptionCommand{
				AdminID:       admin,
				AutoActivate:  activate,
				PaymentMethod: payment,
				Notes:         notes,
				DurationHours: hours,
			}
			if c.UserID, err = parseID("user", userID); err != nil {
				return err
			}
			if c.CategoryID, err = parseID("category", category); err != nil {
				return err
			}
			if c.LocationID, err = parseID("location", location); err != nil {
				return err
			}
			if c.TariffID, err = app.ResolveTariff(ctx, tariff); err != nil {
				return err
			}
			if c.Price, err = parsePrice(price); err != nil {
				return err
			}

			result, err := app.CreateSubscriptionHandler.Handle(ctx, c)
			if err != nil {
				return fmt.Errorf("failed to create subscription: %w", err)
			}
			printResult(cmd.OutOrStdout(), "created", result)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&tariff, "tariff", "", "tariff id or code")
	cmd.Flags().StringVar(&category, "category", "", "category id")
	cmd.Flags().StringVar(&location, "location", "", "location id")
	cmd.Flags().BoolVar(&activate, "activate", false, "activate immediately")
	cmd.Flags().StringVar(&payment, "payment", "", "payment method")
	cmd.Flags().StringVar(&notes, "notes", "", "admin notes")
	cmd.Flags().IntVar(&hours, "hours", 0, "duration override in hours")
	cmd.Flags().StringVar(&price, "price", "", "price override, e.g. 1500.00")
	for _, name := range []string{"user", "tariff", "category", "location"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newRequestCmd() *cobra.Command {
	var userID, tariff, category, location, notes string

	cmd := &cobra.Command{
		Use:   "request",
		Short: "Request a subscription as a user",
		Long: `Record a user's subscription request. The demo tariff activates at once
when the user has not used their trial; other tariffs wait for an admin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			c := commands.RequestSubscriptionCommand{Notes: notes}
			if c.UserID, err = parseID("user", userID); err != nil {
				return err
			}
			if c.CategoryID, err = parseID("category", category); err != nil {
				return err
			}
			if c.LocationID, err = parseID("location", location); err != nil {
				return err
			}
			if c.TariffID, err = app.ResolveTariff(ctx, tariff); err != nil {
				return err
			}

			result, err := app.RequestSubscriptionHandler.Handle(ctx, c)
			if err != nil {
				return fmt.Errorf("failed to request subscription: %w", err)
			}
			printResult(cmd.OutOrStdout(), "requested", result)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&tariff, "tariff", "", "tariff id or code")
	cmd.Flags().StringVar(&category, "category", "", "category id")
	cmd.Flags().StringVar(&location, "location", "", "location id")
	cmd.Flags().StringVar(&notes, "notes", "", "request notes")
	for _, name := range []string{"user", "tariff", "category", "location"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
