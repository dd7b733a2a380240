package subscription

import (
	"fmt"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/application/commands"
	"github.com/spf13/cobra"
)

func newChangeTariffCmd() *cobra.Command {
	var tariff, price, payment, notes string

	cmd := &cobra.Command{
		Use:   "change-tariff [subscription-id]",
		Short: "Move a subscription to another tariff",
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

			ctx := cmd.Context()
			c := commands.UpdateTariffCommand{
				SubscriptionID: id,
				AdminID:        admin,
				PaymentMethod:  payment,
				Notes:          notes,
			}
			if c.TariffID, err = app.ResolveTariff(ctx, tariff); err != nil {
				return err
			}
			if c.Price, err = parsePrice(price); err != nil {
				return err
			}

			result, err := app.UpdateTariffHandler.Handle(ctx, c)
			if err != nil {
				return fmt.Errorf("failed to change tariff: %w", err)
			}
			printResult(cmd.OutOrStdout(), "moved to new tariff", result)
			return nil
		},
	}

	cmd.Flags().StringVar(&tariff, "tariff", "", "new tariff id or code")
	cmd.Flags().StringVar(&price, "price", "", "price override")
	cmd.Flags().StringVar(&payment, "payment", "", "payment method")
	cmd.Flags().StringVar(&notes, "notes", "", "admin notes")
	_ = cmd.MarkFlagRequired("tariff")
	return cmd
}

func newRequestExtensionCmd() *cobra.Command {
	var userID, tariff, notes string

	cmd := &cobra.Command{
		Use:   "request-extension [subscription-id]",
		Short: "Ask for an active subscription to be extended",
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

			ctx := cmd.Context()
			c := commands.RequestExtensionCommand{SubscriptionID: id, Notes: notes}
			if c.UserID, err = parseID("user", userID); err != nil {
				return err
			}
			if c.TariffID, err = app.ResolveTariff(ctx, tariff); err != nil {
				return err
			}

			result, err := app.RequestExtensionHandler.Handle(ctx, c)
			if err != nil {
				return fmt.Errorf("failed to request extension: %w", err)
			}
			printResult(cmd.OutOrStdout(), "awaiting extension", result)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "owning user id")
	cmd.Flags().StringVar(&tariff, "tariff", "", "requested tariff id or code")
	cmd.Flags().StringVar(&notes, "notes", "", "request notes")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("tariff")
	return cmd
}

func newTariffsCmd() *cobra.Command {
	var flush bool

	cmd := &cobra.Command{
		Use:   "tariffs",
		Short: "List purchasable tariffs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if flush {
				if app.CatalogCache == nil {
					fmt.Fprintln(out, "No catalog cache configured.")
				} else if err := app.CatalogCache.Invalidate(ctx); err != nil {
					return fmt.Errorf("failed to flush catalog cache: %w", err)
				} else {
					fmt.Fprintln(out, "Catalog cache flushed.")
				}
			}

			tariffs, err := app.Catalog.ActiveTariffs(ctx)
			if err != nil {
				return fmt.Errorf("failed to list tariffs: %w", err)
			}
			for _, t := range tariffs {
				fmt.Fprintf(out, "%-12s %-20s %5dh %10s  %s\n", t.Code, t.Name, t.DurationHours, t.BasePrice, t.ID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&flush, "flush-cache", false, "drop cached catalog entries first")
	return cmd
}
