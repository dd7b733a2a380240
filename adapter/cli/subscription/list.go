package subscription

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/application/queries"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [subscription-id]",
		Short: "Show one subscription",
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

			sub, err := app.GetSubscriptionHandler.Handle(cmd.Context(), id, app.Clock())
			if err != nil {
				return fmt.Errorf("failed to load subscription: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Subscription %s\n", sub.ID)
			printSubscription(out, sub)
			fmt.Fprintf(out, "  access: %t\n", sub.HasAccess)
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	var userID, tariff, createdFrom, createdTo string
	var statuses []string
	var daysLeftMin, daysLeftMax int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List subscriptions",
		Long: `List subscriptions with optional filtering and sorting.

Sort fields: created_at, end_date (alias days_left), price, status.

Examples:
  estatecrm subscription list --user <id>
  estatecrm subscription list --status active --status extend_pending --sort days_left --order asc`,
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			query := queries.ListSubscriptionsQuery{
				DaysLeftMin: daysLeftMin,
				DaysLeftMax: daysLeftMax,
				Now:         app.Clock(),
			}
			query.Sort, query.Page = readPage(cmd)
			if query.UserID, err = parseOptionalID("user", userID); err != nil {
				return err
			}
			if tariff != "" {
				id, err := app.ResolveTariff(ctx, tariff)
				if err != nil {
					return err
				}
				query.TariffID = &id
			}
			if query.CreatedFrom, err = parseDate("from", createdFrom); err != nil {
				return err
			}
			if query.CreatedTo, err = parseDate("to", createdTo); err != nil {
				return err
			}
			for _, s := range statuses {
				query.Statuses = append(query.Statuses, domain.Status(strings.TrimSpace(s)))
			}

			page, err := app.ListSubscriptionsHandler.Handle(ctx, query)
			if err != nil {
				return fmt.Errorf("failed to list subscriptions: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(page.Items) == 0 {
				fmt.Fprintln(out, "No subscriptions found.")
				return nil
			}
			fmt.Fprintf(out, "Subscriptions (%d-%d of %d, page %d/%d):\n",
				page.Meta.From, page.Meta.To, page.Meta.Total, page.Meta.CurrentPage, page.Meta.TotalPages)
			fmt.Fprintln(out, strings.Repeat("-", 72))
			for _, s := range page.Items {
				fmt.Fprintf(out, "%s  %-14s %8s  %-6s user=%s\n",
					s.ID, s.Status, domain.Money(s.PricePaid), s.TimeLeft, s.UserID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "filter by user id")
	cmd.Flags().StringVar(&tariff, "tariff", "", "filter by tariff id or code")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "filter by status (repeatable)")
	cmd.Flags().StringVar(&createdFrom, "from", "", "created on or after (YYYY-MM-DD)")
	cmd.Flags().StringVar(&createdTo, "to", "", "created on or before (YYYY-MM-DD)")
	cmd.Flags().IntVar(&daysLeftMin, "days-left-min", 0, "ending no sooner than N days from now")
	cmd.Flags().IntVar(&daysLeftMax, "days-left-max", 0, "ending within N days from now")
	pageFlags(cmd)
	return cmd
}
