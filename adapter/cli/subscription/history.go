package subscription

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var subscriptionID, userID, from, to string
	var actions []string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the subscription audit history",
		Long: `Show recorded lifecycle changes, newest first by default.

Sort fields: action_date, price, action.

Examples:
  estatecrm subscription history --user <id>
  estatecrm subscription history --action activated --action extended --from 2024-01-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp()
			if err != nil {
				return err
			}

			var filter domain.HistoryFilter
			filter.Sort, filter.Page = readPage(cmd)
			if filter.SubscriptionID, err = parseOptionalID("subscription", subscriptionID); err != nil {
				return err
			}
			if filter.UserID, err = parseOptionalID("user", userID); err != nil {
				return err
			}
			if filter.From, err = parseDate("from", from); err != nil {
				return err
			}
			if filter.To, err = parseDate("to", to); err != nil {
				return err
			}
			for _, a := range actions {
				filter.Actions = append(filter.Actions, domain.Action(strings.TrimSpace(a)))
			}

			page, err := app.AuditLog.ListHistory(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("failed to list history: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(page.Items) == 0 {
				fmt.Fprintln(out, "No history found.")
				return nil
			}
			fmt.Fprintf(out, "History (%d of %d):\n", len(page.Items), page.Meta.Total)
			for _, e := range page.Items {
				fmt.Fprintf(out, "%s  %-16s %s -> %s  %s / %s / %s  %s\n",
					e.ActionDate.Format("2006-01-02 15:04"), e.Action, e.OldStatus, e.NewStatus,
					e.TariffName, e.CategoryName, e.LocationName, domain.Money(e.PricePaid))
				if e.Notes != "" {
					fmt.Fprintf(out, "    %s\n", e.Notes)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&subscriptionID, "subscription", "", "filter by subscription id")
	cmd.Flags().StringVar(&userID, "user", "", "filter by user id")
	cmd.Flags().StringSliceVar(&actions, "action", nil, "filter by action (repeatable)")
	cmd.Flags().StringVar(&from, "from", "", "on or after (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "on or before (YYYY-MM-DD)")
	pageFlags(cmd)
	return cmd
}
