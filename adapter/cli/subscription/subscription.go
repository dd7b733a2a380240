package subscription

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/felixgeelhaar/estatecrm/adapter/cli"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/application/commands"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/application/queries"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/felixgeelhaar/estatecrm/pkg/observability"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Cmd is the subscription command group
var Cmd = NewCmd()

// NewCmd builds the subscription command group with fresh flag state.
func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subscription",
		Short:   "Manage access subscriptions",
		Long:    `Create, activate, extend, cancel and inspect user subscriptions.`,
		Aliases: []string{"sub"},
	}
	cmd.PersistentFlags().String("admin", "", "acting admin id (defaults to ESTATECRM_ADMIN_ID)")

	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newRequestCmd())
	cmd.AddCommand(newActivateCmd())
	cmd.AddCommand(newExtendCmd())
	cmd.AddCommand(newCancelCmd())
	cmd.AddCommand(newToggleCmd())
	cmd.AddCommand(newChangeTariffCmd())
	cmd.AddCommand(newRequestExtensionCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newAccessCmd())
	cmd.AddCommand(newSweepCmd())
	cmd.AddCommand(newTariffsCmd())
	return cmd
}

func requireApp() (*cli.App, error) {
	app := cli.GetApp()
	if app == nil {
		return nil, fmt.Errorf("application not initialized - database connection required")
	}
	return app, nil
}

// adminID prefers --admin over the configured admin and tags the command
// context with the acting admin.
func adminID(cmd *cobra.Command, app *cli.App) (uuid.UUID, error) {
	id := app.AdminID
	if raw, _ := cmd.Flags().GetString("admin"); raw != "" {
		parsed, err := parseID("admin", raw)
		if err != nil {
			return uuid.Nil, err
		}
		id = parsed
	}
	if id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("admin id required: set ESTATECRM_ADMIN_ID or pass --admin")
	}
	cmd.SetContext(observability.WithActor(cmd.Context(), id.String()))
	return id, nil
}

func parseID(name, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --%s %q: %w", name, raw, err)
	}
	return id, nil
}

func parseOptionalID(name, raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := parseID(name, raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parsePrice(raw string) (*domain.Money, error) {
	if raw == "" {
		return nil, nil
	}
	m, err := domain.ParseMoney(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --price: %w", err)
	}
	return &m, nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339.
func parseDate(name, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s format, use YYYY-MM-DD: %w", name, err)
	}
	return &t, nil
}

func pageFlags(cmd *cobra.Command) {
	cmd.Flags().String("sort", "", "sort field")
	cmd.Flags().String("order", "desc", "sort order (asc, desc)")
	cmd.Flags().Int("page", 1, "page number")
	cmd.Flags().Int("per-page", domain.DefaultPerPage, "items per page")
}

func readPage(cmd *cobra.Command) (domain.Sort, domain.Page) {
	field, _ := cmd.Flags().GetString("sort")
	order, _ := cmd.Flags().GetString("order")
	number, _ := cmd.Flags().GetInt("page")
	perPage, _ := cmd.Flags().GetInt("per-page")
	return domain.Sort{Field: field, Direction: domain.SortDirection(order)},
		domain.Page{Number: number, PerPage: perPage}
}

func printResult(w io.Writer, verb string, res *commands.Result) {
	if !res.Changed {
		fmt.Fprintf(w, "Subscription %s unchanged\n", res.Subscription.ID)
	} else {
		fmt.Fprintf(w, "Subscription %s %s\n", res.Subscription.ID, verb)
	}
	printSubscription(w, res.Subscription)
}

func printSubscription(w io.Writer, s queries.SubscriptionDTO) {
	fmt.Fprintf(w, "  status: %s\n", s.Status)
	fmt.Fprintf(w, "  enabled: %t\n", s.Enabled)
	fmt.Fprintf(w, "  user: %s\n", s.UserID)
	fmt.Fprintf(w, "  tariff: %s\n", s.TariffID)
	fmt.Fprintf(w, "  price: %s\n", domain.Money(s.PricePaid))
	if s.EndDate != nil {
		fmt.Fprintf(w, "  ends: %s (%s left)\n", s.EndDate.Format("2006-01-02 15:04"), s.TimeLeft)
	}
	if s.RequestedTariffID != nil {
		fmt.Fprintf(w, "  requested tariff: %s\n", *s.RequestedTariffID)
	}
	if s.AdminNotes != "" {
		fmt.Fprintf(w, "  notes: %s\n", s.AdminNotes)
	}
}
