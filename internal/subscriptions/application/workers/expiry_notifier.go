package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/application/commands"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/felixgeelhaar/estatecrm/pkg/observability"
	"github.com/hashicorp/go-multierror"
)

// DefaultNotifyHorizon covers the widest reminder window.
const DefaultNotifyHorizon = 72 * time.Hour

// Reminder records a due reminder on one subscription.
type Reminder interface {
	Handle(ctx context.Context, cmd commands.RecordReminderCommand) (commands.ReminderResult, error)
}

// NotifyReport summarizes one notifier pass.
type NotifyReport struct {
	Scanned  int
	Reminded int
	Failed   int
}

// ExpiryNotifierConfig configures the notifier.
type ExpiryNotifierConfig struct {
	Horizon   time.Duration
	BatchSize int
}

// DefaultExpiryNotifierConfig returns the default configuration.
func DefaultExpiryNotifierConfig() ExpiryNotifierConfig {
	return ExpiryNotifierConfig{
		Horizon:   DefaultNotifyHorizon,
		BatchSize: DefaultSweepBatchSize,
	}
}

// ExpiryNotifier emits expiring-soon events for subscriptions about to lapse.
type ExpiryNotifier struct {
	repo     domain.Repository
	reminder Reminder
	metrics  observability.Metrics
	config   ExpiryNotifierConfig
	logger   *slog.Logger
}

// NewExpiryNotifier creates a new ExpiryNotifier.
func NewExpiryNotifier(
	repo domain.Repository,
	reminder Reminder,
	metrics observability.Metrics,
	config ExpiryNotifierConfig,
	logger *slog.Logger,
) *ExpiryNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if config.Horizon <= 0 {
		config.Horizon = DefaultNotifyHorizon
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultSweepBatchSize
	}
	return &ExpiryNotifier{
		repo:     repo,
		reminder: reminder,
		metrics:  metrics,
		config:   config,
		logger:   logger,
	}
}

// Notify records every reminder that is due at now.
func (n *ExpiryNotifier) Notify(ctx context.Context, now time.Time) (NotifyReport, error) {
	var report NotifyReport

	subs, err := n.repo.FindEndingBetween(ctx, now, now.Add(n.config.Horizon), n.config.BatchSize)
	if err != nil {
		return report, fmt.Errorf("find expiring subscriptions: %w", err)
	}

	var result *multierror.Error
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			result = multierror.Append(result, err)
			break
		}
		report.Scanned++

		res, err := n.reminder.Handle(ctx, commands.RecordReminderCommand{SubscriptionID: sub.ID(), Now: now})
		if err != nil {
			report.Failed++
			n.logger.Warn("failed to record reminder", "subscription_id", sub.ID(), "error", err)
			result = multierror.Append(result, fmt.Errorf("remind %s: %w", sub.ID(), err))
			continue
		}
		if res.Reminded {
			report.Reminded++
			n.metrics.Counter(observability.MetricSubscriptionsReminded, 1, observability.T("window", string(res.Window)))
		}
	}

	if report.Reminded > 0 {
		n.logger.Info("expiry reminders recorded", "reminded", report.Reminded, "scanned", report.Scanned)
	}
	return report, result.ErrorOrNil()
}
