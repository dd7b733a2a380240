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

// DefaultSweepBatchSize is the number of candidates loaded per query.
const DefaultSweepBatchSize = 100

// Expirer expires a single subscription.
type Expirer interface {
	Handle(ctx context.Context, cmd commands.ExpireSubscriptionCommand) (*commands.Result, error)
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	Scanned int
	Expired int
	Skipped int
	Failed  int
}

// ExpirationSweeperConfig configures the sweeper.
type ExpirationSweeperConfig struct {
	BatchSize int
}

// DefaultExpirationSweeperConfig returns the default configuration.
func DefaultExpirationSweeperConfig() ExpirationSweeperConfig {
	return ExpirationSweeperConfig{BatchSize: DefaultSweepBatchSize}
}

// ExpirationSweeper moves lapsed active subscriptions to expired.
// Each subscription is expired in its own transaction, so one failure
// never blocks the rest of the sweep.
type ExpirationSweeper struct {
	repo    domain.Repository
	expirer Expirer
	metrics observability.Metrics
	config  ExpirationSweeperConfig
	logger  *slog.Logger
}

// NewExpirationSweeper creates a new ExpirationSweeper.
func NewExpirationSweeper(
	repo domain.Repository,
	expirer Expirer,
	metrics observability.Metrics,
	config ExpirationSweeperConfig,
	logger *slog.Logger,
) *ExpirationSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultSweepBatchSize
	}
	return &ExpirationSweeper{
		repo:    repo,
		expirer: expirer,
		metrics: metrics,
		config:  config,
		logger:  logger,
	}
}

// SweepCandidates selects the subscriptions that are due for expiry at now.
func SweepCandidates(now time.Time, subs []*domain.Subscription) []*domain.Subscription {
	out := make([]*domain.Subscription, 0, len(subs))
	for _, sub := range subs {
		end := sub.EndDate()
		if sub.Status() == domain.StatusActive && end != nil && !end.After(now) {
			out = append(out, sub)
		}
	}
	return out
}

// Sweep expires every subscription due at now, each row visited once.
// Per-item failures are logged, counted and returned together once the
// sweep has finished.
func (s *ExpirationSweeper) Sweep(ctx context.Context, now time.Time) (SweepReport, error) {
	start := time.Now()
	var report SweepReport
	var result *multierror.Error

	defer func() {
		s.metrics.Timing(observability.MetricSweeperDuration, time.Since(start))
		s.metrics.Counter(observability.MetricSubscriptionsExpired, int64(report.Expired), observability.T("source", "sweeper"))
		s.metrics.Counter(observability.MetricSweeperSkipped, int64(report.Skipped))
		s.metrics.Counter(observability.MetricSweeperFailures, int64(report.Failed))
	}()

	var after *domain.SweepCursor
	for {
		due, err := s.repo.FindDueForExpiry(ctx, now, after, s.config.BatchSize)
		if err != nil {
			return report, fmt.Errorf("find due subscriptions: %w", err)
		}

		for _, sub := range SweepCandidates(now, due) {
			if err := ctx.Err(); err != nil {
				result = multierror.Append(result, err)
				return report, result.ErrorOrNil()
			}
			report.Scanned++

			res, err := s.expirer.Handle(ctx, commands.ExpireSubscriptionCommand{SubscriptionID: sub.ID(), Now: now})
			if err != nil {
				report.Failed++
				s.logger.Error("failed to expire subscription",
					"subscription_id", sub.ID(),
					"user_id", sub.UserID(),
					"error", err,
				)
				result = multierror.Append(result, fmt.Errorf("expire %s: %w", sub.ID(), err))
				continue
			}
			if res.Changed {
				report.Expired++
			} else {
				report.Skipped++
			}
		}

		// Rows that failed stay due, so paging continues past the last row seen.
		if len(due) < s.config.BatchSize {
			break
		}
		if after = domain.CursorAt(due[len(due)-1]); after == nil {
			break
		}
	}

	if report.Scanned > 0 {
		s.logger.Info("expiration sweep finished",
			"scanned", report.Scanned,
			"expired", report.Expired,
			"skipped", report.Skipped,
			"failed", report.Failed,
			"duration", time.Since(start),
		)
	}
	return report, result.ErrorOrNil()
}
