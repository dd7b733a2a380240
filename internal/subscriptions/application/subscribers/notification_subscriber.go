package subscribers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/felixgeelhaar/estatecrm/pkg/observability"
	"github.com/google/uuid"
)

// Notification is a user-facing message derived from a subscription event.
type Notification struct {
	UserID         uuid.UUID
	SubscriptionID uuid.UUID
	Kind           string
	Text           string
}

// Notifier delivers notifications to users.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the notification.
func (n *LogNotifier) Notify(_ context.Context, msg Notification) error {
	n.logger.Info("subscription notification",
		"kind", msg.Kind,
		"user_id", msg.UserID,
		"subscription_id", msg.SubscriptionID,
		"text", msg.Text,
	)
	return nil
}

// NotificationSubscriber turns subscription lifecycle events into user notifications.
type NotificationSubscriber struct {
	notifier Notifier
	metrics  observability.Metrics
	logger   *slog.Logger
}

// NewNotificationSubscriber creates a new notification subscriber.
func NewNotificationSubscriber(notifier Notifier, metrics observability.Metrics, logger *slog.Logger) *NotificationSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &NotificationSubscriber{notifier: notifier, metrics: metrics, logger: logger}
}

// RoutingKeys lists the lifecycle events that produce a notification.
func (s *NotificationSubscriber) RoutingKeys() []string {
	return []string{
		domain.RoutingKeyCreated,
		domain.RoutingKeyActivated,
		domain.RoutingKeyExtended,
		domain.RoutingKeyExtensionRequested,
		domain.RoutingKeyCancelled,
		domain.RoutingKeyExpired,
		domain.RoutingKeyExpiringSoon,
	}
}

// eventPayload holds the fields shared by subscription events.
type eventPayload struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	UserID         uuid.UUID `json:"user_id"`
	Origin         string    `json:"origin"`
	EndDate        time.Time `json:"end_date"`
	Window         string    `json:"window"`
	Reason         string    `json:"reason"`
}

// Handle processes an event.
func (s *NotificationSubscriber) Handle(ctx context.Context, event *eventbus.Envelope) error {
	s.metrics.Counter(observability.MetricEventsConsumed, 1, observability.T("routing_key", event.RoutingKey))

	var p eventPayload
	if err := json.Unmarshal(event.Payload, &p); err != nil {
		// Malformed payloads are dropped; a retry would fail the same way.
		s.logger.Error("failed to decode subscription event",
			"routing_key", event.RoutingKey,
			"event_id", event.EventID,
			"error", err,
		)
		return nil
	}

	text, ok := s.render(event.RoutingKey, p)
	if !ok {
		return nil
	}

	switch event.RoutingKey {
	case domain.RoutingKeyCreated:
		s.metrics.Counter(observability.MetricSubscriptionsCreated, 1, observability.T("origin", p.Origin))
	case domain.RoutingKeyActivated:
		s.metrics.Counter(observability.MetricSubscriptionsActivated, 1)
	}

	n := Notification{
		UserID:         p.UserID,
		SubscriptionID: p.SubscriptionID,
		Kind:           kindOf(event.RoutingKey),
		Text:           text,
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		return fmt.Errorf("notify user %s: %w", p.UserID, err)
	}
	return nil
}

func (s *NotificationSubscriber) render(routingKey string, p eventPayload) (string, bool) {
	switch routingKey {
	case domain.RoutingKeyCreated:
		if p.Origin == string(domain.ActionRequested) {
			return "Your subscription request was received and is waiting for approval.", true
		}
		return "A subscription was created for you.", true
	case domain.RoutingKeyActivated:
		return fmt.Sprintf("Your subscription is active until %s.", formatDate(p.EndDate)), true
	case domain.RoutingKeyExtended:
		return fmt.Sprintf("Your subscription was extended until %s.", formatDate(p.EndDate)), true
	case domain.RoutingKeyExtensionRequested:
		return "Your extension request was received and is waiting for approval.", true
	case domain.RoutingKeyCancelled:
		if p.Reason != "" {
			return "Your subscription was cancelled: " + p.Reason, true
		}
		return "Your subscription was cancelled.", true
	case domain.RoutingKeyExpired:
		return "Your subscription has expired. Request an extension to keep access.", true
	case domain.RoutingKeyExpiringSoon:
		return fmt.Sprintf("Your subscription ends in %s (%s).", windowLabel(p.Window), formatDate(p.EndDate)), true
	default:
		return "", false
	}
}

func kindOf(routingKey string) string {
	return strings.TrimPrefix(routingKey, "subscriptions.subscription.")
}

func windowLabel(w string) string {
	switch domain.ReminderWindow(w) {
	case domain.Reminder3Days:
		return "3 days"
	case domain.Reminder1Day:
		return "1 day"
	case domain.Reminder1Hour:
		return "1 hour"
	case domain.Reminder15Minute:
		return "15 minutes"
	default:
		return w
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format("2006-01-02 15:04 UTC")
}
