package domain

import (
	"fmt"
	"strings"
	"time"

	sharedDomain "github.com/felixgeelhaar/estatecrm/internal/shared/domain"
	"github.com/google/uuid"
)

// Default history notes.
const (
	NoteCancelled        = "Cancelled by user or administrator"
	NoteExpired          = "Subscription expired automatically"
	NoteDemoReplaced     = "Cancelled automatically on premium activation"
	NoteDemoUpgraded     = "Cancelled automatically on upgrade to a paid tariff"
	NoteDemoActivated    = "Demo subscription activated automatically"
	notesSeparator       = "; "
	defaultPaymentMethod = "manual"
)

// Change describes the audit entry produced by a successful transition.
type Change struct {
	Action    Action
	Notes     string
	PricePaid Money
	// TariffID overrides the tariff named in the history entry.
	TariffID  *uuid.UUID
}

// Subscription is one user's access to a (category, location) scope.
type Subscription struct {
	sharedDomain.BaseAggregateRoot
	userID            uuid.UUID
	tariffID          uuid.UUID
	scope             Scope
	pricePaid         Money
	startDate         *time.Time
	endDate           *time.Time
	status            Status
	enabled           bool
	paymentMethod     string
	adminNotes        string
	approvedBy        *uuid.UUID
	approvedAt        *time.Time
	requestedTariffID *uuid.UUID
	reminders         map[ReminderWindow]time.Time
}

// NewSubscriptionParams holds the data for a new pending subscription.
type NewSubscriptionParams struct {
	UserID   uuid.UUID
	TariffID uuid.UUID
	Scope    Scope
	Price    Money
	// Origin is ActionCreated for admin creation or ActionRequested for a user request.
	Origin Action
	Notes  string
}

// NewSubscription creates a subscription in pending status.
func NewSubscription(p NewSubscriptionParams, now time.Time) (*Subscription, Change, error) {
	if p.Price.IsNegative() {
		return nil, Change{}, ErrInvalidPrice
	}
	origin := p.Origin
	if origin != ActionRequested {
		origin = ActionCreated
	}

	sub := &Subscription{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(uuid.Nil, now),
		userID:            p.UserID,
		tariffID:          p.TariffID,
		scope:             p.Scope,
		pricePaid:         p.Price,
		status:            StatusPending,
		adminNotes:        strings.TrimSpace(p.Notes),
		reminders:         make(map[ReminderWindow]time.Time),
	}

	notes := "Subscription created by administrator"
	if origin == ActionRequested {
		notes = "Subscription requested by user"
	}
	change := Change{
		Action:    origin,
		Notes:     appendNote(notes, strings.TrimSpace(p.Notes)),
		PricePaid: sub.pricePaid,
	}

	sub.Record(NewSubscriptionCreated(sub, origin, now))
	return sub, change, nil
}

// SubscriptionState is the persisted form of a subscription.
type SubscriptionState struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	TariffID          uuid.UUID
	CategoryID        uuid.UUID
	LocationID        uuid.UUID
	PricePaid         Money
	StartDate         *time.Time
	EndDate           *time.Time
	Status            Status
	Enabled           bool
	PaymentMethod     string
	AdminNotes        string
	ApprovedBy        *uuid.UUID
	ApprovedAt        *time.Time
	RequestedTariffID *uuid.UUID
	Reminders         map[ReminderWindow]time.Time
	Version           int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RehydrateSubscription recreates a subscription from persisted state.
func RehydrateSubscription(s SubscriptionState) *Subscription {
	reminders := make(map[ReminderWindow]time.Time, len(s.Reminders))
	for w, at := range s.Reminders {
		reminders[w] = at
	}
	baseEntity := sharedDomain.RehydrateBaseEntity(s.ID, s.CreatedAt, s.UpdatedAt)
	return &Subscription{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(baseEntity, s.Version),
		userID:            s.UserID,
		tariffID:          s.TariffID,
		scope:             Scope{CategoryID: s.CategoryID, LocationID: s.LocationID},
		pricePaid:         s.PricePaid,
		startDate:         s.StartDate,
		endDate:           s.EndDate,
		status:            s.Status,
		enabled:           s.Enabled,
		paymentMethod:     s.PaymentMethod,
		adminNotes:        s.AdminNotes,
		approvedBy:        s.ApprovedBy,
		approvedAt:        s.ApprovedAt,
		requestedTariffID: s.RequestedTariffID,
		reminders:         reminders,
	}
}

// Getters
func (s *Subscription) UserID() uuid.UUID             { return s.userID }
func (s *Subscription) TariffID() uuid.UUID           { return s.tariffID }
func (s *Subscription) Scope() Scope                  { return s.scope }
func (s *Subscription) PricePaid() Money              { return s.pricePaid }
func (s *Subscription) StartDate() *time.Time         { return s.startDate }
func (s *Subscription) EndDate() *time.Time           { return s.endDate }
func (s *Subscription) Status() Status                { return s.status }
func (s *Subscription) IsEnabled() bool               { return s.enabled }
func (s *Subscription) PaymentMethod() string         { return s.paymentMethod }
func (s *Subscription) AdminNotes() string            { return s.adminNotes }
func (s *Subscription) ApprovedBy() *uuid.UUID        { return s.approvedBy }
func (s *Subscription) ApprovedAt() *time.Time        { return s.approvedAt }
func (s *Subscription) RequestedTariffID() *uuid.UUID { return s.requestedTariffID }

// ReminderSentAt returns when the reminder for a window was recorded.
func (s *Subscription) ReminderSentAt(w ReminderWindow) (time.Time, bool) {
	at, ok := s.reminders[w]
	return at, ok
}

// Reminders returns a copy of the recorded reminder stamps.
func (s *Subscription) Reminders() map[ReminderWindow]time.Time {
	out := make(map[ReminderWindow]time.Time, len(s.reminders))
	for w, at := range s.reminders {
		out[w] = at
	}
	return out
}

// ActivateParams holds the data for an activation.
type ActivateParams struct {
	AdminID       uuid.UUID
	PaymentMethod string
	Notes         string
	// DurationHours overrides TariffDurationHours when positive.
	DurationHours       int
	TariffDurationHours int
}

// Activate grants access from now for the resolved duration.
// Legal only from pending or expired.
func (s *Subscription) Activate(now time.Time, p ActivateParams) (Change, error) {
	if s.status != StatusPending && s.status != StatusExpired {
		return Change{}, invalidTransition("activate", s.status)
	}
	hours, err := resolveDuration(p.DurationHours, p.TariffDurationHours)
	if err != nil {
		return Change{}, err
	}

	start := now
	end := now.Add(time.Duration(hours) * time.Hour)
	s.startDate = &start
	s.endDate = &end
	s.status = StatusActive
	s.enabled = true
	s.approve(now, p.AdminID, p.PaymentMethod)
	s.adminNotes = appendNote(s.adminNotes, p.Notes)
	s.requestedTariffID = nil
	s.resetReminders()

	change := Change{
		Action:    ActionActivated,
		Notes:     appendNote(fmt.Sprintf("Activated by administrator for %dh, payment: %s", hours, s.paymentMethod), p.Notes),
		PricePaid: s.pricePaid,
	}
	s.Record(NewSubscriptionActivated(s, hours, now))
	return change, nil
}

// ExtendParams holds the data for an administrator extension.
type ExtendParams struct {
	AdminID       uuid.UUID
	PaymentMethod string
	NewPrice      *Money
	Notes         string
	// DurationHours overrides TariffDurationHours when positive.
	DurationHours       int
	TariffDurationHours int
}

// ExtendByAdmin adds the resolved duration on top of any remaining time.
// Legal from every status except cancelled.
func (s *Subscription) ExtendByAdmin(now time.Time, p ExtendParams) (Change, error) {
	if s.status == StatusCancelled {
		return Change{}, invalidTransition("extend", s.status)
	}
	if p.NewPrice != nil && p.NewPrice.IsNegative() {
		return Change{}, ErrInvalidPrice
	}
	hours, err := resolveDuration(p.DurationHours, p.TariffDurationHours)
	if err != nil {
		return Change{}, err
	}

	anchor := now
	if s.endDate != nil && s.endDate.After(now) {
		anchor = *s.endDate
	}
	end := anchor.Add(time.Duration(hours) * time.Hour)
	if s.startDate == nil {
		start := now
		s.startDate = &start
	}
	if !s.status.GrantsAccess() {
		s.enabled = true
	}
	s.endDate = &end
	s.status = StatusActive
	if p.NewPrice != nil {
		s.pricePaid = *p.NewPrice
	}
	s.approve(now, p.AdminID, p.PaymentMethod)
	s.adminNotes = appendNote(s.adminNotes, p.Notes)
	s.requestedTariffID = nil
	s.resetReminders()

	change := Change{
		Action:    ActionExtended,
		Notes:     appendNote(fmt.Sprintf("Extended by administrator for %dh, payment: %s", hours, s.paymentMethod), p.Notes),
		PricePaid: s.pricePaid,
	}
	s.Record(NewSubscriptionExtended(s, hours, now))
	return change, nil
}

// Cancel terminates the subscription. The end date is kept for the record.
func (s *Subscription) Cancel(now time.Time, reason string) (Change, error) {
	switch s.status {
	case StatusPending, StatusActive, StatusExtendPending:
	default:
		return Change{}, invalidTransition("cancel", s.status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = NoteCancelled
	}

	s.status = StatusCancelled

	s.Record(NewSubscriptionCancelled(s, reason, now))
	return Change{Action: ActionCancelled, Notes: reason, PricePaid: s.pricePaid}, nil
}

// Expire moves a lapsed active subscription to expired.
// An already expired subscription yields ErrNoOp; an active one that has not
// reached its end date yields ErrNotDue, which the expire handler reports as
// a skipped no-op.
func (s *Subscription) Expire(now time.Time) (Change, error) {
	if s.status == StatusExpired {
		return Change{}, ErrNoOp
	}
	if s.status != StatusActive {
		return Change{}, invalidTransition("expire", s.status)
	}
	if s.endDate == nil || s.endDate.After(now) {
		return Change{}, ErrNotDue
	}

	s.status = StatusExpired

	s.Record(NewSubscriptionExpired(s, now))
	return Change{Action: ActionExpired, Notes: NoteExpired, PricePaid: s.pricePaid}, nil
}

// ToggleEnabled pauses or resumes an active subscription.
// Setting the current value yields ErrNoOp and no audit entry.
func (s *Subscription) ToggleEnabled(now time.Time, enabled bool) (Change, error) {
	if s.status != StatusActive {
		return Change{}, invalidTransition(opToggle, s.status)
	}
	if s.enabled == enabled {
		return Change{}, ErrNoOp
	}

	s.enabled = enabled

	action, notes := ActionDisabled, "Subscription paused by user"
	if enabled {
		action, notes = ActionEnabled, "Subscription resumed by user"
	}
	s.Record(NewSubscriptionToggled(s, now))
	return Change{Action: action, Notes: notes, PricePaid: s.pricePaid}, nil
}

// TariffChangeParams holds the data for a tariff change.
type TariffChangeParams struct {
	AdminID             uuid.UUID
	TariffID            uuid.UUID
	TariffName          string
	PreviousTariffName  string
	TariffDurationHours int
	Price               Money
	PaymentMethod       string
	Notes               string
}

// UpdateTariff switches the product while preserving unused time.
// With remaining time the new end is now + new duration + remaining whole hours;
// otherwise the subscription is activated fresh with the new duration.
func (s *Subscription) UpdateTariff(now time.Time, p TariffChangeParams) (Change, error) {
	if s.status == StatusCancelled {
		return Change{}, invalidTransition("change tariff of", s.status)
	}
	if p.Price.IsNegative() {
		return Change{}, ErrInvalidPrice
	}
	if p.TariffDurationHours <= 0 {
		return Change{}, ErrInvalidDuration
	}

	remaining := 0
	if s.status.GrantsAccess() {
		remaining = s.RemainingHours(now)
	}
	total := p.TariffDurationHours + remaining
	end := now.Add(time.Duration(total) * time.Hour)

	if remaining == 0 || s.startDate == nil {
		start := now
		s.startDate = &start
		s.enabled = true
	}
	s.endDate = &end
	s.status = StatusActive
	s.tariffID = p.TariffID
	s.pricePaid = p.Price
	s.approve(now, p.AdminID, p.PaymentMethod)
	s.adminNotes = appendNote(s.adminNotes, p.Notes)
	s.requestedTariffID = nil
	s.resetReminders()

	summary := fmt.Sprintf("Tariff changed from %s to %s, %dh granted", p.PreviousTariffName, p.TariffName, p.TariffDurationHours)
	if remaining > 0 {
		summary += fmt.Sprintf(" plus %dh carried over", remaining)
	}
	s.Record(NewSubscriptionTariffChanged(s, remaining, now))
	return Change{Action: ActionTariffChanged, Notes: appendNote(summary, p.Notes), PricePaid: s.pricePaid}, nil
}

// RequestExtension marks an active subscription as awaiting an administrator extension.
// Dates and price are untouched; the requested tariff is advisory only.
func (s *Subscription) RequestExtension(now time.Time, tariffID uuid.UUID, tariffName, notes string) (Change, error) {
	if s.status != StatusActive {
		return Change{}, invalidTransition("request extension of", s.status)
	}

	requested := tariffID
	s.requestedTariffID = &requested
	s.status = StatusExtendPending

	s.Record(NewSubscriptionExtensionRequested(s, tariffID, now))
	return Change{
		Action:    ActionExtendRequested,
		Notes:     appendNote(fmt.Sprintf("Extension requested for tariff %s", tariffName), strings.TrimSpace(notes)),
		PricePaid: 0,
		TariffID:  &requested,
	}, nil
}

// MarkReminded records that the reminder for a window was sent.
func (s *Subscription) MarkReminded(now time.Time, w ReminderWindow) error {
	if _, ok := s.reminders[w]; ok {
		return ErrNoOp
	}
	if s.reminders == nil {
		s.reminders = make(map[ReminderWindow]time.Time)
	}
	s.reminders[w] = now
	s.Record(NewSubscriptionExpiringSoon(s, w, now))
	return nil
}

// RemainingHours returns the whole hours left until the end date, rounded up.
func (s *Subscription) RemainingHours(now time.Time) int {
	if s.endDate == nil || !s.endDate.After(now) {
		return 0
	}
	left := s.endDate.Sub(now)
	hours := int(left / time.Hour)
	if left%time.Hour != 0 {
		hours++
	}
	return hours
}

// HasAccessAt reports whether the subscription grants access at the given instant.
// The end date is checked independently of status since expiry may lag.
func (s *Subscription) HasAccessAt(now time.Time) bool {
	return s.status.GrantsAccess() && s.endDate != nil && !s.endDate.Before(now)
}

func (s *Subscription) approve(now time.Time, adminID uuid.UUID, paymentMethod string) {
	paymentMethod = strings.TrimSpace(paymentMethod)
	if paymentMethod != "" {
		s.paymentMethod = paymentMethod
	} else if s.paymentMethod == "" {
		s.paymentMethod = defaultPaymentMethod
	}
	if adminID == uuid.Nil {
		return
	}
	approver := adminID
	approvedAt := now
	s.approvedBy = &approver
	s.approvedAt = &approvedAt
}

func (s *Subscription) resetReminders() {
	s.reminders = make(map[ReminderWindow]time.Time)
}

func resolveDuration(override, tariffDefault int) (int, error) {
	hours := tariffDefault
	if override > 0 {
		hours = override
	}
	if hours <= 0 {
		return 0, ErrInvalidDuration
	}
	return hours, nil
}

func appendNote(existing, note string) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return existing
	}
	if existing == "" {
		return note
	}
	return existing + notesSeparator + note
}
