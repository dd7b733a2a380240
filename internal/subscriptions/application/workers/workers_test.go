package workers

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/application/commands"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
)

var sweepNow = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

// fakeRepo serves the worker queries from an in-memory list of subscriptions.
type fakeRepo struct {
	domain.Repository

	mu      sync.Mutex
	subs    []*domain.Subscription
	findErr error
	calls   int
}

func (r *fakeRepo) FindDueForExpiry(_ context.Context, now time.Time, after *domain.SweepCursor, limit int) ([]*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.findErr != nil {
		return nil, r.findErr
	}
	var due []*domain.Subscription
	for _, s := range r.subs {
		if s.Status() == domain.StatusActive && !s.EndDate().After(now) {
			due = append(due, s)
		}
	}
	slices.SortFunc(due, func(a, b *domain.Subscription) int {
		if c := a.EndDate().Compare(*b.EndDate()); c != 0 {
			return c
		}
		return strings.Compare(a.ID().String(), b.ID().String())
	})

	var out []*domain.Subscription
	for _, s := range due {
		if after != nil && !pastCursor(s, after) {
			continue
		}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func pastCursor(s *domain.Subscription, after *domain.SweepCursor) bool {
	if c := s.EndDate().Compare(after.EndDate); c != 0 {
		return c > 0
	}
	return s.ID().String() > after.ID.String()
}

func (r *fakeRepo) FindEndingBetween(_ context.Context, from, to time.Time, limit int) ([]*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.findErr != nil {
		return nil, r.findErr
	}
	var out []*domain.Subscription
	for _, s := range r.subs {
		end := s.EndDate()
		if s.Status() == domain.StatusActive && end.After(from) && !end.After(to) {
			out = append(out, s)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// fakeExpirer expires subscriptions held by repo unless told to fail or skip them.
type fakeExpirer struct {
	repo *fakeRepo
	fail map[uuid.UUID]bool
	skip map[uuid.UUID]bool
	seen []uuid.UUID
}

func (e *fakeExpirer) Handle(_ context.Context, cmd commands.ExpireSubscriptionCommand) (*commands.Result, error) {
	e.seen = append(e.seen, cmd.SubscriptionID)
	if e.fail[cmd.SubscriptionID] {
		return nil, errors.New("database unavailable")
	}
	if e.skip[cmd.SubscriptionID] {
		return &commands.Result{Changed: false}, nil
	}
	sub := e.repo.byID(cmd.SubscriptionID)
	if _, err := sub.Expire(cmd.Now); err != nil {
		return nil, err
	}
	return &commands.Result{Changed: true}, nil
}

func (r *fakeRepo) byID(id uuid.UUID) *domain.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if s.ID() == id {
			return s
		}
	}
	return nil
}

func activeSub(endIn time.Duration) *domain.Subscription {
	start := sweepNow.Add(-30 * 24 * time.Hour)
	end := sweepNow.Add(endIn)
	return domain.RehydrateSubscription(domain.SubscriptionState{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		TariffID:   uuid.New(),
		CategoryID: uuid.New(),
		LocationID: uuid.New(),
		Status:     domain.StatusActive,
		Enabled:    true,
		StartDate:  &start,
		EndDate:    &end,
		Version:    1,
		CreatedAt:  start,
		UpdatedAt:  start,
	})
}
