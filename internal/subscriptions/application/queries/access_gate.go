package queries

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// AccessGate answers whether a user may use paid features.
// Answers are computed from stored rows on every call; the expiration sweeper
// may lag, so the end date is always compared against now.
type AccessGate struct {
	repo  domain.Repository
	roles domain.RoleResolver
}

// NewAccessGate creates an AccessGate. roles may be nil when no administrators exist.
func NewAccessGate(repo domain.Repository, roles domain.RoleResolver) *AccessGate {
	return &AccessGate{repo: repo, roles: roles}
}

// HasAccess reports whether the user holds any subscription granting access at now.
// Administrators always have access.
func (g *AccessGate) HasAccess(ctx context.Context, userID uuid.UUID, now time.Time) (bool, error) {
	return g.check(ctx, userID, nil, now)
}

// HasScopeAccess reports whether the user may access one category and location.
func (g *AccessGate) HasScopeAccess(ctx context.Context, userID uuid.UUID, scope domain.Scope, now time.Time) (bool, error) {
	return g.check(ctx, userID, &scope, now)
}

func (g *AccessGate) check(ctx context.Context, userID uuid.UUID, scope *domain.Scope, now time.Time) (bool, error) {
	if g.roles != nil {
		admin, err := g.roles.IsAdmin(ctx, userID)
		if err != nil {
			return false, fmt.Errorf("resolve role: %w", err)
		}
		if admin {
			return true, nil
		}
	}
	ok, err := g.repo.HasAccess(ctx, userID, scope, now)
	if err != nil {
		return false, fmt.Errorf("check access: %w", err)
	}
	return ok, nil
}
