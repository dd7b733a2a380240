package domain

import (
	"time"

	"github.com/google/uuid"
)

// Entity is a domain object with a stable identity and audit timestamps.
type Entity interface {
	ID() uuid.UUID
	CreatedAt() time.Time
	UpdatedAt() time.Time
}

// BaseEntity carries identity and timestamps. Timestamps are always supplied
// by the caller so that the domain never reads the wall clock.
type BaseEntity struct {
	id        uuid.UUID
	createdAt time.Time
	updatedAt time.Time
}

// NewBaseEntity creates an entity stamped at now. A nil id is replaced with a
// fresh random one.
func NewBaseEntity(id uuid.UUID, now time.Time) BaseEntity {
	if id == uuid.Nil {
		id = uuid.New()
	}
	now = now.UTC()
	return BaseEntity{id: id, createdAt: now, updatedAt: now}
}

// RehydrateBaseEntity recreates an entity from persisted state.
func RehydrateBaseEntity(id uuid.UUID, createdAt, updatedAt time.Time) BaseEntity {
	return BaseEntity{id: id, createdAt: createdAt, updatedAt: updatedAt}
}

func (e BaseEntity) ID() uuid.UUID        { return e.id }
func (e BaseEntity) CreatedAt() time.Time { return e.createdAt }
func (e BaseEntity) UpdatedAt() time.Time { return e.updatedAt }

// Touch moves updatedAt forward to now. Older instants are ignored.
func (e *BaseEntity) Touch(now time.Time) {
	now = now.UTC()
	if now.After(e.updatedAt) {
		e.updatedAt = now
	}
}

// SameIdentity reports whether two entities share an id.
func SameIdentity(a, b Entity) bool {
	if a == nil || b == nil {
		return false
	}
	return a.ID() == b.ID()
}
