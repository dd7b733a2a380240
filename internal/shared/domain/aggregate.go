package domain

import (
	"time"

	"github.com/google/uuid"
)

// AggregateRoot is the consistency boundary that repositories load and save.
type AggregateRoot interface {
	Entity
	DomainEvents() []DomainEvent
	ClearDomainEvents()
	Version() int
}

// BaseAggregateRoot tracks pending events and the persisted version used for
// optimistic locking. Version 0 means the aggregate has never been stored.
type BaseAggregateRoot struct {
	BaseEntity
	pending []DomainEvent
	version int
}

// NewBaseAggregateRoot creates an unsaved aggregate stamped at now.
func NewBaseAggregateRoot(id uuid.UUID, now time.Time) BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity(id, now)}
}

// RehydrateBaseAggregateRoot recreates an aggregate loaded at version.
func RehydrateBaseAggregateRoot(entity BaseEntity, version int) BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: entity, version: version}
}

// DomainEvents returns the events recorded since the last save.
func (a *BaseAggregateRoot) DomainEvents() []DomainEvent {
	return a.pending
}

// ClearDomainEvents drops recorded events once they are in the outbox.
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.pending = nil
}

// Record appends an event and touches the aggregate at the event time.
func (a *BaseAggregateRoot) Record(event DomainEvent) {
	a.pending = append(a.pending, event)
	a.Touch(event.OccurredAt())
}

func (a *BaseAggregateRoot) Version() int { return a.version }

// IsNew reports whether the aggregate has never been persisted.
func (a *BaseAggregateRoot) IsNew() bool { return a.version == 0 }

// MarkPersisted advances the version after a successful insert or
// version-checked update.
func (a *BaseAggregateRoot) MarkPersisted() {
	a.version++
}
