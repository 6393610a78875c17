package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries identity and timestamps. IDs are UUIDv7 so they sort by
// creation time.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity stamps a fresh ID with CreatedAt == UpdatedAt
func NewBaseEntity() BaseEntity {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	now := time.Now().UTC()
	return BaseEntity{ID: id, CreatedAt: now, UpdatedAt: now}
}

// Touch moves UpdatedAt to now
func (e *BaseEntity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}

// DomainEvent is a fact raised by an aggregate and handled after it is saved
type DomainEvent interface {
	EventType() string
	AggregateID() uuid.UUID
	OccurredAt() time.Time
}

// EventMeta implements DomainEvent for embedding in concrete events
type EventMeta struct {
	Type        string    `json:"type"`
	AggregateOf string    `json:"aggregate_type"`
	Aggregate   uuid.UUID `json:"aggregate_id"`
	At          time.Time `json:"occurred_at"`
}

// NewEventMeta stamps an event of eventType for the aggregate id
func NewEventMeta(eventType, aggregateType string, id uuid.UUID) EventMeta {
	return EventMeta{
		Type:        eventType,
		AggregateOf: aggregateType,
		Aggregate:   id,
		At:          time.Now().UTC(),
	}
}

func (m EventMeta) EventType() string      { return m.Type }
func (m EventMeta) AggregateID() uuid.UUID { return m.Aggregate }
func (m EventMeta) OccurredAt() time.Time  { return m.At }

// BaseAggregateRoot adds an optimistic-lock version and the events raised
// since the aggregate was last saved
type BaseAggregateRoot struct {
	BaseEntity
	Version int
	pending []DomainEvent
}

// NewBaseAggregateRoot starts a new aggregate at version 1
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity(), Version: 1}
}

// Raise records ev for dispatch after the next save
func (a *BaseAggregateRoot) Raise(ev DomainEvent) {
	a.pending = append(a.pending, ev)
}

// PendingEvents returns the events raised since the last ClearEvents
func (a *BaseAggregateRoot) PendingEvents() []DomainEvent {
	return a.pending
}

// ClearEvents drops pending events once they have been handled
func (a *BaseAggregateRoot) ClearEvents() {
	a.pending = nil
}
