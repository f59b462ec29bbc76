// Package shared contains common domain types, errors, events, and ports
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened in the simulation.
const (
	// Mentorship events
	EventQualificationAttempted EventType = "mentorship.qualification_attempted"
	EventPractitionerPromoted   EventType = "mentorship.promoted"
	EventApprenticeAssigned     EventType = "mentorship.apprentice_assigned"
	EventApprenticeGraduated    EventType = "mentorship.apprentice_graduated"
	EventRuleDeclined           EventType = "mentorship.declined"

	// Assembly events
	EventAttributesExchanged EventType = "assembly.attributes_exchanged"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Mentorship Events
// ═══════════════════════════════════════════════════════════════════════════

// QualificationAttemptedEvent is emitted after every qualification roll.
type QualificationAttemptedEvent struct {
	BaseEvent
	Name   string `json:"name"`
	Roll   int    `json:"roll"`
	Passed bool   `json:"passed"`
}

// Payload implements Event interface.
func (e QualificationAttemptedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"name":   e.Name,
		"roll":   e.Roll,
		"passed": e.Passed,
	}
}

// NewQualificationAttemptedEvent creates a new QualificationAttemptedEvent.
func NewQualificationAttemptedEvent(id, name string, roll int, passed bool) QualificationAttemptedEvent {
	return QualificationAttemptedEvent{
		BaseEvent: NewBaseEvent(EventQualificationAttempted, id),
		Name:      name,
		Roll:      roll,
		Passed:    passed,
	}
}

// PractitionerPromotedEvent is emitted when a practitioner advances one rank.
type PractitionerPromotedEvent struct {
	BaseEvent
	Name     string `json:"name"`
	FromRank string `json:"from_rank"`
	ToRank   string `json:"to_rank"`
}

// Payload implements Event interface.
func (e PractitionerPromotedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"name":      e.Name,
		"from_rank": e.FromRank,
		"to_rank":   e.ToRank,
	}
}

// NewPractitionerPromotedEvent creates a new PractitionerPromotedEvent.
func NewPractitionerPromotedEvent(id, name, from, to string) PractitionerPromotedEvent {
	return PractitionerPromotedEvent{
		BaseEvent: NewBaseEvent(EventPractitionerPromoted, id),
		Name:      name,
		FromRank:  from,
		ToRank:    to,
	}
}

// ApprenticeAssignedEvent is emitted when a mentor takes an apprentice.
type ApprenticeAssignedEvent struct {
	BaseEvent
	Mentor     string `json:"mentor"`
	Apprentice string `json:"apprentice"`
}

// Payload implements Event interface.
func (e ApprenticeAssignedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"mentor":     e.Mentor,
		"apprentice": e.Apprentice,
	}
}

// NewApprenticeAssignedEvent creates a new ApprenticeAssignedEvent.
// The aggregate is the mentor, whose apprentice list changed.
func NewApprenticeAssignedEvent(mentorID, mentor, apprentice string) ApprenticeAssignedEvent {
	return ApprenticeAssignedEvent{
		BaseEvent:  NewBaseEvent(EventApprenticeAssigned, mentorID),
		Mentor:     mentor,
		Apprentice: apprentice,
	}
}

// ApprenticeGraduatedEvent is emitted when an apprentice graduates.
type ApprenticeGraduatedEvent struct {
	BaseEvent
	Mentor     string `json:"mentor"`
	Apprentice string `json:"apprentice"`
	NewRank    string `json:"new_rank"`
}

// Payload implements Event interface.
func (e ApprenticeGraduatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"mentor":     e.Mentor,
		"apprentice": e.Apprentice,
		"new_rank":   e.NewRank,
	}
}

// NewApprenticeGraduatedEvent creates a new ApprenticeGraduatedEvent.
func NewApprenticeGraduatedEvent(mentorID, mentor, apprentice, newRank string) ApprenticeGraduatedEvent {
	return ApprenticeGraduatedEvent{
		BaseEvent:  NewBaseEvent(EventApprenticeGraduated, mentorID),
		Mentor:     mentor,
		Apprentice: apprentice,
		NewRank:    newRank,
	}
}

// RuleDeclinedEvent is emitted when an operation is declined by a rule.
type RuleDeclinedEvent struct {
	BaseEvent
	Name   string `json:"name"`
	Op     string `json:"op"`
	Reason string `json:"reason"`
}

// Payload implements Event interface.
func (e RuleDeclinedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"name":   e.Name,
		"op":     e.Op,
		"reason": e.Reason,
	}
}

// NewRuleDeclinedEvent creates a new RuleDeclinedEvent.
func NewRuleDeclinedEvent(id, name, op, reason string) RuleDeclinedEvent {
	return RuleDeclinedEvent{
		BaseEvent: NewBaseEvent(EventRuleDeclined, id),
		Name:      name,
		Op:        op,
		Reason:    reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Assembly Events
// ═══════════════════════════════════════════════════════════════════════════

// AttributesExchangedEvent is emitted after two representatives exchange markers.
type AttributesExchangedEvent struct {
	BaseEvent
	Initiator   string `json:"initiator"`
	Counterpart string `json:"counterpart"`
	Detail      string `json:"detail"`
}

// Payload implements Event interface.
func (e AttributesExchangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"initiator":   e.Initiator,
		"counterpart": e.Counterpart,
		"detail":      e.Detail,
	}
}

// NewAttributesExchangedEvent creates a new AttributesExchangedEvent.
func NewAttributesExchangedEvent(id, initiator, counterpart, detail string) AttributesExchangedEvent {
	return AttributesExchangedEvent{
		BaseEvent:   NewBaseEvent(EventAttributesExchanged, id),
		Initiator:   initiator,
		Counterpart: counterpart,
		Detail:      detail,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event bus ports
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for a specific event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
