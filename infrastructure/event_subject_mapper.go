package infrastructure

import (
	"fmt"

	"investor/domain/events"
)

// StreamName is the JetStream stream carrying investment events
const StreamName = "investment_events"

var subjectsByType = map[events.EventType]string{
	events.EventTypeInvestmentCreated:   "investments.created",
	events.EventTypeInvestmentActivated: "investments.activated",
	events.EventTypeInvestmentFailed:    "investments.failed",
	events.EventTypeReturnsAccrued:      "investments.returns_accrued",
	events.EventTypeInvestmentCompleted: "investments.completed",
}

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its corresponding NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	if subject, ok := subjectsByType[event.Type()]; ok {
		return subject
	}
	return fmt.Sprintf("unknown.%s", event.Type())
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	for eventType, s := range subjectsByType {
		if s == subject {
			return eventType
		}
	}
	return events.EventType(subject)
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		"investments.created",
		"investments.activated",
		"investments.failed",
		"investments.returns_accrued",
		"investments.completed",
	}
}
