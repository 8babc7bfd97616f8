package infrastructure

import (
	"fmt"

	"coinbet/domain/events"
)

// EventSubjectMapper handles mapping between domain events and bus subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

var subjectsByType = map[events.EventType]string{
	events.EventTypeBalanceChange:        "ledger.balance_changed",
	events.EventTypeUserCreated:          "users.created",
	events.EventTypeBetPlaced:            "betting.placed",
	events.EventTypeBetCancelled:         "betting.cancelled",
	events.EventTypeBetVoided:            "betting.voided",
	events.EventTypeBetSettled:           "betting.settled",
	events.EventTypeOddsUpdated:          "markets.odds_updated",
	events.EventTypeMarketResultDeclared: "markets.result_declared",
	events.EventTypeMarketSettled:        "markets.settled",
	events.EventTypeTournamentFinished:   "tournaments.finished",
}

// MapEventToSubject converts a domain event to its subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	return m.SubjectFor(event.Type())
}

// SubjectFor returns the subject of an event type
func (m *EventSubjectMapper) SubjectFor(eventType events.EventType) string {
	if subject, ok := subjectsByType[eventType]; ok {
		return subject
	}
	// Fallback for unknown event types
	return fmt.Sprintf("unknown.%s", eventType)
}

// MapSubjectToEventType converts a subject back to an event type
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
	subjects := make([]string, 0, len(events.AllEventTypes))
	for _, eventType := range events.AllEventTypes {
		subjects = append(subjects, m.SubjectFor(eventType))
	}
	return subjects
}
