package infrastructure

import (
	"encoding/json"
	"fmt"
	"time"

	"coinbet/domain/events"

	"github.com/google/uuid"
)

const sourceService = "coinbet"

// EventEnvelope wraps every event leaving the process
type EventEnvelope struct {
	EventID       string          `json:"eventId"`
	EventType     string          `json:"eventType"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"sourceService"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEventEnvelope serializes an event into a fresh envelope
func NewEventEnvelope(event events.Event, at time.Time) (*EventEnvelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return &EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     string(event.Type()),
		Timestamp:     at.UTC(),
		SourceService: sourceService,
		Payload:       payload,
	}, nil
}

// DecodeEvent deserializes the envelope payload into its concrete event type
func (e *EventEnvelope) DecodeEvent() (events.Event, error) {
	var event events.Event
	switch events.EventType(e.EventType) {
	case events.EventTypeBalanceChange:
		event = &events.BalanceChangeEvent{}
	case events.EventTypeUserCreated:
		event = &events.UserCreatedEvent{}
	case events.EventTypeBetPlaced:
		event = &events.BetPlacedEvent{}
	case events.EventTypeBetCancelled:
		event = &events.BetCancelledEvent{}
	case events.EventTypeBetVoided:
		event = &events.BetVoidedEvent{}
	case events.EventTypeBetSettled:
		event = &events.BetSettledEvent{}
	case events.EventTypeOddsUpdated:
		event = &events.OddsUpdatedEvent{}
	case events.EventTypeMarketResultDeclared:
		event = &events.MarketResultDeclaredEvent{}
	case events.EventTypeMarketSettled:
		event = &events.MarketSettledEvent{}
	case events.EventTypeTournamentFinished:
		event = &events.TournamentFinishedEvent{}
	default:
		return nil, fmt.Errorf("unknown event type: %s", e.EventType)
	}

	if err := json.Unmarshal(e.Payload, event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s payload: %w", e.EventType, err)
	}
	return event, nil
}
