package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"coinbet/domain/events"

	log "github.com/sirupsen/logrus"
)

// subjectPublisher is the part of NATSClient the event publisher needs
type subjectPublisher interface {
	Publish(ctx context.Context, subject string, msgID string, data []byte) error
}

// NATSEventPublisher implements the EventPublisher interface using NATS
type NATSEventPublisher struct {
	*localHandlers
	natsClient    subjectPublisher
	subjectMapper *EventSubjectMapper
}

// NewNATSEventPublisher creates a new NATS event publisher
func NewNATSEventPublisher(natsClient subjectPublisher, subjectMapper *EventSubjectMapper) *NATSEventPublisher {
	return &NATSEventPublisher{
		localHandlers: newLocalHandlers(),
		natsClient:    natsClient,
		subjectMapper: subjectMapper,
	}
}

// Publish runs local handlers, then publishes the event to its NATS subject
func (p *NATSEventPublisher) Publish(event events.Event) error {
	ctx := context.Background()
	p.dispatch(ctx, event)

	subject := p.subjectMapper.MapEventToSubject(event)

	envelope, err := NewEventEnvelope(event, time.Now())
	if err != nil {
		return err
	}
	envelopeData, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	if err := p.natsClient.Publish(ctx, subject, envelope.EventID, envelopeData); err != nil {
		// No stream captures the subject; nothing downstream is listening
		if strings.Contains(err.Error(), "no response from stream") {
			return nil
		}
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"eventId":   envelope.EventID,
		"subject":   subject,
	}).Debug("Successfully published event to NATS")

	return nil
}
