package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"coinbet/domain/events"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// messageWriter is the part of kafka.Writer the event publisher needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter creates a writer for the event topic
func NewKafkaWriter(brokers string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(brokers, ",")...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// KafkaEventPublisher publishes every event to one topic.
// Messages are keyed by market, or by user for ledger events, so one key keeps its order.
type KafkaEventPublisher struct {
	*localHandlers
	writer        messageWriter
	subjectMapper *EventSubjectMapper
	timeout       time.Duration
}

// NewKafkaEventPublisher creates a new Kafka event publisher
func NewKafkaEventPublisher(writer messageWriter, subjectMapper *EventSubjectMapper) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		localHandlers: newLocalHandlers(),
		writer:        writer,
		subjectMapper: subjectMapper,
		timeout:       5 * time.Second,
	}
}

// Publish runs local handlers, then writes the event envelope to Kafka
func (p *KafkaEventPublisher) Publish(event events.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	p.dispatch(ctx, event)

	now := time.Now()
	envelope, err := NewEventEnvelope(event, now)
	if err != nil {
		return err
	}
	value, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(partitionKey(event)),
		Value: value,
		Time:  now,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type())},
			{Key: "subject", Value: []byte(p.subjectMapper.MapEventToSubject(event))},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish event to Kafka: %w", err)
	}

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"eventId":   envelope.EventID,
	}).Debug("Successfully published event to Kafka")
	return nil
}

// Close flushes buffered messages and closes the writer
func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}

func partitionKey(event events.Event) string {
	switch e := event.(type) {
	case events.BalanceChangeEvent:
		return "user:" + strconv.FormatInt(e.UserID, 10)
	case events.UserCreatedEvent:
		return "user:" + strconv.FormatInt(e.UserID, 10)
	case events.BetPlacedEvent:
		return marketKey(e.MarketID)
	case events.BetCancelledEvent:
		return marketKey(e.MarketID)
	case events.BetVoidedEvent:
		return marketKey(e.MarketID)
	case events.BetSettledEvent:
		return marketKey(e.MarketID)
	case events.OddsUpdatedEvent:
		return marketKey(e.MarketID)
	case events.MarketResultDeclaredEvent:
		return marketKey(e.MarketID)
	case events.MarketSettledEvent:
		return marketKey(e.MarketID)
	case events.TournamentFinishedEvent:
		return "tournament:" + strconv.FormatInt(e.TournamentID, 10)
	}
	return string(event.Type())
}

func marketKey(id int64) string {
	return "market:" + strconv.FormatInt(id, 10)
}
