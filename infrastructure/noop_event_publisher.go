package infrastructure

import (
	"context"

	"coinbet/domain/events"
)

// NoopEventPublisher delivers events to local handlers only.
// Used when no event bus is configured and in tests.
type NoopEventPublisher struct {
	*localHandlers
}

// NewNoopEventPublisher creates a new no-op event publisher
func NewNoopEventPublisher() *NoopEventPublisher {
	return &NoopEventPublisher{localHandlers: newLocalHandlers()}
}

func (n *NoopEventPublisher) Publish(event events.Event) error {
	n.dispatch(context.Background(), event)
	return nil
}
