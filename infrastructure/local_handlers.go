package infrastructure

import (
	"context"
	"sync"

	"coinbet/domain/events"

	log "github.com/sirupsen/logrus"
)

// EventHandler handles one published event inside this process
type EventHandler func(context.Context, events.Event) error

// LocalHandlerRegistry is implemented by publishers that also deliver events to in-process handlers
type LocalHandlerRegistry interface {
	RegisterLocalHandler(eventType events.EventType, handler EventHandler)
}

// localHandlers invokes registered handlers before an event leaves the process.
// Handler errors are logged and never stop the remaining handlers or the publish.
type localHandlers struct {
	mu       sync.RWMutex
	handlers map[events.EventType][]EventHandler
}

func newLocalHandlers() *localHandlers {
	return &localHandlers{handlers: make(map[events.EventType][]EventHandler)}
}

func (l *localHandlers) RegisterLocalHandler(eventType events.EventType, handler EventHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[eventType] = append(l.handlers[eventType], handler)
	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(l.handlers[eventType]),
	}).Info("Registered local event handler")
}

func (l *localHandlers) dispatch(ctx context.Context, event events.Event) {
	l.mu.RLock()
	handlers := l.handlers[event.Type()]
	l.mu.RUnlock()

	for _, handler := range handlers {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
		}).Debug("Invoking local handler for event")

		if err := handler(ctx, event); err != nil {
			log.WithFields(log.Fields{
				"eventType": event.Type(),
				"error":     err,
			}).Error("Local event handler failed")
		}
	}
}
