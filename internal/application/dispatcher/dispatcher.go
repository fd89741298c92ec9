// Package dispatcher routes transition events to registered handlers.
// Dispatch happens after the transaction that produced the transition
// commits, so handlers see durable state. Handlers run synchronously in
// registration order; a handler error is logged and does not stop the chain,
// since downstream effects (assignments, audit) are each independently
// recoverable.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/dpatel76/synapse-workflow/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Dispatcher routes events to registered handlers
type Dispatcher interface {
	// Subscribe registers a named handler for an event type
	Subscribe(eventType event.Type, name string, handler Handler)

	// Dispatch sends the event to all registered handlers in order
	Dispatch(ctx context.Context, evt *event.Event)

	// ListHandlers returns registered handlers for an event type
	ListHandlers(eventType event.Type) []HandlerInfo
}

type eventDispatcher struct {
	mu       sync.RWMutex
	handlers map[event.Type][]HandlerInfo
	logger   Logger
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(logger Logger) Dispatcher {
	return &eventDispatcher{
		handlers: make(map[event.Type][]HandlerInfo),
		logger:   logger,
	}
}

// Subscribe registers a named handler for an event type
func (d *eventDispatcher) Subscribe(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[eventType] = append(d.handlers[eventType], HandlerInfo{
		Name:      name,
		EventType: eventType,
		Handler:   handler,
	})
}

// Dispatch sends the event to all registered handlers in order
func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) {
	d.mu.RLock()
	infos := append([]HandlerInfo{}, d.handlers[evt.Type]...)
	d.mu.RUnlock()

	for _, info := range infos {
		if err := info.Handler(ctx, evt); err != nil {
			d.logger.Error("Event handler failed",
				"handler", info.Name,
				"event_type", evt.Type.String(),
				"event_id", evt.ID,
				"error", fmt.Sprintf("%v", err))
		}
	}
}

// ListHandlers returns registered handlers for an event type
func (d *eventDispatcher) ListHandlers(eventType event.Type) []HandlerInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]HandlerInfo{}, d.handlers[eventType]...)
}
