package event

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jwalitptl/patient-intake/pkg/logger"
	"github.com/jwalitptl/patient-intake/pkg/messaging"
)

// Dispatcher routes events received on a broker channel to the handlers
// registered for their type. Events without a handler are dropped.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[EventType][]HandlerFunc
	logger   *logger.Logger
}

func NewDispatcher(log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{
		handlers: make(map[EventType][]HandlerFunc),
		logger:   log,
	}
}

func (d *Dispatcher) Register(eventType EventType, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], h)
}

// Run subscribes to channel and dispatches messages until ctx is done or the
// subscription closes.
func (d *Dispatcher) Run(ctx context.Context, broker messaging.Subscriber, channel string) error {
	messages, err := broker.Subscribe(ctx, channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	d.logger.Info("Event dispatcher started", "channel", channel)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-messages:
			if !ok {
				return nil
			}
			d.Dispatch(ctx, raw)
		}
	}
}

// Dispatch decodes raw and calls every handler registered for its type.
// Handler errors are logged; they never stop dispatching.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		d.logger.Error(err, "Failed to decode event")
		return
	}

	d.mu.RLock()
	handlers := d.handlers[env.Type]
	d.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, env.Payload); err != nil {
			d.logger.Error(err, "Event handler failed", "event_type", string(env.Type))
		}
	}
}
