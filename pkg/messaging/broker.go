package messaging

import (
	"context"
)

// Publisher is the side of the broker the outbox processor uses.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// Subscriber is the side of the broker the event dispatcher uses. The
// returned channel is closed when ctx ends or the subscription drops.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

type Broker interface {
	Publisher
	Subscriber
	Close() error
}

// Message is the envelope published for every outbox event. Type is the
// outbox event type (USER_CREATED, PATIENT_REGISTERED) and Payload the event
// body exactly as it was stored with the user or patient row.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
