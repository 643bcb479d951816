package event

import (
	"context"
	"encoding/json"
)

type EventType string

// Envelope is the decoded form of a messaging.Message received from a broker.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// HandlerFunc handles one event payload.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error
