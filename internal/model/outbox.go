package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

// A claimed event is processing. A claim older than the worker's claim
// timeout is taken over by the next poll.
const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusRetry      OutboxStatus = "retry"
	OutboxStatusProcessed  OutboxStatus = "processed"
	OutboxStatusFailed     OutboxStatus = "failed"
)

const (
	EventUserCreated       = "USER_CREATED"
	EventPatientRegistered = "PATIENT_REGISTERED"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       string          `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// PatientRegisteredEvent is the outbox payload for EventPatientRegistered.
type PatientRegisteredEvent struct {
	PatientID        uuid.UUID `json:"patient_id"`
	UserID           uuid.UUID `json:"user_id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	PrimaryPhysician string    `json:"primary_physician"`
	HasDocument      bool      `json:"has_document"`
}
