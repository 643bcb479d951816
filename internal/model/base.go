package model

import (
	"time"

	"github.com/google/uuid"
)

// Base carries the identity and timestamps shared by users and patients.
type Base struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Stamp prepares a record for insertion: it assigns an ID unless the caller
// chose one and sets both timestamps to now in UTC.
func (b *Base) Stamp(now time.Time) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.CreatedAt = now.UTC()
	b.UpdatedAt = b.CreatedAt
}
