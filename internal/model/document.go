package model

import (
	"time"

	"github.com/google/uuid"
)

// Document is a stored identification document. Data is encrypted at rest.
type Document struct {
	ID          uuid.UUID `db:"id" json:"id"`
	OwnerID     uuid.UUID `db:"owner_id" json:"owner_id"`
	FileName    string    `db:"file_name" json:"file_name"`
	ContentType string    `db:"content_type" json:"content_type"`
	Size        int64     `db:"size" json:"size"`
	Checksum    string    `db:"checksum" json:"checksum"`
	Data        []byte    `db:"data" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// DocumentUpload is an uploaded file as received by the backend.
type DocumentUpload struct {
	FileName    string
	ContentType string
	Content     []byte
}
