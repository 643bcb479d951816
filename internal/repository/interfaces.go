package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/patient-intake/internal/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User, event *model.OutboxEvent) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
	}

	// PatientRepository persists patients together with their identification
	// document and registration event.
	PatientRepository interface {
		Register(ctx context.Context, patient *model.Patient, doc *model.Document, event *model.OutboxEvent) error
		GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Patient, error)
	}

	DocumentRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Document, error)
	}

	OutboxRepository interface {
		// ClaimPending also reclaims processing events whose claim is older
		// than staleBefore.
		ClaimPending(ctx context.Context, limit int, staleBefore time.Time) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
