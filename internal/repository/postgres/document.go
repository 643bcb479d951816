package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/patient-intake/internal/model"
	"github.com/jwalitptl/patient-intake/internal/repository"
)

type documentRepository struct {
	BaseRepository
}

func NewDocumentRepository(base BaseRepository) repository.DocumentRepository {
	return &documentRepository{base}
}

func (r *documentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	query := `
		SELECT id, owner_id, file_name, content_type, size, checksum, data, created_at
		FROM identification_documents
		WHERE id = $1
	`

	var doc model.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, mapError(err, "failed to get document")
	}
	return &doc, nil
}
