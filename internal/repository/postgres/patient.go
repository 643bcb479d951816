package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/patient-intake/internal/model"
	"github.com/jwalitptl/patient-intake/internal/repository"
)

const patientColumns = `
	id, user_id, name, email, phone, birth_date, gender, address, occupation,
	emergency_contact_name, emergency_contact_number, primary_physician,
	insurance_provider, insurance_policy_number, allergies, current_medication,
	family_medical_history, past_medical_history, identification_type,
	identification_number, identification_document_id, identification_document_url,
	treatment_consent, disclosure_consent, privacy_consent, created_at, updated_at`

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{base}
}

// Register stores the document (when present), the patient and the event in
// one transaction.
func (r *patientRepository) Register(ctx context.Context, patient *model.Patient, doc *model.Document, event *model.OutboxEvent) error {
	now := time.Now().UTC()
	patient.Stamp(now)

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if doc != nil {
			if doc.ID == uuid.Nil {
				doc.ID = uuid.New()
			}
			doc.CreatedAt = now
			if _, err := tx.NamedExecContext(ctx, `
				INSERT INTO identification_documents (
					id, owner_id, file_name, content_type, size, checksum, data, created_at
				) VALUES (
					:id, :owner_id, :file_name, :content_type, :size, :checksum, :data, :created_at
				)`, doc); err != nil {
				return mapError(err, "failed to store identification document")
			}
		}

		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO patients (`+patientColumns+`) VALUES (
				:id, :user_id, :name, :email, :phone, :birth_date, :gender, :address, :occupation,
				:emergency_contact_name, :emergency_contact_number, :primary_physician,
				:insurance_provider, :insurance_policy_number, :allergies, :current_medication,
				:family_medical_history, :past_medical_history, :identification_type,
				:identification_number, :identification_document_id, :identification_document_url,
				:treatment_consent, :disclosure_consent, :privacy_consent, :created_at, :updated_at
			)`, patient); err != nil {
			return mapError(err, "failed to create patient")
		}

		return insertOutboxEvent(ctx, tx, event)
	})
}

func (r *patientRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE user_id = $1`

	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, query, userID); err != nil {
		return nil, mapError(err, "failed to get patient")
	}
	return &patient, nil
}
