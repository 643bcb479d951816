package model

import (
	"time"

	"github.com/google/uuid"
)

// Patient is a registered patient record owned by a user.
type Patient struct {
	Base
	UserID                    uuid.UUID  `db:"user_id" json:"userId"`
	Name                      string     `db:"name" json:"name"`
	Email                     string     `db:"email" json:"email"`
	Phone                     string     `db:"phone" json:"phone"`
	BirthDate                 time.Time  `db:"birth_date" json:"birthDate"`
	Gender                    string     `db:"gender" json:"gender"`
	Address                   string     `db:"address" json:"address"`
	Occupation                string     `db:"occupation" json:"occupation"`
	EmergencyContactName      string     `db:"emergency_contact_name" json:"emergencyContactName"`
	EmergencyContactNumber    string     `db:"emergency_contact_number" json:"emergencyContactNumber"`
	PrimaryPhysician          string     `db:"primary_physician" json:"primaryPhysician"`
	InsuranceProvider         string     `db:"insurance_provider" json:"insuranceProvider"`
	InsurancePolicyNumber     string     `db:"insurance_policy_number" json:"insurancePolicyNumber"`
	Allergies                 string     `db:"allergies" json:"allergies,omitempty"`
	CurrentMedication         string     `db:"current_medication" json:"currentMedication,omitempty"`
	FamilyMedicalHistory      string     `db:"family_medical_history" json:"familyMedicalHistory,omitempty"`
	PastMedicalHistory        string     `db:"past_medical_history" json:"pastMedicalHistory,omitempty"`
	IdentificationType        string     `db:"identification_type" json:"identificationType,omitempty"`
	IdentificationNumber      string     `db:"identification_number" json:"identificationNumber,omitempty"`
	IdentificationDocumentID  *uuid.UUID `db:"identification_document_id" json:"identificationDocumentId,omitempty"`
	IdentificationDocumentURL *string    `db:"identification_document_url" json:"identificationDocumentUrl,omitempty"`
	TreatmentConsent          bool       `db:"treatment_consent" json:"treatmentConsent"`
	DisclosureConsent         bool       `db:"disclosure_consent" json:"disclosureConsent"`
	PrivacyConsent            bool       `db:"privacy_consent" json:"privacyConsent"`
}

// NewPatient copies the registration fields onto a new patient record.
func NewPatient(userID uuid.UUID, birthDate time.Time, f PatientFields) *Patient {
	return &Patient{
		Base:                   Base{ID: uuid.New()},
		UserID:                 userID,
		Name:                   f.Name,
		Email:                  f.Email,
		Phone:                  f.Phone,
		BirthDate:              birthDate,
		Gender:                 f.Gender,
		Address:                f.Address,
		Occupation:             f.Occupation,
		EmergencyContactName:   f.EmergencyContactName,
		EmergencyContactNumber: f.EmergencyContactNumber,
		PrimaryPhysician:       f.PrimaryPhysician,
		InsuranceProvider:      f.InsuranceProvider,
		InsurancePolicyNumber:  f.InsurancePolicyNumber,
		Allergies:              f.Allergies,
		CurrentMedication:      f.CurrentMedication,
		FamilyMedicalHistory:   f.FamilyMedicalHistory,
		PastMedicalHistory:     f.PastMedicalHistory,
		IdentificationType:     f.IdentificationType,
		IdentificationNumber:   f.IdentificationNumber,
		TreatmentConsent:       f.TreatmentConsent,
		DisclosureConsent:      f.DisclosureConsent,
		PrivacyConsent:         f.PrivacyConsent,
	}
}
