package model

import (
	"fmt"
	"strings"
	"time"
)

// PatientFields are the registration fields that travel unchanged from the
// form to the backend.
type PatientFields struct {
	Name                   string `json:"name" mapstructure:"name" yaml:"name" validate:"required,min=2,max=50"`
	Email                  string `json:"email" mapstructure:"email" yaml:"email" validate:"required,email"`
	Phone                  string `json:"phone" mapstructure:"phone" yaml:"phone" validate:"required,phone"`
	Gender                 string `json:"gender" mapstructure:"gender" yaml:"gender" validate:"required,gender"`
	Address                string `json:"address" mapstructure:"address" yaml:"address" validate:"required,min=5,max=500"`
	Occupation             string `json:"occupation" mapstructure:"occupation" yaml:"occupation" validate:"required,min=2,max=500"`
	EmergencyContactName   string `json:"emergencyContactName" mapstructure:"emergencyContactName" yaml:"emergencyContactName" validate:"required,min=2,max=50"`
	EmergencyContactNumber string `json:"emergencyContactNumber" mapstructure:"emergencyContactNumber" yaml:"emergencyContactNumber" validate:"required,phone"`
	PrimaryPhysician       string `json:"primaryPhysician" mapstructure:"primaryPhysician" yaml:"primaryPhysician" validate:"required,physician"`
	InsuranceProvider      string `json:"insuranceProvider" mapstructure:"insuranceProvider" yaml:"insuranceProvider" validate:"required,min=2,max=50"`
	InsurancePolicyNumber  string `json:"insurancePolicyNumber" mapstructure:"insurancePolicyNumber" yaml:"insurancePolicyNumber" validate:"required,min=2,max=50"`
	Allergies              string `json:"allergies,omitempty" mapstructure:"allergies" yaml:"allergies"`
	CurrentMedication      string `json:"currentMedication,omitempty" mapstructure:"currentMedication" yaml:"currentMedication"`
	FamilyMedicalHistory   string `json:"familyMedicalHistory,omitempty" mapstructure:"familyMedicalHistory" yaml:"familyMedicalHistory"`
	PastMedicalHistory     string `json:"pastMedicalHistory,omitempty" mapstructure:"pastMedicalHistory" yaml:"pastMedicalHistory"`
	IdentificationType     string `json:"identificationType,omitempty" mapstructure:"identificationType" yaml:"identificationType" validate:"omitempty,idtype"`
	IdentificationNumber   string `json:"identificationNumber,omitempty" mapstructure:"identificationNumber" yaml:"identificationNumber"`
	TreatmentConsent       bool   `json:"treatmentConsent" mapstructure:"treatmentConsent" yaml:"treatmentConsent" validate:"consent"`
	DisclosureConsent      bool   `json:"disclosureConsent" mapstructure:"disclosureConsent" yaml:"disclosureConsent" validate:"consent"`
	PrivacyConsent         bool   `json:"privacyConsent" mapstructure:"privacyConsent" yaml:"privacyConsent" validate:"consent"`
}

// IdentificationDocument is a file selected on the form.
type IdentificationDocument struct {
	FileName    string
	ContentType string
	Content     []byte
}

// PatientRegistrationInput is the form record. BirthDate holds the raw value
// entered by the user.
type PatientRegistrationInput struct {
	PatientFields          `mapstructure:",squash" yaml:",inline"`
	BirthDate              string                  `json:"birthDate" mapstructure:"birthDate" yaml:"birthDate" validate:"required,birthdate"`
	IdentificationDocument *IdentificationDocument `json:"-" mapstructure:"-" yaml:"-"`
}

// NewRegistrationInput returns the form defaults merged with the caller identity.
func NewRegistrationInput(caller *CallerIdentity, now time.Time) *PatientRegistrationInput {
	in := &PatientRegistrationInput{
		PatientFields: PatientFields{
			Gender:             GenderMale,
			IdentificationType: DefaultIdentificationType,
		},
		BirthDate: now.Format(time.RFC3339),
	}
	if caller != nil {
		in.Name = caller.Name
		in.Email = caller.Email
		in.Phone = caller.Phone
	}
	return in
}

// UploadPayload is an identification document packaged as a multipart body.
type UploadPayload struct {
	FileName        string `json:"fileName"`
	FileContentType string `json:"fileContentType"`
	// ContentType is the multipart media type including its boundary.
	ContentType string `json:"-"`
	Body        []byte `json:"-"`
}

// RegisterPatientParams is the outbound payload of a registration.
type RegisterPatientParams struct {
	PatientFields
	UserID                 string         `json:"userId"`
	BirthDate              time.Time      `json:"birthDate"`
	IdentificationDocument *UploadPayload `json:"identificationDocument,omitempty"`
}

var birthDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
	"Jan 2, 2006",
}

// ParseBirthDate coerces a raw birth date into a time value.
func ParseBirthDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range birthDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid birth date %q", raw)
}
