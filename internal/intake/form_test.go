package intake

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/patient-intake/internal/model"
	"github.com/jwalitptl/patient-intake/pkg/validator"
)

func validValues() *model.PatientRegistrationInput {
	return &model.PatientRegistrationInput{
		PatientFields: model.PatientFields{
			Name:                   "Adam Smith",
			Email:                  "adam@example.com",
			Phone:                  "+15551234567",
			Gender:                 model.GenderMale,
			Address:                "14 street, New York, NY-5101",
			Occupation:             "Business",
			EmergencyContactName:   "Eve Smith",
			EmergencyContactNumber: "+15557654321",
			PrimaryPhysician:       "Leila Cameron",
			InsuranceProvider:      "BlueCross",
			InsurancePolicyNumber:  "ABC1232434",
			Allergies:              "Peanuts",
			IdentificationType:     model.DefaultIdentificationType,
			IdentificationNumber:   "1232434",
			TreatmentConsent:       true,
			DisclosureConsent:      true,
			PrivacyConsent:         true,
		},
		BirthDate: "1990-04-12",
	}
}

// fillForm copies valid values into f, keeping the caller pre-fills.
func fillForm(f *Form) {
	v := validValues()
	f.Update(func(in *model.PatientRegistrationInput) {
		name, email, phone := in.Name, in.Email, in.Phone
		*in = *v
		in.Name, in.Email, in.Phone = name, email, phone
	})
}

func TestNewForm_Defaults(t *testing.T) {
	before := time.Now().Add(-time.Second)
	f := NewForm(model.CallerIdentity{ID: "u1", Name: "A", Email: "a@x.com", Phone: "555"}, nil)

	v := f.Values()
	assert.Equal(t, "A", v.Name)
	assert.Equal(t, "a@x.com", v.Email)
	assert.Equal(t, "555", v.Phone)
	assert.Equal(t, model.GenderMale, v.Gender)
	assert.Equal(t, model.DefaultIdentificationType, v.IdentificationType)
	assert.False(t, v.TreatmentConsent)
	assert.False(t, v.DisclosureConsent)
	assert.False(t, v.PrivacyConsent)
	assert.Nil(t, v.IdentificationDocument)

	birth, err := model.ParseBirthDate(v.BirthDate)
	require.NoError(t, err)
	assert.True(t, birth.After(before))
}

func TestForm_ValidateRecordsFieldErrors(t *testing.T) {
	f := NewForm(model.CallerIdentity{ID: "u1", Name: "A", Email: "a@x.com", Phone: "555"}, nil)

	_, err := f.Validate()
	require.Error(t, err)

	errs := f.Errors()
	assert.Equal(t, "Invalid phone number", errs["phone"])
	assert.Equal(t, "name must be at least 2 characters", errs["name"])
	assert.Equal(t, "You must consent to treatment in order to proceed", errs["treatmentConsent"])

	f.Update(func(in *model.PatientRegistrationInput) { in.Name = "Adam" })
	assert.Nil(t, f.Errors())
}

func TestForm_ValidateReturnsSnapshot(t *testing.T) {
	f := NewForm(model.CallerIdentity{ID: "u1", Name: "Adam", Email: "adam@example.com", Phone: "+15551234567"}, validator.New())
	fillForm(f)

	values, err := f.Validate()
	require.NoError(t, err)

	values.Name = "changed"
	assert.Equal(t, "Adam", f.Values().Name)
}

func TestForm_AttachDocument(t *testing.T) {
	f := NewForm(model.CallerIdentity{ID: "u1"}, nil)
	doc := &model.IdentificationDocument{FileName: "id.png", ContentType: "image/png", Content: []byte{1}}

	f.AttachDocument(doc)
	assert.Same(t, doc, f.Values().IdentificationDocument)

	f.AttachDocument(nil)
	assert.Nil(t, f.Values().IdentificationDocument)
}
