// Package intake implements the patient registration form: field state,
// validation and the submit workflow that hands the registration to a
// backend and moves the caller on to appointment scheduling.
package intake

import (
	"errors"
	"sync"
	"time"

	"github.com/jwalitptl/patient-intake/internal/model"
	"github.com/jwalitptl/patient-intake/pkg/validator"
)

// ErrFormSubmitted is returned when a form that already registered a patient
// is submitted again.
var ErrFormSubmitted = errors.New("form already submitted")

// Form holds the field state of one registration session.
type Form struct {
	mu        sync.Mutex
	caller    model.CallerIdentity
	values    model.PatientRegistrationInput
	errs      validator.FieldErrors
	validator validator.Validator
	submitted bool
}

// NewForm starts a session with defaults pre-filled from the caller.
func NewForm(caller model.CallerIdentity, v validator.Validator) *Form {
	if v == nil {
		v = validator.New()
	}
	return &Form{
		caller:    caller,
		values:    *model.NewRegistrationInput(&caller, time.Now()),
		validator: v,
	}
}

func (f *Form) Caller() model.CallerIdentity {
	return f.caller
}

// Values returns a copy of the current field values.
func (f *Form) Values() model.PatientRegistrationInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values
}

// Update applies user input to the field values.
func (f *Form) Update(fn func(in *model.PatientRegistrationInput)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.values)
	f.errs = nil
}

// AttachDocument selects doc as the identification document; nil clears it.
func (f *Form) AttachDocument(doc *model.IdentificationDocument) {
	f.Update(func(in *model.PatientRegistrationInput) {
		in.IdentificationDocument = doc
	})
}

// Errors returns the per-field messages of the last validation.
func (f *Form) Errors() validator.FieldErrors {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs
}

// Validate checks the values and returns a snapshot when they pass.
func (f *Form) Validate() (*model.PatientRegistrationInput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitted {
		return nil, ErrFormSubmitted
	}

	values := f.values
	if err := f.validator.Validate(&values); err != nil {
		var fe validator.FieldErrors
		if errors.As(err, &fe) {
			f.errs = fe
		}
		return nil, err
	}
	f.errs = nil
	return &values, nil
}

// complete drops the field state once a patient has been registered.
func (f *Form) complete() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = true
	f.values = model.PatientRegistrationInput{}
}
