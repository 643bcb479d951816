package email

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/patient-intake/internal/model"
	"github.com/jwalitptl/patient-intake/pkg/event"
)

// RegisterHandlers subscribes svc to the events it sends mail for.
func RegisterHandlers(d *event.Dispatcher, svc Service) {
	d.Register(model.EventPatientRegistered, ConfirmationHandler(svc))
}

// ConfirmationHandler sends the registration confirmation for a
// PATIENT_REGISTERED event.
func ConfirmationHandler(svc Service) event.HandlerFunc {
	return func(ctx context.Context, payload json.RawMessage) error {
		var evt model.PatientRegisteredEvent
		if err := json.Unmarshal(payload, &evt); err != nil {
			return fmt.Errorf("failed to decode %s payload: %w", model.EventPatientRegistered, err)
		}
		if evt.Email == "" {
			return nil
		}
		return svc.SendRegistrationConfirmation(ctx, evt.Email, evt.Name, evt.PrimaryPhysician)
	}
}
