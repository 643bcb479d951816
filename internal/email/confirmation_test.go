package email

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/patient-intake/internal/model"
	"github.com/jwalitptl/patient-intake/pkg/event"
	"github.com/jwalitptl/patient-intake/pkg/messaging"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) SendRegistrationConfirmation(ctx context.Context, to, name, physician string) error {
	return m.Called(ctx, to, name, physician).Error(0)
}

func TestConfirmationHandler_SendsOnPatientRegistered(t *testing.T) {
	svc := new(mockService)
	svc.On("SendRegistrationConfirmation", mock.Anything, "adam@example.com", "Adam", "Leila Cameron").Return(nil).Once()

	d := event.NewDispatcher(nil)
	RegisterHandlers(d, svc)

	raw, err := json.Marshal(messaging.Message{
		Type: model.EventPatientRegistered,
		Payload: model.PatientRegisteredEvent{
			PatientID:        uuid.New(),
			UserID:           uuid.New(),
			Name:             "Adam",
			Email:            "adam@example.com",
			PrimaryPhysician: "Leila Cameron",
		},
	})
	require.NoError(t, err)

	d.Dispatch(context.Background(), raw)
	svc.AssertExpectations(t)
}

func TestConfirmationHandler_BadPayload(t *testing.T) {
	svc := new(mockService)
	err := ConfirmationHandler(svc)(context.Background(), json.RawMessage(`[]`))
	assert.Error(t, err)
	svc.AssertNotCalled(t, "SendRegistrationConfirmation", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
