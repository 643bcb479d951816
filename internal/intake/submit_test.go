package intake

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/patient-intake/internal/model"
	"github.com/jwalitptl/patient-intake/pkg/logger"
	"github.com/jwalitptl/patient-intake/pkg/metrics"
	"github.com/jwalitptl/patient-intake/pkg/validator"
)

type mockRegistrar struct {
	mock.Mock
}

func (m *mockRegistrar) RegisterPatient(ctx context.Context, params *model.RegisterPatientParams) (*model.Patient, error) {
	args := m.Called(ctx, params)
	if p := args.Get(0); p != nil {
		return p.(*model.Patient), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockNavigator struct {
	mock.Mock
}

func (m *mockNavigator) Navigate(ctx context.Context, route string) error {
	return m.Called(ctx, route).Error(0)
}

func scenarioCaller() model.CallerIdentity {
	return model.CallerIdentity{ID: "u1", Name: "A", Email: "a@x.com", Phone: "555"}
}

// scenarioForm is a valid form for the scenario caller. The caller's short
// name and phone fail the schema, so the user corrects them before submitting.
func scenarioForm() *Form {
	f := NewForm(scenarioCaller(), nil)
	fillForm(f)
	f.Update(func(in *model.PatientRegistrationInput) {
		in.Name = "A. Patient"
		in.Phone = "+15550000555"
	})
	return f
}

func jsonLogger(buf *bytes.Buffer) *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.DebugLevel, Output: buf, JSON: true})
}

func TestSubmit_SuccessNavigatesToAppointment(t *testing.T) {
	registrar := new(mockRegistrar)
	navigator := new(mockNavigator)
	patient := &model.Patient{Base: model.Base{ID: uuid.New()}}

	var s *Submitter
	registrar.On("RegisterPatient", mock.Anything, mock.MatchedBy(func(p *model.RegisterPatientParams) bool {
		return p.UserID == "u1" && p.IdentificationDocument == nil && !p.BirthDate.IsZero()
	})).Run(func(mock.Arguments) {
		assert.True(t, s.Submitting(), "submitting must be set while the call is outstanding")
	}).Return(patient, nil).Once()
	navigator.On("Navigate", mock.Anything, "/patients/u1/new-appointment").Return(nil).Once()

	s = NewSubmitter(registrar, navigator, logger.Nop())
	assert.False(t, s.Submitting())

	got, err := s.Submit(context.Background(), scenarioForm())
	require.NoError(t, err)
	assert.Same(t, patient, got)
	assert.False(t, s.Submitting())

	registrar.AssertExpectations(t)
	navigator.AssertExpectations(t)
}

func TestSubmit_FailureIsLoggedWithoutNavigation(t *testing.T) {
	registrar := new(mockRegistrar)
	navigator := new(mockNavigator)
	registrar.On("RegisterPatient", mock.Anything, mock.Anything).Return(nil, errors.New("backend unavailable")).Once()

	var logs bytes.Buffer
	s := NewSubmitter(registrar, navigator, jsonLogger(&logs))

	form := scenarioForm()
	got, err := s.Submit(context.Background(), form)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "backend unavailable")
	assert.False(t, s.Submitting())

	navigator.AssertNotCalled(t, "Navigate", mock.Anything, mock.Anything)
	assert.Contains(t, logs.String(), "Unable to register patient")
	assert.Contains(t, logs.String(), `"user_id":"u1"`)

	// the form stays usable for another attempt
	assert.Equal(t, "A. Patient", form.Values().Name)
}

func TestSubmit_DocumentIsPackaged(t *testing.T) {
	registrar := new(mockRegistrar)
	navigator := new(mockNavigator)

	registrar.On("RegisterPatient", mock.Anything, mock.MatchedBy(func(p *model.RegisterPatientParams) bool {
		doc := p.IdentificationDocument
		return doc != nil && doc.FileName == "id.jpg" && doc.FileContentType == "image/jpeg" && len(doc.Body) > 0
	})).Return(&model.Patient{}, nil).Once()
	navigator.On("Navigate", mock.Anything, mock.Anything).Return(nil)

	form := scenarioForm()
	form.AttachDocument(&model.IdentificationDocument{FileName: "id.jpg", ContentType: "image/jpeg", Content: []byte{0xff, 0xd8, 0xff}})

	_, err := NewSubmitter(registrar, navigator, nil).Submit(context.Background(), form)
	require.NoError(t, err)
	registrar.AssertExpectations(t)
}

func TestSubmit_InvalidFormSkipsRegistrar(t *testing.T) {
	registrar := new(mockRegistrar)
	navigator := new(mockNavigator)
	s := NewSubmitter(registrar, navigator, nil)

	_, err := s.Submit(context.Background(), NewForm(scenarioCaller(), nil))

	var fe validator.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.NotEmpty(t, fe["treatmentConsent"])
	assert.False(t, s.Submitting())
	registrar.AssertNotCalled(t, "RegisterPatient", mock.Anything, mock.Anything)
}

func TestSubmit_NilResultDoesNotNavigate(t *testing.T) {
	registrar := new(mockRegistrar)
	navigator := new(mockNavigator)
	registrar.On("RegisterPatient", mock.Anything, mock.Anything).Return(nil, nil).Once()

	got, err := NewSubmitter(registrar, navigator, nil).Submit(context.Background(), scenarioForm())
	require.NoError(t, err)
	assert.Nil(t, got)
	navigator.AssertNotCalled(t, "Navigate", mock.Anything, mock.Anything)
}

func TestSubmit_RejectsConcurrentSubmission(t *testing.T) {
	registrar := new(mockRegistrar)
	navigator := new(mockNavigator)

	entered := make(chan struct{})
	release := make(chan struct{})
	registrar.On("RegisterPatient", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		close(entered)
		<-release
	}).Return(&model.Patient{}, nil).Once()
	navigator.On("Navigate", mock.Anything, mock.Anything).Return(nil)

	s := NewSubmitter(registrar, navigator, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = s.Submit(context.Background(), scenarioForm())
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first submission never reached the registrar")
	}

	_, err := s.Submit(context.Background(), scenarioForm())
	assert.ErrorIs(t, err, ErrSubmissionInProgress)

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.False(t, s.Submitting())
	registrar.AssertNumberOfCalls(t, "RegisterPatient", 1)
}

func TestSubmit_FormIsConsumedOnSuccess(t *testing.T) {
	registrar := new(mockRegistrar)
	navigator := new(mockNavigator)
	registrar.On("RegisterPatient", mock.Anything, mock.Anything).Return(&model.Patient{}, nil).Once()
	navigator.On("Navigate", mock.Anything, mock.Anything).Return(nil)

	s := NewSubmitter(registrar, navigator, nil)
	form := scenarioForm()

	_, err := s.Submit(context.Background(), form)
	require.NoError(t, err)

	_, err = s.Submit(context.Background(), form)
	assert.ErrorIs(t, err, ErrFormSubmitted)
	assert.Empty(t, form.Values().Name)
}

func TestSubmit_NavigationErrorIsReturned(t *testing.T) {
	registrar := new(mockRegistrar)
	navigator := new(mockNavigator)
	patient := &model.Patient{}
	registrar.On("RegisterPatient", mock.Anything, mock.Anything).Return(patient, nil).Once()
	navigator.On("Navigate", mock.Anything, mock.Anything).Return(errors.New("closed pipe"))

	got, err := NewSubmitter(registrar, navigator, nil).Submit(context.Background(), scenarioForm())
	assert.Error(t, err)
	assert.Same(t, patient, got)
}

func TestSubmit_RecordsMetrics(t *testing.T) {
	registrar := new(mockRegistrar)
	navigator := new(mockNavigator)
	registrar.On("RegisterPatient", mock.Anything, mock.Anything).Return(nil, errors.New("boom")).Once()

	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	s := NewSubmitter(registrar, navigator, nil, WithMetrics(m))

	_, _ = s.Submit(context.Background(), scenarioForm())
	_, _ = s.Submit(context.Background(), NewForm(scenarioCaller(), nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SubmissionsTotal.WithLabelValues("error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SubmissionsTotal.WithLabelValues("invalid")))
}

func TestWriterNavigator(t *testing.T) {
	var out bytes.Buffer
	n := NewWriterNavigator(&out, "http://localhost:3000/")

	require.NoError(t, n.Navigate(context.Background(), AppointmentRoute("u1")))
	assert.Equal(t, "next: http://localhost:3000/patients/u1/new-appointment\n", out.String())
}

func TestSubmit_SubmittingClearedBeforeNavigation(t *testing.T) {
	registrar := new(mockRegistrar)
	navigator := new(mockNavigator)
	registrar.On("RegisterPatient", mock.Anything, mock.Anything).Return(&model.Patient{}, nil).Once()

	var s *Submitter
	navigator.On("Navigate", mock.Anything, "/patients/u1/new-appointment").Run(func(mock.Arguments) {
		assert.False(t, s.Submitting(), "submitting must be cleared once the registrar has answered")
	}).Return(nil).Once()

	s = NewSubmitter(registrar, navigator, nil)
	_, err := s.Submit(context.Background(), scenarioForm())
	require.NoError(t, err)
	navigator.AssertExpectations(t)
}
