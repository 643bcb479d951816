package intake

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/patient-intake/internal/model"
	"github.com/jwalitptl/patient-intake/pkg/logger"
	"github.com/jwalitptl/patient-intake/pkg/metrics"
)

// ErrSubmissionInProgress is returned when Submit is called while a previous
// submission is still waiting on the registrar.
var ErrSubmissionInProgress = errors.New("submission already in progress")

// Registrar creates the patient record on the backend.
type Registrar interface {
	RegisterPatient(ctx context.Context, params *model.RegisterPatientParams) (*model.Patient, error)
}

// Navigator moves the caller to another route.
type Navigator interface {
	Navigate(ctx context.Context, route string) error
}

// Submitter runs the submit workflow of a registration form.
type Submitter struct {
	registrar  Registrar
	navigator  Navigator
	logger     *logger.Logger
	metrics    *metrics.Metrics
	submitting atomic.Bool
}

type Option func(*Submitter)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Submitter) {
		s.metrics = m
	}
}

func NewSubmitter(registrar Registrar, navigator Navigator, log *logger.Logger, opts ...Option) *Submitter {
	if log == nil {
		log = logger.Nop()
	}
	s := &Submitter{
		registrar: registrar,
		navigator: navigator,
		logger:    log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submitting reports whether a registration call is outstanding.
func (s *Submitter) Submitting() bool {
	return s.submitting.Load()
}

// Submit validates the form, registers the patient and navigates to the
// appointment route of the caller. Field errors are returned as
// validator.FieldErrors without contacting the registrar. A registrar failure
// is logged and returned; no navigation happens in that case.
func (s *Submitter) Submit(ctx context.Context, form *Form) (*model.Patient, error) {
	values, err := form.Validate()
	if err != nil {
		s.observe("invalid")
		return nil, err
	}

	if !s.submitting.CompareAndSwap(false, true) {
		s.observe("rejected")
		return nil, ErrSubmissionInProgress
	}

	caller := form.Caller()

	params, err := BuildRegisterParams(values, caller)
	if err != nil {
		s.submitting.Store(false)
		s.observe("error")
		s.logger.Error(err, "Unable to prepare registration", "user_id", caller.ID)
		return nil, fmt.Errorf("failed to prepare registration: %w", err)
	}

	patient, err := s.register(ctx, params)
	if err != nil {
		s.observe("error")
		s.logger.Error(err, "Unable to register patient", "user_id", caller.ID)
		return nil, fmt.Errorf("failed to register patient: %w", err)
	}
	if patient == nil {
		s.observe("empty")
		s.logger.Warn("Registration returned no patient", "user_id", caller.ID)
		return nil, nil
	}

	form.complete()
	s.observe("success")

	route := AppointmentRoute(caller.ID)
	if err := s.navigator.Navigate(ctx, route); err != nil {
		s.logger.Error(err, "Unable to navigate", "route", route)
		return patient, fmt.Errorf("failed to navigate to %s: %w", route, err)
	}

	s.logger.Info("Patient registered", "user_id", caller.ID, "patient_id", patient.ID.String())
	return patient, nil
}

// register calls the registrar and clears the submitting flag as soon as the
// call resolves.
func (s *Submitter) register(ctx context.Context, params *model.RegisterPatientParams) (*model.Patient, error) {
	defer s.submitting.Store(false)
	if s.metrics != nil {
		timer := prometheus.NewTimer(s.metrics.SubmitLatency)
		defer timer.ObserveDuration()
	}
	return s.registrar.RegisterPatient(ctx, params)
}

func (s *Submitter) observe(result string) {
	if s.metrics != nil {
		s.metrics.SubmissionsTotal.WithLabelValues(result).Inc()
	}
}
