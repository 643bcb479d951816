package patient

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/patient-intake/internal/model"
	"github.com/jwalitptl/patient-intake/internal/repository"
	"github.com/jwalitptl/patient-intake/pkg/logger"
	"github.com/jwalitptl/patient-intake/pkg/metrics"
	"github.com/jwalitptl/patient-intake/pkg/security"
	"github.com/jwalitptl/patient-intake/pkg/validator"
)

var (
	ErrUserNotFound            = errors.New("user not found")
	ErrPatientNotFound         = errors.New("patient not found")
	ErrPatientExists           = errors.New("patient already registered for user")
	ErrDocumentNotFound        = errors.New("document not found")
	ErrDocumentForbidden       = errors.New("document belongs to another user")
	ErrEmptyDocument           = errors.New("identification document is empty")
	ErrDocumentTooLarge        = errors.New("identification document is too large")
	ErrUnsupportedDocumentType = errors.New("unsupported identification document type")
	ErrMissingBirthDate        = errors.New("birth date is required")
)

type PatientServicer interface {
	RegisterPatient(ctx context.Context, req *RegisterRequest) (*model.Patient, error)
	GetPatientByUser(ctx context.Context, userID uuid.UUID) (*model.Patient, error)
	GetDocument(ctx context.Context, id, ownerID uuid.UUID) (*model.Document, error)
}

// RegisterRequest is a registration as received by the backend.
type RegisterRequest struct {
	model.PatientFields
	UserID    uuid.UUID
	BirthDate time.Time
	Document  *model.DocumentUpload
}

type Config struct {
	MaxDocumentSize   int64
	AllowedTypes      []string
	DocumentURLPrefix string
	CacheTTL          time.Duration
}

type Service struct {
	repo      repository.PatientRepository
	users     repository.UserRepository
	docs      repository.DocumentRepository
	encryptor security.Encryptor
	validator validator.Validator
	cache     *cache.Cache
	metrics   *metrics.Metrics
	logger    *logger.Logger
	cfg       Config
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithValidator(v validator.Validator) Option {
	return func(s *Service) { s.validator = v }
}

func NewService(
	repo repository.PatientRepository,
	users repository.UserRepository,
	docs repository.DocumentRepository,
	encryptor security.Encryptor,
	cfg Config,
	log *logger.Logger,
	opts ...Option,
) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	s := &Service{
		repo:      repo,
		users:     users,
		docs:      docs,
		encryptor: encryptor,
		cache:     cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		logger:    log,
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.validator == nil {
		s.validator = validator.New()
	}
	return s
}

// RegisterPatient validates the registration, stores the identification
// document encrypted and creates the patient with its PATIENT_REGISTERED
// event in one transaction.
func (s *Service) RegisterPatient(ctx context.Context, req *RegisterRequest) (*model.Patient, error) {
	if err := s.validator.Validate(&req.PatientFields); err != nil {
		s.observe("invalid")
		return nil, err
	}
	if req.BirthDate.IsZero() {
		s.observe("invalid")
		return nil, ErrMissingBirthDate
	}

	if _, err := s.users.Get(ctx, req.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.observe("rejected")
			return nil, ErrUserNotFound
		}
		s.observe("error")
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	patient := model.NewPatient(req.UserID, req.BirthDate.UTC(), req.PatientFields)

	var doc *model.Document
	if req.Document != nil {
		var err error
		doc, err = s.prepareDocument(req.UserID, req.Document)
		if err != nil {
			s.observe("rejected")
			return nil, err
		}
		url := s.documentURL(doc.ID)
		patient.IdentificationDocumentID = &doc.ID
		patient.IdentificationDocumentURL = &url
	}

	payload, err := json.Marshal(model.PatientRegisteredEvent{
		PatientID:        patient.ID,
		UserID:           patient.UserID,
		Name:             patient.Name,
		Email:            patient.Email,
		PrimaryPhysician: patient.PrimaryPhysician,
		HasDocument:      doc != nil,
	})
	if err != nil {
		s.observe("error")
		return nil, fmt.Errorf("failed to marshal registration event: %w", err)
	}
	evt := &model.OutboxEvent{EventType: model.EventPatientRegistered, Payload: payload}

	if err := s.repo.Register(ctx, patient, doc, evt); err != nil {
		s.recordDB("register_patient", err)
		if errors.Is(err, repository.ErrDuplicate) {
			s.observe("rejected")
			return nil, ErrPatientExists
		}
		s.observe("error")
		return nil, fmt.Errorf("failed to register patient: %w", err)
	}
	s.recordDB("register_patient", nil)
	s.observe("success")
	if doc != nil && s.metrics != nil {
		s.metrics.DocumentBytes.Observe(float64(doc.Size))
	}

	s.cachePatient(patient)
	s.logger.Info("Patient registered",
		"patient_id", patient.ID.String(),
		"user_id", patient.UserID.String(),
		"has_document", doc != nil,
	)
	return patient, nil
}

func (s *Service) GetPatientByUser(ctx context.Context, userID uuid.UUID) (*model.Patient, error) {
	if cached, ok := s.cache.Get(userID.String()); ok {
		p := *cached.(*model.Patient)
		return &p, nil
	}

	patient, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}

	s.cachePatient(patient)
	return patient, nil
}

// GetDocument returns the decrypted document when ownerID owns it.
func (s *Service) GetDocument(ctx context.Context, id, ownerID uuid.UUID) (*model.Document, error) {
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	if doc.OwnerID != ownerID {
		return nil, ErrDocumentForbidden
	}

	plain, err := s.encryptor.Decrypt(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt document %s: %w", id, err)
	}
	doc.Data = plain
	return doc, nil
}

func (s *Service) prepareDocument(ownerID uuid.UUID, upload *model.DocumentUpload) (*model.Document, error) {
	size := int64(len(upload.Content))
	if size == 0 {
		return nil, ErrEmptyDocument
	}
	if s.cfg.MaxDocumentSize > 0 && size > s.cfg.MaxDocumentSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrDocumentTooLarge, size, s.cfg.MaxDocumentSize)
	}

	detected := mimetype.Detect(upload.Content)
	if !s.allowed(detected) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDocumentType, detected.String())
	}

	sum := sha256.Sum256(upload.Content)
	sealed, err := s.encryptor.Encrypt(upload.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt document: %w", err)
	}

	name := strings.TrimSpace(upload.FileName)
	if name == "" {
		name = "identification" + detected.Extension()
	}

	return &model.Document{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		FileName:    name,
		ContentType: detected.String(),
		Size:        size,
		Checksum:    hex.EncodeToString(sum[:]),
		Data:        sealed,
	}, nil
}

func (s *Service) allowed(m *mimetype.MIME) bool {
	if len(s.cfg.AllowedTypes) == 0 {
		return true
	}
	for _, t := range s.cfg.AllowedTypes {
		if m.Is(t) {
			return true
		}
	}
	return false
}

// cachePatient stores a copy so callers never share the cached record.
func (s *Service) cachePatient(patient *model.Patient) {
	p := *patient
	s.cache.SetDefault(p.UserID.String(), &p)
}

func (s *Service) documentURL(id uuid.UUID) string {
	return strings.TrimRight(s.cfg.DocumentURLPrefix, "/") + "/" + id.String()
}

func (s *Service) observe(status string) {
	if s.metrics != nil {
		s.metrics.RegistrationsTotal.WithLabelValues(status).Inc()
	}
}

func (s *Service) recordDB(op string, err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.DatabaseOperations.WithLabelValues(op, status).Inc()
}
