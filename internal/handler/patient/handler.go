package patient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/patient-intake/internal/handler"
	"github.com/jwalitptl/patient-intake/internal/intake"
	"github.com/jwalitptl/patient-intake/internal/model"
	"github.com/jwalitptl/patient-intake/internal/service/patient"
	apperrors "github.com/jwalitptl/patient-intake/pkg/errors"
	"github.com/jwalitptl/patient-intake/pkg/httputil"
	"github.com/jwalitptl/patient-intake/pkg/validator"
)

// registerBody is the JSON form of a registration, sent either as the whole
// request body or as the "patient" multipart field.
type registerBody struct {
	model.PatientFields
	UserID    string `json:"userId"`
	BirthDate string `json:"birthDate"`
}

type Handler struct {
	service         patient.PatientServicer
	maxDocumentSize int64
}

func NewHandler(service patient.PatientServicer, maxDocumentSize int64) *Handler {
	return &Handler{
		service:         service,
		maxDocumentSize: maxDocumentSize,
	}
}

// RegisterRoutes expects r to be behind the authentication middleware.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.POST("", h.RegisterPatient)
		patients.GET("/user/:userId", h.GetPatientByUser)
	}
	r.GET("/documents/:id", h.GetDocument)
}

func (h *Handler) RegisterPatient(c *gin.Context) {
	caller, ok := handler.Caller(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	req, err := h.parseRegistration(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if req.UserID.String() != caller.ID {
		httputil.RespondWithError(c, apperrors.Forbidden("cannot register a patient for another user"))
		return
	}

	p, err := h.service.RegisterPatient(c.Request.Context(), req)
	if err != nil {
		httputil.RespondWithError(c, serviceError(err))
		return
	}

	httputil.RespondWithStatus(c, http.StatusCreated, p)
}

func (h *Handler) GetPatientByUser(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid user ID", err))
		return
	}
	if caller, ok := handler.Caller(c); !ok || caller.ID != userID.String() {
		httputil.RespondWithError(c, apperrors.Forbidden("cannot read another user's patient record"))
		return
	}

	p, err := h.service.GetPatientByUser(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, serviceError(err))
		return
	}

	httputil.RespondWithSuccess(c, p)
}

func (h *Handler) GetDocument(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid document ID", err))
		return
	}
	caller, ok := handler.Caller(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}
	owner, err := uuid.Parse(caller.ID)
	if err != nil {
		httputil.RespondWithError(c, apperrors.Unauthorized(err))
		return
	}

	doc, err := h.service.GetDocument(c.Request.Context(), id, owner)
	if err != nil {
		httputil.RespondWithError(c, serviceError(err))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.FileName))
	c.Header("X-Content-Checksum", doc.Checksum)
	c.Data(http.StatusOK, doc.ContentType, doc.Data)
}

func (h *Handler) parseRegistration(c *gin.Context) (*patient.RegisterRequest, error) {
	var body registerBody
	var upload *model.DocumentUpload

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		raw := c.PostForm(intake.PatientField)
		if raw == "" {
			return nil, apperrors.BadRequest(intake.PatientField+" field is required", nil)
		}
		if err := json.Unmarshal([]byte(raw), &body); err != nil {
			return nil, apperrors.BadRequest("invalid "+intake.PatientField+" field", err)
		}
		var err error
		if upload, err = h.readDocument(c); err != nil {
			return nil, err
		}
	} else if err := c.ShouldBindJSON(&body); err != nil {
		return nil, handler.BindError(err)
	}

	userID, err := uuid.Parse(body.UserID)
	if err != nil {
		return nil, apperrors.Invalid(map[string]string{"userId": "Invalid user id"})
	}
	birthDate, err := model.ParseBirthDate(body.BirthDate)
	if err != nil {
		return nil, apperrors.Invalid(map[string]string{"birthDate": "Invalid birth date"})
	}

	return &patient.RegisterRequest{
		PatientFields: body.PatientFields,
		UserID:        userID,
		BirthDate:     birthDate,
		Document:      upload,
	}, nil
}

// readDocument returns the blobFile part, or nil when the request has none.
func (h *Handler) readDocument(c *gin.Context) (*model.DocumentUpload, error) {
	fh, err := c.FormFile(intake.BlobFileField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, apperrors.BadRequest("invalid "+intake.BlobFileField+" part", err)
	}
	if h.maxDocumentSize > 0 && fh.Size > h.maxDocumentSize {
		return nil, apperrors.TooLarge("identification document is too large", nil)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, apperrors.BadRequest("unable to read "+intake.BlobFileField, err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, apperrors.BadRequest("unable to read "+intake.BlobFileField, err)
	}

	name := c.PostForm(intake.FileNameField)
	if name == "" {
		name = fh.Filename
	}
	return &model.DocumentUpload{
		FileName:    name,
		ContentType: fh.Header.Get("Content-Type"),
		Content:     content,
	}, nil
}

func serviceError(err error) error {
	var fe validator.FieldErrors
	switch {
	case errors.As(err, &fe):
		return apperrors.Invalid(fe)
	case errors.Is(err, patient.ErrMissingBirthDate):
		return apperrors.Invalid(map[string]string{"birthDate": "birthDate is required"})
	case errors.Is(err, patient.ErrUserNotFound):
		return apperrors.NotFound("user", err)
	case errors.Is(err, patient.ErrPatientNotFound):
		return apperrors.NotFound("patient", err)
	case errors.Is(err, patient.ErrDocumentNotFound):
		return apperrors.NotFound("document", err)
	case errors.Is(err, patient.ErrDocumentForbidden):
		return apperrors.Forbidden("document belongs to another user")
	case errors.Is(err, patient.ErrPatientExists):
		return apperrors.Conflict("patient already registered", err)
	case errors.Is(err, patient.ErrDocumentTooLarge):
		return apperrors.TooLarge("identification document is too large", err)
	case errors.Is(err, patient.ErrUnsupportedDocumentType):
		return apperrors.Unsupported("unsupported identification document type", err)
	case errors.Is(err, patient.ErrEmptyDocument):
		return apperrors.BadRequest("identification document is empty", err)
	default:
		return apperrors.Internal(err)
	}
}
