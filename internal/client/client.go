// Package client talks to the intake API on behalf of the form.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/jwalitptl/patient-intake/internal/intake"
	"github.com/jwalitptl/patient-intake/internal/model"
	"github.com/jwalitptl/patient-intake/pkg/circuitbreaker"
	"github.com/jwalitptl/patient-intake/pkg/logger"
)

const maxErrorBody = 64 << 10

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for f, msg := range e.Fields {
			parts = append(parts, f+": "+msg)
		}
		return fmt.Sprintf("api error %d: %s (%s)", e.StatusCode, e.Message, strings.Join(parts, "; "))
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxFailures uint32
	Token       string
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	cb         *circuitbreaker.CircuitBreaker
	logger     *logger.Logger
}

func New(cfg Config, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:         "intake-api",
			MaxFailures:  cfg.MaxFailures,
			Interval:     time.Minute,
			Timeout:      10 * time.Second,
			IsSuccessful: isClientError,
		}),
		logger: log,
	}
}

// CreateUser creates the caller account, or returns the existing one for the
// same email.
func (c *Client) CreateUser(ctx context.Context, req *model.CreateUserRequest) (*model.CreateUserResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user: %w", err)
	}

	var resp model.CreateUserResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/users", "application/json", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetUser(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, http.MethodGet, "/api/v1/users/"+id, "", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// RegisterPatient sends the registration as multipart form data. The upload
// parts of params are copied into the request unchanged.
func (c *Client) RegisterPatient(ctx context.Context, params *model.RegisterPatientParams) (*model.Patient, error) {
	body, contentType, err := encodeRegistration(params)
	if err != nil {
		return nil, err
	}

	// stays nil when the API answers without a patient
	var patient *model.Patient
	if err := c.do(ctx, http.MethodPost, "/api/v1/patients", contentType, body, &patient); err != nil {
		return nil, err
	}
	return patient, nil
}

func encodeRegistration(params *model.RegisterPatientParams) ([]byte, string, error) {
	fields := *params
	fields.IdentificationDocument = nil
	patientJSON, err := json.Marshal(fields)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal registration: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField(intake.PatientField, string(patientJSON)); err != nil {
		return nil, "", fmt.Errorf("failed to write %s field: %w", intake.PatientField, err)
	}

	if upload := params.IdentificationDocument; upload != nil {
		if err := copyParts(w, upload); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func copyParts(w *multipart.Writer, upload *model.UploadPayload) error {
	_, mediaParams, err := mime.ParseMediaType(upload.ContentType)
	if err != nil || mediaParams["boundary"] == "" {
		return fmt.Errorf("invalid upload content type %q", upload.ContentType)
	}

	r := multipart.NewReader(bytes.NewReader(upload.Body), mediaParams["boundary"])
	for {
		part, err := r.NextRawPart()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read upload part: %w", err)
		}

		dst, err := w.CreatePart(part.Header)
		if err != nil {
			return fmt.Errorf("failed to create upload part: %w", err)
		}
		if _, err := io.Copy(dst, part); err != nil {
			return fmt.Errorf("failed to copy upload part: %w", err)
		}
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    int               `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte, out interface{}) error {
	return c.cb.Execute(func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		c.logger.Debug("API call", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start).String())

		var env envelope
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
			if json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&env) == nil && env.Error != nil {
				apiErr.Message = env.Error.Message
				apiErr.Fields = env.Error.Fields
			}
			return apiErr
		}

		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", path, err)
		}
		if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
			return nil
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode %s data: %w", path, err)
		}
		return nil
	})
}

// isClientError keeps 4xx answers from tripping the breaker.
func isClientError(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError
}
