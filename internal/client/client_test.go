package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/patient-intake/internal/intake"
	"github.com/jwalitptl/patient-intake/internal/model"
	"github.com/jwalitptl/patient-intake/pkg/circuitbreaker"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func params(t *testing.T, doc *model.IdentificationDocument) *model.RegisterPatientParams {
	t.Helper()
	upload, err := intake.BuildUploadPayload(doc)
	require.NoError(t, err)
	return &model.RegisterPatientParams{
		PatientFields: model.PatientFields{
			Name:             "Adam Smith",
			Email:            "adam@example.com",
			PrimaryPhysician: "Leila Cameron",
			TreatmentConsent: true,
		},
		UserID:                 "u1",
		BirthDate:              time.Date(1990, 4, 12, 0, 0, 0, 0, time.UTC),
		IdentificationDocument: upload,
	}
}

func TestRegisterPatient_SendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/patients", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))

		var fields map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(r.FormValue(intake.PatientField)), &fields))
		assert.Equal(t, "u1", fields["userId"])
		assert.Equal(t, "Adam Smith", fields["name"])
		assert.Equal(t, "1990-04-12T00:00:00Z", fields["birthDate"])
		assert.NotContains(t, fields, "identificationDocument")

		assert.Equal(t, "id.png", r.FormValue(intake.FileNameField))
		f, fh, err := r.FormFile(intake.BlobFileField)
		require.NoError(t, err)
		defer f.Close()
		content, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, []byte("png-bytes"), content)
		assert.Equal(t, "id.png", fh.Filename)
		assert.Equal(t, "image/png", fh.Header.Get("Content-Type"))

		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"name": "Adam Smith", "userId": "8d0f3ac4-4b8c-4d3b-9d2e-6a3c2b1f0e9a"},
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/", Token: "tok"}, nil)
	patient, err := c.RegisterPatient(context.Background(), params(t, &model.IdentificationDocument{
		FileName: "id.png", ContentType: "image/png", Content: []byte("png-bytes"),
	}))
	require.NoError(t, err)
	require.NotNil(t, patient)
	assert.Equal(t, "Adam Smith", patient.Name)
}

func TestRegisterPatient_WithoutDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile(intake.BlobFileField)
		assert.ErrorIs(t, err, http.ErrMissingFile)
		writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "data": map[string]string{"name": "Adam Smith"}})
	}))
	defer srv.Close()

	patient, err := New(Config{BaseURL: srv.URL}, nil).RegisterPatient(context.Background(), params(t, nil))
	require.NoError(t, err)
	assert.Equal(t, "Adam Smith", patient.Name)
}

func TestRegisterPatient_NullData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": nil})
	}))
	defer srv.Close()

	patient, err := New(Config{BaseURL: srv.URL}, nil).RegisterPatient(context.Background(), params(t, nil))
	require.NoError(t, err)
	assert.Nil(t, patient)
}

func TestRegisterPatient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error": map[string]interface{}{
				"code":    400,
				"message": "validation failed",
				"fields":  map[string]string{"privacyConsent": "You must consent to privacy in order to proceed"},
			},
		})
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}, nil).RegisterPatient(context.Background(), params(t, nil))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "You must consent to privacy in order to proceed", apiErr.Fields["privacyConsent"])
	assert.Contains(t, err.Error(), "privacyConsent")
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, MaxFailures: 2}, nil)
	for i := 0; i < 2; i++ {
		_, err := c.GetUser(context.Background(), "u1")
		require.Error(t, err)
	}

	_, err := c.GetUser(context.Background(), "u1")
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_ClientErrorsKeepBreakerClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, MaxFailures: 1}, nil)
	for i := 0; i < 3; i++ {
		_, err := c.GetUser(context.Background(), "u1")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	}
}

func TestCreateUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/users", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req model.CreateUserRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "adam@example.com", req.Email)

		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"user":    map[string]string{"name": req.Name, "email": req.Email},
				"token":   "tok",
				"created": true,
			},
		})
	}))
	defer srv.Close()

	resp, err := New(Config{BaseURL: srv.URL}, nil).CreateUser(context.Background(), &model.CreateUserRequest{
		Name: "Adam", Email: "adam@example.com", Phone: "+15551234567",
	})
	require.NoError(t, err)
	assert.True(t, resp.Created)
	assert.Equal(t, "tok", resp.Token)
	assert.Equal(t, "Adam", resp.User.Name)
}
