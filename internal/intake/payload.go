package intake

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"

	"github.com/jwalitptl/patient-intake/internal/model"
)

// Multipart field keys of a registration request. PatientField carries the
// JSON encoded registration fields.
const (
	PatientField  = "patient"
	BlobFileField = "blobFile"
	FileNameField = "fileName"
)

const defaultContentType = "application/octet-stream"

// BuildUploadPayload packages doc as a multipart body. It returns nil when no
// document was selected.
func BuildUploadPayload(doc *model.IdentificationDocument) (*model.UploadPayload, error) {
	if doc == nil {
		return nil, nil
	}

	contentType := doc.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     BlobFileField,
		"filename": doc.FileName,
	}))
	header.Set("Content-Type", contentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s part: %w", BlobFileField, err)
	}
	if _, err := part.Write(doc.Content); err != nil {
		return nil, fmt.Errorf("failed to write %s part: %w", BlobFileField, err)
	}
	if err := w.WriteField(FileNameField, doc.FileName); err != nil {
		return nil, fmt.Errorf("failed to write %s field: %w", FileNameField, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart payload: %w", err)
	}

	return &model.UploadPayload{
		FileName:        doc.FileName,
		FileContentType: contentType,
		ContentType:     w.FormDataContentType(),
		Body:            body.Bytes(),
	}, nil
}

// BuildRegisterParams assembles the outbound payload from validated values.
func BuildRegisterParams(values *model.PatientRegistrationInput, caller model.CallerIdentity) (*model.RegisterPatientParams, error) {
	birthDate, err := model.ParseBirthDate(values.BirthDate)
	if err != nil {
		return nil, err
	}

	upload, err := BuildUploadPayload(values.IdentificationDocument)
	if err != nil {
		return nil, err
	}

	return &model.RegisterPatientParams{
		PatientFields:          values.PatientFields,
		UserID:                 caller.ID,
		BirthDate:              birthDate,
		IdentificationDocument: upload,
	}, nil
}

// AppointmentRoute is where a caller lands after registering.
func AppointmentRoute(userID string) string {
	return fmt.Sprintf("/patients/%s/new-appointment", userID)
}
