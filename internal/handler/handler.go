package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	govalidator "github.com/go-playground/validator/v10"

	"github.com/jwalitptl/patient-intake/internal/model"
	apperrors "github.com/jwalitptl/patient-intake/pkg/errors"
	"github.com/jwalitptl/patient-intake/pkg/validator"
)

const callerKey = "caller"

// SetCaller stores the authenticated caller on the request context.
func SetCaller(c *gin.Context, caller model.CallerIdentity) {
	c.Set(callerKey, caller)
}

// Caller returns the authenticated caller, if the request carried a valid token.
func Caller(c *gin.Context) (model.CallerIdentity, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return model.CallerIdentity{}, false
	}
	caller, ok := v.(model.CallerIdentity)
	return caller, ok
}

// BindError converts a gin binding failure into an AppError with per-field
// messages when the failure came from the validator.
func BindError(err error) *apperrors.AppError {
	var verrs govalidator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Invalid(validator.Translate(verrs))
	}
	var fe validator.FieldErrors
	if errors.As(err, &fe) {
		return apperrors.Invalid(fe)
	}
	return apperrors.BadRequest("invalid request body", err)
}
