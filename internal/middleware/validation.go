package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	govalidator "github.com/go-playground/validator/v10"

	"github.com/jwalitptl/patient-intake/pkg/validator"
)

// RegisterValidation installs the registration rules and json field naming
// into gin's binding validator so bound requests report the same field
// messages as the form.
func RegisterValidation() error {
	v, ok := binding.Validator.Engine().(*govalidator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding engine %T", binding.Validator.Engine())
	}
	return validator.RegisterRules(v)
}
