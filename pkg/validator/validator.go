package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/patient-intake/internal/model"
)

var phonePattern = regexp.MustCompile(`^\+\d{10,15}$`)

// FieldErrors maps a field name onto its first failing message.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, e[f]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validator provides validation functionality
type Validator interface {
	Validate(obj interface{}) error
}

type structValidator struct {
	v *validator.Validate
}

func New() Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := RegisterRules(v); err != nil {
		panic(err)
	}
	return &structValidator{v: v}
}

// Validate returns FieldErrors when obj fails any constraint.
func (s *structValidator) Validate(obj interface{}) error {
	err := s.v.Struct(obj)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	return Translate(verrs)
}

// RegisterRules installs the registration rules and json field naming on v.
func RegisterRules(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	rules := map[string]validator.Func{
		"phone": func(fl validator.FieldLevel) bool {
			return phonePattern.MatchString(fl.Field().String())
		},
		"consent": func(fl validator.FieldLevel) bool {
			return fl.Field().Kind() == reflect.Bool && fl.Field().Bool()
		},
		"gender": func(fl validator.FieldLevel) bool {
			return model.IsGender(fl.Field().String())
		},
		"idtype": func(fl validator.FieldLevel) bool {
			return model.IsIdentificationType(fl.Field().String())
		},
		"physician": func(fl validator.FieldLevel) bool {
			return model.IsPhysician(fl.Field().String())
		},
		"birthdate": func(fl validator.FieldLevel) bool {
			_, err := model.ParseBirthDate(fl.Field().String())
			return err == nil
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s rule: %w", tag, err)
		}
	}
	return nil
}

var fieldMessages = map[string]string{
	"primaryPhysician":  "Select at least one doctor",
	"treatmentConsent":  "You must consent to treatment in order to proceed",
	"disclosureConsent": "You must consent to disclosure in order to proceed",
	"privacyConsent":    "You must consent to privacy in order to proceed",
}

// Translate converts validator errors into per-field messages.
func Translate(verrs validator.ValidationErrors) FieldErrors {
	out := make(FieldErrors, len(verrs))
	for _, e := range verrs {
		field := e.Field()
		if _, seen := out[field]; seen {
			continue
		}
		out[field] = message(field, e)
	}
	return out
}

func message(field string, e validator.FieldError) string {
	if msg, ok := fieldMessages[field]; ok {
		return msg
	}
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	case "email":
		return "Invalid email address"
	case "phone":
		return "Invalid phone number"
	case "gender":
		return fmt.Sprintf("%s must be one of %s", field, strings.Join(model.GenderOptions, ", "))
	case "idtype":
		return "Unknown identification type"
	case "birthdate":
		return "Invalid birth date"
	default:
		return fmt.Sprintf("%s failed on %s", field, e.Tag())
	}
}
