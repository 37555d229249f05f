package validator

import (
	"time"

	"github.com/go-playground/validator/v10"
)

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New()

	// Custom validators
	v.RegisterValidation("fhir_date", validateFHIRDate)

	return &Validator{validate: v}
}

func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// validateFHIRDate accepts FHIR date search values: a full date or a plain
// year.
func validateFHIRDate(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	for _, layout := range []string{"2006-01-02", "2006"} {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}
