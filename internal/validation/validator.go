// Package validation checks decoded request bodies with validator/v10 and
// reports failures as validation errors keyed by JSON field name.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/foresafe/foresafe/internal/apperr"
	"github.com/foresafe/foresafe/internal/model"
)

type Validator struct {
	v *validator.Validate
}

// New creates a validator with the alert_category rule registered.
func New() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	v.RegisterValidation("alert_category", func(fl validator.FieldLevel) bool {
		_, err := model.ParseCategory(fl.Field().String())
		return err == nil
	})

	return &Validator{v: v}
}

// Validate validates a struct and returns an apperr validation error.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fieldErrors := make(map[string]string)
	names := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		fieldErrors[e.Field()] = friendlyMessage(e)
		names = append(names, e.Field())
	}

	msg := "Missing or invalid " + strings.Join(names, ", ")
	return apperr.ValidationWithDetails(msg, fieldErrors)
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "eqfield":
		return "must match " + e.Param()
	case "alert_category":
		return "must be one of GENERAL, PARKING, EMERGENCY"
	default:
		return "is invalid"
	}
}
