package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var phoneRegexp = regexp.MustCompile(`^[0-9]{10}$`)

// Validator wraps go-playground/validator with the project's custom tags.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// phone10: exactly ten digits.
	_ = v.RegisterValidation("phone10", func(fl validator.FieldLevel) bool {
		return phoneRegexp.MatchString(fl.Field().String())
	})
	return &Validator{v: v}
}

// RegisterStringEnum registers tag on v as a check that accepts the field's
// string value only when valid reports true. It works on the shared gin
// binding engine as well as on a Validator.
func RegisterStringEnum(v *validator.Validate, tag string, valid func(string) bool) error {
	return v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return valid(fl.Field().String())
	})
}

// RegisterValidation adds a custom tag.
func (v *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return v.v.RegisterValidation(tag, fn)
}

// Engine returns the underlying validator, e.g. to share it with gin binding.
func (v *Validator) Engine() *validator.Validate {
	return v.v
}

// Validate checks obj and flattens field errors into one readable message.
func (v *Validator) Validate(obj interface{}) error {
	err := v.v.Struct(obj)
	if err == nil {
		return nil
	}
	return errors.New(Describe(err))
}

// Describe renders validation errors as "Field is required; ..." and any
// other error as its plain message.
func Describe(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return strings.Join(msgs, "; ")
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "phone10":
		return fmt.Sprintf("%s must be a 10 digit phone number", field)
	case "appointment_status":
		return fmt.Sprintf("%s must be a valid appointment status", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
