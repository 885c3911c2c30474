package handler

import (
	"errors"

	"github.com/gin-gonic/gin/binding"
	playground "github.com/go-playground/validator/v10"

	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/validator"
)

// RegisterValidations adds the domain tags used in binding:"..." struct tags
// to gin's shared validator.
func RegisterValidations() error {
	engine, ok := binding.Validator.Engine().(*playground.Validate)
	if !ok {
		return errors.New("gin binding engine is not go-playground/validator")
	}
	return validator.RegisterStringEnum(engine, "appointment_status", func(s string) bool {
		return model.AppointmentStatus(s).IsValid()
	})
}
