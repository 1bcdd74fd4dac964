package app

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/example/khal/internal/models"
)

// requestValidate is the validator instance for primary port requests.
// Initialized in init() with the enum validators.
var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New(validator.WithRequiredStructEnabled())

	_ = requestValidate.RegisterValidation("status", func(fl validator.FieldLevel) bool {
		return models.Status(fl.Field().String()).Valid()
	})
	_ = requestValidate.RegisterValidation("source_type", func(fl validator.FieldLevel) bool {
		return models.SourceType(fl.Field().String()).Valid()
	})
	_ = requestValidate.RegisterValidation("horizon", func(fl validator.FieldLevel) bool {
		return models.Horizon(fl.Field().String()).Valid()
	})
	_ = requestValidate.RegisterValidation("craft_level", func(fl validator.FieldLevel) bool {
		level := models.CraftLevel(fl.Field().String())
		for _, l := range models.CraftLevels {
			if l == level {
				return true
			}
		}
		return false
	})
}

// validateRequest checks req against its struct tags and converts failures
// into a *models.ValidationError listing one issue per field.
func validateRequest(req any) error {
	err := requestValidate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return models.NewValidationError(err.Error())
	}

	issues := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		issues = append(issues, describe(fe))
	}
	return models.NewValidationError(issues...)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must not be empty", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "status", "source_type", "horizon", "craft_level":
		return fmt.Sprintf("%s has unknown value %v", fe.Field(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
