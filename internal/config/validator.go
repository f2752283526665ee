package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/itinera-ai/itinera/internal/types"
)

// Validator validates configuration documents before a run starts. A
// validation failure is fatal: the run is rejected before any stage
// executes.
type Validator interface {
	Validate(cfg *Config) error
}

type validatorImpl struct {
	validate *validator.Validate
}

// NewValidator creates a Validator backed by struct tag validation.
func NewValidator() Validator {
	return &validatorImpl{validate: validator.New()}
}

func (v *validatorImpl) Validate(cfg *Config) error {
	if cfg == nil {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "configuration is nil")
	}

	if err := v.validate.Struct(cfg); err != nil {
		validationErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return types.WrapError(types.CONFIG_VALIDATION_FAILED, "validation error", err)
		}
		messages := make([]string, 0, len(validationErrs))
		for _, e := range validationErrs {
			messages = append(messages, formatValidationError(e))
		}
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(messages, "\n  - ")))
	}

	// Cross-field checks struct tags cannot express.
	if cfg.Trip.Party.Adults+cfg.Trip.Party.Children+cfg.Trip.Party.Seniors == 0 {
		// An empty party section means one adult; only an explicit all-zero
		// party would be rejected by the constraint conversion later.
		return nil
	}
	if cfg.Trip.Party.Adults == 0 && cfg.Trip.Party.Seniors == 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			"configuration validation failed:\n  - trip.party must include at least one adult or senior")
	}
	return nil
}

func formatValidationError(e validator.FieldError) string {
	field := strings.ToLower(e.Namespace())
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s (got: %v)", field, e.Param(), e.Value())
	case "gte":
		return fmt.Sprintf("%s must be at least %s (got: %v)", field, e.Param(), e.Value())
	case "lte":
		return fmt.Sprintf("%s must be at most %s (got: %v)", field, e.Param(), e.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got: %v)", field, e.Param(), e.Value())
	case "datetime":
		return fmt.Sprintf("%s must be a date in %s format (got: %v)", field, e.Param(), e.Value())
	default:
		return fmt.Sprintf("%s failed %s validation (got: %v)", field, e.Tag(), e.Value())
	}
}
