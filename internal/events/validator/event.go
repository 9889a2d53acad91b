package validator

import (
	"errors"
	"fmt"
	"reflect"
	"rinkside/pkg/logger"
	"rinkside/pkg/model"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type EventValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewEventValidator(log *logger.Logger) *EventValidator {
	v := validator.New()

	for tag, fn := range map[string]validator.Func{
		"weekdays_set":  intSet(0, 6, 7),
		"monthdays_set": intSet(1, 31, 31),
		"months_set":    intSet(0, 11, 12),
	} {
		if err := v.RegisterValidation(tag, fn); err != nil {
			log.Error("Failed to register validation tag", "tag", tag, "error", err.Error())
		}
	}

	log.Info("Event validator initialized successfully")

	return &EventValidator{
		validate: v,
		logger:   log,
	}
}

// intSet validates a slice of day or month ordinals: every element within
// [min, max] and no more than maxLen elements total.
func intSet(min, max int64, maxLen int) validator.Func {
	return func(fl validator.FieldLevel) bool {
		field := fl.Field()
		if field.Kind() == reflect.Ptr {
			if field.IsNil() {
				return true
			}
			field = field.Elem()
		}
		if field.Kind() != reflect.Slice {
			return false
		}
		if field.Len() > maxLen {
			return false
		}
		for i := 0; i < field.Len(); i++ {
			value := field.Index(i).Int()
			if value < min || value > max {
				return false
			}
		}
		return true
	}
}

func (v *EventValidator) Validate(event *model.Event) error {
	if err := v.validate.Struct(event); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if !event.Window.Valid() {
		return ValidationErrors{
			ValidationError{
				Field:   "Window",
				Message: "window end must be after start",
			},
		}
	}

	if event.ParentEventID != "" && event.RecurrenceRuleID != "" {
		return ValidationErrors{
			ValidationError{
				Field:   "RecurrenceRuleID",
				Message: "an exception instance cannot own a recurrence rule",
			},
		}
	}

	return nil
}

func (v *EventValidator) ValidateUpdate(update *model.EventUpdate) error {
	if err := v.validate.Struct(update); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if update.Window != nil && !update.Window.Valid() {
		return ValidationErrors{
			ValidationError{
				Field:   "Window",
				Message: "window end must be after start",
			},
		}
	}

	return nil
}

func (v *EventValidator) ValidateRule(rule *model.RecurrenceRule) error {
	if err := v.validate.Struct(rule); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *EventValidator) ValidateCandidate(candidate *model.Candidate) error {
	if err := v.validate.Struct(candidate); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if !candidate.Window.Valid() {
		return ValidationErrors{
			ValidationError{
				Field:   "Window",
				Message: "window end must be after start",
			},
		}
	}

	return nil
}

func (v *EventValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "uuid4":
			message = fmt.Sprintf("%s must be a valid UUID", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", err.Field(), err.Param())
		case "weekdays_set":
			message = fmt.Sprintf("%s must hold at most 7 values between 0 and 6", err.Field())
		case "monthdays_set":
			message = fmt.Sprintf("%s must hold at most 31 values between 1 and 31", err.Field())
		case "months_set":
			message = fmt.Sprintf("%s must hold at most 12 values between 0 and 11", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
