package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/zatekoja/clinicbooking/internal/domain/entities"
	apperrors "github.com/zatekoja/clinicbooking/pkg/errors"
)

// enumValue is implemented by the string enums of the entities package
type enumValue interface {
	Valid() bool
}

// newValidator returns a validator that reports fields by their json name
// and understands the "enum" tag.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("enum", func(fl validator.FieldLevel) bool {
		field := fl.Field()
		if field.Kind() == reflect.Pointer {
			if field.IsNil() {
				return true
			}
			field = field.Elem()
		}
		if e, ok := field.Interface().(enumValue); ok {
			return e.Valid()
		}
		return false
	})
	return v
}

// validationError converts validator output into a single validation AppError
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError(err.Error())
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", fe.Field()))
		case "enum":
			messages = append(messages, fmt.Sprintf("%s has unknown value %q", fe.Field(), fmt.Sprint(fe.Value())))
		case "email":
			messages = append(messages, fmt.Sprintf("%s is not a valid email address", fe.Field()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return apperrors.NewValidationError(strings.Join(messages, "; "))
}

// checkBirthDate rejects a date of birth after today
func checkBirthDate(dob *time.Time, today time.Time) error {
	if dob == nil {
		return nil
	}
	if entities.DateOnly(*dob).After(entities.DateOnly(today)) {
		return apperrors.NewValidationError("date_of_birth must not be in the future")
	}
	return nil
}
