package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/bugsage-dev/bugsage/internal/domain"
	apperrors "github.com/bugsage-dev/bugsage/pkg/util/errorutil"
)

var markupPattern = regexp.MustCompile(`<[^>]*>`)

// SanitizeText strips markup tags and surrounding whitespace from user text.
func SanitizeText(s string) string {
	return strings.TrimSpace(markupPattern.ReplaceAllString(s, ""))
}

// inputValidator wraps validator/v10 with the tracker's enum rules and
// reports the first failing field as a validation error.
type inputValidator struct {
	validate *validator.Validate
}

func newInputValidator() *inputValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("bug_priority", func(fl validator.FieldLevel) bool {
		_, ok := domain.ParseBugPriority(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("bug_status", func(fl validator.FieldLevel) bool {
		_, ok := domain.ParseBugStatus(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
		_, ok := domain.ParseUserRole(fl.Field().String())
		return ok
	})
	return &inputValidator{validate: v}
}

func (iv *inputValidator) Struct(input any) error {
	err := iv.validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperrors.NewValidationError("invalid input", nil)
	}
	first := fieldErrs[0]
	return apperrors.NewFieldError(first.Field(), fieldMessage(first))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "invalid email format"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "bug_priority":
		return "invalid priority"
	case "bug_status":
		return "invalid status"
	case "user_role":
		return "invalid role"
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
