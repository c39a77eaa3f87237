package usecase

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
	"github.com/eliteGoblin/focusd/focuslock/internal/strategy"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator. Field names are reported by
// their json tag.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ValidateStruct runs tag validation and converts the first failure into a
// domain validation error.
func ValidateStruct(op string, v interface{}) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return domain.Validation(op, e.Field(), fieldMessage(e))
	}
	return domain.Validation(op, "", err.Error())
}

func fieldMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "this field is required"
	case "uuid":
		return "must be a valid UUID"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		if e.Type().Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters long", e.Param())
		}
		return fmt.Sprintf("must be at most %s", e.Param())
	default:
		return fmt.Sprintf("failed validation on the '%s' tag", e.Tag())
	}
}

// ValidateProfile checks a profile before it is persisted.
func ValidateProfile(p domain.Profile) error {
	const op = "profile.validate"
	if err := ValidateStruct(op, p); err != nil {
		return err
	}
	if err := p.Schedule.Validate(); err != nil {
		return err
	}
	if p.Reminder.Enabled && p.Reminder.After <= 0 {
		return domain.Validation(op, "reminder.after", "reminder delay must be positive")
	}
	if p.Break.Enabled && p.Break.Duration < 0 {
		return domain.Validation(op, "break.duration", "break duration cannot be negative")
	}
	if _, err := strategy.ConfiguredDuration(p); err != nil {
		return err
	}
	return nil
}
