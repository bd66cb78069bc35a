package domain

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dvloznov/finance-assistant/internal/apperr"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("userid", func(fl validator.FieldLevel) bool {
		return ValidUserID(fl.Field().String())
	})
	return v
}

// Validator exposes the shared validator so request structs elsewhere use
// the same field naming and custom tags.
func Validator() *validator.Validate {
	return validate
}

// ValidUserID reports whether id can safely name a per-user directory.
// IDs are used exactly as given, so surrounding whitespace is rejected
// rather than trimmed.
func ValidUserID(id string) bool {
	if id == "" || id == "." || id == ".." || id != strings.TrimSpace(id) {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && !strings.ContainsRune(id, 0)
}

// CheckUserID returns a validation error when id is unusable.
func CheckUserID(op, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperr.E(apperr.KindValidation, op, "user_id is required", nil)
	}
	if id != strings.TrimSpace(id) {
		return apperr.E(apperr.KindValidation, op, "user_id must not have leading or trailing whitespace", nil)
	}
	if !ValidUserID(id) {
		return apperr.E(apperr.KindValidation, op, "user_id contains invalid characters", nil)
	}
	return nil
}

// Validate checks that every required field is present.
func (in TransactionInput) Validate() error {
	const op = "TransactionInput.Validate"
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.E(apperr.KindValidation, op, "invalid transaction", err)
	}
	return apperr.E(apperr.KindValidation, op, describe(verrs), nil)
}

func describe(verrs validator.ValidationErrors) string {
	var missing, invalid []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		} else {
			invalid = append(invalid, fe.Field())
		}
	}
	sort.Strings(missing)
	sort.Strings(invalid)

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid fields: "+strings.Join(invalid, ", "))
	}
	return strings.Join(parts, "; ")
}
