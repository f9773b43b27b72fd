package mutation

import (
	"strconv"
	"strings"

	"github.com/ehr/emr-web/internal/platform/resource"
)

// ValidationError is a client-side check that failed before any backend
// call was made.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Rule checks one aspect of a draft. It returns nil when the draft passes.
type Rule[T any] func(T) *ValidationError

// Validate runs rules in order and returns the first failure.
func Validate[T any](v T, rules ...Rule[T]) error {
	for _, r := range rules {
		if verr := r(v); verr != nil {
			return verr
		}
	}
	return nil
}

// Required fails when get returns a blank string.
func Required[T any](field, message string, get func(T) string) Rule[T] {
	return func(v T) *ValidationError {
		if strings.TrimSpace(get(v)) == "" {
			return &ValidationError{Field: field, Message: message}
		}
		return nil
	}
}

// RequiredID fails when get returns an empty, zero or placeholder id.
func RequiredID[T any](field, message string, get func(T) resource.ID) Rule[T] {
	return func(v T) *ValidationError {
		id := get(v)
		if id.IsZero() || id.IsTemp() {
			return &ValidationError{Field: field, Message: message}
		}
		return nil
	}
}

// Known fails when the id returned by get is not among known(), for example a
// patient id that is not in the currently loaded patient list.
func Known[T any](field, message string, get func(T) resource.ID, known func() []resource.ID) Rule[T] {
	return func(v T) *ValidationError {
		id := get(v)
		for _, k := range known() {
			if k == id {
				return nil
			}
		}
		return &ValidationError{Field: field, Message: message}
	}
}

// OneOf fails when get returns a value outside allowed. Blank values pass;
// combine with Required to reject them.
func OneOf[T any](field string, allowed []string, get func(T) string) Rule[T] {
	return func(v T) *ValidationError {
		val := get(v)
		if val == "" {
			return nil
		}
		for _, a := range allowed {
			if a == val {
				return nil
			}
		}
		return &ValidationError{Field: field, Message: field + " must be one of " + strings.Join(allowed, ", ")}
	}
}

// Date fails when get returns a non-blank value that is not a date.
func Date[T any](field string, get func(T) string) Rule[T] {
	return func(v T) *ValidationError {
		val := strings.TrimSpace(get(v))
		if val == "" {
			return nil
		}
		if _, err := resource.ParseDate(val); err != nil {
			return &ValidationError{Field: field, Message: field + " must be a valid date"}
		}
		return nil
	}
}

// Number fails when get returns a non-blank value that is not a number.
func Number[T any](field string, get func(T) string) Rule[T] {
	return func(v T) *ValidationError {
		val := strings.TrimSpace(get(v))
		if val == "" {
			return nil
		}
		if _, err := strconv.ParseFloat(val, 64); err != nil {
			return &ValidationError{Field: field, Message: field + " must be a number"}
		}
		return nil
	}
}
