package common

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

// ValidationError represents a single field failure
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Validator collects field failures in the order they are checked
type Validator struct {
	errors []ValidationError
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{errors: make([]ValidationError, 0)}
}

// Field runs rules against value and records every failure
func (v *Validator) Field(fieldName, value string, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if msg := rule(value); msg != "" {
			v.errors = append(v.errors, ValidationError{Field: fieldName, Message: msg})
		}
	}
	return v
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors
func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// ErrorMessage joins all failures into one line
func (v *Validator) ErrorMessage() string {
	if !v.HasErrors() {
		return ""
	}
	messages := make([]string, 0, len(v.errors))
	for _, err := range v.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// Err returns nil or an AppError wrapping ErrValidation
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return NewAppError("VALIDATION_ERROR", v.ErrorMessage(), ErrValidation)
}

// ValidationRule returns a non-empty message when value fails
type ValidationRule func(value string) string

func Required(value string) string {
	if strings.TrimSpace(value) == "" {
		return "is required"
	}
	return ""
}

func MinLength(n int) ValidationRule {
	return func(value string) string {
		if utf8.RuneCountInString(value) < n {
			return fmt.Sprintf("must be at least %d characters", n)
		}
		return ""
	}
}

func MaxLength(n int) ValidationRule {
	return func(value string) string {
		if utf8.RuneCountInString(value) > n {
			return fmt.Sprintf("must be at most %d characters", n)
		}
		return ""
	}
}

// MaxBytes bounds the encoded size, for limits that count bytes rather than characters.
func MaxBytes(n int) ValidationRule {
	return func(value string) string {
		if len(value) > n {
			return fmt.Sprintf("must be at most %d bytes", n)
		}
		return ""
	}
}

func Email(value string) string {
	if value == "" {
		return ""
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return "must be a valid email address"
	}
	return ""
}

// OneOf accepts the empty string so it composes with Required.
func OneOf(allowed ...string) ValidationRule {
	return func(value string) string {
		if value == "" {
			return ""
		}
		for _, a := range allowed {
			if value == a {
				return ""
			}
		}
		return "must be one of " + strings.Join(allowed, ", ")
	}
}

// Date accepts YYYY-MM-DD or RFC 3339.
func Date(value string) string {
	if value == "" {
		return ""
	}
	if _, err := ParseDate(value); err != nil {
		return "must be a date (YYYY-MM-DD)"
	}
	return ""
}

// ParseDate parses YYYY-MM-DD or RFC 3339 input.
func ParseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}
