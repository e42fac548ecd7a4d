package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Pipeline failure kinds. Every per-unit error wraps exactly one of these.
var (
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrExtractionFailed     = errors.New("text extraction failed")
	ErrEmptyInput           = errors.New("empty input")
	ErrGatewayUnavailable   = errors.New("model gateway unavailable")
	ErrGatewayError         = errors.New("model gateway error")
	ErrUnparsableResponse   = errors.New("unparsable model response")
	ErrInvalidSchema        = errors.New("model response does not match schema")
)

// Common application errors
var (
	ErrNoUnits      = errors.New("no units supplied")
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("resource already exists")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

var kindCodes = []struct {
	err  error
	code string
}{
	{ErrUnsupportedMediaType, "UnsupportedMediaType"},
	{ErrExtractionFailed, "ExtractionFailed"},
	{ErrEmptyInput, "EmptyInput"},
	{ErrGatewayUnavailable, "GatewayUnavailable"},
	{ErrGatewayError, "GatewayError"},
	{ErrUnparsableResponse, "UnparsableResponse"},
	{ErrInvalidSchema, "InvalidSchema"},
	{ErrNoUnits, "NoUnits"},
	{ErrNotFound, "NotFound"},
	{ErrConflict, "Conflict"},
	{ErrUnauthorized, "Unauthorized"},
	{ErrValidation, "ValidationFailed"},
	{ErrInvalidInput, "InvalidInput"},
}

// ErrorKind returns the stable code of the first known kind err wraps, or "Internal".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kindCodes {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return "Internal"
}

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// KindError tags cause with a pipeline kind while keeping both in the chain.
func KindError(kind error, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}
