package model

import (
	"errors"
	"fmt"
)

// Standard error codes.
const (
	ErrBadRequest      = "BAD_REQUEST"
	ErrUnauthorized    = "UNAUTHORIZED"
	ErrForbidden       = "FORBIDDEN"
	ErrNotFound        = "NOT_FOUND"
	ErrConflict        = "CONFLICT"
	ErrValidationError = "VALIDATION_ERROR"
	ErrUnknownForm     = "UNKNOWN_FORM"
	ErrInternalError   = "INTERNAL_ERROR"
)

// ErrorEnvelope is the standard error response envelope returned at the HTTP
// boundary. It implements the error interface.
type ErrorEnvelope struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
	TraceID string       `json:"trace_id,omitempty"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a field-level validation error.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError reports that a single declared argument failed conversion.
// It is recoverable: the caller decides whether to re-render a form or answer
// with a client error.
type ValidationError struct {
	Arg     string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Arg == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid argument %q: %s", e.Arg, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid builds a ValidationError for the given argument from any error
// produced by an underlying conversion function.
func Invalid(arg string, err error) *ValidationError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		// Already translated; attach the argument name if missing.
		if ve.Arg == "" {
			return &ValidationError{Arg: arg, Message: ve.Message, Err: ve.Err}
		}
		return ve
	}
	return &ValidationError{Arg: arg, Message: err.Error(), Err: err}
}

// Invalidf builds a ValidationError with a formatted message.
func Invalidf(arg, format string, args ...any) *ValidationError {
	return &ValidationError{Arg: arg, Message: fmt.Sprintf(format, args...)}
}

// PermissionDenied reports that a declared permission check failed for a
// subject. It is a distinct outcome from a validation failure.
type PermissionDenied struct {
	Subject    string
	Permission string
}

// Error implements the error interface.
func (e *PermissionDenied) Error() string {
	return fmt.Sprintf("%s is not allowed to %s", e.Subject, e.Permission)
}

// ConfigError marks a programming mistake: an unknown permission name, a
// declared argument with no source, a reserved-name collision. It must fail
// loudly at setup or on first use, never degrade to a denial or an empty
// result.
type ConfigError struct {
	Msg string
}

// Error implements the error interface.
func (e *ConfigError) Error() string { return "config: " + e.Msg }

// Configf builds a ConfigError with a formatted message.
func Configf(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// NewBadRequestError returns a BAD_REQUEST envelope.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: msg}
}

// NewUnauthorizedError returns an UNAUTHORIZED envelope.
func NewUnauthorizedError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrUnauthorized, Message: msg}
}

// NewForbiddenError returns a FORBIDDEN envelope.
func NewForbiddenError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrForbidden, Message: msg}
}

// NewNotFoundError returns a NOT_FOUND envelope.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFound, Message: msg}
}

// NewValidationEnvelope returns a VALIDATION_ERROR envelope with field-level
// details.
func NewValidationEnvelope(details []FieldError) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrValidationError,
		Message: "One or more fields are invalid",
		Details: details,
	}
}

// NewUnknownFormError returns an UNKNOWN_FORM envelope.
func NewUnknownFormError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrUnknownForm, Message: msg}
}

// NewInternalError returns an INTERNAL_ERROR envelope.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Message: "An unexpected error occurred",
	}
}

// Envelope translates a pipeline error into an ErrorEnvelope for the HTTP
// boundary. ConfigErrors map to INTERNAL_ERROR: they indicate a programming
// mistake, not bad input.
func Envelope(err error) *ErrorEnvelope {
	var (
		ee *ErrorEnvelope
		ve *ValidationError
		pd *PermissionDenied
		ce *ConfigError
	)
	switch {
	case errors.As(err, &ee):
		return ee
	case errors.As(err, &ve):
		return &ErrorEnvelope{
			Code:    ErrValidationError,
			Message: ve.Message,
			Details: []FieldError{{Field: ve.Arg, Code: "INVALID_VALUE", Message: ve.Message}},
		}
	case errors.As(err, &pd):
		return NewForbiddenError(pd.Error())
	case errors.As(err, &ce):
		return NewInternalError()
	default:
		return NewInternalError()
	}
}
