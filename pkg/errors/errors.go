package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeMissingCredentials ErrorType = "missing_credentials"
	ErrorTypeAuthProtocol       ErrorType = "auth_protocol"
	ErrorTypeAuth               ErrorType = "auth"
	ErrorTypeNetwork            ErrorType = "network"
	ErrorTypeRateLimit          ErrorType = "rate_limit"
	ErrorTypeNotFound           ErrorType = "not_found"
	ErrorTypeServerError        ErrorType = "server_error"
	ErrorTypeConfigProfile      ErrorType = "config_profile"
	ErrorTypeParsing            ErrorType = "parsing"
	ErrorTypeUnknown            ErrorType = "unknown"
)

// Error represents an API error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(errorType ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errorType,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	}
}

// Wrap attaches a type to an underlying error
func Wrap(errorType ErrorType, err error, msg string) *Error {
	return &Error{
		Type:    errorType,
		Message: fmt.Sprintf("%s: %v", msg, err),
		Err:     err,
	}
}

// TypeOf returns the type of the first *Error in err's chain, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err carries the given type
func IsType(err error, errorType ErrorType) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Type == errorType
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeNotFound:
		return true
	default:
		return false
	}
}

// IsFatal reports whether an error type must terminate the current collection
func IsFatal(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeMissingCredentials, ErrorTypeAuthProtocol, ErrorTypeConfigProfile:
		return true
	default:
		return false
	}
}
