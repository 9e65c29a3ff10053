// Package errors defines the stable error codes used across splits.
package errors

import (
	"errors"
	"fmt"
)

// Code is a stable error code string.
type Code string

// Error codes.
const (
	EInvalidState    Code = "E_INVALID_STATE"    // transition not allowed from the current state
	ERunActive       Code = "E_RUN_ACTIVE"       // a run is already open
	ENoActiveRun     Code = "E_NO_ACTIVE_RUN"    // operation needs an open run
	ENotFound        Code = "E_NOT_FOUND"        // missing history file or unmapped key
	EPersistFailed   Code = "E_PERSIST_FAILED"   // history could not be written
	EDecodeFailed    Code = "E_DECODE_FAILED"    // history file exists but cannot be decoded
	EInvalidConfig   Code = "E_INVALID_CONFIG"   // settings failed validation
	EHostUnavailable Code = "E_HOST_UNAVAILABLE" // volatile host data was not available this tick
)

// Error is the standard error type for splits.
type Error struct {
	Code    Code
	Msg     string
	Cause   error
	Details map[string]string
}

// Error returns the stable format "CODE: message".
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Msg: msg}
}

// Wrap creates a new Error wrapping an underlying error.
func Wrap(code Code, msg string, err error) error {
	return &Error{Code: code, Msg: msg, Cause: err}
}

// NewWithDetails creates a new Error with structured context.
// Details map is copied (nil if empty).
func NewWithDetails(code Code, msg string, details map[string]string) error {
	return &Error{Code: code, Msg: msg, Details: copyDetails(details)}
}

// WrapWithDetails wraps err with a code, message and structured context.
func WrapWithDetails(code Code, msg string, err error, details map[string]string) error {
	return &Error{Code: code, Msg: msg, Cause: err, Details: copyDetails(details)}
}

// GetCode extracts the error code from an error, or empty string if not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	return err != nil && GetCode(err) == code
}

// As returns (*Error, true) if err is or wraps an *Error.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func copyDetails(details map[string]string) map[string]string {
	if len(details) == 0 {
		return nil
	}
	cp := make(map[string]string, len(details))
	for k, v := range details {
		cp[k] = v
	}
	return cp
}
