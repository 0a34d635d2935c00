// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for kmem-core.

package api

import "fmt"

// Common errors used across the library. Exhaustion of the frame pool is
// the only recoverable resource failure; cache exhaustion and contract
// violations are fatal and panic instead.
var (
	ErrNoFreeFrame     = fmt.Errorf("no free frame available")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrDeviceIO        = fmt.Errorf("block device transfer failed")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeResourceExhausted
	ErrCodeDeviceIO
	ErrCodeInternal
)

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Unwrap maps the code back to its sentinel so errors.Is matching
// works across the structured layer.
func (e *Error) Unwrap() error {
	switch e.Code {
	case ErrCodeInvalidArgument:
		return ErrInvalidArgument
	case ErrCodeResourceExhausted:
		return ErrNoFreeFrame
	case ErrCodeDeviceIO:
		return ErrDeviceIO
	default:
		return nil
	}
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
