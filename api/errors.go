// Package api
// License: Apache-2.0
//
// Common error types and error handling utilities for the dispatch core.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the daemon.
var (
	ErrFatal           = errors.New("fatal")
	ErrInterrupted     = errors.New("interrupted by signal")
	ErrNoSocket        = errors.New("peer has no socket")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotSupported    = errors.New("operation not supported")
	ErrNotFound        = errors.New("resource not found")
)

// ErrorCode classifies an *Error.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeFatal
	ErrCodeInvalidArgument
	ErrCodeNotSupported
	ErrCodeNotFound
)

var codeSentinels = map[ErrorCode]error{
	ErrCodeFatal:           ErrFatal,
	ErrCodeInvalidArgument: ErrInvalidArgument,
	ErrCodeNotSupported:    ErrNotSupported,
	ErrCodeNotFound:        ErrNotFound,
}

// Error represents a structured error with code, failed operation and context.
type Error struct {
	Code    ErrorCode
	Op      string
	Err     error
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Op
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel belonging to the error's code.
func (e *Error) Is(target error) bool {
	s, ok := codeSentinels[e.Code]
	return ok && s == target
}

// NewError creates a new structured error for a failed operation.
func NewError(code ErrorCode, op string, cause error) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Err:     cause,
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

// Fatal wraps cause as a fatal failure of op.
func Fatal(op string, cause error) *Error {
	return NewError(ErrCodeFatal, op, cause)
}
