// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-mempool.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrInvalidConfig     = errors.New("invalid pool configuration")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrHeapFailure       = errors.New("heap allocation failed")
	ErrCorruption        = errors.New("pool corruption detected")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidConfig
	ErrCodeInvalidArgument
	ErrCodeExhausted
	ErrCodeHeapFailure
	ErrCodeCorruption
	ErrCodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidConfig:
		return "invalid_config"
	case ErrCodeInvalidArgument:
		return "invalid_argument"
	case ErrCodeExhausted:
		return "exhausted"
	case ErrCodeHeapFailure:
		return "heap_failure"
	case ErrCodeCorruption:
		return "corruption"
	default:
		return "internal"
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the wrapped cause, falling back to the sentinel for Code.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if s := sentinelFor(e.Code); s != nil {
		out = append(out, s)
	}
	if e.cause != nil {
		out = append(out, e.cause)
	}
	return out
}

func sentinelFor(code ErrorCode) error {
	switch code {
	case ErrCodeInvalidConfig:
		return ErrInvalidConfig
	case ErrCodeInvalidArgument:
		return ErrInvalidArgument
	case ErrCodeExhausted:
		return ErrResourceExhausted
	case ErrCodeHeapFailure:
		return ErrHeapFailure
	case ErrCodeCorruption:
		return ErrCorruption
	}
	return nil
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

// WithCause records the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// CodeOf returns the ErrorCode carried by err, or ErrCodeInternal when err
// is not an *Error. A nil err yields ErrCodeOK.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}
