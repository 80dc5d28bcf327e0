// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"errors"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	// ErrTypeConnection means the gateway could not be reached.
	ErrTypeConnection
	// ErrTypeHTTPStatus means the gateway answered with a non-2xx status.
	ErrTypeHTTPStatus
	// ErrTypeInvalidResponse means a 2xx body could not be decoded.
	ErrTypeInvalidResponse
	// ErrTypeValidation means the request was rejected before any I/O.
	ErrTypeValidation
	// ErrTypeCanceled means the caller's context ended the request.
	ErrTypeCanceled
)

// String returns the error type name.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeConnection:
		return "connection"
	case ErrTypeHTTPStatus:
		return "http_status"
	case ErrTypeInvalidResponse:
		return "invalid_response"
	case ErrTypeValidation:
		return "validation"
	case ErrTypeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// ClientError represents an error from the gateway client.
type ClientError struct {
	Type    ErrorType
	Status  int
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

func validationError(msg string) *ClientError {
	return &ClientError{Type: ErrTypeValidation, Message: msg}
}

// transportError classifies an error returned by http.Client.Do.
func transportError(ctx context.Context, msg string, err error) *ClientError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &ClientError{Type: ErrTypeCanceled, Message: msg, Cause: ctxErr}
	}
	return &ClientError{Type: ErrTypeConnection, Message: msg, Cause: err}
}

// =============================================================================
// HELPERS
// =============================================================================

func isType(err error, t ErrorType) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == t
	}
	return false
}

// IsConnection checks if an error means the gateway was unreachable.
func IsConnection(err error) bool {
	return isType(err, ErrTypeConnection)
}

// IsValidation checks if an error was raised before any network call.
func IsValidation(err error) bool {
	return isType(err, ErrTypeValidation)
}

// IsCanceled checks if an error was caused by context cancellation.
func IsCanceled(err error) bool {
	return isType(err, ErrTypeCanceled) || errors.Is(err, context.Canceled)
}

// IsStatus checks if an error is an HTTP status error with the given code.
func IsStatus(err error, code int) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeHTTPStatus && clientErr.Status == code
	}
	return false
}
