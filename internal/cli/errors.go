// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/difychat/internal/gateway"
	"github.com/jeranaias/difychat/internal/store"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError is a malformed command line.
type UsageError struct {
	Message string
	Usage   string // optional synopsis
}

func (e *UsageError) Error() string {
	if e.Usage != "" {
		return fmt.Sprintf("%s\nUsage: %s", e.Message, e.Usage)
	}
	return e.Message
}

// ValidationError is a flag or argument with a bad value.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	return msg
}

// NotFoundError is a conversation or key that does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrCancelled is returned when the user declines a confirmation.
var ErrCancelled = errors.New("cancelled")

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err for a human, or as a JSON envelope.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil || IsReported(err) {
		return
	}
	if jsonMode {
		_ = NewJSONErrorResponse("", err).Print(w)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("Error:"), describe(err))
}

// describe rewrites well-known errors into something actionable.
func describe(err error) string {
	var ce *gateway.ClientError
	switch {
	case errors.Is(err, store.ErrUnknownModel):
		return err.Error() + " (see: difychat models)"
	case errors.As(err, &ce) && ce.Type == gateway.ErrTypeConnection:
		return err.Error() + " (is the gateway running? check gateway.base_url)"
	default:
		return err.Error()
	}
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
