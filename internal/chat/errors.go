// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
)

var (
	// ErrUnresolvedConversation is returned before any I/O when the target
	// conversation has no server-assigned id yet.
	ErrUnresolvedConversation = errors.New("chat: conversation is not resolved yet")

	// errSuperseded and errStopped are cancellation causes.
	errSuperseded = errors.New("chat: superseded by a newer send")
	errStopped    = errors.New("chat: stopped")
)

// SendError is a transport failure: the stream could not be opened or
// broke while reading.
type SendError struct {
	ConversationID string
	// Message is the text shown in the failed placeholder.
	Message string
	Cause   error
}

func (e *SendError) Error() string {
	return e.Message
}

func (e *SendError) Unwrap() error {
	return e.Cause
}

// ProtocolError is an error record sent by the upstream inside an
// otherwise healthy stream.
type ProtocolError struct {
	ConversationID string
	Message        string
}

func (e *ProtocolError) Error() string {
	return e.Message
}
