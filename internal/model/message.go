// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strings"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// TempIDPrefix marks ids generated locally for messages and conversations
// the gateway has not assigned yet.
const TempIDPrefix = "temp-"

// Message is a single entry in a conversation's message list.
//
// IsLoading and IsError are transient view state; they are never sent to
// or read from the gateway.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Sender    string    `json:"sender,omitempty"`
	Timestamp Timestamp `json:"timestamp"`
	FileIDs   []string  `json:"fileIds,omitempty"`

	IsLoading bool `json:"-"`
	IsError   bool `json:"-"`
}

// Clone returns a copy that shares no slices with m.
func (m Message) Clone() Message {
	if m.FileIDs != nil {
		m.FileIDs = append([]string(nil), m.FileIDs...)
	}
	return m
}

// IsPlaceholderID reports whether the message id was generated locally.
func (m Message) IsPlaceholderID() bool {
	return strings.HasPrefix(m.ID, TempIDPrefix)
}

// Normalize fills Role from Sender for history records written by older
// gateways, which only carried the sender field.
func (m *Message) Normalize() {
	if m.Role == "" && m.Sender != "" {
		m.Role = Role(m.Sender)
	}
	if m.Sender == "" {
		m.Sender = string(m.Role)
	}
}

// CloneMessages copies a message slice, element by element.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
