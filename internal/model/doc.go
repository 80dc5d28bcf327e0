// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// These are the shapes exchanged with the gateway and held by the
// conversation store. They carry no behavior beyond small helpers.
//
// # Key Types
//
//   - Conversation: {id, name, model, timestamp} summary of a chat thread
//   - Message: one user or assistant message, with transient UI flags
//   - Role: message role enumeration (user, assistant)
//   - Timestamp: time value that decodes RFC 3339 strings or epoch milliseconds
//   - ModelInfo: a selectable backend model (id and display name)
//
// # Usage
//
//	conv := model.Conversation{ID: "20250101-120000", Name: "New chat", Model: "dify1"}
//	msg := model.Message{ID: "temp-user-1", Role: model.RoleUser, Text: "Hello"}
//	if msg.IsPlaceholderID() {
//	    // not yet persisted
//	}
package model
