// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gateway provides the HTTP client for the chat gateway.
//
// The gateway brokers every request between this client and the upstream
// Dify applications. It serves conversation CRUD, message history, file
// upload and the streaming chat endpoint.
//
// # Key Types
//
//   - Client: thread-safe HTTP client for all gateway endpoints
//   - Config: base URL, user identity, timeouts and rate limits
//   - ClientError: uniform error for transport, status and decoding failures
//   - ChatRequest: body of the streaming POST /chat call
//   - HistoryMessage: message record persisted to server-side history
//   - UploadRequest / UploadResult: multipart file upload
//
// # Error Normalisation
//
// Every non-2xx response becomes a *ClientError with Type ErrTypeHTTPStatus.
// The message is taken from the body's "error" field, then "message", and
// falls back to the status line. Connection failures are ErrTypeConnection.
// A cancelled context is ErrTypeCanceled.
//
// # Usage
//
//	client := gateway.NewClient(gateway.DefaultConfig())
//	convs, err := client.ListConversations(ctx, "dify1")
//
//	body, err := client.StreamChat(ctx, gateway.ChatRequest{
//	    Query:          "Hello",
//	    ConversationID: convs[0].ID,
//	    Model:          "dify1",
//	})
//	defer body.Close()
package gateway
