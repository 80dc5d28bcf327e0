// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat coordinates one user send from input to persisted history.
//
// A send appends the user message and an assistant placeholder to the
// store, opens the gateway stream, applies decoded events to the
// placeholder as they arrive, reorders the conversation list, and hands
// persistence to a background runner.
//
// # Key Types
//
//   - Coordinator: runs sends and owns the cancellation slot table
//   - SendRequest / Callbacks / Result: one send's input, hooks and outcome
//   - Task: asynchronous send with an ordered event channel
//   - Scope: whether a new send cancels every live send or only its own
//     conversation's
//
// # Cancellation
//
// Every send holds a token in the slot table. A newer send for the same
// conversation always supersedes the older one. With ScopeGlobal a new
// send also cancels sends for other conversations. A cancelled send
// completes with StateCancelled and keeps its partial text.
//
// # Usage
//
//	coord := chat.New(chat.Options{Store: st, Gateway: client, Runner: runner})
//	res, err := coord.Send(ctx, chat.SendRequest{
//	    Model:          "dify1",
//	    ConversationID: st.CurrentConversationID(),
//	    Text:           "Hello",
//	}, chat.Callbacks{
//	    OnChunk: func(text string) { fmt.Print(text) },
//	})
package chat
