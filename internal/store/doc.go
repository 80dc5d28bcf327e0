// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store holds the client-side conversation state.
//
// The Store keeps the model list, per-model conversation lists, cached
// message lists, per-conversation sending flags and the current
// selection. Every mutation is keyed by conversation id, so a stream that
// finishes after the user switched away still lands in the right list.
//
// # Key Types
//
//   - Store: the state container and its actions
//   - State: copy of what a front end renders
//   - Notification: change event delivered to subscribers
//   - Gateway / Cache: the remote and offline backends the store drives
//
// # Notifications
//
// Front ends call Subscribe and re-read state with Snapshot, Conversations
// or Messages whenever a notification arrives. Publishing never blocks.
//
// # Usage
//
//	st := store.New(client, store.Options{Models: cfg.Chat.Models, Cache: cache})
//	if err := st.SelectModel(ctx, "dify1"); err != nil {
//	    log.Printf("load: %v", err)
//	}
//	events, unsubscribe := st.Subscribe()
//	defer unsubscribe()
package store
