// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cache keeps an offline snapshot of conversation lists and
// message histories in a bbolt file.
//
// The store refreshes the snapshot after every successful fetch and local
// mutation, and reads it back when the gateway is unreachable so the
// client still shows the last known state.
//
// # Layout
//
//	conversations/<model>/<conversation id> -> Conversation JSON
//	messages/<conversation id>              -> []Message JSON
//	meta/<model>                            -> snapshot time (RFC 3339)
//
// # Usage
//
//	c, err := cache.Open(filepath.Join(dir, "cache.db"))
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//	st := store.New(client, store.Options{Cache: c})
package cache
