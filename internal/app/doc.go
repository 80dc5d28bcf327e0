// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app wires the core packages into one runtime shared by the TUI,
// the REPL and the one-shot commands.
//
// # Key Types
//
//   - Runtime: config, gateway client, store, task runner, coordinator and
//     the optional cache and archive
//
// # Usage
//
//	rt, err := app.New(cfg, app.Options{})
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	if err := rt.Start(ctx); err != nil {
//	    // the store still holds the offline snapshot, if any
//	}
package app
