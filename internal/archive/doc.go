// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package archive keeps a local SQLite transcript of every persisted message
// and provides full-text search over it.
//
// The coordinator's persistence job records each message it saves to the
// gateway here as well, so past conversations stay searchable without a
// round trip.
//
// # Key Types
//
//   - Archive: the database handle, safe for concurrent use
//   - Hit: one search result with a highlighted snippet
//
// # Usage
//
//	a, err := archive.Open(filepath.Join(dir, "archive.db"))
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//
//	hits, err := a.Search(ctx, "quarterly report", 20)
package archive
