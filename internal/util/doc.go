// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the front ends.
//
// # Key Functions
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync, used for config
//
// Display:
//   - Truncate, PadRight, Width: terminal column math via go-runewidth
//   - FirstLine: single-line previews of multi-line text
//   - RelativeTime: compact "3m ago" labels for the conversation list
//
// # Usage
//
//	label := util.Truncate(conv.Name, sidebarWidth-2)
//	err := util.AtomicWriteFile(path, data, 0o600)
package util
