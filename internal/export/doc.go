// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes conversation transcripts to files.
//
// # Key Types
//
//   - Document: a conversation with its messages, ready to export
//   - Exporter: one output format (Markdown or JSON)
//   - Options: what a Markdown export includes
//
// # Usage
//
//	doc := export.Document{Conversation: conv, ModelName: "Dify 1", Messages: msgs}
//	exp, err := export.New("md", export.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	path, err := export.ToFile(doc, exp, "")
package export
