// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components renders the pieces of the difychat TUI: message blocks,
the conversation sidebar, the status bar and dialogs.

Components are pure rendering: they take values and a *styles.Theme and
return strings. State lives in the ui/chat model.

# Key Types

  - Markdown: glamour renderer cached per width and background
  - CodeBlock: chroma-highlighted code for the plain rendering mode
  - MessageView: one message with label, body and attachments
  - Sidebar: the selected model's conversations
  - StatusBar: model, scope, sending state and the last error

# Usage

	md := components.NewMarkdown(theme.IsDark)
	view := components.MessageView{Message: msg, Width: 80, Markdown: md}
	out := view.Render(theme)
*/
package components
