// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import "github.com/jeranaias/difychat/internal/ui/styles"

// Dialog is a modal box drawn over the conversation pane.
type Dialog struct {
	Title string
	Body  string
	// Footer lists the keys that close the dialog.
	Footer string
	Width  int
}

// Render renders the dialog box.
func (d Dialog) Render(theme *styles.Theme) string {
	content := theme.DialogTitle.Render(d.Title)
	if d.Body != "" {
		content += "\n\n" + d.Body
	}
	if d.Footer != "" {
		content += "\n\n" + theme.StatusHint.Render(d.Footer)
	}
	box := theme.Dialog
	if d.Width > 0 {
		box = box.Width(d.Width)
	}
	return box.Render(content)
}
