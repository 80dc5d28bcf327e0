// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/difychat/internal/ui/styles"
	"github.com/jeranaias/difychat/internal/util"
)

// StatusBar shows the model, the cancellation scope, the sending state and
// either the last error or a key hint.
type StatusBar struct {
	Model        string
	Scope        string
	Sending      bool
	SpinnerFrame string
	Attachments  int
	Error        string
	Hint         string
	Width        int
}

// Render renders the bar at its full width.
func (s StatusBar) Render(theme *styles.Theme) string {
	left := []string{theme.StatusModel.Render(s.Model)}
	if s.Scope != "" {
		left = append(left, theme.StatusScope.Render("scope:"+s.Scope))
	}
	if s.Attachments > 0 {
		left = append(left, theme.Attachment.Render(pluralFiles(s.Attachments)))
	}
	if s.Sending {
		frame := s.SpinnerFrame
		if frame != "" {
			frame += " "
		}
		left = append(left, theme.StatusSending.Render(frame+"sending"))
	}
	leftText := strings.Join(left, "  ")

	// Status bar padding is one column per side.
	inner := max(s.Width-2, 0)
	room := inner - lipgloss.Width(leftText) - 2

	right := ""
	switch {
	case s.Error != "" && room > 4:
		right = theme.StatusError.Render(util.Truncate(styles.StatusIndicators.Error+" "+util.FirstLine(s.Error), room))
	case s.Hint != "" && room > 4:
		right = theme.StatusHint.Render(util.Truncate(s.Hint, room))
	}

	gap := max(inner-lipgloss.Width(leftText)-lipgloss.Width(right), 1)
	return theme.StatusBar.Width(s.Width).Render(leftText + strings.Repeat(" ", gap) + right)
}

func pluralFiles(n int) string {
	if n == 1 {
		return "[1 file]"
	}
	return "[" + strconv.Itoa(n) + " files]"
}
