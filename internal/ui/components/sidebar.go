// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"time"

	"github.com/jeranaias/difychat/internal/model"
	"github.com/jeranaias/difychat/internal/ui/styles"
	"github.com/jeranaias/difychat/internal/util"
)

// untitledName labels conversations the gateway has not named yet.
const untitledName = "New conversation"

// sendingMarker prefixes conversations with a send in flight.
const sendingMarker = "* "

// Sidebar lists the selected model's conversations.
type Sidebar struct {
	Title         string
	Conversations []model.Conversation
	CurrentID     string
	// IsSending reports whether a conversation has a send in flight.
	IsSending func(id string) bool
	Loading   bool
	Width     int
	Height    int
	Now       time.Time
}

// Render renders the sidebar. The current conversation is kept in view.
func (s Sidebar) Render(theme *styles.Theme) string {
	if s.Width <= 0 {
		return ""
	}
	// Border, right padding and item padding.
	inner := max(s.Width-3, 8)
	now := s.Now
	if now.IsZero() {
		now = time.Now()
	}

	lines := []string{theme.SidebarTitle.Render(util.Truncate(s.Title, inner))}

	switch {
	case s.Loading && len(s.Conversations) == 0:
		lines = append(lines, theme.SidebarMeta.Render("Loading..."))
	case len(s.Conversations) == 0:
		lines = append(lines, theme.SidebarMeta.Render("No conversations"))
	default:
		// Title plus its margin.
		rows := len(s.Conversations)
		if s.Height > 2 {
			rows = min(rows, s.Height-2)
		}
		start := s.windowStart(rows)
		for _, c := range s.Conversations[start : start+rows] {
			lines = append(lines, s.renderItem(theme, c, inner, now))
		}
	}

	return theme.Sidebar.
		Width(s.Width - 1).
		Height(max(s.Height, 0)).
		Render(strings.Join(lines, "\n"))
}

// windowStart returns the first visible index so that the current
// conversation is within a window of rows entries.
func (s Sidebar) windowStart(rows int) int {
	idx := model.IndexOf(s.Conversations, s.CurrentID)
	if idx < rows {
		return 0
	}
	return min(idx-rows+1, len(s.Conversations)-rows)
}

func (s Sidebar) renderItem(theme *styles.Theme, c model.Conversation, width int, now time.Time) string {
	name := c.Name
	if strings.TrimSpace(name) == "" {
		name = untitledName
	}
	prefix := "  "
	if s.IsSending != nil && s.IsSending(c.ID) {
		prefix = sendingMarker
	}

	age := ""
	if !c.Timestamp.IsZero() {
		age = util.RelativeTime(c.Timestamp.Time(), now)
	}
	nameWidth := width - util.Width(prefix)
	if age != "" && nameWidth-util.Width(age)-1 >= 8 {
		nameWidth -= util.Width(age) + 1
	} else {
		age = ""
	}

	line := prefix + util.PadRight(util.Truncate(name, nameWidth), nameWidth)
	if age != "" {
		line += " " + age
	}

	if c.ID == s.CurrentID {
		return theme.SidebarSelected.Render(line)
	}
	return theme.SidebarItem.Render(line)
}
