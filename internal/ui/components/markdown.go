// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// Glamour standard style names.
const (
	StyleDark  = "dark"
	StyleLight = "light"
	StyleNoTTY = "notty"
)

// minWrapWidth keeps glamour from wrapping every word on its own line in
// very narrow panes.
const minWrapWidth = 20

// Markdown renders assistant replies with glamour. The renderer is rebuilt
// only when the wrap width or style changes. Safe for concurrent use.
type Markdown struct {
	mu       sync.Mutex
	style    string
	width    int
	renderer *glamour.TermRenderer
}

// NewMarkdown creates a renderer for a dark or light background.
func NewMarkdown(dark bool) *Markdown {
	if dark {
		return NewMarkdownStyle(StyleDark)
	}
	return NewMarkdownStyle(StyleLight)
}

// NewMarkdownStyle creates a renderer with a glamour standard style.
func NewMarkdownStyle(style string) *Markdown {
	return &Markdown{style: style}
}

// SetStyle switches the glamour style.
func (m *Markdown) SetStyle(style string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if style != m.style {
		m.style = style
		m.renderer = nil
	}
}

// Render renders text wrapped at width. On a renderer error the text is
// returned unchanged.
func (m *Markdown) Render(text string, width int) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	width = max(width, minWrapWidth)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.renderer == nil || m.width != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return text
		}
		m.renderer, m.width = r, width
	}

	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	// Glamour pads the document with blank lines.
	return strings.Trim(out, "\n")
}
