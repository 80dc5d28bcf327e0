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

// ThinkingText is shown in an assistant placeholder before the first chunk.
const ThinkingText = "Thinking..."

// =============================================================================
// MESSAGE VIEW
// =============================================================================

// MessageView renders a single message.
type MessageView struct {
	Message model.Message
	Width   int

	// Markdown renders assistant replies. Nil selects plain text with
	// highlighted code fences.
	Markdown *Markdown

	ShowTimestamp bool
	Now           time.Time

	// SpinnerFrame is drawn next to a loading placeholder.
	SpinnerFrame string
}

// Render renders the label line and the body.
func (v MessageView) Render(theme *styles.Theme) string {
	msg := v.Message
	bodyWidth := max(v.Width-2, 10)

	label := theme.UserLabel.Render(msg.Role.DisplayName())
	if msg.Role == model.RoleAssistant {
		label = theme.AssistantLabel.Render(msg.Role.DisplayName())
	}
	if msg.IsLoading && v.SpinnerFrame != "" {
		label += " " + theme.Spinner.Render(v.SpinnerFrame)
	}
	if v.ShowTimestamp && !msg.Timestamp.IsZero() {
		now := v.Now
		if now.IsZero() {
			now = time.Now()
		}
		label += "  " + theme.Timestamp.Render(util.RelativeTime(msg.Timestamp.Time(), now))
	}

	return label + "\n" + v.renderBody(theme, bodyWidth)
}

func (v MessageView) renderBody(theme *styles.Theme, width int) string {
	msg := v.Message
	text := msg.Text

	switch {
	case msg.IsError:
		return theme.ErrorBody.Width(width).Render(text)

	case msg.Role == model.RoleUser:
		return theme.UserBody.Width(width).Render(text)

	case msg.IsLoading && text == "":
		return theme.AssistantBody.Width(width).Render(theme.Timestamp.Render(ThinkingText))

	case msg.IsLoading:
		// STREAMING: partial markdown re-renders badly, so stream as plain text.
		return theme.AssistantBody.Width(width).Render(text)

	case v.Markdown != nil:
		return theme.AssistantBody.Render(v.Markdown.Render(text, width-2))

	default:
		return theme.AssistantBody.Render(RenderCodeBlocks(wrapOutsideFences(text, width-2), width-2, theme))
	}
}

// wrapOutsideFences word-wraps prose lines and leaves code lines alone.
func wrapOutsideFences(text string, width int) string {
	lines := strings.Split(text, "\n")
	inCode := false
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inCode = !inCode
			continue
		}
		if !inCode {
			lines[i] = wrapLine(line, width)
		}
	}
	return strings.Join(lines, "\n")
}

// wrapLine breaks line at spaces so no piece exceeds width columns. Words
// longer than width are kept whole.
func wrapLine(line string, width int) string {
	if width <= 0 || util.Width(line) <= width {
		return line
	}
	var (
		b   strings.Builder
		col int
	)
	for i, word := range strings.Fields(line) {
		w := util.Width(word)
		if i > 0 {
			if col+1+w > width {
				b.WriteByte('\n')
				col = 0
			} else {
				b.WriteByte(' ')
				col++
			}
		}
		b.WriteString(word)
		col += w
	}
	return b.String()
}

// =============================================================================
// MESSAGE LIST
// =============================================================================

// EmptyConversationText is shown for a conversation without messages.
const EmptyConversationText = "No messages yet. Type below and press Enter to start."

// RenderMessages renders msgs separated by blank lines, using proto for
// every field except Message.
func RenderMessages(theme *styles.Theme, msgs []model.Message, proto MessageView) string {
	if len(msgs) == 0 {
		return theme.EmptyState.Render(EmptyConversationText)
	}
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		v := proto
		v.Message = m
		parts[i] = v.Render(theme)
	}
	return strings.Join(parts, "\n\n")
}
