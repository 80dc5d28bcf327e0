// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/difychat/internal/model"
	"github.com/jeranaias/difychat/internal/ui/styles"
)

func testTheme() *styles.Theme {
	return styles.NewTheme(styles.ModeDark)
}

func TestRenderCodeBlocks(t *testing.T) {
	th := testTheme()
	in := "before\n```go\nfunc main() {}\n```\nafter"

	out := RenderCodeBlocks(in, 60, th)
	assert.Contains(t, out, "before")
	assert.Contains(t, out, "after")
	assert.Contains(t, out, "go")
	assert.Contains(t, out, "main")
	assert.NotContains(t, out, "```")
}

func TestRenderCodeBlocksUnclosedFence(t *testing.T) {
	out := RenderCodeBlocks("text\n```\nstill code", 60, testTheme())
	assert.Contains(t, out, "still code")
	assert.NotContains(t, out, "```")
}

func TestMarkdownRender(t *testing.T) {
	md := NewMarkdownStyle(StyleNoTTY)

	out := md.Render("# Title\n\nhello world", 40)
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "hello")
	assert.False(t, strings.HasPrefix(out, "\n"))

	assert.Equal(t, "  ", md.Render("  ", 40), "blank text is returned as is")
}

func TestMarkdownRebuildsOnWidthChange(t *testing.T) {
	md := NewMarkdownStyle(StyleNoTTY)
	md.Render("text", 40)
	first := md.renderer

	md.Render("text", 40)
	assert.Same(t, first, md.renderer)

	md.Render("text", 60)
	assert.NotSame(t, first, md.renderer)

	md.SetStyle(StyleDark)
	assert.Nil(t, md.renderer)
}

func TestMessageViewRoles(t *testing.T) {
	th := testTheme()

	user := MessageView{Message: model.Message{Role: model.RoleUser, Text: "question"}, Width: 60}.Render(th)
	assert.Contains(t, user, "You")
	assert.Contains(t, user, "question")

	reply := MessageView{Message: model.Message{Role: model.RoleAssistant, Text: "answer"}, Width: 60}.Render(th)
	assert.Contains(t, reply, "Assistant")
	assert.Contains(t, reply, "answer")
}

func TestMessageViewLoadingPlaceholder(t *testing.T) {
	th := testTheme()
	v := MessageView{
		Message:      model.Message{Role: model.RoleAssistant, IsLoading: true},
		Width:        60,
		SpinnerFrame: "|",
	}
	out := v.Render(th)
	assert.Contains(t, out, ThinkingText)
	assert.Contains(t, out, "|")
}

func TestMessageViewErrorAndTimestamp(t *testing.T) {
	th := testTheme()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	v := MessageView{
		Message: model.Message{
			Role:      model.RoleAssistant,
			Text:      "Send failed: connection refused",
			IsError:   true,
			Timestamp: model.NewTimestamp(now.Add(-5 * time.Minute)),
		},
		Width:         60,
		ShowTimestamp: true,
		Now:           now,
	}
	out := v.Render(th)
	assert.Contains(t, out, "connection refused")
	assert.Contains(t, out, "5m ago")
}

func TestRenderMessagesEmpty(t *testing.T) {
	out := RenderMessages(testTheme(), nil, MessageView{Width: 60})
	assert.Contains(t, out, "No messages yet")
}

func TestWrapLine(t *testing.T) {
	assert.Equal(t, "short", wrapLine("short", 20))
	assert.Equal(t, "one two\nthree", wrapLine("one two three", 8))
	assert.Equal(t, "averyveryverylongword", wrapLine("averyveryverylongword", 5))
}

func TestWrapOutsideFencesKeepsCode(t *testing.T) {
	in := "alpha beta gamma\n```\nalpha beta gamma\n```"
	out := wrapOutsideFences(in, 10)
	assert.Equal(t, "alpha beta\ngamma\n```\nalpha beta gamma\n```", out)
}

func TestSidebar(t *testing.T) {
	th := testTheme()
	now := time.Now()
	convs := []model.Conversation{
		{ID: "a", Name: "First chat", Timestamp: model.NewTimestamp(now)},
		{ID: "b", Name: "", Timestamp: model.NewTimestamp(now.Add(-2 * time.Hour))},
	}
	sb := Sidebar{
		Title:         "Dify 1",
		Conversations: convs,
		CurrentID:     "b",
		IsSending:     func(id string) bool { return id == "a" },
		Width:         30,
		Height:        10,
		Now:           now,
	}
	out := sb.Render(th)
	assert.Contains(t, out, "Dify 1")
	assert.Contains(t, out, sendingMarker+"First chat")
	assert.Contains(t, out, untitledName)
	assert.Contains(t, out, "2h ago")
	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, lipgloss.Width(line), 30)
	}
}

func TestSidebarKeepsCurrentInView(t *testing.T) {
	var convs []model.Conversation
	for i := 0; i < 20; i++ {
		convs = append(convs, model.Conversation{ID: string(rune('a' + i)), Name: "conv " + string(rune('a'+i))})
	}
	sb := Sidebar{Conversations: convs, CurrentID: "t", Width: 30, Height: 7}
	assert.Equal(t, 15, sb.windowStart(5))

	out := sb.Render(testTheme())
	assert.Contains(t, out, "conv t")
	assert.NotContains(t, out, "conv a")
}

func TestSidebarEmptyAndLoading(t *testing.T) {
	th := testTheme()
	assert.Contains(t, Sidebar{Width: 30, Loading: true}.Render(th), "Loading")
	assert.Contains(t, Sidebar{Width: 30}.Render(th), "No conversations")
	assert.Empty(t, Sidebar{}.Render(th))
}

func TestStatusBar(t *testing.T) {
	th := testTheme()

	out := StatusBar{Model: "Dify 1", Scope: "global", Sending: true, Attachments: 2, Hint: "enter send", Width: 100}.Render(th)
	assert.Contains(t, out, "Dify 1")
	assert.Contains(t, out, "scope:global")
	assert.Contains(t, out, "sending")
	assert.Contains(t, out, "[2 files]")
	assert.Contains(t, out, "enter send")
	assert.Equal(t, 100, lipgloss.Width(out))

	withErr := StatusBar{Model: "Dify 1", Error: "gateway down\nmore", Hint: "hint", Width: 80}.Render(th)
	assert.Contains(t, withErr, "gateway down")
	assert.NotContains(t, withErr, "hint")
	assert.NotContains(t, withErr, "more")
}

func TestDialog(t *testing.T) {
	out := Dialog{Title: "Delete conversation?", Body: "First chat", Footer: "y confirm  n cancel", Width: 40}.Render(testTheme())
	assert.Contains(t, out, "Delete conversation?")
	assert.Contains(t, out, "First chat")
	assert.Contains(t, out, "y confirm")
}
