// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/difychat/internal/ui/components"
	"github.com/jeranaias/difychat/internal/util"
)

// appName is shown in the header.
const appName = "difychat"

// View renders the whole screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	body := m.viewport.View()
	if overlay := m.renderOverlay(); overlay != "" {
		body = lipgloss.Place(m.viewport.Width, m.viewport.Height, lipgloss.Center, lipgloss.Center, overlay)
	}
	if cols := m.theme.SidebarColumns(); cols > 0 {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(cols), body)
	}

	return strings.Join([]string{
		m.renderHeader(),
		body,
		m.renderInput(),
		m.renderStatusBar(),
		m.help.View(m.keys),
	}, "\n")
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render(appName)
	modelName := m.theme.HeaderModel.Render(m.modelName())

	conv := ""
	if c, ok := m.currentConversation(); ok && c.Name != "" {
		room := m.width - lipgloss.Width(title) - lipgloss.Width(modelName) - 8
		conv = "  " + util.Truncate(c.Name, max(room, 0))
	}
	return m.theme.Header.Width(m.width).Render(title + "  " + modelName + conv)
}

func (m Model) renderSidebar(width int) string {
	return components.Sidebar{
		Title:         m.modelName(),
		Conversations: m.state.Conversations,
		CurrentID:     m.state.CurrentConversationID,
		IsSending:     m.rt.Store.IsSending,
		Loading:       m.state.LoadingConversations,
		Width:         width,
		Height:        m.viewport.Height,
	}.Render(m.theme)
}

func (m Model) renderInput() string {
	if m.mode == modeRename || m.mode == modeAttach {
		label := "Rename: "
		if m.mode == modeAttach {
			label = "Attach: "
		}
		line := m.theme.InputPrompt.Render(label) + m.prompt.View()
		// Keep the input box height so the layout does not jump.
		line += strings.Repeat("\n", max(m.input.Height()-1, 0))
		return m.theme.InputContainer.Width(max(m.width-2, 10)).Render(line)
	}
	return m.theme.InputContainer.Render(m.input.View())
}

func (m Model) renderStatusBar() string {
	hint := m.statusMsg
	if hint == "" && m.state.LoadingMessages {
		hint = "Loading messages..."
	}
	if hint == "" && len(m.attachments) > 0 {
		names := make([]string, len(m.attachments))
		for i, a := range m.attachments {
			names[i] = a.name
		}
		hint = strings.Join(names, ", ")
	}
	return components.StatusBar{
		Model:        m.modelName(),
		Scope:        m.rt.Chat.Scope().String(),
		Sending:      m.state.Sending,
		SpinnerFrame: m.spinner.View(),
		Attachments:  len(m.attachments),
		Error:        m.statusErr,
		Hint:         hint,
		Width:        m.width,
	}.Render(m.theme)
}

func (m Model) renderOverlay() string {
	width := min(max(m.viewport.Width-4, 20), 60)
	switch m.mode {
	case modeConfirmDelete:
		name := m.deleteTarget.Name
		if name == "" {
			name = m.deleteTarget.ID
		}
		return components.Dialog{
			Title:  "Delete conversation?",
			Body:   util.Truncate(name, width-6),
			Footer: "y delete  n cancel",
			Width:  width,
		}.Render(m.theme)
	case modeAlert:
		return components.Dialog{
			Title:  "Send failed",
			Body:   m.alert,
			Footer: "enter dismiss",
			Width:  width,
		}.Render(m.theme)
	}
	return ""
}

// modelName returns the display name of the selected model.
func (m Model) modelName() string {
	for _, mi := range m.state.Models {
		if mi.ID == m.state.SelectedModel {
			return mi.Name
		}
	}
	return m.state.SelectedModel
}
