// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/difychat/internal/app"
	chatcore "github.com/jeranaias/difychat/internal/chat"
	"github.com/jeranaias/difychat/internal/config"
	"github.com/jeranaias/difychat/internal/model"
	"github.com/jeranaias/difychat/internal/store"
	"github.com/jeranaias/difychat/internal/ui/components"
	"github.com/jeranaias/difychat/internal/ui/styles"
)

// =============================================================================
// MODE
// =============================================================================

// mode is what the keyboard currently drives.
type mode int

const (
	modeNormal mode = iota
	modeRename
	modeAttach
	modeConfirmDelete
	modeAlert
)

// attachment is an uploaded file waiting for the next send.
type attachment struct {
	name   string
	fileID string
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model of the chat interface.
type Model struct {
	ctx  context.Context
	rt   *app.Runtime
	log  *slog.Logger
	keys KeyMap

	theme    *styles.Theme
	markdown *components.Markdown // nil renders plain text
	showTime bool

	// Bubbles
	input    textarea.Model
	prompt   textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model

	// Store subscription
	notes       <-chan store.Notification
	unsubscribe func()

	state store.State
	mode  mode

	attachments []attachment
	uploading   int

	// deleteTarget is the conversation the confirm dialog is about.
	deleteTarget model.Conversation
	alert        string

	statusErr string
	statusMsg string

	width  int
	height int
	ready  bool
}

// New creates the model. ctx bounds every store call and send started
// from the interface.
func New(ctx context.Context, rt *app.Runtime) Model {
	keys := DefaultKeyMap()

	input := textarea.New()
	input.Placeholder = "Type a message..."
	input.ShowLineNumbers = false
	input.Prompt = "> "
	input.CharLimit = 0
	input.SetHeight(3)
	input.KeyMap.InsertNewline = keys.Newline
	input.Focus()

	prompt := textinput.New()

	sp := spinner.New(spinner.WithSpinner(spinner.Spinner{
		Frames: styles.LineSpinner.Frames,
		FPS:    styles.LineSpinner.Duration(),
	}))

	notes, unsubscribe := rt.Store.Subscribe()

	m := Model{
		ctx:         ctx,
		rt:          rt,
		log:         slog.Default().With("component", "tui"),
		keys:        keys,
		input:       input,
		prompt:      prompt,
		viewport:    viewport.New(80, 20),
		spinner:     sp,
		help:        help.New(),
		notes:       notes,
		unsubscribe: unsubscribe,
	}
	m.applyUIConfig(rt.Config.UI)
	m.state = rt.Store.Snapshot()
	return m
}

// Close releases the store subscription.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// applyUIConfig rebuilds the theme and renderers from ui settings.
func (m *Model) applyUIConfig(ui config.UIConfig) {
	themeMode, err := styles.ParseMode(ui.Theme)
	if err != nil {
		m.log.Warn("invalid theme, using auto", "theme", ui.Theme)
	}
	theme := styles.NewTheme(themeMode)
	if m.theme != nil {
		theme.SetSize(m.theme.Width, m.theme.Height)
	}
	m.theme = theme
	m.spinner.Style = theme.Spinner

	m.markdown = nil
	if ui.RenderMarkdown {
		m.markdown = components.NewMarkdown(theme.IsDark)
	}
	m.showTime = ui.ShowTimestamps
}

// Init starts the store subscription and loads the selected model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForNotification(m.notes),
		startCmd(m.ctx, m.rt.Store),
		textarea.Blink,
	)
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case storeChangedMsg:
		m.refresh()
		return m, tea.Batch(waitForNotification(m.notes), m.tickIfSending())

	case taskEventMsg:
		return m, waitForTask(msg.task)

	case sendDoneMsg:
		return m.handleSendDone(msg)

	case opDoneMsg:
		return m.handleOpDone(msg)

	case uploadDoneMsg:
		return m.handleUploadDone(msg)

	case configChangedMsg:
		return m.handleConfigChanged(msg)

	case spinner.TickMsg:
		if !m.state.Sending && !m.anySending() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	switch m.mode {
	case modeRename, modeAttach:
		return m.handlePromptKey(msg)
	case modeConfirmDelete:
		return m.handleConfirmKey(msg)
	case modeAlert:
		if key.Matches(msg, m.keys.Confirm, m.keys.Decline) {
			m.mode, m.alert = modeNormal, ""
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Send):
		return m.submit()

	case key.Matches(msg, m.keys.Stop):
		if m.rt.Chat.StopConversation(m.state.CurrentConversationID) {
			m.statusMsg = "Stopped"
		} else {
			m.statusErr, m.statusMsg = "", ""
		}
		return m, nil

	case key.Matches(msg, m.keys.New):
		m.statusMsg = "Creating conversation..."
		return m, createCmd(m.ctx, m.rt.Store)

	case key.Matches(msg, m.keys.Rename):
		conv, ok := m.currentConversation()
		if !ok {
			return m, nil
		}
		return m.openPrompt(modeRename, "New name", conv.Name)

	case key.Matches(msg, m.keys.Delete):
		conv, ok := m.currentConversation()
		if !ok {
			return m, nil
		}
		m.deleteTarget = conv
		m.mode = modeConfirmDelete
		return m, nil

	case key.Matches(msg, m.keys.NextConv):
		return m.cycleConversation(1)

	case key.Matches(msg, m.keys.PrevConv):
		return m.cycleConversation(-1)

	case key.Matches(msg, m.keys.Attach):
		if model.IsUnresolvedID(m.state.CurrentConversationID) {
			m.statusErr = "This conversation is not ready for uploads yet"
			return m, nil
		}
		return m.openPrompt(modeAttach, "File path", "")

	case key.Matches(msg, m.keys.NextModel):
		return m.nextModel()

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize(m.width, m.height)
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// SENDING
// =============================================================================

// submit sends the input and pending attachments to the current
// conversation.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" && len(m.attachments) == 0 {
		return m, nil
	}
	if m.uploading > 0 {
		m.statusErr = "Wait for uploads to finish"
		return m, nil
	}
	convID := m.state.CurrentConversationID
	if convID == "" {
		m.statusErr = "No conversation selected"
		return m, nil
	}

	fileIDs := make([]string, 0, len(m.attachments))
	for _, a := range m.attachments {
		fileIDs = append(fileIDs, a.fileID)
	}

	task := m.rt.Chat.Start(m.ctx, chatcore.SendRequest{
		ConversationID: convID,
		Text:           text,
		FileIDs:        fileIDs,
	})

	m.input.Reset()
	m.attachments = nil
	m.statusErr, m.statusMsg = "", ""
	m.viewport.GotoBottom()

	return m, tea.Batch(waitForTask(task), m.spinner.Tick)
}

func (m Model) handleSendDone(msg sendDoneMsg) (tea.Model, tea.Cmd) {
	res := msg.result
	switch {
	case msg.err != nil && m.rt.Chat.ShouldAlert(res):
		m.mode = modeAlert
		m.alert = msg.err.Error()
	case msg.err != nil:
		m.log.Warn("send failed off the current conversation", "conversation_id", res.ConversationID, "error", msg.err)
	case res.State == chatcore.StateCompletedWithError:
		m.statusErr = res.Text
	}
	m.refresh()
	return m, nil
}

// =============================================================================
// OPERATIONS
// =============================================================================

func (m Model) handleOpDone(msg opDoneMsg) (tea.Model, tea.Cmd) {
	m.statusMsg = ""
	if msg.err != nil {
		m.statusErr = fmt.Sprintf("Failed to %s: %s", msg.op, errorText(msg.err))
		m.log.Warn("operation failed", "op", string(msg.op), "error", msg.err)
	} else {
		m.statusErr = ""
	}
	m.refresh()
	return m, nil
}

func (m Model) cycleConversation(step int) (tea.Model, tea.Cmd) {
	convs := m.state.Conversations
	if len(convs) == 0 {
		return m, nil
	}
	idx := model.IndexOf(convs, m.state.CurrentConversationID)
	next := (idx + step + len(convs)) % len(convs)
	if idx < 0 {
		next = 0
	}
	return m, selectConversationCmd(m.ctx, m.rt.Store, convs[next].ID)
}

func (m Model) nextModel() (tea.Model, tea.Cmd) {
	models := m.state.Models
	if len(models) < 2 {
		return m, nil
	}
	idx := 0
	for i, mi := range models {
		if mi.ID == m.state.SelectedModel {
			idx = i
			break
		}
	}
	next := models[(idx+1)%len(models)]
	m.statusMsg = "Switching to " + next.Name + "..."
	m.attachments = nil
	return m, selectModelCmd(m.ctx, m.rt.Store, next.ID)
}

func (m Model) currentConversation() (model.Conversation, bool) {
	idx := model.IndexOf(m.state.Conversations, m.state.CurrentConversationID)
	if idx < 0 {
		return model.Conversation{}, false
	}
	return m.state.Conversations[idx], true
}

// =============================================================================
// PROMPTS AND DIALOGS
// =============================================================================

func (m Model) openPrompt(md mode, placeholder, value string) (tea.Model, tea.Cmd) {
	m.mode = md
	m.prompt.Reset()
	m.prompt.Placeholder = placeholder
	m.prompt.SetValue(value)
	m.prompt.CursorEnd()
	m.input.Blur()
	return m, m.prompt.Focus()
}

func (m *Model) closePrompt() tea.Cmd {
	m.mode = modeNormal
	m.prompt.Blur()
	return m.input.Focus()
}

func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		return m, m.closePrompt()

	case tea.KeyEnter:
		value := strings.TrimSpace(m.prompt.Value())
		current := m.mode
		focus := m.closePrompt()
		if value == "" {
			return m, focus
		}
		if current == modeRename {
			return m, tea.Batch(focus, renameCmd(m.ctx, m.rt.Store, m.state.CurrentConversationID, value))
		}
		m.uploading++
		m.statusMsg = "Uploading " + filepath.Base(value) + "..."
		return m, tea.Batch(focus, uploadCmd(m.ctx, m.rt.Client, m.state.SelectedModel, m.state.CurrentConversationID, expandHome(value)))
	}

	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.mode = modeNormal
		m.statusMsg = "Deleting..."
		return m, deleteCmd(m.ctx, m.rt.Store, m.deleteTarget.ID)
	case key.Matches(msg, m.keys.Decline):
		m.mode = modeNormal
	}
	return m, nil
}

func (m Model) handleUploadDone(msg uploadDoneMsg) (tea.Model, tea.Cmd) {
	m.uploading = max(m.uploading-1, 0)
	m.statusMsg = ""
	name := filepath.Base(msg.path)

	switch {
	case msg.err != nil:
		m.statusErr = fmt.Sprintf("Upload of %s failed: %v", name, msg.err)
	case msg.result.IsBinary() || msg.result.FileID == "":
		m.statusMsg = name + " was stored by the gateway but cannot be referenced in chat"
	default:
		m.attachments = append(m.attachments, attachment{name: name, fileID: msg.result.FileID})
		m.statusMsg = "Attached " + name
	}
	return m, nil
}

func (m Model) handleConfigChanged(msg configChangedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.statusErr = "Config reload failed: " + msg.err.Error()
		return m, nil
	}
	m.rt.ApplyConfig(msg.cfg)
	m.applyUIConfig(msg.cfg.UI)
	m.state = m.rt.Store.Snapshot()
	m.statusMsg = "Configuration reloaded"
	m.refresh()
	return m, nil
}

// =============================================================================
// LAYOUT AND CONTENT
// =============================================================================

// chrome is the number of rows not available to the viewport: header,
// input box with border, status bar and help line.
func (m Model) chrome() int {
	helpRows := 1
	if m.help.ShowAll {
		helpRows = 4
	}
	return 1 + m.input.Height() + 2 + 1 + helpRows
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.theme.SetSize(width, height)
	m.help.Width = width

	m.input.SetWidth(max(width-2, 10))

	vw := max(width-m.theme.SidebarColumns(), 10)
	vh := max(height-m.chrome(), 3)
	m.viewport.Width = vw
	m.viewport.Height = vh
	m.ready = width > 0 && height > 0
}

// refresh re-reads the store and re-renders the conversation.
func (m *Model) refresh() {
	m.state = m.rt.Store.Snapshot()

	follow := m.viewport.AtBottom()
	proto := components.MessageView{
		Width:         m.viewport.Width - 1,
		Markdown:      m.markdown,
		ShowTimestamp: m.showTime,
		SpinnerFrame:  m.spinner.View(),
	}
	m.viewport.SetContent(components.RenderMessages(m.theme, m.state.Messages, proto))
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) anySending() bool {
	return len(m.rt.Chat.Active()) > 0
}

// tickIfSending restarts the spinner when a send is in flight. Duplicate
// ticks are dropped by the spinner itself.
func (m Model) tickIfSending() tea.Cmd {
	if m.state.Sending || m.anySending() {
		return m.spinner.Tick
	}
	return nil
}

func errorText(err error) string {
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return err.Error()
}

// expandHome replaces a leading ~ with the home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
