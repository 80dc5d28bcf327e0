// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - line-mode chat REPL.
//
// Command: chat
// Short:   Start an interactive chat session without the full-screen UI
//
// Examples:
//
//	difychat chat                          Continue the newest conversation
//	difychat chat --new                    Start a new conversation
//	difychat chat --conversation 3f2a...   Continue a specific conversation
//	difychat --model dify4 chat            Chat with another model
//
// Interactive commands (during chat):
//
//	/help, /h           Show available commands
//	/new                Start a new conversation
//	/list               List conversations
//	/switch ID          Switch conversation
//	/rename NAME        Rename the current conversation
//	/delete             Delete the current conversation
//	/attach PATH        Upload a file for the next message
//	/files              Show pending attachments
//	/model [ID]         Show or switch model
//	/stop               Stop live sends
//	/quit, /q           Exit chat
//	Ctrl+C              Stop the reply being streamed, or exit at the prompt
//	Ctrl+D              Exit chat
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/difychat/internal/chat"
	"github.com/jeranaias/difychat/internal/config"
	"github.com/jeranaias/difychat/internal/export"
	"github.com/jeranaias/difychat/internal/stream"
)

// =============================================================================
// INPUT
// =============================================================================

// lineReader reads one prompted line. *liner.State satisfies it.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

const historyFileName = "chat_history"

var slashCommands = []string{
	"/help", "/new", "/list", "/switch ", "/rename ", "/delete",
	"/attach ", "/files", "/model ", "/export", "/stop", "/quit",
}

// historyLiner is a liner with history persisted in the config directory.
type historyLiner struct {
	*liner.State
	path string
}

func newHistoryLiner() *historyLiner {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(in string) []string {
		var out []string
		for _, c := range slashCommands {
			if strings.HasPrefix(c, strings.ToLower(in)) {
				out = append(out, c)
			}
		}
		return out
	})

	h := &historyLiner{State: line}
	if dir, err := config.ConfigDir(); err == nil {
		h.path = filepath.Join(dir, historyFileName)
		if f, err := os.Open(h.path); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}
	return h
}

// Close saves history with 0600 permissions and restores the terminal.
func (h *historyLiner) Close() error {
	if h.path != "" {
		if err := os.MkdirAll(filepath.Dir(h.path), 0o700); err == nil {
			if f, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
				_, _ = h.WriteHistory(f)
				f.Close()
			}
		}
	}
	return h.State.Close()
}

// =============================================================================
// SESSION
// =============================================================================

type attachment struct {
	id   string
	name string
}

// chatSession is the state of one REPL.
type chatSession struct {
	env  *Env
	args Args
	in   lineReader

	mu          sync.Mutex
	task        *chat.Task
	attachments []attachment
}

// HandleChat runs the REPL until /quit, Ctrl+D or Ctrl+C at the prompt.
func HandleChat(ctx context.Context, args Args, env *Env) error {
	if env.Stdin == nil && !IsTTY() {
		return errors.New("chat needs a terminal; use 'difychat ask' for piped input")
	}

	s := &chatSession{env: env, args: args}
	if err := s.open(ctx); err != nil {
		return err
	}

	line := newHistoryLiner()
	defer line.Close()
	s.in = line

	// Ctrl+C at the prompt is read by liner. While a reply streams the
	// terminal is cooked, so it arrives as a signal and stops the send.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer func() {
		signal.Stop(sigCh)
		close(sigCh)
	}()
	go func() {
		for range sigCh {
			s.interrupt()
		}
	}()

	if !args.Quiet {
		s.printWelcome()
	}
	return s.loop(ctx)
}

// open selects the starting conversation.
func (s *chatSession) open(ctx context.Context) error {
	st := s.env.Runtime.Store
	switch {
	case s.args.ConversationID != "":
		if _, err := loadConversations(ctx, s.env, true); err != nil {
			fmt.Fprintf(s.env.errOut(), "%s %v\n", WarningStyle.Render("[!]"), err)
		}
		return st.SelectConversation(ctx, s.args.ConversationID)
	case s.args.NewConversation:
		_, err := st.CreateConversation(ctx)
		return err
	default:
		return s.env.Runtime.Start(ctx)
	}
}

// loop reads and dispatches lines until the user leaves.
func (s *chatSession) loop(ctx context.Context) error {
	out := s.env.out()
	for {
		if ctx.Err() != nil {
			return nil
		}
		input, err := s.in.Prompt(s.prompt())
		if err != nil {
			// liner.ErrPromptAborted, io.EOF
			fmt.Fprintln(out)
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		s.in.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			quit, err := s.handleSlash(ctx, input)
			if err != nil {
				s.printError(err)
			}
			if quit {
				return nil
			}
			continue
		}

		if err := s.send(ctx, input); err != nil {
			s.printError(err)
		}
	}
}

func (s *chatSession) prompt() string {
	return s.env.Runtime.Store.SelectedModel() + "> "
}

// =============================================================================
// SENDING
// =============================================================================

// send streams one reply to stdout.
func (s *chatSession) send(ctx context.Context, text string) error {
	rt := s.env.Runtime
	out := s.env.out()

	convID := rt.Store.CurrentConversationID()
	if convID == "" {
		return errors.New("no conversation selected; use /new or /switch ID")
	}

	task := rt.Chat.Start(ctx, chat.SendRequest{
		ConversationID: convID,
		Text:           text,
		FileIDs:        s.pendingFileIDs(),
	})
	s.setTask(task)
	defer s.setTask(nil)

	if !s.args.Quiet {
		fmt.Fprintln(out, AssistantStyle.Render("Assistant"))
	}
	endedNL := true
	for ev := range task.Events() {
		if ev.Kind == stream.KindTextDelta {
			fmt.Fprint(out, ev.Text)
			endedNL = strings.HasSuffix(ev.Text, "\n")
		}
	}
	res, err := task.Wait()
	if !endedNL {
		fmt.Fprintln(out)
	}

	if !errors.Is(err, chat.ErrUnresolvedConversation) {
		s.clearAttachments()
	}
	if err != nil {
		return err
	}
	switch res.State {
	case chat.StateCancelled:
		fmt.Fprintln(s.env.errOut(), WarningStyle.Render("[Stopped]"))
	case chat.StateCompletedWithError:
		return errors.New(res.Text)
	}
	return nil
}

func (s *chatSession) setTask(t *chat.Task) {
	s.mu.Lock()
	s.task = t
	s.mu.Unlock()
}

func (s *chatSession) activeTask() *chat.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task
}

// interrupt stops the reply being streamed, if any.
func (s *chatSession) interrupt() {
	if t := s.activeTask(); t != nil {
		t.Cancel()
	}
}

func (s *chatSession) pendingFileIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.attachments))
	for _, a := range s.attachments {
		ids = append(ids, a.id)
	}
	return ids
}

func (s *chatSession) clearAttachments() {
	s.mu.Lock()
	s.attachments = nil
	s.mu.Unlock()
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlash runs one slash command. It returns true to leave the REPL.
func (s *chatSession) handleSlash(ctx context.Context, input string) (bool, error) {
	rt := s.env.Runtime
	out := s.env.out()

	name, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(name) {
	case "/help", "/h", "/?":
		printChatHelp(out)

	case "/quit", "/q", "/exit":
		return true, nil

	case "/new":
		conv, err := rt.Store.CreateConversation(ctx)
		if err != nil {
			return false, err
		}
		s.clearAttachments()
		s.ok("started conversation " + conv.ID)

	case "/list", "/ls":
		convs, err := loadConversations(ctx, s.env, false)
		if err != nil {
			return false, err
		}
		printConversations(out, convs, rt.Store.CurrentConversationID(), time.Now())

	case "/switch":
		if rest == "" {
			return false, &UsageError{Message: "missing conversation id", Usage: "/switch ID"}
		}
		if err := rt.Store.SelectConversation(ctx, rest); err != nil {
			return false, err
		}
		s.clearAttachments()
		printMessages(out, rt.Store.Messages(rest), time.Now())

	case "/rename":
		if rest == "" {
			return false, &UsageError{Message: "missing name", Usage: "/rename NAME"}
		}
		id := rt.Store.CurrentConversationID()
		ok, err := rt.Store.Rename(ctx, id, rest)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, &NotFoundError{Resource: "conversation", ID: id}
		}
		s.ok(fmt.Sprintf("renamed to %q", rest))

	case "/delete":
		id := rt.Store.CurrentConversationID()
		if id == "" {
			return false, errors.New("no conversation selected")
		}
		answer, err := s.in.Prompt(fmt.Sprintf("Delete conversation %s? [y/N] ", id))
		if err != nil || !isYes(answer) {
			fmt.Fprintln(out, DimStyle.Render("Cancelled."))
			return false, nil
		}
		if err := rt.Store.Delete(ctx, id); err != nil {
			return false, err
		}
		s.clearAttachments()
		s.ok("deleted conversation " + id)
		if cur := rt.Store.CurrentConversationID(); cur != "" {
			fmt.Fprintln(out, DimStyle.Render("now in "+cur))
		}

	case "/attach":
		return false, s.attach(ctx, rest)

	case "/files":
		s.mu.Lock()
		files := append([]attachment(nil), s.attachments...)
		s.mu.Unlock()
		if len(files) == 0 {
			fmt.Fprintln(out, DimStyle.Render("No attachments"))
			break
		}
		for _, f := range files {
			fmt.Fprintf(out, "  %s  %s\n", f.name, DimStyle.Render(f.id))
		}

	case "/model":
		if rest == "" {
			fmt.Fprintln(out, TitleStyle.Render(modelTitle(s.env)))
			return false, nil
		}
		if err := rt.Store.SelectModel(ctx, rest); err != nil {
			return false, err
		}
		s.clearAttachments()
		s.ok("switched to " + modelTitle(s.env))

	case "/export":
		id := rt.Store.CurrentConversationID()
		if id == "" {
			return false, errors.New("no conversation selected")
		}
		exp, err := export.New(exportFormatFor(rest), export.DefaultOptions())
		if err != nil {
			return false, err
		}
		doc, err := exportDocument(ctx, s.env, id)
		if err != nil {
			return false, err
		}
		path, err := export.ToFile(doc, exp, expandHome(rest))
		if err != nil {
			return false, err
		}
		s.ok("exported to " + path)

	case "/stop":
		if n := rt.Chat.Stop(); n > 0 {
			s.ok(fmt.Sprintf("stopped %d send(s)", n))
		} else {
			fmt.Fprintln(out, DimStyle.Render("No active send"))
		}

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", name)
	}
	return false, nil
}

// exportFormatFor picks JSON for a .json path and Markdown otherwise.
func exportFormatFor(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return "json"
	}
	return "md"
}

// attach uploads path into the current conversation for the next send.
func (s *chatSession) attach(ctx context.Context, path string) error {
	if path == "" {
		return &UsageError{Message: "missing file path", Usage: "/attach PATH"}
	}
	convID := s.env.Runtime.Store.CurrentConversationID()
	if convID == "" {
		return errors.New("no conversation selected")
	}

	res, err := uploadOne(ctx, s.env, convID, path)
	if err != nil {
		return err
	}
	if res.IsBinary() {
		fmt.Fprintf(s.env.errOut(), "%s %s has no file id and is not attached\n", WarningStyle.Render("[!]"), res.Name)
		return nil
	}

	s.mu.Lock()
	s.attachments = append(s.attachments, attachment{id: res.FileID, name: res.Name})
	n := len(s.attachments)
	s.mu.Unlock()
	s.ok(fmt.Sprintf("attached %s (%d pending)", res.Name, n))
	return nil
}

// =============================================================================
// OUTPUT
// =============================================================================

func (s *chatSession) ok(msg string) {
	writeLine(s.env.out(), s.args.Quiet, SuccessStyle.Render("[OK]")+" "+msg)
}

func (s *chatSession) printError(err error) {
	fmt.Fprintf(s.env.errOut(), "%s %s\n", ErrorStyle.Render("[Error]"), describe(err))
}

func (s *chatSession) printWelcome() {
	out := s.env.out()
	fmt.Fprintln(out, TitleStyle.Render("difychat "+Version))
	fmt.Fprintf(out, "%s %s\n", RenderLabel("Model"), modelTitle(s.env))
	fmt.Fprintf(out, "%s %s\n", RenderLabel("Conversation"), s.env.Runtime.Store.CurrentConversationID())
	fmt.Fprintln(out, DimStyle.Render("Type /help for commands, Ctrl+D to exit."))
	fmt.Fprintln(out)
}

func printChatHelp(w io.Writer) {
	cmds := [][2]string{
		{"/help", "Show this help"},
		{"/new", "Start a new conversation"},
		{"/list", "List conversations"},
		{"/switch ID", "Switch conversation"},
		{"/rename NAME", "Rename the current conversation"},
		{"/delete", "Delete the current conversation"},
		{"/attach PATH", "Upload a file for the next message"},
		{"/files", "Show pending attachments"},
		{"/model [ID]", "Show or switch model"},
		{"/export [PATH]", "Write this conversation to a file"},
		{"/stop", "Stop live sends"},
		{"/quit", "Exit chat"},
	}
	for _, c := range cmds {
		fmt.Fprintf(w, "  %s %s\n", CommandStyle.Render(fmt.Sprintf("%-14s", c[0])), c[1])
	}
	fmt.Fprintln(w, DimStyle.Render("  Ctrl+C stops a streaming reply; at the prompt it exits."))
}
