// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - one-shot question command.
//
// Command: ask
// Short:   Stream one answer to stdout
//
// Examples:
//
//	difychat ask "What is the capital of France?"
//	difychat ask "Summarize this" --file notes.pdf
//	difychat ask "And in 1900?" --conversation 3f2a...
//	difychat --model dify3 ask "hello" --json
//
// Without --conversation a new conversation is created. Ctrl+C stops the
// send and keeps what arrived.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/difychat/internal/chat"
)

// AskData is the --json payload of ask.
type AskData struct {
	chat.Result
	FileIDs []string `json:"file_ids,omitempty"`
}

// HandleAsk sends one query and prints the reply.
func HandleAsk(ctx context.Context, args Args, env *Env) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt := env.Runtime
	out := env.out()

	convID := args.ConversationID
	if convID == "" {
		conv, err := rt.Store.CreateConversation(ctx)
		if err != nil {
			return jsonFailure(env, args, "ask", err)
		}
		convID = conv.ID
		if !args.Quiet && !args.JSON {
			fmt.Fprintln(env.errOut(), DimStyle.Render("conversation "+convID))
		}
	}

	fileIDs, err := uploadAll(ctx, env, args, convID, args.Files)
	if err != nil {
		return jsonFailure(env, args, "ask", err)
	}

	// Markdown needs the whole reply, so it is only used on a terminal
	// where the wait is visible.
	render := !args.JSON && env.Config.UI.RenderMarkdown && isTerminalWriter(out)

	var (
		cb      chat.Callbacks
		endedNL = true
	)
	if !args.JSON && !render {
		cb.OnChunk = func(text string) {
			fmt.Fprint(out, text)
			endedNL = strings.HasSuffix(text, "\n")
		}
	}
	if render && !args.Quiet {
		fmt.Fprint(env.errOut(), DimStyle.Render("Thinking...")+"\r")
	}

	res, err := rt.Chat.Send(ctx, chat.SendRequest{
		ConversationID: convID,
		Text:           args.Query,
		FileIDs:        fileIDs,
	}, cb)
	if err != nil {
		return jsonFailure(env, args, "ask", err)
	}

	if args.JSON {
		resp := NewJSONResponse("ask", AskData{Result: res, FileIDs: fileIDs})
		if res.State == chat.StateCompletedWithError {
			resp.Success = false
			resp.Error = &res.Text
		}
		if err := resp.Print(out); err != nil {
			return err
		}
		if !resp.Success {
			return &reportedError{err: errors.New(res.Text)}
		}
		return nil
	}

	if !endedNL {
		fmt.Fprintln(out)
	}

	switch res.State {
	case chat.StateCancelled:
		fmt.Fprintln(env.errOut(), WarningStyle.Render("[Stopped]"))
		return nil
	case chat.StateCompletedWithError:
		return errors.New(res.Text)
	}

	if render {
		fmt.Fprintln(out, renderMarkdown(res.Text, TerminalWidth()))
	}
	return nil
}

// jsonFailure prints err as a JSON envelope in JSON mode and marks it
// reported. In text mode err is returned unchanged.
func jsonFailure(env *Env, args Args, command string, err error) error {
	if !args.JSON {
		return err
	}
	_ = NewJSONErrorResponse(command, err).Print(env.out())
	return &reportedError{err: err}
}

// renderMarkdown renders text with glamour, falling back to the raw text.
func renderMarkdown(text string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(width-2, MinTerminalWidth)),
	)
	if err != nil {
		return text
	}
	rendered, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(rendered, "\n")
}

// writeLine writes s and a newline unless quiet.
func writeLine(w io.Writer, quiet bool, s string) {
	if !quiet {
		fmt.Fprintln(w, s)
	}
}
