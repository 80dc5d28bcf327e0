// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// conversations.go - conversation management command.
//
// Command: conversations
// Aliases: conv, convs, conversation
//
// Examples:
//
//	difychat conversations                   List the selected model's conversations
//	difychat conv show 3f2a...               Print a conversation's messages
//	difychat conv new                        Create a conversation
//	difychat conv rename 3f2a... "Trip plan" Rename a conversation
//	difychat conv delete 3f2a... --confirm   Delete a conversation
//	difychat conv export 3f2a... -o notes.md Write a conversation to a file
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeranaias/difychat/internal/export"
	"github.com/jeranaias/difychat/internal/model"
	"github.com/jeranaias/difychat/internal/util"
)

const untitledConversation = "New conversation"

// ConversationData is the --json payload of conversations show.
type ConversationData struct {
	ConversationID string          `json:"conversation_id"`
	Model          string          `json:"model"`
	Messages       []model.Message `json:"messages"`
}

// HandleConversations dispatches the conversations subcommands.
func HandleConversations(ctx context.Context, args Args, env *Env) error {
	switch args.Subcommand {
	case "list", "ls":
		return conversationsList(ctx, args, env)
	case "show":
		return conversationsShow(ctx, args, env)
	case "new", "create":
		return conversationsNew(ctx, args, env)
	case "rename":
		return conversationsRename(ctx, args, env)
	case "delete", "rm":
		return conversationsDelete(ctx, args, env)
	case "export":
		return conversationsExport(ctx, args, env)
	default:
		return &UsageError{
			Message: fmt.Sprintf("unknown conversations subcommand %q", args.Subcommand),
			Usage:   "difychat conversations [list|show ID|new|rename ID NAME|delete ID --confirm|export ID]",
		}
	}
}

// loadConversations fetches the selected model's list. A failed fetch
// still serves a cached list, with a warning.
func loadConversations(ctx context.Context, env *Env, quiet bool) ([]model.Conversation, error) {
	s := env.Runtime.Store
	err := s.FetchConversations(ctx)
	convs := s.Conversations(s.SelectedModel())
	if err != nil {
		if len(convs) == 0 {
			return nil, err
		}
		if !quiet {
			fmt.Fprintf(env.errOut(), "%s gateway unavailable, showing cached list: %v\n", WarningStyle.Render("[!]"), err)
		}
	}
	return convs, nil
}

func conversationsList(ctx context.Context, args Args, env *Env) error {
	return OutputJSON(env.out(), args.JSON, "conversations", func() (any, error) {
		convs, err := loadConversations(ctx, env, args.Quiet || args.JSON)
		if err != nil {
			return nil, err
		}
		if !args.JSON {
			if !args.Quiet {
				fmt.Fprintln(env.out(), TitleStyle.Render(modelTitle(env)))
			}
			printConversations(env.out(), convs, "", time.Now())
		}
		return convs, nil
	})
}

func conversationsShow(ctx context.Context, args Args, env *Env) error {
	return OutputJSON(env.out(), args.JSON, "conversations", func() (any, error) {
		s := env.Runtime.Store
		id := args.Positional[0]
		if err := s.SelectConversation(ctx, id); err != nil {
			return nil, err
		}
		msgs := s.Messages(id)
		if !args.JSON {
			printMessages(env.out(), msgs, time.Now())
		}
		return ConversationData{ConversationID: id, Model: s.SelectedModel(), Messages: msgs}, nil
	})
}

func conversationsNew(ctx context.Context, args Args, env *Env) error {
	return OutputJSON(env.out(), args.JSON, "conversations", func() (any, error) {
		conv, err := env.Runtime.Store.CreateConversation(ctx)
		if err != nil {
			return nil, err
		}
		if !args.JSON {
			if args.Quiet {
				fmt.Fprintln(env.out(), conv.ID)
			} else {
				fmt.Fprintf(env.out(), "%s created conversation %s\n", SuccessStyle.Render("[OK]"), conv.ID)
			}
		}
		return conv, nil
	})
}

func conversationsRename(ctx context.Context, args Args, env *Env) error {
	return OutputJSON(env.out(), args.JSON, "conversations", func() (any, error) {
		id := args.Positional[0]
		name := strings.TrimSpace(strings.Join(args.Positional[1:], " "))
		if name == "" {
			return nil, &ValidationError{Field: "name", Reason: "must not be empty"}
		}
		if _, err := loadConversations(ctx, env, true); err != nil {
			return nil, err
		}
		ok, err := env.Runtime.Store.Rename(ctx, id, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &NotFoundError{Resource: "conversation", ID: id}
		}
		writeLine(env.out(), args.Quiet || args.JSON,
			fmt.Sprintf("%s renamed %s to %q", SuccessStyle.Render("[OK]"), id, name))
		return map[string]string{"id": id, "name": name}, nil
	})
}

func conversationsDelete(ctx context.Context, args Args, env *Env) error {
	return OutputJSON(env.out(), args.JSON, "conversations", func() (any, error) {
		id := args.Positional[0]
		if _, err := loadConversations(ctx, env, true); err != nil {
			return nil, err
		}
		ok, err := RequireConfirmation(env, args.Confirm, "delete conversation "+id, args.JSON)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrCancelled
		}
		if err := env.Runtime.Store.Delete(ctx, id); err != nil {
			return nil, err
		}
		writeLine(env.out(), args.Quiet || args.JSON,
			fmt.Sprintf("%s deleted conversation %s", SuccessStyle.Render("[OK]"), id))
		return map[string]string{"id": id}, nil
	})
}

// ExportData is the --json payload of conversations export.
type ExportData struct {
	ConversationID string `json:"conversation_id"`
	Path           string `json:"path"`
	Format         string `json:"format"`
	Messages       int    `json:"messages"`
}

func conversationsExport(ctx context.Context, args Args, env *Env) error {
	return OutputJSON(env.out(), args.JSON, "conversations", func() (any, error) {
		exp, err := export.New(args.Format, export.DefaultOptions())
		if err != nil {
			return nil, &ValidationError{Field: "format", Value: args.Format, Reason: err.Error()}
		}
		doc, err := exportDocument(ctx, env, args.Positional[0])
		if err != nil {
			return nil, err
		}
		path, err := export.ToFile(doc, exp, expandHome(args.Path))
		if err != nil {
			return nil, err
		}
		if !args.JSON {
			if args.Quiet {
				fmt.Fprintln(env.out(), path)
			} else {
				fmt.Fprintf(env.out(), "%s exported %d messages to %s\n",
					SuccessStyle.Render("[OK]"), len(doc.Messages), path)
			}
		}
		return ExportData{
			ConversationID: doc.Conversation.ID,
			Path:           path,
			Format:         strings.TrimPrefix(exp.FileExtension(), "."),
			Messages:       len(doc.Messages),
		}, nil
	})
}

// exportDocument gathers a conversation from the gateway. When the gateway
// has nothing, the local archive is used instead.
func exportDocument(ctx context.Context, env *Env, id string) (export.Document, error) {
	s := env.Runtime.Store
	doc := export.Document{
		Conversation: model.Conversation{ID: id, Model: s.SelectedModel()},
		ModelName:    modelTitle(env),
		ExportedAt:   time.Now(),
	}
	if convs, err := loadConversations(ctx, env, true); err == nil {
		for _, c := range convs {
			if c.ID == id {
				doc.Conversation = c
				break
			}
		}
	}

	fetchErr := s.SelectConversation(ctx, id)
	if fetchErr == nil {
		doc.Messages = s.Messages(id)
	}
	if len(doc.Messages) == 0 && env.Runtime.Archive != nil {
		msgs, err := env.Runtime.Archive.Transcript(ctx, id)
		if err == nil && len(msgs) > 0 {
			doc.Messages = msgs
			fetchErr = nil
		}
	}
	if fetchErr != nil {
		return doc, fetchErr
	}
	if len(doc.Messages) == 0 {
		return doc, export.ErrEmpty
	}
	return doc, nil
}

// =============================================================================
// PRINTING
// =============================================================================

func modelTitle(env *Env) string {
	id := env.Runtime.Store.SelectedModel()
	for _, m := range env.Runtime.Store.Models() {
		if m.ID == id {
			return m.Name + " (" + id + ")"
		}
	}
	return id
}

// printConversations prints one line per conversation. current is marked.
func printConversations(w io.Writer, convs []model.Conversation, current string, now time.Time) {
	if len(convs) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No conversations"))
		return
	}
	idWidth := 0
	for _, c := range convs {
		idWidth = max(idWidth, util.Width(c.ID))
	}
	for _, c := range convs {
		marker := "  "
		if c.ID == current {
			marker = "* "
		}
		name := c.Name
		if name == "" {
			name = untitledConversation
		}
		line := marker + util.PadRight(c.ID, idWidth) + "  " + util.Truncate(name, 40)
		if age := util.RelativeTime(c.Timestamp.Time(), now); age != "" {
			line += "  " + DimStyle.Render(age)
		}
		fmt.Fprintln(w, line)
	}
}

// printMessages prints a transcript.
func printMessages(w io.Writer, msgs []model.Message, now time.Time) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No messages yet"))
		return
	}
	for i, m := range msgs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		label := AssistantStyle.Render(m.Role.DisplayName())
		if m.Role == model.RoleUser {
			label = UserStyle.Render(m.Role.DisplayName())
		}
		if age := util.RelativeTime(m.Timestamp.Time(), now); age != "" {
			label += " " + DimStyle.Render(age)
		}
		fmt.Fprintln(w, label)
		fmt.Fprintln(w, m.Text)
	}
}
