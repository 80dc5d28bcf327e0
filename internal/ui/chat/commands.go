// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	chatcore "github.com/jeranaias/difychat/internal/chat"
	"github.com/jeranaias/difychat/internal/gateway"
	"github.com/jeranaias/difychat/internal/store"
)

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// waitForNotification blocks until the store publishes, then collects
// whatever else is already queued so a burst causes one re-render.
func waitForNotification(ch <-chan store.Notification) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		notes := []store.Notification{n}
		for {
			select {
			case n, ok := <-ch:
				if !ok {
					return storeChangedMsg{notes: notes}
				}
				notes = append(notes, n)
			default:
				return storeChangedMsg{notes: notes}
			}
		}
	}
}

// waitForTask drains one event of a send. When the event channel closes
// it reports the outcome instead.
func waitForTask(task *chatcore.Task) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-task.Events(); ok {
			return taskEventMsg{task: task}
		}
		res, err := task.Wait()
		return sendDoneMsg{result: res, err: err}
	}
}

// =============================================================================
// STORE OPERATIONS
// =============================================================================

// runOp runs a blocking store call off the update loop.
func runOp(op opKind, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn()}
	}
}

func startCmd(ctx context.Context, s *store.Store) tea.Cmd {
	return runOp(opStart, func() error {
		return s.SelectModel(ctx, s.SelectedModel())
	})
}

func selectModelCmd(ctx context.Context, s *store.Store, modelID string) tea.Cmd {
	return runOp(opSelectModel, func() error {
		return s.SelectModel(ctx, modelID)
	})
}

func selectConversationCmd(ctx context.Context, s *store.Store, id string) tea.Cmd {
	return runOp(opSelect, func() error {
		return s.SelectConversation(ctx, id)
	})
}

func createCmd(ctx context.Context, s *store.Store) tea.Cmd {
	return runOp(opCreate, func() error {
		_, err := s.CreateConversation(ctx)
		return err
	})
}

func renameCmd(ctx context.Context, s *store.Store, id, name string) tea.Cmd {
	return runOp(opRename, func() error {
		ok, err := s.Rename(ctx, id, name)
		if err == nil && !ok {
			return store.ErrConversationNotFound
		}
		return err
	})
}

func deleteCmd(ctx context.Context, s *store.Store, id string) tea.Cmd {
	return runOp(opDelete, func() error {
		return s.Delete(ctx, id)
	})
}

// uploadCmd uploads the file at path into a conversation.
func uploadCmd(ctx context.Context, c *gateway.Client, modelID, conversationID, path string) tea.Cmd {
	return func() tea.Msg {
		res, err := c.UploadFile(ctx, gateway.UploadRequest{
			Path:           path,
			Model:          modelID,
			ConversationID: conversationID,
		})
		return uploadDoneMsg{path: path, result: res, err: err}
	}
}
