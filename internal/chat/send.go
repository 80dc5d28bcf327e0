// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/difychat/internal/gateway"
	"github.com/jeranaias/difychat/internal/model"
	"github.com/jeranaias/difychat/internal/stream"
)

// =============================================================================
// SEND
// =============================================================================

// Send runs one send to completion. It returns a nil error for completed,
// completed-with-error and cancelled sends; a *SendError for transport
// failures; ErrUnresolvedConversation when the target has no server id.
func (c *Coordinator) Send(ctx context.Context, req SendRequest, cb Callbacks) (Result, error) {
	return c.run(ctx, req, cb, nil)
}

// sendRun is the state of one send while it streams.
type sendRun struct {
	c      *Coordinator
	req    SendRequest
	cb     Callbacks
	res    Result
	user   model.Message
	reply  strings.Builder
	failed bool
	// finalText is the assistant message text once the send settles.
	finalText string
	onEvent   func(stream.Event)
}

func (c *Coordinator) run(ctx context.Context, req SendRequest, cb Callbacks, onEvent func(stream.Event)) (Result, error) {
	convID := req.ConversationID
	if req.Model == "" {
		req.Model = c.store.SelectedModel()
	}

	if model.IsUnresolvedID(convID) {
		return Result{Model: req.Model, ConversationID: convID, State: StateIdle, StateName: StateIdle.String()},
			ErrUnresolvedConversation
	}

	text := strings.TrimSpace(req.Text)
	query := text
	if query == "" {
		if len(req.FileIDs) == 0 {
			return Result{Model: req.Model, ConversationID: convID, State: StateIdle, StateName: StateIdle.String()}, nil
		}
		query = c.fileQuery
	}

	sendCtx, tok := c.slots.acquire(ctx, convID, c.markSending)
	c.running.Add(1)
	defer c.running.Add(-1)
	defer c.slots.release(tok, c.clearSending)

	now := time.Now()
	r := &sendRun{
		c:       c,
		req:     req,
		cb:      cb,
		onEvent: onEvent,
		user: model.Message{
			ID:        model.TempIDPrefix + "user-" + uuid.NewString(),
			Role:      model.RoleUser,
			Sender:    string(model.RoleUser),
			Text:      userDisplayText(text, len(req.FileIDs)),
			Timestamp: model.NewTimestamp(now),
			FileIDs:   append([]string(nil), req.FileIDs...),
		},
	}
	if len(r.user.FileIDs) == 0 {
		r.user.FileIDs = nil
	}
	placeholder := model.Message{
		ID:        model.TempIDPrefix + "assistant-" + uuid.NewString(),
		Role:      model.RoleAssistant,
		Sender:    string(model.RoleAssistant),
		Timestamp: model.NewTimestamp(now),
		IsLoading: true,
	}
	r.res = Result{
		Model:              req.Model,
		ConversationID:     convID,
		State:              StateSending,
		UserMessageID:      r.user.ID,
		AssistantMessageID: placeholder.ID,
	}

	// Both messages are visible before any network I/O.
	c.store.AppendMessages(convID, r.user, placeholder)

	c.log.Debug("send started",
		"conversation_id", convID,
		"model", req.Model,
		"files", len(req.FileIDs))

	body, err := c.gw.StreamChat(sendCtx, gateway.ChatRequest{
		Query:          query,
		ConversationID: convID,
		Model:          req.Model,
		FileIDs:        req.FileIDs,
	})
	if err != nil {
		if sendCtx.Err() != nil {
			return r.finishCancelled(sendCtx), nil
		}
		return r.finishFailed(err)
	}
	defer body.Close()

	return r.drive(sendCtx, stream.NewDecoder(body))
}

// drive applies decoded events until the stream ends, errors or the send
// is cancelled.
func (r *sendRun) drive(ctx context.Context, dec *stream.Decoder) (Result, error) {
	for {
		ev, err := dec.Next()

		// STREAMING: once cancellation is observed nothing more is applied,
		// including an event that arrived with the final read.
		if ctx.Err() != nil {
			return r.finishCancelled(ctx), nil
		}
		if err == io.EOF {
			return r.finishCompleted(), nil
		}
		if err != nil {
			return r.finishFailed(err)
		}

		if done := r.apply(ev); done {
			return r.finishProtocolError(ev), nil
		}
	}
}

// apply handles one event. It returns true for a terminal error event.
func (r *sendRun) apply(ev stream.Event) bool {
	c := r.c
	convID := r.res.ConversationID

	switch ev.Kind {
	case stream.KindTextDelta:
		r.reply.WriteString(ev.Text)
		c.store.UpdateMessage(convID, r.res.AssistantMessageID, func(m *model.Message) {
			if m.IsError {
				return
			}
			m.Text += ev.Text
			m.IsLoading = false
		})
		r.emit(ev)
		if r.cb.OnChunk != nil {
			r.cb.OnChunk(ev.Text)
		}

	case stream.KindCompleted:
		if ev.ConversationID != "" {
			r.res.ServerConversationID = ev.ConversationID
		}
		r.emit(ev)

	case stream.KindError:
		if ev.Terminal {
			return true
		}
		c.log.Warn("malformed stream record skipped",
			"conversation_id", convID,
			"error", ev.Message)

	default:
		c.log.Debug("stream event ignored", "event", ev.Name, "conversation_id", convID)
	}
	return false
}

func (r *sendRun) emit(ev stream.Event) {
	if r.onEvent != nil {
		r.onEvent(ev)
	}
}

// =============================================================================
// TERMINAL STATES
// =============================================================================

func (r *sendRun) finishCompleted() Result {
	r.settle(false, "")
	r.res.State = StateCompleted
	r.touch()
	r.persist()
	r.c.log.Info("send completed",
		"conversation_id", r.res.ConversationID,
		"server_conversation_id", r.res.ServerConversationID,
		"chars", len(r.res.Text))
	r.complete()
	return r.result()
}

func (r *sendRun) finishCancelled(ctx context.Context) Result {
	r.settle(false, "")
	r.res.State = StateCancelled
	r.touch()
	r.persist()
	r.c.log.Info("send cancelled",
		"conversation_id", r.res.ConversationID,
		"cause", context.Cause(ctx),
		"chars", len(r.res.Text))
	r.complete()
	return r.result()
}

func (r *sendRun) finishProtocolError(ev stream.Event) Result {
	r.settle(true, ev.Message)
	r.res.State = StateCompletedWithError
	r.persist()
	r.c.log.Warn("upstream reported an error",
		"conversation_id", r.res.ConversationID,
		"error", ev.Message)
	r.emit(ev)
	if r.cb.OnError != nil {
		r.cb.OnError(&ProtocolError{ConversationID: r.res.ConversationID, Message: ev.Message})
	}
	r.complete()
	return r.result()
}

func (r *sendRun) finishFailed(cause error) (Result, error) {
	msg := SendFailedPrefix + stream.FriendlyTransportMessage(cause.Error())
	r.failed = true
	r.settle(true, msg)
	r.res.State = StateFailed
	r.persist()
	r.c.log.Error("send failed",
		"conversation_id", r.res.ConversationID,
		"error", cause)

	sendErr := &SendError{ConversationID: r.res.ConversationID, Message: msg, Cause: cause}
	if r.cb.OnError != nil {
		r.cb.OnError(sendErr)
	}
	return r.result(), sendErr
}

// settle writes the placeholder's final state. An error replaces the text;
// an empty reply becomes NoReplyMarker.
func (r *sendRun) settle(isError bool, errText string) {
	r.res.Text = r.reply.String()
	if isError {
		r.res.Text = errText
	}

	final := r.reply.String()
	switch {
	case isError:
		final = errText
	case final == "":
		final = NoReplyMarker
	}
	r.finalText = final

	r.c.store.UpdateMessage(r.res.ConversationID, r.res.AssistantMessageID, func(m *model.Message) {
		m.IsLoading = false
		m.IsError = isError
		m.Text = final
	})
}

func (r *sendRun) touch() {
	r.c.store.Touch(r.res.Model, r.res.ConversationID, time.Now())
}

func (r *sendRun) complete() {
	if r.cb.OnComplete != nil {
		r.cb.OnComplete(r.result())
	}
}

func (r *sendRun) result() Result {
	res := r.res
	res.StateName = res.State.String()
	return res
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// persist queues the history writes. The user message is always saved;
// the reply only when it is real text.
func (r *sendRun) persist() {
	c := r.c
	res := r.result()
	historyID := res.HistoryConversationID()

	msgs := []model.Message{r.user}
	if reply, ok := r.persistableReply(); ok {
		msgs = append(msgs, reply)
	}

	job := func(ctx context.Context) error {
		for _, m := range msgs {
			if err := c.gw.SaveMessage(ctx, res.Model, historyID, gateway.HistoryFromMessage(m)); err != nil {
				return fmt.Errorf("save %s message: %w", m.Role, err)
			}
			if c.archive != nil {
				if err := c.archive.RecordMessage(ctx, res.Model, historyID, m); err != nil {
					c.log.Warn("archive write failed", "conversation_id", historyID, "error", err)
				}
			}
		}
		return nil
	}

	if _, err := c.runner.Submit("persist messages", historyID, job); err != nil {
		c.log.Warn("persistence not queued", "conversation_id", historyID, "error", err)
	}
}

func (r *sendRun) persistableReply() (model.Message, bool) {
	if r.failed || r.res.State == StateCompletedWithError {
		return model.Message{}, false
	}
	text := r.finalText
	if text == "" || text == NoReplyMarker {
		return model.Message{}, false
	}
	return model.Message{
		ID:        r.res.AssistantMessageID,
		Role:      model.RoleAssistant,
		Sender:    string(model.RoleAssistant),
		Text:      text,
		Timestamp: r.user.Timestamp,
	}, true
}

// userDisplayText is the user message as shown and persisted.
func userDisplayText(text string, files int) string {
	if files == 0 {
		return text
	}
	if text == "" {
		return fmt.Sprintf("Uploaded %d files", files)
	}
	return fmt.Sprintf("%s [%d files attached]", text, files)
}
