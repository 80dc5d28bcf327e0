// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jeranaias/difychat/internal/gateway"
	"github.com/jeranaias/difychat/internal/model"
	"github.com/jeranaias/difychat/internal/store"
	"github.com/jeranaias/difychat/internal/tasks"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultFileQuery is sent when the user attaches files without text.
	DefaultFileQuery = "Please analyze or answer based on the files I uploaded."

	// NoReplyMarker replaces an assistant reply that finished empty. It is
	// display-only and never persisted.
	NoReplyMarker = "[No valid reply received]"

	// SendFailedPrefix starts the placeholder text of a failed send.
	SendFailedPrefix = "Send failed: "
)

// =============================================================================
// TYPES
// =============================================================================

// State is the lifecycle state of a send.
type State int

const (
	StateIdle State = iota
	StateSending
	StateCompleted
	StateCompletedWithError
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateCompleted:
		return "completed"
	case StateCompletedWithError:
		return "completed_with_error"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SendRequest is one user send. An empty Model means the store's
// selected model.
type SendRequest struct {
	Model          string
	ConversationID string
	Text           string
	FileIDs        []string
}

// Callbacks are optional hooks, called in event order from the sending
// goroutine.
type Callbacks struct {
	OnChunk    func(text string)
	OnComplete func(Result)
	OnError    func(error)
}

// Result is the outcome of a send.
type Result struct {
	Model                string `json:"model"`
	ConversationID       string `json:"conversation_id"`
	ServerConversationID string `json:"server_conversation_id,omitempty"`
	// Text is the reply received so far, or the error text for failed sends.
	Text               string `json:"text"`
	State              State  `json:"-"`
	StateName          string `json:"state"`
	UserMessageID      string `json:"user_message_id,omitempty"`
	AssistantMessageID string `json:"assistant_message_id,omitempty"`
}

// HistoryConversationID is the id history writes go to. The server's id
// wins over the local one.
func (r Result) HistoryConversationID() string {
	if r.ServerConversationID != "" {
		return r.ServerConversationID
	}
	return r.ConversationID
}

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Gateway is the subset of the gateway client a send needs.
type Gateway interface {
	StreamChat(ctx context.Context, req gateway.ChatRequest) (io.ReadCloser, error)
	SaveMessage(ctx context.Context, modelID, conversationID string, msg gateway.HistoryMessage) error
}

// Recorder archives persisted messages locally.
type Recorder interface {
	RecordMessage(ctx context.Context, modelID, conversationID string, msg model.Message) error
}

// Submitter runs background jobs.
type Submitter interface {
	Submit(description, conversationID string, fn tasks.Func) (*tasks.Job, error)
}

// Options configures a Coordinator.
type Options struct {
	Store   *store.Store
	Gateway Gateway

	// Runner receives persistence jobs. A default runner is created when nil.
	Runner Submitter

	// Archive, when set, also records persisted messages.
	Archive Recorder

	Scope            Scope
	DefaultFileQuery string
	Logger           *slog.Logger
}

// =============================================================================
// COORDINATOR
// =============================================================================

// Coordinator runs sends against a store and gateway.
type Coordinator struct {
	store     *store.Store
	gw        Gateway
	runner    Submitter
	archive   Recorder
	slots     *slots
	fileQuery string
	log       *slog.Logger

	// running counts sends between slot acquire and release.
	running atomic.Int64
}

// New creates a coordinator.
func New(opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runner := opts.Runner
	if runner == nil {
		runner = tasks.NewRunner(tasks.Options{Logger: logger})
	}
	fileQuery := opts.DefaultFileQuery
	if fileQuery == "" {
		fileQuery = DefaultFileQuery
	}

	return &Coordinator{
		store:     opts.Store,
		gw:        opts.Gateway,
		runner:    runner,
		archive:   opts.Archive,
		slots:     newSlots(opts.Scope),
		fileQuery: fileQuery,
		log:       logger.With("component", "chat"),
	}
}

// Scope returns the cancellation scope.
func (c *Coordinator) Scope() Scope {
	return c.slots.scope
}

// Stop cancels every live send. It returns how many were cancelled.
func (c *Coordinator) Stop() int {
	n := c.slots.cancelAll()
	if n > 0 {
		c.log.Info("stopped sends", "count", n)
	}
	return n
}

// StopConversation cancels the live send for one conversation.
func (c *Coordinator) StopConversation(conversationID string) bool {
	ok := c.slots.cancelConversation(conversationID)
	if ok {
		c.log.Info("stopped send", "conversation_id", conversationID)
	}
	return ok
}

// Active returns the conversations with a live send.
func (c *Coordinator) Active() []string {
	return c.slots.active()
}

// WaitIdle blocks until every send, including cancelled ones still
// settling, has returned, or ctx is done.
func (c *Coordinator) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for c.running.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// ShouldAlert reports whether a failed send deserves a blocking alert:
// only when its conversation is still the current one.
func (c *Coordinator) ShouldAlert(res Result) bool {
	return res.ConversationID != "" && res.ConversationID == c.store.CurrentConversationID()
}

func (c *Coordinator) markSending(conversationID string) {
	c.store.SetSending(conversationID, true)
}

func (c *Coordinator) clearSending(conversationID string) {
	c.store.SetSending(conversationID, false)
}
