// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jeranaias/difychat/internal/model"
	"github.com/jeranaias/difychat/internal/store/optimistic"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrConversationNotFound is returned for ids not in the selected model's list.
	ErrConversationNotFound = errors.New("store: conversation not found")

	// ErrUnknownModel is returned when selecting a model that is not configured.
	ErrUnknownModel = errors.New("store: unknown model")
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Gateway is the subset of the gateway client the store drives.
type Gateway interface {
	ListConversations(ctx context.Context, modelID string) ([]model.Conversation, error)
	FetchMessages(ctx context.Context, modelID, conversationID string) ([]model.Message, error)
	CreateConversation(ctx context.Context, modelID string) (model.Conversation, error)
	RenameConversation(ctx context.Context, modelID, conversationID, name string) error
	DeleteConversation(ctx context.Context, modelID, conversationID string) error
}

// Cache is an offline snapshot of lists and messages. Lookups that miss
// return ok=false.
type Cache interface {
	SaveConversations(modelID string, convs []model.Conversation) error
	LoadConversations(modelID string) ([]model.Conversation, bool, error)
	SaveMessages(conversationID string, msgs []model.Message) error
	LoadMessages(conversationID string) ([]model.Message, bool, error)
	DeleteConversation(modelID, conversationID string) error
}

// Options configures a Store.
type Options struct {
	Models        []model.ModelInfo
	SelectedModel string
	Cache         Cache
	Logger        *slog.Logger
}

// =============================================================================
// STATE
// =============================================================================

// State is a copy of what a front end renders for the selected model and
// current conversation.
type State struct {
	Models                []model.ModelInfo
	SelectedModel         string
	CurrentConversationID string
	Conversations         []model.Conversation
	Messages              []model.Message
	Sending               bool
	LoadingConversations  bool
	LoadingMessages       bool
}

// Store holds client-side conversation state. All methods are safe for
// concurrent use; getters return copies.
type Store struct {
	gw    Gateway
	cache Cache
	log   *slog.Logger
	hub   *hub

	mu            sync.RWMutex
	models        []model.ModelInfo
	selectedModel string
	conversations map[string][]model.Conversation
	messages      map[string][]model.Message
	loaded        map[string]bool
	sending       map[string]bool
	current       string
	loadingConvs  bool
	loadingMsgs   bool
}

// New creates a store. With no SelectedModel the first model is selected.
func New(gw Gateway, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	selected := opts.SelectedModel
	if selected == "" && len(opts.Models) > 0 {
		selected = opts.Models[0].ID
	}

	return &Store{
		gw:            gw,
		cache:         opts.Cache,
		log:           logger.With("component", "store"),
		hub:           newHub(),
		models:        append([]model.ModelInfo(nil), opts.Models...),
		selectedModel: selected,
		conversations: make(map[string][]model.Conversation),
		messages:      make(map[string][]model.Message),
		loaded:        make(map[string]bool),
		sending:       make(map[string]bool),
	}
}

// Subscribe returns a channel of change notifications and a func that
// unsubscribes. Publishing never blocks; a slow subscriber may miss
// notifications but always has one pending while it is behind.
func (s *Store) Subscribe() (<-chan Notification, func()) {
	return s.hub.subscribe()
}

func (s *Store) notify(kind Kind, modelID, convID, msgID string) {
	s.hub.publish(Notification{Kind: kind, Model: modelID, ConversationID: convID, MessageID: msgID})
}

// =============================================================================
// GETTERS
// =============================================================================

// Models returns the configured models.
func (s *Store) Models() []model.ModelInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ModelInfo(nil), s.models...)
}

// SetModels replaces the configured model list. The selection is kept.
func (s *Store) SetModels(models []model.ModelInfo) {
	s.mu.Lock()
	s.models = append([]model.ModelInfo(nil), models...)
	selected := s.selectedModel
	s.mu.Unlock()
	s.notify(SelectionChanged, selected, "", "")
}

// SelectedModel returns the selected model id.
func (s *Store) SelectedModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedModel
}

// CurrentConversationID returns the current conversation id, or "".
func (s *Store) CurrentConversationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Conversations returns a copy of a model's conversation list.
func (s *Store) Conversations(modelID string) []model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Conversation(nil), s.conversations[modelID]...)
}

// Conversation looks up one conversation in a model's list.
func (s *Store) Conversation(modelID, id string) (model.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	convs := s.conversations[modelID]
	if i := model.IndexOf(convs, id); i >= 0 {
		return convs[i], true
	}
	return model.Conversation{}, false
}

// Messages returns a copy of a conversation's message list.
func (s *Store) Messages(conversationID string) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.CloneMessages(s.messages[conversationID])
}

// IsLoaded reports whether a conversation's history has been fetched.
func (s *Store) IsLoaded(conversationID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded[conversationID]
}

// IsSending reports whether a send is live for the conversation.
func (s *Store) IsSending(conversationID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sending[conversationID]
}

// Snapshot returns the state for the selected model and current conversation.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return State{
		Models:                append([]model.ModelInfo(nil), s.models...),
		SelectedModel:         s.selectedModel,
		CurrentConversationID: s.current,
		Conversations:         append([]model.Conversation(nil), s.conversations[s.selectedModel]...),
		Messages:              model.CloneMessages(s.messages[s.current]),
		Sending:               s.sending[s.current],
		LoadingConversations:  s.loadingConvs,
		LoadingMessages:       s.loadingMsgs,
	}
}

func (s *Store) knownModel(id string) bool {
	for _, m := range s.models {
		if m.ID == id {
			return true
		}
	}
	return false
}

// =============================================================================
// CONVERSATION LIST
// =============================================================================

// FetchConversations reloads the selected model's list, newest first. On
// failure the offline snapshot is used when one exists, else the list is
// emptied; the error is returned either way.
func (s *Store) FetchConversations(ctx context.Context) error {
	modelID := s.SelectedModel()
	s.setLoadingConversations(true)
	defer s.setLoadingConversations(false)

	convs, err := s.gw.ListConversations(ctx, modelID)
	if err != nil {
		s.log.Warn("fetch conversations failed", "model", modelID, "error", err)
		convs = s.cachedConversations(modelID)
	} else {
		model.SortByRecent(convs)
		s.saveConversationsCache(modelID, convs)
	}

	s.mu.Lock()
	s.conversations[modelID] = convs
	s.mu.Unlock()
	s.notify(ConversationsChanged, modelID, "", "")

	if err != nil {
		return fmt.Errorf("fetch conversations for %s: %w", modelID, err)
	}
	return nil
}

func (s *Store) cachedConversations(modelID string) []model.Conversation {
	if s.cache == nil {
		return []model.Conversation{}
	}
	convs, ok, err := s.cache.LoadConversations(modelID)
	if err != nil {
		s.log.Warn("offline cache read failed", "model", modelID, "error", err)
	}
	if !ok || err != nil {
		return []model.Conversation{}
	}
	model.SortByRecent(convs)
	s.log.Info("using offline conversation list", "model", modelID, "count", len(convs))
	return convs
}

// SelectModel switches model, reloads its list, then selects its newest
// conversation or creates one. A failed reload with nothing cached
// returns the error without creating a conversation.
func (s *Store) SelectModel(ctx context.Context, modelID string) error {
	s.mu.Lock()
	if !s.knownModel(modelID) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownModel, modelID)
	}
	s.selectedModel = modelID
	s.current = ""
	s.mu.Unlock()
	s.notify(SelectionChanged, modelID, "", "")

	fetchErr := s.FetchConversations(ctx)
	convs := s.Conversations(modelID)
	if len(convs) > 0 {
		if err := s.SelectConversation(ctx, convs[0].ID); err != nil {
			return errors.Join(fetchErr, err)
		}
		return fetchErr
	}
	if fetchErr != nil {
		return fetchErr
	}

	_, err := s.CreateConversation(ctx)
	return err
}

// CreateConversation creates a conversation for the selected model,
// prepends it and selects it.
func (s *Store) CreateConversation(ctx context.Context) (model.Conversation, error) {
	modelID := s.SelectedModel()

	conv, err := s.gw.CreateConversation(ctx, modelID)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	if conv.Model == "" {
		conv.Model = modelID
	}

	s.mu.Lock()
	s.conversations[modelID] = append([]model.Conversation{conv}, s.conversations[modelID]...)
	// A new conversation has no history to fetch.
	s.messages[conv.ID] = []model.Message{}
	s.loaded[conv.ID] = true
	s.current = conv.ID
	convs := append([]model.Conversation(nil), s.conversations[modelID]...)
	s.mu.Unlock()

	s.saveConversationsCache(modelID, convs)
	s.notify(ConversationsChanged, modelID, conv.ID, "")
	s.notify(SelectionChanged, modelID, conv.ID, "")
	return conv, nil
}

// =============================================================================
// SELECTION & HISTORY
// =============================================================================

// SelectConversation makes id current and loads its history once. Later
// selections reuse the loaded list. A load error leaves the offline
// snapshot or an empty list, and returns the error.
func (s *Store) SelectConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.current == id && s.loaded[id] {
		s.mu.Unlock()
		return nil
	}
	modelID := s.selectedModel
	s.current = id
	needLoad := !s.loaded[id]
	s.mu.Unlock()
	s.notify(SelectionChanged, modelID, id, "")

	if !needLoad {
		return nil
	}

	s.setLoadingMessages(true)
	defer s.setLoadingMessages(false)

	fetched, err := s.gw.FetchMessages(ctx, modelID, id)
	if err != nil {
		s.log.Warn("load history failed", "conversation_id", id, "error", err)
		fetched = s.cachedMessages(id)
	}

	s.mu.Lock()
	// Keep messages appended locally while the fetch was in flight. Ones
	// the fetch already returned (an earlier offline snapshot) are dropped.
	local := s.messages[id]
	seen := make(map[string]bool, len(fetched))
	merged := make([]model.Message, 0, len(fetched)+len(local))
	for _, m := range fetched {
		seen[m.ID] = true
		merged = append(merged, m)
	}
	for _, m := range local {
		if !seen[m.ID] {
			merged = append(merged, m)
		}
	}
	s.messages[id] = merged
	if err == nil {
		s.loaded[id] = true
	}
	s.mu.Unlock()

	if err == nil {
		s.saveMessagesCache(id, fetched)
	}
	s.notify(MessagesChanged, modelID, id, "")

	if err != nil {
		return fmt.Errorf("load history for %s: %w", id, err)
	}
	return nil
}

func (s *Store) cachedMessages(id string) []model.Message {
	if s.cache == nil {
		return nil
	}
	msgs, ok, err := s.cache.LoadMessages(id)
	if err != nil || !ok {
		return nil
	}
	return msgs
}

// =============================================================================
// OPTIMISTIC MUTATIONS
// =============================================================================

// Rename sets a conversation's name locally, then on the gateway. The
// local change is undone if the gateway call fails. It returns false,nil
// for an id not in the selected model's list.
func (s *Store) Rename(ctx context.Context, id, name string) (bool, error) {
	s.mu.Lock()
	modelID := s.selectedModel
	idx := model.IndexOf(s.conversations[modelID], id)
	if idx < 0 {
		s.mu.Unlock()
		return false, nil
	}
	original := s.conversations[modelID][idx].Name
	s.mu.Unlock()

	setName := func(n string) {
		s.mu.Lock()
		if i := model.IndexOf(s.conversations[modelID], id); i >= 0 {
			s.conversations[modelID][i].Name = n
		}
		s.mu.Unlock()
		s.notify(ConversationsChanged, modelID, id, "")
	}

	err := optimistic.Apply(
		func() { setName(name) },
		func() error { return s.gw.RenameConversation(ctx, modelID, id, name) },
		func() { setName(original) },
	)
	if err != nil {
		s.log.Warn("rename failed, rolled back", "conversation_id", id, "error", err)
		return false, fmt.Errorf("rename conversation: %w", err)
	}

	s.saveConversationsCache(modelID, s.Conversations(modelID))
	return true, nil
}

// deleteSnapshot is the state a failed delete restores.
type deleteSnapshot struct {
	convs    []model.Conversation
	messages []model.Message
	hadMsgs  bool
	loaded   bool
	current  string
}

// Delete removes a conversation locally, moves the selection if it was
// current, then deletes it on the gateway. On failure the list, message
// cache and selection are restored and the error is returned.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	modelID := s.selectedModel
	if model.IndexOf(s.conversations[modelID], id) < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	msgs, hadMsgs := s.messages[id]
	snap := deleteSnapshot{
		convs:    append([]model.Conversation(nil), s.conversations[modelID]...),
		messages: model.CloneMessages(msgs),
		hadMsgs:  hadMsgs,
		loaded:   s.loaded[id],
		current:  s.current,
	}
	s.mu.Unlock()

	wasCurrent := snap.current == id

	err := optimistic.Apply(
		func() { s.removeLocal(modelID, id) },
		func() error {
			if wasCurrent {
				s.reselectAfterDelete(ctx, modelID)
			}
			return s.gw.DeleteConversation(ctx, modelID, id)
		},
		func() { s.restoreDeleted(modelID, id, snap) },
	)
	if err != nil {
		s.log.Warn("delete failed, rolled back", "conversation_id", id, "error", err)
		return fmt.Errorf("delete conversation: %w", err)
	}

	if s.cache != nil {
		if cerr := s.cache.DeleteConversation(modelID, id); cerr != nil {
			s.log.Warn("offline cache delete failed", "conversation_id", id, "error", cerr)
		}
	}
	s.saveConversationsCache(modelID, s.Conversations(modelID))
	return nil
}

func (s *Store) removeLocal(modelID, id string) {
	s.mu.Lock()
	convs := s.conversations[modelID]
	kept := make([]model.Conversation, 0, len(convs))
	for _, c := range convs {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	s.conversations[modelID] = kept
	delete(s.messages, id)
	delete(s.loaded, id)
	if s.current == id {
		s.current = ""
	}
	s.mu.Unlock()

	s.notify(ConversationsChanged, modelID, id, "")
	s.notify(SelectionChanged, modelID, "", "")
}

// reselectAfterDelete selects the first remaining conversation or creates
// one. Failures are logged; the delete itself decides the outcome.
func (s *Store) reselectAfterDelete(ctx context.Context, modelID string) {
	convs := s.Conversations(modelID)
	var err error
	if len(convs) > 0 {
		err = s.SelectConversation(ctx, convs[0].ID)
	} else {
		_, err = s.CreateConversation(ctx)
	}
	if err != nil {
		s.log.Warn("reselect after delete failed", "model", modelID, "error", err)
	}
}

func (s *Store) restoreDeleted(modelID, id string, snap deleteSnapshot) {
	s.mu.Lock()
	s.conversations[modelID] = snap.convs
	if snap.hadMsgs {
		s.messages[id] = snap.messages
	}
	if snap.loaded {
		s.loaded[id] = true
	}
	if snap.current == id {
		s.current = id
	}
	s.mu.Unlock()

	s.notify(ConversationsChanged, modelID, id, "")
	s.notify(SelectionChanged, modelID, s.CurrentConversationID(), "")
	s.notify(MessagesChanged, modelID, id, "")
}

// =============================================================================
// COORDINATOR HOOKS
// =============================================================================

// AppendMessages adds messages to the end of a conversation's list.
func (s *Store) AppendMessages(conversationID string, msgs ...model.Message) {
	if len(msgs) == 0 {
		return
	}
	s.mu.Lock()
	for _, m := range msgs {
		s.messages[conversationID] = append(s.messages[conversationID], m.Clone())
	}
	modelID := s.selectedModel
	s.mu.Unlock()
	s.notify(MessagesChanged, modelID, conversationID, msgs[len(msgs)-1].ID)
}

// UpdateMessage applies fn to one message in place. It returns false when
// the conversation or message is gone, for example after a delete.
func (s *Store) UpdateMessage(conversationID, messageID string, fn func(*model.Message)) bool {
	s.mu.Lock()
	msgs := s.messages[conversationID]
	found := false
	for i := range msgs {
		if msgs[i].ID == messageID {
			fn(&msgs[i])
			found = true
			break
		}
	}
	modelID := s.selectedModel
	s.mu.Unlock()

	if found {
		s.notify(MessagesChanged, modelID, conversationID, messageID)
	}
	return found
}

// Message returns one message by id.
func (s *Store) Message(conversationID, messageID string) (model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.messages[conversationID] {
		if m.ID == messageID {
			return m.Clone(), true
		}
	}
	return model.Message{}, false
}

// Touch moves a conversation to the front of its model's list and stamps
// it with at. It returns false when the conversation is not listed.
func (s *Store) Touch(modelID, conversationID string, at time.Time) bool {
	s.mu.Lock()
	convs := s.conversations[modelID]
	idx := model.IndexOf(convs, conversationID)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	conv := convs[idx]
	conv.Timestamp = model.NewTimestamp(at)
	reordered := make([]model.Conversation, 0, len(convs))
	reordered = append(reordered, conv)
	reordered = append(reordered, convs[:idx]...)
	reordered = append(reordered, convs[idx+1:]...)
	s.conversations[modelID] = reordered

	listCopy := append([]model.Conversation(nil), reordered...)
	msgCopy := settledMessages(s.messages[conversationID])
	s.mu.Unlock()

	s.saveConversationsCache(modelID, listCopy)
	s.saveMessagesCache(conversationID, msgCopy)
	s.notify(ConversationsChanged, modelID, conversationID, "")
	return true
}

// SetSending sets a conversation's sending flag.
func (s *Store) SetSending(conversationID string, sending bool) {
	s.mu.Lock()
	changed := s.sending[conversationID] != sending
	if sending {
		s.sending[conversationID] = true
	} else {
		delete(s.sending, conversationID)
	}
	modelID := s.selectedModel
	s.mu.Unlock()

	if changed {
		s.notify(SendingChanged, modelID, conversationID, "")
	}
}

// =============================================================================
// LOADING FLAGS
// =============================================================================

func (s *Store) setLoadingConversations(v bool) {
	s.mu.Lock()
	s.loadingConvs = v
	modelID := s.selectedModel
	s.mu.Unlock()
	s.notify(LoadingChanged, modelID, "", "")
}

func (s *Store) setLoadingMessages(v bool) {
	s.mu.Lock()
	s.loadingMsgs = v
	modelID, current := s.selectedModel, s.current
	s.mu.Unlock()
	s.notify(LoadingChanged, modelID, current, "")
}

// =============================================================================
// OFFLINE CACHE
// =============================================================================

func (s *Store) saveConversationsCache(modelID string, convs []model.Conversation) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SaveConversations(modelID, convs); err != nil {
		s.log.Warn("offline cache write failed", "model", modelID, "error", err)
	}
}

func (s *Store) saveMessagesCache(conversationID string, msgs []model.Message) {
	if s.cache == nil || msgs == nil {
		return
	}
	if err := s.cache.SaveMessages(conversationID, msgs); err != nil {
		s.log.Warn("offline cache write failed", "conversation_id", conversationID, "error", err)
	}
}

// settledMessages drops in-flight and failed messages, which are view
// state only.
func settledMessages(msgs []model.Message) []model.Message {
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.IsLoading || m.IsError {
			continue
		}
		out = append(out, m.Clone())
	}
	return out
}
