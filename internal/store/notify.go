// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"sync"
)

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// Kind identifies what part of the state changed.
type Kind int

const (
	// ConversationsChanged: a model's conversation list changed.
	ConversationsChanged Kind = iota
	// MessagesChanged: a conversation's message list changed.
	MessagesChanged
	// SelectionChanged: the selected model or conversation changed.
	SelectionChanged
	// SendingChanged: a conversation started or stopped sending.
	SendingChanged
	// LoadingChanged: a loading flag flipped.
	LoadingChanged
)

func (k Kind) String() string {
	switch k {
	case ConversationsChanged:
		return "conversations"
	case MessagesChanged:
		return "messages"
	case SelectionChanged:
		return "selection"
	case SendingChanged:
		return "sending"
	case LoadingChanged:
		return "loading"
	default:
		return "unknown"
	}
}

// Notification tells a subscriber which part of the state to re-read.
// It carries no state itself.
type Notification struct {
	Kind           Kind
	Model          string
	ConversationID string
	MessageID      string
}

// subscriberBuffer is how many notifications a slow subscriber may fall
// behind before further ones are dropped.
const subscriberBuffer = 64

// hub fans notifications out to subscribers without blocking publishers.
type hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Notification
}

func newHub() *hub {
	return &hub{subs: make(map[int]chan Notification)}
}

// subscribe registers a subscriber. The returned func unsubscribes and
// closes the channel; it is safe to call more than once.
func (h *hub) subscribe() (<-chan Notification, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Notification, subscriberBuffer)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// publish delivers n to every subscriber with room. A subscriber whose
// buffer is full already has a pending re-read, so n is coalesced into it.
func (h *hub) publish(n Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
