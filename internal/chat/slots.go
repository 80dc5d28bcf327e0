// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// =============================================================================
// SCOPE
// =============================================================================

// Scope decides which live sends a new send cancels.
type Scope int

const (
	// ScopeGlobal allows one live send in total.
	ScopeGlobal Scope = iota
	// ScopeConversation allows one live send per conversation.
	ScopeConversation
)

func (s Scope) String() string {
	if s == ScopeConversation {
		return "conversation"
	}
	return "global"
}

// ParseScope parses "global" or "conversation". Empty means global.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "global":
		return ScopeGlobal, nil
	case "conversation", "per-conversation":
		return ScopeConversation, nil
	default:
		return ScopeGlobal, fmt.Errorf("unknown send scope %q (want global or conversation)", s)
	}
}

// =============================================================================
// SLOT TABLE
// =============================================================================

// token is one live send's claim on the slot table.
type token struct {
	conversationID string
	cancel         context.CancelCauseFunc
}

// slots maps conversation id to the live send's token.
//
// Invariant: with ScopeGlobal the table holds at most one token; with
// ScopeConversation at most one per conversation id. acquire enforces it
// by cancelling before inserting.
type slots struct {
	mu    sync.Mutex
	scope Scope
	live  map[string]*token
}

func newSlots(scope Scope) *slots {
	return &slots{scope: scope, live: make(map[string]*token)}
}

// acquire cancels whatever the scope says the new send replaces and
// registers a fresh token. onAcquire runs under the table lock.
func (s *slots) acquire(parent context.Context, conversationID string, onAcquire func(string)) (context.Context, *token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scope == ScopeGlobal {
		for id, t := range s.live {
			t.cancel(errSuperseded)
			delete(s.live, id)
		}
	} else if t, ok := s.live[conversationID]; ok {
		t.cancel(errSuperseded)
		delete(s.live, conversationID)
	}

	ctx, cancel := context.WithCancelCause(parent)
	t := &token{conversationID: conversationID, cancel: cancel}
	s.live[conversationID] = t
	if onAcquire != nil {
		onAcquire(conversationID)
	}
	return ctx, t
}

// release drops t if it is still the conversation's live token. When no
// token remains for the conversation, onIdle runs under the table lock.
func (s *slots) release(t *token, onIdle func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.live[t.conversationID]; ok && cur == t {
		delete(s.live, t.conversationID)
	}
	t.cancel(nil)
	if _, busy := s.live[t.conversationID]; !busy && onIdle != nil {
		onIdle(t.conversationID)
	}
}

// cancelConversation cancels the conversation's live send.
func (s *slots) cancelConversation(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.live[conversationID]
	if !ok {
		return false
	}
	t.cancel(errStopped)
	delete(s.live, conversationID)
	return true
}

// cancelAll cancels every live send and returns how many there were.
func (s *slots) cancelAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.live)
	for id, t := range s.live {
		t.cancel(errStopped)
		delete(s.live, id)
	}
	return n
}

// active returns the conversations with a live send, sorted.
func (s *slots) active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.live))
	for id := range s.live {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
