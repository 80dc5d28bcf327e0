// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "fmt"

// =============================================================================
// EVENT KINDS
// =============================================================================

// Kind classifies a decoded record.
type Kind int

const (
	// KindIgnored is any record with an event name the client does not act on.
	KindIgnored Kind = iota
	// KindTextDelta carries a fragment of assistant text.
	KindTextDelta
	// KindCompleted carries the authoritative conversation id from message_end.
	KindCompleted
	// KindError is either a parse failure (non-terminal) or an upstream
	// error record (terminal).
	KindError
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindTextDelta:
		return "text_delta"
	case KindCompleted:
		return "completed"
	case KindError:
		return "error"
	default:
		return "ignored"
	}
}

// Upstream event names.
const (
	EventMessage      = "message"
	EventAgentMessage = "agent_message"
	EventMessageEnd   = "message_end"
	EventAgentThought = "agent_thought"
	EventError        = "error"
)

// =============================================================================
// EVENT
// =============================================================================

// Event is one classified record from the stream.
type Event struct {
	Kind Kind
	// Name is the record's "event" field as sent upstream.
	Name string
	// Text is set for KindTextDelta.
	Text string
	// ConversationID is set for KindCompleted.
	ConversationID string
	// Message is the user-facing error text for KindError.
	Message string
	// Terminal is true when no further events follow.
	Terminal bool
	// Raw is the record payload after the data: prefix.
	Raw string
}

// TextDelta builds a text fragment event.
func TextDelta(text string) Event {
	return Event{Kind: KindTextDelta, Name: EventMessage, Text: text}
}

// Completed builds a completion event.
func Completed(conversationID string) Event {
	return Event{Kind: KindCompleted, Name: EventMessageEnd, ConversationID: conversationID}
}

// String implements fmt.Stringer for logs and test failure output.
func (e Event) String() string {
	switch e.Kind {
	case KindTextDelta:
		return fmt.Sprintf("TextDelta(%q)", e.Text)
	case KindCompleted:
		return fmt.Sprintf("Completed(%q)", e.ConversationID)
	case KindError:
		if e.Terminal {
			return fmt.Sprintf("Error(%q, terminal)", e.Message)
		}
		return fmt.Sprintf("Error(%q)", e.Message)
	default:
		return fmt.Sprintf("Ignored(%s)", e.Name)
	}
}
