// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/jeranaias/difychat/internal/stream"
)

// taskEventBuffer is how many events a Task buffers for a slow reader.
const taskEventBuffer = 64

// Task is a send running on its own goroutine.
//
// Events must be drained, or the task cancelled, for the send to progress
// past a full buffer.
type Task struct {
	conversationID string
	events         chan stream.Event
	done           chan struct{}
	cancel         context.CancelFunc

	result Result
	err    error
}

// Start runs a send asynchronously. The returned Task delivers applied
// events in order on Events and the outcome through Wait.
func (c *Coordinator) Start(ctx context.Context, req SendRequest) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		conversationID: req.ConversationID,
		events:         make(chan stream.Event, taskEventBuffer),
		done:           make(chan struct{}),
		cancel:         cancel,
	}

	go func() {
		defer close(t.done)
		defer cancel()

		res, err := c.run(ctx, req, Callbacks{}, func(ev stream.Event) {
			select {
			case t.events <- ev:
			case <-ctx.Done():
			}
		})
		t.result, t.err = res, err
		close(t.events)
	}()

	return t
}

// ConversationID returns the conversation the task sends to.
func (t *Task) ConversationID() string {
	return t.conversationID
}

// Events returns the ordered event channel. It is closed when the send
// finishes.
func (t *Task) Events() <-chan stream.Event {
	return t.events
}

// Done is closed when the send has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the send finishes and returns its outcome.
func (t *Task) Wait() (Result, error) {
	<-t.done
	return t.result, t.err
}

// Cancel stops the send. The outcome becomes StateCancelled unless the
// send already finished.
func (t *Task) Cancel() {
	t.cancel()
}
