// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	chatcore "github.com/jeranaias/difychat/internal/chat"
	"github.com/jeranaias/difychat/internal/config"
	"github.com/jeranaias/difychat/internal/gateway"
	"github.com/jeranaias/difychat/internal/store"
)

// =============================================================================
// STORE AND SEND MESSAGES
// =============================================================================

// storeChangedMsg carries the notifications received since the last one
// was handled. The model re-reads the store snapshot.
type storeChangedMsg struct {
	notes []store.Notification
}

// taskEventMsg reports that a send applied another event. The event itself
// is already reflected in the store.
type taskEventMsg struct {
	task *chatcore.Task
}

// sendDoneMsg is the outcome of a send.
type sendDoneMsg struct {
	result chatcore.Result
	err    error
}

// =============================================================================
// OPERATION MESSAGES
// =============================================================================

// opKind names a store operation run off the update loop.
type opKind string

const (
	opStart       opKind = "load conversations"
	opSelectModel opKind = "switch model"
	opSelect      opKind = "open conversation"
	opCreate      opKind = "create conversation"
	opRename      opKind = "rename conversation"
	opDelete      opKind = "delete conversation"
)

// opDoneMsg reports a finished store operation.
type opDoneMsg struct {
	op  opKind
	err error
}

// uploadDoneMsg reports a finished file upload.
type uploadDoneMsg struct {
	path   string
	result gateway.UploadResult
	err    error
}

// configChangedMsg is sent by the config watcher.
type configChangedMsg struct {
	cfg *config.Config
	err error
}
