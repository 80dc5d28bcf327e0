// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"github.com/jeranaias/difychat/internal/model"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ResponseModeStreaming is the only response mode the client requests.
const ResponseModeStreaming = "streaming"

// FileReference is the chat body's reference to a previously uploaded file.
type FileReference struct {
	Type           string `json:"type"`
	TransferMethod string `json:"transfer_method"`
	UploadFileID   string `json:"upload_file_id"`
}

// DocumentReference builds the reference for an uploaded document.
func DocumentReference(fileID string) FileReference {
	return FileReference{
		Type:           "document",
		TransferMethod: "local_file",
		UploadFileID:   fileID,
	}
}

// ChatRequest holds the caller-supplied fields of a streaming chat call.
// User defaults to the client's configured user.
type ChatRequest struct {
	Query          string
	ConversationID string
	Model          string
	User           string
	FileIDs        []string
}

// chatBody is the JSON body of POST /chat.
type chatBody struct {
	Query          string          `json:"query"`
	ConversationID string          `json:"conversation_id"`
	Model          string          `json:"model"`
	User           string          `json:"user"`
	Inputs         map[string]any  `json:"inputs"`
	ResponseMode   string          `json:"response_mode"`
	Files          []FileReference `json:"files,omitempty"`
}

// HistoryMessage is a message written to server-side history.
type HistoryMessage struct {
	ID        string          `json:"id"`
	Role      model.Role      `json:"role"`
	Text      string          `json:"text"`
	Sender    string          `json:"sender"`
	Timestamp model.Timestamp `json:"timestamp"`
	FileIDs   []string        `json:"fileIds,omitempty"`
}

// HistoryFromMessage converts a store message for persistence.
func HistoryFromMessage(m model.Message) HistoryMessage {
	return HistoryMessage{
		ID:        m.ID,
		Role:      m.Role,
		Text:      m.Text,
		Sender:    m.Sender,
		Timestamp: m.Timestamp,
		FileIDs:   m.FileIDs,
	}
}

type saveMessageBody struct {
	Model   string         `json:"model"`
	Message HistoryMessage `json:"message"`
}

type createConversationBody struct {
	Model string `json:"model"`
}

type createConversationResponse struct {
	ConversationID string          `json:"conversation_id"`
	Name           string          `json:"name"`
	Timestamp      model.Timestamp `json:"timestamp"`
}

type renameBody struct {
	Name string `json:"name"`
}

// errorBody is the gateway's error envelope.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
