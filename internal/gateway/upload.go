// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// =============================================================================
// UPLOAD TYPES
// =============================================================================

// AllowedExtensions lists the file extensions the gateway accepts. A file
// without an extension is accepted and typed by the gateway.
var AllowedExtensions = map[string]bool{
	"txt": true, "pdf": true, "docx": true, "doc": true, "md": true,
	"jpg": true, "jpeg": true, "png": true, "csv": true,
	"xlsx": true, "xls": true, "exe": true, "bin": true,
}

// UploadTypeBinary is returned for files the gateway stores locally
// instead of forwarding upstream. They carry no file id.
const UploadTypeBinary = "binary"

// UploadRequest describes one file upload. When Content is nil the file
// at Path is read.
type UploadRequest struct {
	Path           string
	Name           string
	Content        io.Reader
	Model          string
	ConversationID string
	User           string
}

// UploadResult is the gateway's upload acknowledgement.
type UploadResult struct {
	Success  bool   `json:"success"`
	FileID   string `json:"file_id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	FilePath string `json:"file_path"`
	Message  string `json:"message"`
}

// IsBinary reports whether the gateway kept the file without an upstream id.
func (r UploadResult) IsBinary() bool {
	return r.Type == UploadTypeBinary
}

// CheckExtension returns a validation error when name has an extension
// outside AllowedExtensions.
func CheckExtension(name string) error {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" || AllowedExtensions[ext] {
		return nil
	}
	return validationError(fmt.Sprintf("unsupported file type %q, allowed types: %s",
		ext, strings.Join(allowedList(), ", ")))
}

func allowedList() []string {
	out := make([]string, 0, len(AllowedExtensions))
	for ext := range AllowedExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// UPLOAD
// =============================================================================

// UploadFile sends a file to the gateway as multipart form data.
func (c *Client) UploadFile(ctx context.Context, req UploadRequest) (UploadResult, error) {
	name := req.Name
	if name == "" {
		name = filepath.Base(req.Path)
	}
	if name == "" || name == "." || name == string(filepath.Separator) {
		return UploadResult{}, validationError("file name is required")
	}
	if req.ConversationID == "" {
		return UploadResult{}, validationError("conversation id is required")
	}
	if err := CheckExtension(name); err != nil {
		return UploadResult{}, err
	}

	content := req.Content
	if content == nil {
		f, err := os.Open(req.Path)
		if err != nil {
			return UploadResult{}, &ClientError{Type: ErrTypeValidation, Message: "failed to open file", Cause: err}
		}
		defer f.Close()
		content = f
	}

	user := req.User
	if user == "" {
		user = c.cfg.User
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return UploadResult{}, &ClientError{Type: ErrTypeValidation, Message: "failed to build upload", Cause: err}
	}
	if _, err := io.Copy(part, content); err != nil {
		return UploadResult{}, &ClientError{Type: ErrTypeValidation, Message: "failed to read file", Cause: err}
	}
	fields := [][2]string{
		{"user", user},
		{"model", req.Model},
		{"conversation_id", req.ConversationID},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return UploadResult{}, &ClientError{Type: ErrTypeValidation, Message: "failed to build upload", Cause: err}
		}
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, &ClientError{Type: ErrTypeValidation, Message: "failed to build upload", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/upload", &buf)
	if err != nil {
		return UploadResult{}, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Accept", "application/json")

	var result UploadResult
	if err := c.do(httpReq, &result); err != nil {
		return UploadResult{}, err
	}
	if !result.IsBinary() && result.FileID == "" {
		return UploadResult{}, &ClientError{Type: ErrTypeInvalidResponse, Message: "upload response has no file id"}
	}

	c.log.Info("file uploaded", "name", result.Name, "type", result.Type, "conversation_id", req.ConversationID)
	return result, nil
}
