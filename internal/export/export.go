// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/difychat/internal/model"
	"github.com/jeranaias/difychat/internal/util"
)

// =============================================================================
// DOCUMENT
// =============================================================================

// Document is what gets exported.
type Document struct {
	Conversation model.Conversation `json:"conversation"`
	ModelName    string             `json:"model_name,omitempty"`
	Messages     []model.Message    `json:"messages"`
	ExportedAt   time.Time          `json:"exported_at"`
}

// ErrEmpty is returned when a document has no messages.
var ErrEmpty = errors.New("export: conversation has no messages")

// title is the conversation name, or its id.
func (d Document) title() string {
	if name := strings.TrimSpace(d.Conversation.Name); name != "" {
		return name
	}
	return "Conversation " + d.Conversation.ID
}

// =============================================================================
// EXPORTER
// =============================================================================

// Exporter renders a document in one format.
type Exporter interface {
	Export(doc Document) ([]byte, error)
	FileExtension() string
	MimeType() string
}

// Options configures Markdown exports.
type Options struct {
	// IncludeMetadata adds YAML front matter and a summary section.
	IncludeMetadata bool

	// IncludeTimestamps adds a time to every message heading.
	IncludeTimestamps bool
}

// DefaultOptions includes everything.
func DefaultOptions() Options {
	return Options{IncludeMetadata: true, IncludeTimestamps: true}
}

// Formats lists the accepted format names.
var Formats = []string{"md", "markdown", "json"}

// New returns the exporter for format.
func New(format string, opts Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "md", "markdown":
		return &MarkdownExporter{options: opts}, nil
	case "json":
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q (want %s)", format, strings.Join(Formats, ", "))
	}
}

// =============================================================================
// FILES
// =============================================================================

// ToFile exports doc to path. An empty path, or a directory, gets a
// generated file name. It returns the path written.
func ToFile(doc Document, exp Exporter, path string) (string, error) {
	if doc.ExportedAt.IsZero() {
		doc.ExportedAt = time.Now()
	}
	content, err := exp.Export(doc)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	if path == "" {
		path = "."
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, FileName(doc, exp))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	if err := util.AtomicWriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// FileName builds conversation_<title>_<time><ext>.
func FileName(doc Document, exp Exporter) string {
	at := doc.ExportedAt
	if at.IsZero() {
		at = time.Now()
	}
	return fmt.Sprintf("conversation_%s_%s%s",
		sanitizeFilename(doc.title()),
		at.Format("20060102_150405"),
		exp.FileExtension())
}

// sanitizeFilename replaces characters that are invalid in file names on
// any platform and caps the length at 50 runes.
func sanitizeFilename(s string) string {
	const maxLen = 50
	runes := []rune(s)
	if len(runes) > maxLen {
		runes = runes[:maxLen]
	}

	out := make([]rune, 0, len(runes))
	for _, r := range runes {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			out = append(out, '-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			out = append(out, '_')
		case r < 32 || r == 127:
			out = append(out, '-')
		default:
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return "conversation"
	}
	return string(out)
}
