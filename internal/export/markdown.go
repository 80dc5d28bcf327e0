// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/difychat/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter writes a readable transcript.
type MarkdownExporter struct {
	options Options
}

// Export renders doc as Markdown. Message text is already Markdown and is
// written as is.
func (e *MarkdownExporter) Export(doc Document) ([]byte, error) {
	if len(doc.Messages) == 0 {
		return nil, ErrEmpty
	}
	conv := doc.Conversation
	title := doc.title()

	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(title))
		fmt.Fprintf(&sb, "conversation_id: %s\n", escapeYAML(conv.ID))
		fmt.Fprintf(&sb, "model: %s\n", escapeYAML(conv.Model))
		if !conv.Timestamp.IsZero() {
			fmt.Fprintf(&sb, "updated: %s\n", conv.Timestamp.Time().Format(time.RFC3339))
		}
		fmt.Fprintf(&sb, "messages: %d\n", len(doc.Messages))
		fmt.Fprintf(&sb, "exported: %s\n", doc.ExportedAt.Format(time.RFC3339))
		sb.WriteString("generator: difychat\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(title))

	if e.options.IncludeMetadata {
		modelName := doc.ModelName
		if modelName == "" {
			modelName = conv.Model
		}
		sb.WriteString("## Conversation Information\n\n")
		fmt.Fprintf(&sb, "- **Model**: %s\n", modelName)
		fmt.Fprintf(&sb, "- **Messages**: %d\n", len(doc.Messages))
		if !conv.Timestamp.IsZero() {
			fmt.Fprintf(&sb, "- **Last Updated**: %s\n", conv.Timestamp.Time().Format("January 2, 2006 at 3:04 PM"))
		}
		sb.WriteString("\n---\n\n")
	}

	for i, msg := range doc.Messages {
		label := msg.Role.DisplayName()
		if e.options.IncludeTimestamps && !msg.Timestamp.IsZero() {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", label, msg.Timestamp.Time().Format("2006-01-02 15:04"))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", label)
		}

		sb.WriteString(strings.TrimSpace(msg.Text))
		sb.WriteString("\n\n")

		if n := len(msg.FileIDs); n > 0 && msg.Role == model.RoleUser {
			fmt.Fprintf(&sb, "<sub>Attached files: %s</sub>\n\n", strings.Join(msg.FileIDs, ", "))
		}

		if i < len(doc.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	fmt.Fprintf(&sb, "\n---\n\n*Exported from difychat on %s*\n",
		doc.ExportedAt.Format("January 2, 2006 at 3:04 PM"))

	return []byte(sb.String()), nil
}

func (e *MarkdownExporter) FileExtension() string { return ".md" }

func (e *MarkdownExporter) MimeType() string { return "text/markdown" }

// =============================================================================
// ESCAPING
// =============================================================================

// escapeMarkdown escapes characters that break headings.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer(
		"#", `\#`,
		"*", `\*`,
		"_", `\_`,
		"[", `\[`,
		"]", `\]`,
	)
	return r.Replace(s)
}

// escapeYAML quotes a front matter value when it has special characters.
func escapeYAML(s string) string {
	if !strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") && !strings.HasPrefix(s, " ") && !strings.HasSuffix(s, " ") {
		return s
	}
	r := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
	)
	return `"` + r.Replace(s) + `"`
}
