// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/difychat/internal/ui/styles"
)

// =============================================================================
// CODE BLOCK RENDERER
// =============================================================================

// CodeBlock is a fenced code block of an assistant reply.
type CodeBlock struct {
	Language string
	Code     string
	MaxWidth int
}

// Render renders the block with line numbers and a language badge.
func (c CodeBlock) Render(theme *styles.Theme) string {
	code := strings.TrimRight(c.Code, "\n")

	highlighted := highlightCode(code, c.Language, theme.IsDark)
	lines := strings.Split(highlighted, "\n")

	numWidth := len(strconv.Itoa(len(lines)))
	lineNum := theme.CodeLineNum.
		Width(numWidth).
		Align(lipgloss.Right).
		MarginRight(1)

	rendered := make([]string, len(lines))
	for i, line := range lines {
		rendered[i] = lineNum.Render(strconv.Itoa(i+1)) + line
	}
	body := strings.Join(rendered, "\n")

	if c.Language != "" {
		body = theme.CodeLangBadge.Render(c.Language) + "\n" + body
	}

	block := theme.CodeBlock
	if c.MaxWidth > 0 {
		block = block.MaxWidth(max(c.MaxWidth, 20))
	}
	return block.Render(body)
}

// =============================================================================
// FENCE PARSER
// =============================================================================

// RenderCodeBlocks replaces ``` fences in text with rendered code blocks
// and leaves everything else untouched. An unclosed fence runs to the end.
func RenderCodeBlocks(text string, maxWidth int, theme *styles.Theme) string {
	var (
		out       []string
		codeLines []string
		language  string
		inCode    bool
	)

	flush := func() {
		cb := CodeBlock{Language: language, Code: strings.Join(codeLines, "\n"), MaxWidth: maxWidth}
		out = append(out, cb.Render(theme))
		codeLines, language, inCode = nil, "", false
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "```") && inCode:
			flush()
		case strings.HasPrefix(trimmed, "```"):
			language = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
			inCode = true
		case inCode:
			codeLines = append(codeLines, line)
		default:
			out = append(out, line)
		}
	}
	if inCode {
		flush()
	}

	return strings.Join(out, "\n")
}

// =============================================================================
// SYNTAX HIGHLIGHTING
// =============================================================================

// highlightCode returns ANSI-highlighted code. It falls back to the input
// when chroma cannot tokenise it.
func highlightCode(code, language string, dark bool) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	styleName := "monokai"
	if !dark {
		styleName = "github"
	}
	style := chromaStyles.Get(styleName)
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	// terminal256 ends with a reset and sometimes a newline.
	return strings.TrimSuffix(buf.String(), "\n")
}
