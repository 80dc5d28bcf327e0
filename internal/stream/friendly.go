// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "strings"

// User-facing replacements for known upstream failures.
const (
	MsgUnsupportedFileType = "Unsupported file type. Make sure the file has a valid extension such as .txt or .pdf."
	MsgFileNotAccessible   = "The file cannot be accessed. It may have been deleted or you may lack permission."
	MsgFileTypeMismatch    = "The file type does not match the declared type. Try a different format such as TXT or PDF."

	// MsgStreamError is used when an error record carries no message.
	MsgStreamError = "stream processing error"
	// MsgUnknownError is used when a transport failure carries no message.
	MsgUnknownError = "unknown error"
)

type substitution struct {
	needle  string
	message string
}

// Order matters: the first matching rule wins.
var protocolRules = []substitution{
	{"Unsupported Extension Type:", MsgUnsupportedFileType},
	{"file not accessible", MsgFileNotAccessible},
	{"type does not match", MsgFileTypeMismatch},
}

var transportRules = []substitution{
	{"Unsupported Extension Type:", MsgUnsupportedFileType},
	{"Run failed:", MsgUnsupportedFileType},
	{"no file extension", MsgUnsupportedFileType},
	{"file not accessible", MsgFileNotAccessible},
}

// FriendlyMessage maps an upstream error record's message to the text shown
// to the user. Unknown messages pass through unchanged.
func FriendlyMessage(raw string) string {
	if raw == "" {
		return MsgStreamError
	}
	return substitute(raw, protocolRules)
}

// FriendlyTransportMessage maps a transport failure message. It covers the
// workflow failures the gateway reports as HTTP errors before any stream.
func FriendlyTransportMessage(raw string) string {
	if raw == "" {
		return MsgUnknownError
	}
	return substitute(raw, transportRules)
}

func substitute(raw string, rules []substitution) string {
	for _, r := range rules {
		if strings.Contains(raw, r.needle) {
			return r.message
		}
	}
	return raw
}
