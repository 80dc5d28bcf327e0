// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is the gateway's summary of one chat thread.
type Conversation struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Model     string    `json:"model"`
	Timestamp Timestamp `json:"timestamp"`
}

// IsUnresolvedID reports whether id cannot be used for network calls:
// it is empty, a locally generated temp id, or the gateway's "new-" fallback.
func IsUnresolvedID(id string) bool {
	return id == "" || strings.HasPrefix(id, TempIDPrefix) || strings.HasPrefix(id, "new-")
}

// SortByRecent orders conversations newest first. Ties keep their order.
func SortByRecent(convs []Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].Timestamp.Time().After(convs[j].Timestamp.Time())
	})
}

// IndexOf returns the position of id in convs, or -1.
func IndexOf(convs []Conversation, id string) int {
	for i := range convs {
		if convs[i].ID == id {
			return i
		}
	}
	return -1
}

// =============================================================================
// MODEL INFO
// =============================================================================

// ModelInfo is a backend model the user can chat with.
type ModelInfo struct {
	ID   string `json:"id" toml:"id"`
	Name string `json:"name" toml:"name"`
}

// =============================================================================
// TIMESTAMP
// =============================================================================

// Timestamp wraps time.Time with lenient JSON decoding. The gateway emits
// RFC 3339 strings for stored records and epoch milliseconds for freshly
// created conversations, so both are accepted.
type Timestamp struct {
	t time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t: t}
}

// Now returns the current time as a Timestamp.
func Now() Timestamp {
	return Timestamp{t: time.Now()}
}

// Time returns the wrapped time.
func (ts Timestamp) Time() time.Time {
	return ts.t
}

// IsZero reports whether the timestamp is unset.
func (ts Timestamp) IsZero() bool {
	return ts.t.IsZero()
}

// MarshalJSON encodes the timestamp as an RFC 3339 string.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(ts.t.UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON accepts RFC 3339 strings (with or without zone), numeric
// epoch milliseconds, numeric strings, empty strings and null.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		ts.t = time.Time{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return ts.parseString(s)
	}

	ms, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", data, err)
	}
	ts.t = time.UnixMilli(int64(ms))
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
}

func (ts *Timestamp) parseString(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		ts.t = time.Time{}
		return nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		ts.t = time.UnixMilli(ms)
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			ts.t = t
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}
