// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// STREAMING: records are reassembled across reads before parsing

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// readChunkSize is the size of each read from the underlying stream.
	readChunkSize = 4096

	// MaxRecordSize bounds the bytes buffered while waiting for a record
	// separator. A peer that never sends one cannot grow memory without limit.
	MaxRecordSize = 4 * 1024 * 1024

	dataPrefix = "data:"
)

var (
	recordSeparator = []byte("\n\n")
	crlf            = []byte("\r\n")
	lf              = []byte("\n")
)

// ErrRecordTooLarge is returned when a single record exceeds MaxRecordSize.
var ErrRecordTooLarge = errors.New("stream: record exceeds maximum size")

// =============================================================================
// DECODER
// =============================================================================

// Decoder turns a byte stream into classified events. It is not safe for
// concurrent use and cannot be restarted.
type Decoder struct {
	src   io.Reader
	chunk []byte
	buf   []byte
	// scanned is how much of buf was already searched for a separator.
	scanned int

	pending []Event

	// finished is set once no further reads will happen.
	finished bool
	// terminated is set when a terminal event was produced.
	terminated bool
	err        error
}

// NewDecoder returns a decoder reading from r. Bytes are decoded as UTF-8
// incrementally: a multi-byte sequence split across reads is held until its
// remaining bytes arrive, and invalid bytes become U+FFFD.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		src:   transform.NewReader(r, unicode.UTF8.NewDecoder()),
		chunk: make([]byte, readChunkSize),
	}
}

// Next returns the next event. It returns io.EOF once the stream has ended
// or after a terminal event has been returned. A read error from the
// underlying stream is returned after every event decoded before it.
func (d *Decoder) Next() (Event, error) {
	for len(d.pending) == 0 {
		if d.finished {
			if d.err != nil {
				return Event{}, d.err
			}
			return Event{}, io.EOF
		}
		d.fill()
	}

	ev := d.pending[0]
	d.pending = d.pending[1:]
	return ev, nil
}

// Terminated reports whether decoding stopped because of an upstream error
// record.
func (d *Decoder) Terminated() bool {
	return d.terminated
}

// fill performs one read and decodes every complete record it finished.
func (d *Decoder) fill() {
	n, err := d.src.Read(d.chunk)
	if n > 0 {
		d.buf = append(d.buf, d.chunk[:n]...)
		d.drain(false)
	}

	switch {
	case d.terminated:
		d.finished = true
	case err == io.EOF:
		d.drain(true)
		d.finished = true
	case err != nil:
		d.finished = true
		d.err = err
	case len(d.buf) > MaxRecordSize:
		d.finished = true
		d.err = ErrRecordTooLarge
	}
}

// drain splits complete records off the buffer. At end of input the
// unterminated remainder is treated as a final record.
func (d *Decoder) drain(atEOF bool) {
	// PERFORMANCE: only the tail added since the last drain is rescanned.
	// Two bytes of overlap cover separators and CRLF pairs that straddle
	// the previous read.
	start := d.scanned - 2
	if start < 0 {
		start = 0
	}
	if bytes.Contains(d.buf[start:], crlf) {
		tail := bytes.ReplaceAll(d.buf[start:], crlf, lf)
		d.buf = append(d.buf[:start:start], tail...)
	}

	for !d.terminated {
		i := bytes.Index(d.buf[start:], recordSeparator)
		if i < 0 {
			break
		}
		i += start
		record := string(d.buf[:i])
		d.buf = d.buf[i+len(recordSeparator):]
		d.decodeRecord(record)
		start = 0
	}

	if atEOF && !d.terminated && len(d.buf) > 0 {
		record := string(d.buf)
		d.buf = nil
		d.decodeRecord(record)
	}

	if d.terminated {
		d.buf = nil
	}
	d.scanned = len(d.buf)
}

// decodeRecord classifies one blank-line delimited record.
func (d *Decoder) decodeRecord(record string) {
	data, ok := dataPayload(record)
	if !ok {
		return
	}

	ev := classify(data)
	d.pending = append(d.pending, ev)
	if ev.Terminal {
		d.terminated = true
	}
}

// dataPayload joins the record's data: lines. Other SSE fields (event:,
// id:, retry:, comments) carry nothing the client uses.
func dataPayload(record string) (string, bool) {
	var parts []string
	for _, line := range strings.Split(record, "\n") {
		if strings.HasPrefix(line, dataPrefix) {
			parts = append(parts, line[len(dataPrefix):])
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	data := strings.TrimSpace(strings.Join(parts, "\n"))
	return data, data != ""
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// payload is the JSON body of a data record. message and error are kept
// raw since some upstream failures send objects there.
type payload struct {
	Event          string          `json:"event"`
	Answer         string          `json:"answer"`
	Text           string          `json:"text"`
	ConversationID string          `json:"conversation_id"`
	Message        json.RawMessage `json:"message"`
	Error          json.RawMessage `json:"error"`
}

func classify(data string) Event {
	var p payload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return Event{
			Kind:    KindError,
			Message: "failed to parse response data: " + err.Error(),
			Raw:     data,
		}
	}

	switch p.Event {
	case EventMessage, EventAgentMessage:
		text := p.Answer
		if text == "" {
			text = p.Text
		}
		if text == "" {
			return Event{Kind: KindIgnored, Name: p.Event, Raw: data}
		}
		return Event{Kind: KindTextDelta, Name: p.Event, Text: text, Raw: data}

	case EventMessageEnd:
		return Event{Kind: KindCompleted, Name: p.Event, ConversationID: p.ConversationID, Raw: data}

	case EventError:
		msg := rawString(p.Message)
		if msg == "" {
			msg = rawString(p.Error)
		}
		return Event{
			Kind:     KindError,
			Name:     p.Event,
			Message:  FriendlyMessage(msg),
			Terminal: true,
			Raw:      data,
		}

	default:
		return Event{Kind: KindIgnored, Name: p.Event, Raw: data}
	}
}

// rawString returns a JSON string's value, or the raw JSON text for any
// other non-null value.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// =============================================================================
// HELPERS
// =============================================================================

// Collect decodes r to the end and returns every event. The error is nil
// when the stream ended normally or by a terminal event.
func Collect(r io.Reader) ([]Event, error) {
	dec := NewDecoder(r)
	var events []Event
	for {
		ev, err := dec.Next()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}
