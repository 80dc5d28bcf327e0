// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/difychat/internal/model"
)

// DefaultSearchLimit bounds Search when the caller passes no limit.
const DefaultSearchLimit = 20

// ErrEmptyQuery is returned by Search for a query with no terms.
var ErrEmptyQuery = errors.New("archive: empty search query")

// Archive is a SQLite transcript store.
type Archive struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

// Hit is one search result.
type Hit struct {
	ConversationID string     `json:"conversation_id"`
	MessageID      string     `json:"message_id"`
	Model          string     `json:"model"`
	Role           model.Role `json:"role"`
	Snippet        string     `json:"snippet"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Stats summarizes the archive.
type Stats struct {
	Messages      int `json:"messages"`
	Conversations int `json:"conversations"`
}

// Open opens or creates the archive database.
func Open(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metadata: %w", err)
	}

	return &Archive{db: db, path: path, log: slog.Default().With("component", "archive")}, nil
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Path returns the database file path.
func (a *Archive) Path() string {
	return a.path
}

// =============================================================================
// WRITES
// =============================================================================

// RecordMessage stores msg under conversationID. Recording the same message
// id twice updates the stored text.
func (a *Archive) RecordMessage(ctx context.Context, modelID, conversationID string, msg model.Message) error {
	if conversationID == "" || msg.ID == "" {
		return errors.New("archive: conversation id and message id are required")
	}
	created := msg.Timestamp.Time()
	if created.IsZero() {
		created = time.Now()
	}
	role := msg.Role
	if role == "" {
		role = model.Role(msg.Sender)
	}

	_, err := a.db.ExecContext(ctx, `
		INSERT INTO messages (message_id, conversation_id, model, role, text, file_ids, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id, message_id) DO UPDATE SET
			text = excluded.text,
			file_ids = excluded.file_ids`,
		msg.ID, conversationID, modelID, string(role), msg.Text,
		strings.Join(msg.FileIDs, ","), created.UnixMilli())
	if err != nil {
		return fmt.Errorf("record message %s: %w", msg.ID, err)
	}

	a.log.Debug("message archived", "conversation_id", conversationID, "message_id", msg.ID)
	return nil
}

// DeleteConversation removes every archived message of a conversation.
func (a *Archive) DeleteConversation(ctx context.Context, conversationID string) (int, error) {
	res, err := a.db.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = ?", conversationID)
	if err != nil {
		return 0, fmt.Errorf("delete conversation %s: %w", conversationID, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// =============================================================================
// READS
// =============================================================================

// Search returns messages matching every term, best match first. Terms
// match as prefixes.
func (a *Archive) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	fts := buildFTSQuery(query)
	if fts == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT m.conversation_id, m.message_id, m.model, m.role,
			snippet(messages_fts, 0, '[', ']', '...', 12), m.created_at
		FROM messages_fts
		JOIN messages m ON m.id = messages_fts.rowid
		WHERE messages_fts MATCH ?
		ORDER BY rank, m.created_at DESC
		LIMIT ?`, fts, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	hits := []Hit{}
	for rows.Next() {
		var (
			h       Hit
			role    string
			created int64
		)
		if err := rows.Scan(&h.ConversationID, &h.MessageID, &h.Model, &role, &h.Snippet, &created); err != nil {
			return nil, err
		}
		h.Role = model.Role(role)
		h.CreatedAt = time.UnixMilli(created)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Transcript returns a conversation's archived messages, oldest first.
func (a *Archive) Transcript(ctx context.Context, conversationID string) ([]model.Message, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT message_id, role, text, file_ids, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at, id`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	defer rows.Close()

	msgs := []model.Message{}
	for rows.Next() {
		var (
			m       model.Message
			role    string
			files   string
			created int64
		)
		if err := rows.Scan(&m.ID, &role, &m.Text, &files, &created); err != nil {
			return nil, err
		}
		m.Role = model.Role(role)
		m.Sender = role
		m.Timestamp = model.NewTimestamp(time.UnixMilli(created))
		if files != "" {
			m.FileIDs = strings.Split(files, ",")
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Stats counts archived messages and conversations.
func (a *Archive) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := a.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT conversation_id) FROM messages").Scan(&s.Messages, &s.Conversations)
	return s, err
}

// buildFTSQuery turns free text into an FTS5 query: each whitespace
// separated term is quoted and prefix-matched, all terms required.
func buildFTSQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		// Quoting neutralizes FTS5 operators; embedded quotes are doubled.
		terms = append(terms, `"`+strings.ReplaceAll(f, `"`, `""`)+`"*`)
	}
	return strings.Join(terms, " ")
}
