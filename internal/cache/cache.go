// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/jeranaias/difychat/internal/model"
)

var (
	bucketConversations = []byte("conversations")
	bucketMessages      = []byte("messages")
	bucketMeta          = []byte("meta")
)

// ErrClosed is returned by operations on a closed cache.
var ErrClosed = errors.New("cache: closed")

// Cache is a bbolt-backed offline snapshot. It is safe for concurrent use.
type Cache struct {
	db   *bolt.DB
	path string
	log  *slog.Logger
}

// Open opens or creates the cache file, creating parent directories.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketConversations, bucketMessages, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache buckets: %w", err)
	}

	return &Cache{db: db, path: path, log: slog.Default().With("component", "cache")}, nil
}

// Close releases the file lock.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Path returns the cache file path.
func (c *Cache) Path() string {
	return c.path
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// SaveConversations replaces a model's snapshot with convs.
func (c *Cache) SaveConversations(modelID string, convs []model.Conversation) error {
	return c.update(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketConversations)
		key := []byte(modelID)
		if root.Bucket(key) != nil {
			if err := root.DeleteBucket(key); err != nil {
				return err
			}
		}
		b, err := root.CreateBucket(key)
		if err != nil {
			return err
		}
		for _, conv := range convs {
			enc, err := json.Marshal(conv)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(conv.ID), enc); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketMeta).Put(key, []byte(time.Now().UTC().Format(time.RFC3339)))
	})
}

// LoadConversations returns a model's snapshot, newest first. ok is false
// when the model was never saved.
func (c *Cache) LoadConversations(modelID string) ([]model.Conversation, bool, error) {
	var (
		convs []model.Conversation
		found bool
	)
	err := c.view(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketConversations).Bucket([]byte(modelID))
		if b == nil {
			return nil
		}
		found = true
		convs = []model.Conversation{}
		return b.ForEach(func(k, v []byte) error {
			var conv model.Conversation
			if err := json.Unmarshal(v, &conv); err != nil {
				// Skip malformed entries instead of failing the whole load
				c.log.Debug("skipping malformed cache entry", "model", modelID, "key", string(k))
				return nil
			}
			convs = append(convs, conv)
			return nil
		})
	})
	if err != nil {
		return nil, false, err
	}
	model.SortByRecent(convs)
	return convs, found, nil
}

// SavedAt returns when a model's list was last saved.
func (c *Cache) SavedAt(modelID string) (time.Time, bool) {
	var t time.Time
	_ = c.view(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get([]byte(modelID))
		if v == nil {
			return nil
		}
		parsed, err := time.Parse(time.RFC3339, string(v))
		if err == nil {
			t = parsed
		}
		return nil
	})
	return t, !t.IsZero()
}

// DeleteConversation drops a conversation from its model's list and its
// message snapshot.
func (c *Cache) DeleteConversation(modelID, conversationID string) error {
	return c.update(func(tx *bolt.Tx) error {
		if b := tx.Bucket(bucketConversations).Bucket([]byte(modelID)); b != nil {
			if err := b.Delete([]byte(conversationID)); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketMessages).Delete([]byte(conversationID))
	})
}

// =============================================================================
// MESSAGES
// =============================================================================

// SaveMessages replaces a conversation's message snapshot.
func (c *Cache) SaveMessages(conversationID string, msgs []model.Message) error {
	enc, err := json.Marshal(msgs)
	if err != nil {
		return err
	}
	return c.update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMessages).Put([]byte(conversationID), enc)
	})
}

// LoadMessages returns a conversation's message snapshot.
func (c *Cache) LoadMessages(conversationID string) ([]model.Message, bool, error) {
	var raw []byte
	err := c.view(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketMessages).Get([]byte(conversationID)); v != nil {
			// Values are only valid inside the transaction.
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || raw == nil {
		return nil, false, err
	}

	var msgs []model.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		c.log.Debug("skipping malformed message snapshot", "conversation_id", conversationID, "error", err)
		return nil, false, nil
	}
	for i := range msgs {
		msgs[i].Normalize()
	}
	return msgs, true, nil
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// Stats summarizes the cache contents.
type Stats struct {
	Models        int
	Conversations int
	MessageLists  int
	SizeBytes     int64
}

// Stats counts cached entries.
func (c *Cache) Stats() (Stats, error) {
	var s Stats
	err := c.view(func(tx *bolt.Tx) error {
		s.SizeBytes = tx.Size()
		err := tx.Bucket(bucketConversations).ForEachBucket(func(k []byte) error {
			s.Models++
			s.Conversations += tx.Bucket(bucketConversations).Bucket(k).Stats().KeyN
			return nil
		})
		if err != nil {
			return err
		}
		s.MessageLists = tx.Bucket(bucketMessages).Stats().KeyN
		return nil
	})
	return s, err
}

// Clear removes every cached entry.
func (c *Cache) Clear() error {
	return c.update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketConversations, bucketMessages, bucketMeta} {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Cache) update(fn func(*bolt.Tx) error) error {
	err := c.db.Update(fn)
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return ErrClosed
	}
	return err
}

func (c *Cache) view(fn func(*bolt.Tx) error) error {
	err := c.db.View(fn)
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return ErrClosed
	}
	return err
}
