// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/difychat/internal/chat"
	"github.com/jeranaias/difychat/internal/config"
	"github.com/jeranaias/difychat/internal/model"
	"github.com/jeranaias/difychat/internal/store"
)

type fakeGateway struct {
	mu    sync.Mutex
	saved int
}

func (f *fakeGateway) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /chat/conversations", func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		_ = json.NewEncoder(w).Encode([]model.Conversation{
			{ID: "old", Name: "Old", Model: r.URL.Query().Get("model"), Timestamp: model.NewTimestamp(now.Add(-time.Hour))},
			{ID: "new", Name: "New", Model: r.URL.Query().Get("model"), Timestamp: model.NewTimestamp(now)},
		})
	})
	mux.HandleFunc("GET /chat/conversations/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]model.Message{
			{ID: "m1", Role: model.RoleUser, Text: "earlier question"},
		})
	})
	mux.HandleFunc("POST /chat/conversations/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.saved++
		f.mu.Unlock()
		w.Write([]byte(`{"success":true}`))
	})
	mux.HandleFunc("POST /chat", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"event\":\"message\",\"answer\":\"archived answer\"}\n\n")
		fmt.Fprint(w, "data: {\"event\":\"message_end\",\"conversation_id\":\"new\"}\n\n")
	})
	return mux
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Gateway.BaseURL = baseURL
	cfg.Gateway.RequestsPerSecond = 1000
	cfg.Gateway.Burst = 1000
	cfg.Storage.CachePath = filepath.Join(dir, "cache.db")
	cfg.Storage.ArchivePath = filepath.Join(dir, "archive.db")
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRuntimeStartSelectsNewest(t *testing.T) {
	fg := &fakeGateway{}
	srv := httptest.NewServer(fg.handler())
	defer srv.Close()

	rt, err := New(testConfig(t, srv.URL), Options{})
	require.NoError(t, err)
	defer rt.Close()

	require.NotNil(t, rt.Cache)
	require.NotNil(t, rt.Archive)
	assert.Equal(t, chat.ScopeGlobal, rt.Chat.Scope())

	require.NoError(t, rt.Start(context.Background()))
	assert.Equal(t, "dify1", rt.Store.SelectedModel())
	assert.Equal(t, "new", rt.Store.CurrentConversationID())
	require.Len(t, rt.Store.Messages("new"), 1)
}

func TestRuntimeSendArchives(t *testing.T) {
	fg := &fakeGateway{}
	srv := httptest.NewServer(fg.handler())
	defer srv.Close()

	rt, err := New(testConfig(t, srv.URL), Options{})
	require.NoError(t, err)
	defer rt.Close()
	require.NoError(t, rt.Start(context.Background()))

	res, err := rt.Chat.Send(context.Background(), chat.SendRequest{ConversationID: "new", Text: "archive me"}, chat.Callbacks{})
	require.NoError(t, err)
	assert.Equal(t, chat.StateCompleted, res.State)

	rt.Runner.Wait()
	fg.mu.Lock()
	assert.Equal(t, 2, fg.saved)
	fg.mu.Unlock()

	hits, err := rt.Archive.Search(context.Background(), "archived", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "new", hits[0].ConversationID)
	assert.Equal(t, model.RoleAssistant, hits[0].Role)
}

func TestRuntimeOfflineUsesCache(t *testing.T) {
	fg := &fakeGateway{}
	srv := httptest.NewServer(fg.handler())
	cfg := testConfig(t, srv.URL)

	rt, err := New(cfg, Options{})
	require.NoError(t, err)
	require.NoError(t, rt.Start(context.Background()))
	require.NoError(t, rt.Close())
	srv.Close()

	rt2, err := New(cfg, Options{})
	require.NoError(t, err)
	defer rt2.Close()

	err = rt2.Start(context.Background())
	assert.Error(t, err, "gateway is down")
	ids := []string{}
	for _, c := range rt2.Store.Conversations("dify1") {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"new", "old"}, ids)
	assert.Len(t, rt2.Store.Messages("new"), 1, "messages come from the snapshot")
}

func TestRuntimeModelOverride(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")

	rt, err := New(cfg, Options{Model: "dify5", NoStorage: true})
	require.NoError(t, err)
	defer rt.Close()
	assert.Equal(t, "dify5", rt.Store.SelectedModel())
	assert.Nil(t, rt.Cache)
	assert.Nil(t, rt.Archive)

	_, err = New(cfg, Options{Model: "gpt-4", NoStorage: true})
	assert.ErrorIs(t, err, store.ErrUnknownModel)
}

func TestRuntimeScopeFromConfig(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Chat.SendScope = "conversation"

	rt, err := New(cfg, Options{NoStorage: true})
	require.NoError(t, err)
	defer rt.Close()
	assert.Equal(t, chat.ScopeConversation, rt.Chat.Scope())
}

func TestApplyConfigUpdatesModels(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	rt, err := New(cfg, Options{NoStorage: true})
	require.NoError(t, err)
	defer rt.Close()

	next := cfg.Clone()
	next.Chat.Models = append(next.Chat.Models, model.ModelInfo{ID: "extra", Name: "Extra"})
	rt.ApplyConfig(next)

	assert.Len(t, rt.Store.Models(), 12)
	assert.Same(t, next, rt.Config)
	rt.ApplyConfig(nil)
	assert.Same(t, next, rt.Config)
}

func TestCloseIsIdempotent(t *testing.T) {
	rt, err := New(testConfig(t, "http://127.0.0.1:1"), Options{})
	require.NoError(t, err)
	require.NoError(t, rt.Close())
	assert.NoError(t, rt.Close())
}
