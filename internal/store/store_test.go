// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/difychat/internal/model"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeGateway struct {
	mu         sync.Mutex
	convs      map[string][]model.Conversation
	msgs       map[string][]model.Message
	listErr    error
	fetchErr   error
	createErr  error
	renameErr  error
	deleteErr  error
	fetchCalls map[string]int
	created    int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		convs:      make(map[string][]model.Conversation),
		msgs:       make(map[string][]model.Message),
		fetchCalls: make(map[string]int),
	}
}

func (f *fakeGateway) ListConversations(ctx context.Context, modelID string) ([]model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]model.Conversation(nil), f.convs[modelID]...), nil
}

func (f *fakeGateway) FetchMessages(ctx context.Context, modelID, id string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls[id]++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return model.CloneMessages(f.msgs[id]), nil
}

func (f *fakeGateway) CreateConversation(ctx context.Context, modelID string) (model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return model.Conversation{}, f.createErr
	}
	f.created++
	return model.Conversation{
		ID:        "created-" + string(rune('0'+f.created)),
		Name:      "New chat",
		Model:     modelID,
		Timestamp: model.Now(),
	}, nil
}

func (f *fakeGateway) RenameConversation(ctx context.Context, modelID, id, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.renameErr
}

func (f *fakeGateway) DeleteConversation(ctx context.Context, modelID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleteErr
}

func (f *fakeGateway) fetchCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls[id]
}

type memCache struct {
	mu    sync.Mutex
	convs map[string][]model.Conversation
	msgs  map[string][]model.Message
}

func newMemCache() *memCache {
	return &memCache{
		convs: make(map[string][]model.Conversation),
		msgs:  make(map[string][]model.Message),
	}
}

func (c *memCache) SaveConversations(modelID string, convs []model.Conversation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.convs[modelID] = append([]model.Conversation(nil), convs...)
	return nil
}

func (c *memCache) LoadConversations(modelID string) ([]model.Conversation, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.convs[modelID]
	return append([]model.Conversation(nil), v...), ok, nil
}

func (c *memCache) SaveMessages(id string, msgs []model.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs[id] = model.CloneMessages(msgs)
	return nil
}

func (c *memCache) LoadMessages(id string) ([]model.Message, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.msgs[id]
	return model.CloneMessages(v), ok, nil
}

func (c *memCache) DeleteConversation(modelID, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.msgs, id)
	return nil
}

var testModels = []model.ModelInfo{{ID: "dify1", Name: "Dify 1"}, {ID: "dify2", Name: "Dify 2"}}

func conv(id string, minutesAgo int) model.Conversation {
	return model.Conversation{
		ID:        id,
		Name:      "Conv " + id,
		Timestamp: model.NewTimestamp(time.Now().Add(-time.Duration(minutesAgo) * time.Minute)),
	}
}

func ids(convs []model.Conversation) []string {
	out := make([]string, len(convs))
	for i, c := range convs {
		out[i] = c.ID
	}
	return out
}

func newTestStore(gw *fakeGateway, cache Cache) *Store {
	return New(gw, Options{Models: testModels, Cache: cache})
}

// =============================================================================
// CONVERSATION LIST TESTS
// =============================================================================

func TestFetchConversations_SortsNewestFirst(t *testing.T) {
	gw := newFakeGateway()
	gw.convs["dify1"] = []model.Conversation{conv("old", 60), conv("new", 1), conv("mid", 10)}
	st := newTestStore(gw, nil)

	require.NoError(t, st.FetchConversations(context.Background()))

	assert.Equal(t, []string{"new", "mid", "old"}, ids(st.Conversations("dify1")))
}

func TestFetchConversations_FallsBackToCache(t *testing.T) {
	gw := newFakeGateway()
	gw.convs["dify1"] = []model.Conversation{conv("a", 5), conv("b", 1)}
	cache := newMemCache()
	st := newTestStore(gw, cache)

	require.NoError(t, st.FetchConversations(context.Background()))
	gw.listErr = errors.New("offline")

	err := st.FetchConversations(context.Background())

	require.Error(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(st.Conversations("dify1")))
}

func TestFetchConversations_ErrorWithoutCacheEmptiesList(t *testing.T) {
	gw := newFakeGateway()
	gw.listErr = errors.New("offline")
	st := newTestStore(gw, nil)

	err := st.FetchConversations(context.Background())

	require.Error(t, err)
	assert.Empty(t, st.Conversations("dify1"))
}

func TestSelectModel_SelectsNewest(t *testing.T) {
	gw := newFakeGateway()
	gw.convs["dify2"] = []model.Conversation{conv("x", 30), conv("y", 2)}
	st := newTestStore(gw, nil)

	require.NoError(t, st.SelectModel(context.Background(), "dify2"))

	assert.Equal(t, "dify2", st.SelectedModel())
	assert.Equal(t, "y", st.CurrentConversationID())
}

func TestSelectModel_CreatesWhenEmpty(t *testing.T) {
	gw := newFakeGateway()
	st := newTestStore(gw, nil)

	require.NoError(t, st.SelectModel(context.Background(), "dify1"))

	convs := st.Conversations("dify1")
	require.Len(t, convs, 1)
	assert.Equal(t, convs[0].ID, st.CurrentConversationID())
}

func TestSelectModel_FetchErrorDoesNotCreate(t *testing.T) {
	gw := newFakeGateway()
	gw.listErr = errors.New("offline")
	st := newTestStore(gw, nil)

	err := st.SelectModel(context.Background(), "dify1")

	require.Error(t, err)
	assert.Zero(t, gw.created)
	assert.Empty(t, st.CurrentConversationID())
}

func TestSelectModel_Unknown(t *testing.T) {
	st := newTestStore(newFakeGateway(), nil)
	assert.ErrorIs(t, st.SelectModel(context.Background(), "nope"), ErrUnknownModel)
}

func TestCreateConversation_PrependsAndSelects(t *testing.T) {
	gw := newFakeGateway()
	gw.convs["dify1"] = []model.Conversation{conv("a", 1)}
	st := newTestStore(gw, nil)
	require.NoError(t, st.FetchConversations(context.Background()))

	c, err := st.CreateConversation(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{c.ID, "a"}, ids(st.Conversations("dify1")))
	assert.Equal(t, c.ID, st.CurrentConversationID())
	assert.True(t, st.IsLoaded(c.ID))
}

// =============================================================================
// SELECTION TESTS
// =============================================================================

func TestSelectConversation_LoadsOnce(t *testing.T) {
	gw := newFakeGateway()
	gw.convs["dify1"] = []model.Conversation{conv("a", 1), conv("b", 2)}
	gw.msgs["a"] = []model.Message{{ID: "m1", Role: model.RoleUser, Text: "hi"}}
	st := newTestStore(gw, nil)
	ctx := context.Background()
	require.NoError(t, st.FetchConversations(ctx))

	require.NoError(t, st.SelectConversation(ctx, "a"))
	require.NoError(t, st.SelectConversation(ctx, "b"))
	require.NoError(t, st.SelectConversation(ctx, "a"))

	assert.Equal(t, 1, gw.fetchCount("a"))
	assert.Len(t, st.Messages("a"), 1)
	assert.Equal(t, "a", st.Snapshot().CurrentConversationID)
}

func TestSelectConversation_ErrorLeavesEmptyListAndRetries(t *testing.T) {
	gw := newFakeGateway()
	gw.fetchErr = errors.New("boom")
	st := newTestStore(gw, nil)
	ctx := context.Background()

	err := st.SelectConversation(ctx, "a")

	require.Error(t, err)
	assert.Empty(t, st.Messages("a"))
	assert.False(t, st.IsLoaded("a"))

	gw.mu.Lock()
	gw.fetchErr = nil
	gw.msgs["a"] = []model.Message{{ID: "m1", Role: model.RoleUser, Text: "hi"}}
	gw.mu.Unlock()

	require.NoError(t, st.SelectConversation(ctx, "a"))
	assert.Len(t, st.Messages("a"), 1)
}

func TestSelectConversation_RetryAfterSnapshotDoesNotDuplicate(t *testing.T) {
	gw := newFakeGateway()
	gw.fetchErr = errors.New("offline")
	cache := newMemCache()
	require.NoError(t, cache.SaveMessages("a", []model.Message{{ID: "m1", Role: model.RoleUser, Text: "hi"}}))
	st := newTestStore(gw, cache)
	ctx := context.Background()

	require.Error(t, st.SelectConversation(ctx, "a"))
	require.Len(t, st.Messages("a"), 1, "snapshot shown while offline")
	st.AppendMessages("a", model.Message{ID: "temp-user-1", Role: model.RoleUser, Text: "new"})

	gw.mu.Lock()
	gw.fetchErr = nil
	gw.msgs["a"] = []model.Message{{ID: "m1", Role: model.RoleUser, Text: "hi"}}
	gw.mu.Unlock()

	require.NoError(t, st.SelectConversation(ctx, "a"))
	msgs := st.Messages("a")
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "temp-user-1", msgs[1].ID)
}

// =============================================================================
// OPTIMISTIC MUTATION TESTS
// =============================================================================

func TestRename_Success(t *testing.T) {
	gw := newFakeGateway()
	gw.convs["dify1"] = []model.Conversation{conv("a", 1)}
	st := newTestStore(gw, nil)
	require.NoError(t, st.FetchConversations(context.Background()))

	ok, err := st.Rename(context.Background(), "a", "Renamed")

	require.NoError(t, err)
	assert.True(t, ok)
	c, _ := st.Conversation("dify1", "a")
	assert.Equal(t, "Renamed", c.Name)
}

func TestRename_RollsBackOnFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.convs["dify1"] = []model.Conversation{conv("a", 1)}
	gw.renameErr = errors.New("denied")
	st := newTestStore(gw, nil)
	require.NoError(t, st.FetchConversations(context.Background()))

	ok, err := st.Rename(context.Background(), "a", "Renamed")

	require.Error(t, err)
	assert.False(t, ok)
	c, _ := st.Conversation("dify1", "a")
	assert.Equal(t, "Conv a", c.Name)
}

func TestRename_UnknownID(t *testing.T) {
	st := newTestStore(newFakeGateway(), nil)
	ok, err := st.Rename(context.Background(), "missing", "x")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestDelete_CurrentReselectsFirstRemaining(t *testing.T) {
	gw := newFakeGateway()
	gw.convs["dify1"] = []model.Conversation{conv("a", 1), conv("b", 2)}
	st := newTestStore(gw, nil)
	ctx := context.Background()
	require.NoError(t, st.FetchConversations(ctx))
	require.NoError(t, st.SelectConversation(ctx, "a"))

	require.NoError(t, st.Delete(ctx, "a"))

	assert.Equal(t, []string{"b"}, ids(st.Conversations("dify1")))
	assert.Equal(t, "b", st.CurrentConversationID())
	assert.False(t, st.IsLoaded("a"))
}

func TestDelete_LastCreatesNew(t *testing.T) {
	gw := newFakeGateway()
	gw.convs["dify1"] = []model.Conversation{conv("a", 1)}
	st := newTestStore(gw, nil)
	ctx := context.Background()
	require.NoError(t, st.FetchConversations(ctx))
	require.NoError(t, st.SelectConversation(ctx, "a"))

	require.NoError(t, st.Delete(ctx, "a"))

	convs := st.Conversations("dify1")
	require.Len(t, convs, 1)
	assert.NotEqual(t, "a", convs[0].ID)
	assert.Equal(t, convs[0].ID, st.CurrentConversationID())
}

func TestDelete_FailureRestoresEverything(t *testing.T) {
	gw := newFakeGateway()
	gw.convs["dify1"] = []model.Conversation{conv("a", 1), conv("b", 2)}
	gw.msgs["a"] = []model.Message{{ID: "m1", Role: model.RoleUser, Text: "keep me"}}
	gw.deleteErr = errors.New("server says no")
	st := newTestStore(gw, nil)
	ctx := context.Background()
	require.NoError(t, st.FetchConversations(ctx))
	require.NoError(t, st.SelectConversation(ctx, "a"))

	err := st.Delete(ctx, "a")

	require.Error(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(st.Conversations("dify1")))
	assert.Equal(t, "a", st.CurrentConversationID())
	require.Len(t, st.Messages("a"), 1)
	assert.Equal(t, "keep me", st.Messages("a")[0].Text)
	assert.Equal(t, 1, gw.fetchCount("a"), "restored history is not refetched")
}

func TestDelete_Unknown(t *testing.T) {
	st := newTestStore(newFakeGateway(), nil)
	assert.ErrorIs(t, st.Delete(context.Background(), "missing"), ErrConversationNotFound)
}

// =============================================================================
// COORDINATOR HOOK TESTS
// =============================================================================

func TestTouch_MovesToFront(t *testing.T) {
	gw := newFakeGateway()
	gw.convs["dify1"] = []model.Conversation{conv("a", 1), conv("b", 2), conv("c", 3)}
	cache := newMemCache()
	st := newTestStore(gw, cache)
	require.NoError(t, st.FetchConversations(context.Background()))
	st.AppendMessages("c",
		model.Message{ID: "u", Role: model.RoleUser, Text: "q"},
		model.Message{ID: "p", Role: model.RoleAssistant, IsLoading: true},
	)

	at := time.Now().Add(time.Minute)
	require.True(t, st.Touch("dify1", "c", at))

	convs := st.Conversations("dify1")
	assert.Equal(t, []string{"c", "a", "b"}, ids(convs))
	assert.True(t, convs[0].Timestamp.Time().Equal(at))

	cached, ok, _ := cache.LoadMessages("c")
	require.True(t, ok)
	assert.Len(t, cached, 1, "loading placeholder is not cached")

	assert.False(t, st.Touch("dify1", "missing", at))
}

func TestUpdateMessage(t *testing.T) {
	st := newTestStore(newFakeGateway(), nil)
	st.AppendMessages("c1", model.Message{ID: "p", Role: model.RoleAssistant, IsLoading: true})

	ok := st.UpdateMessage("c1", "p", func(m *model.Message) {
		m.Text += "Hi"
		m.IsLoading = false
	})

	require.True(t, ok)
	m, found := st.Message("c1", "p")
	require.True(t, found)
	assert.Equal(t, "Hi", m.Text)
	assert.False(t, m.IsLoading)
	assert.False(t, st.UpdateMessage("c1", "nope", func(*model.Message) {}))
	assert.False(t, st.UpdateMessage("gone", "p", func(*model.Message) {}))
}

func TestMessages_ReturnsCopies(t *testing.T) {
	st := newTestStore(newFakeGateway(), nil)
	st.AppendMessages("c1", model.Message{ID: "m", Text: "orig", FileIDs: []string{"f"}})

	msgs := st.Messages("c1")
	msgs[0].Text = "changed"
	msgs[0].FileIDs[0] = "g"

	again := st.Messages("c1")
	assert.Equal(t, "orig", again[0].Text)
	assert.Equal(t, "f", again[0].FileIDs[0])
}

func TestSetSending(t *testing.T) {
	st := newTestStore(newFakeGateway(), nil)

	st.SetSending("c1", true)
	assert.True(t, st.IsSending("c1"))
	assert.False(t, st.IsSending("c2"))

	st.SetSending("c1", false)
	assert.False(t, st.IsSending("c1"))
}

// =============================================================================
// NOTIFICATION TESTS
// =============================================================================

func TestSubscribe_ReceivesNotifications(t *testing.T) {
	st := newTestStore(newFakeGateway(), nil)
	ch, unsubscribe := st.Subscribe()
	defer unsubscribe()

	st.SetSending("c1", true)
	st.AppendMessages("c1", model.Message{ID: "m1"})

	n := <-ch
	assert.Equal(t, SendingChanged, n.Kind)
	assert.Equal(t, "c1", n.ConversationID)
	n = <-ch
	assert.Equal(t, MessagesChanged, n.Kind)
	assert.Equal(t, "m1", n.MessageID)
}

func TestSubscribe_SlowSubscriberNeverBlocks(t *testing.T) {
	st := newTestStore(newFakeGateway(), nil)
	ch, unsubscribe := st.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*4; i++ {
			st.AppendMessages("c1", model.Message{ID: "m"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
	assert.Len(t, ch, subscriberBuffer)

	unsubscribe()
	unsubscribe()
	assert.Zero(t, st.hub.count())
}
