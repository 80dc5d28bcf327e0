// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/difychat/internal/gateway"
	"github.com/jeranaias/difychat/internal/model"
	"github.com/jeranaias/difychat/internal/store"
	"github.com/jeranaias/difychat/internal/stream"
	"github.com/jeranaias/difychat/internal/tasks"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

type savedMessage struct {
	ConversationID string
	Message        gateway.HistoryMessage
}

type chatCall struct {
	Query          string                  `json:"query"`
	ConversationID string                  `json:"conversation_id"`
	Files          []gateway.FileReference `json:"files"`
}

type harness struct {
	coord  *Coordinator
	store  *store.Store
	runner *tasks.Runner
	server *httptest.Server

	mu     sync.Mutex
	saved  []savedMessage
	calls  []chatCall
	chatFn func(w http.ResponseWriter, r *http.Request, call chatCall)
}

func newHarness(t *testing.T, scope Scope, chatFn func(w http.ResponseWriter, r *http.Request, call chatCall)) *harness {
	t.Helper()
	h := &harness{chatFn: chatFn}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /chat/conversations", func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		convs := []model.Conversation{
			{ID: "c1", Name: "One", Timestamp: model.NewTimestamp(now.Add(-time.Minute))},
			{ID: "c2", Name: "Two", Timestamp: model.NewTimestamp(now.Add(-time.Hour))},
		}
		_ = json.NewEncoder(w).Encode(convs)
	})
	mux.HandleFunc("GET /chat/conversations/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	})
	mux.HandleFunc("POST /chat/conversations/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Message gateway.HistoryMessage `json:"message"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		h.mu.Lock()
		h.saved = append(h.saved, savedMessage{ConversationID: r.PathValue("id"), Message: body.Message})
		h.mu.Unlock()
		w.Write([]byte(`{"success":true}`))
	})
	mux.HandleFunc("POST /chat", func(w http.ResponseWriter, r *http.Request) {
		var call chatCall
		_ = json.NewDecoder(r.Body).Decode(&call)
		h.mu.Lock()
		h.calls = append(h.calls, call)
		fn := h.chatFn
		h.mu.Unlock()
		fn(w, r, call)
	})

	h.server = httptest.NewServer(mux)
	t.Cleanup(h.server.Close)

	cfg := gateway.DefaultConfig()
	cfg.BaseURL = h.server.URL
	cfg.RequestsPerSecond = 1000
	cfg.Burst = 1000
	client := gateway.NewClient(cfg)

	h.store = store.New(client, store.Options{
		Models: []model.ModelInfo{{ID: "dify1", Name: "Dify 1"}},
	})
	require.NoError(t, h.store.FetchConversations(context.Background()))
	require.NoError(t, h.store.SelectConversation(context.Background(), "c1"))

	h.runner = tasks.NewRunner(tasks.Options{})
	t.Cleanup(h.runner.Stop)

	h.coord = New(Options{Store: h.store, Gateway: client, Runner: h.runner, Scope: scope})
	return h
}

func (h *harness) savedMessages() []savedMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]savedMessage(nil), h.saved...)
}

func (h *harness) chatCalls() []chatCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]chatCall(nil), h.calls...)
}

func (h *harness) assistant(t *testing.T, convID string, res Result) model.Message {
	t.Helper()
	m, ok := h.store.Message(convID, res.AssistantMessageID)
	require.True(t, ok, "assistant placeholder missing")
	return m
}

// sse writes records one per flush.
func sse(w http.ResponseWriter, records ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	f := w.(http.Flusher)
	for _, rec := range records {
		fmt.Fprintf(w, "data: %s\n\n", rec)
		f.Flush()
	}
}

func delta(text string) string {
	b, _ := json.Marshal(map[string]string{"event": "message", "answer": text})
	return string(b)
}

func end(convID string) string {
	return fmt.Sprintf(`{"event":"message_end","conversation_id":%q}`, convID)
}

// blockUntilCancelled streams one delta then holds the response open.
func blockUntilCancelled(w http.ResponseWriter, r *http.Request, first string) {
	sse(w, delta(first))
	<-r.Context().Done()
}

type recorder struct {
	mu        sync.Mutex
	chunks    []string
	completes []Result
	errs      []error
	order     []string
}

func (rc *recorder) callbacks() Callbacks {
	return Callbacks{
		OnChunk: func(s string) {
			rc.mu.Lock()
			defer rc.mu.Unlock()
			rc.chunks = append(rc.chunks, s)
			rc.order = append(rc.order, "chunk")
		},
		OnComplete: func(r Result) {
			rc.mu.Lock()
			defer rc.mu.Unlock()
			rc.completes = append(rc.completes, r)
			rc.order = append(rc.order, "complete")
		},
		OnError: func(err error) {
			rc.mu.Lock()
			defer rc.mu.Unlock()
			rc.errs = append(rc.errs, err)
			rc.order = append(rc.order, "error")
		},
	}
}

func convIDs(convs []model.Conversation) []string {
	out := make([]string, len(convs))
	for i, c := range convs {
		out[i] = c.ID
	}
	return out
}

// =============================================================================
// NORMAL FLOW
// =============================================================================

func TestSend_StreamsAndCompletes(t *testing.T) {
	h := newHarness(t, ScopeGlobal, func(w http.ResponseWriter, r *http.Request, call chatCall) {
		sse(w, delta("Hel"), `{"event":"agent_thought"}`, delta("lo"), end("srv-9"))
	})
	rc := &recorder{}

	res, err := h.coord.Send(context.Background(), SendRequest{ConversationID: "c2", Text: "  hi  "}, rc.callbacks())

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, "Hello", res.Text)
	assert.Equal(t, "srv-9", res.ServerConversationID)
	assert.Equal(t, "dify1", res.Model)
	assert.Equal(t, []string{"Hel", "lo"}, rc.chunks)
	require.Len(t, rc.completes, 1)
	assert.Empty(t, rc.errs)

	calls := h.chatCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "hi", calls[0].Query)
	assert.Equal(t, "c2", calls[0].ConversationID)

	msgs := h.store.Messages("c2")
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Text)
	assert.True(t, msgs[0].IsPlaceholderID())
	assert.Equal(t, "Hello", msgs[1].Text)
	assert.False(t, msgs[1].IsLoading)
	assert.False(t, msgs[1].IsError)

	assert.Equal(t, []string{"c2", "c1"}, convIDs(h.store.Conversations("dify1")), "sent conversation moves to the front")
	assert.False(t, h.store.IsSending("c2"))

	h.runner.Wait()
	saved := h.savedMessages()
	require.Len(t, saved, 2)
	assert.Equal(t, "srv-9", saved[0].ConversationID, "server id wins for history writes")
	assert.Equal(t, model.RoleUser, saved[0].Message.Role)
	assert.Equal(t, "hi", saved[0].Message.Text)
	assert.Equal(t, model.RoleAssistant, saved[1].Message.Role)
	assert.Equal(t, "Hello", saved[1].Message.Text)
}

func TestSend_MalformedRecordIsAbsorbed(t *testing.T) {
	h := newHarness(t, ScopeGlobal, func(w http.ResponseWriter, r *http.Request, call chatCall) {
		sse(w, delta("a"), "{not json", delta("b"), end("c1"))
	})
	rc := &recorder{}

	res, err := h.coord.Send(context.Background(), SendRequest{ConversationID: "c1", Text: "q"}, rc.callbacks())

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, "ab", res.Text)
	assert.Empty(t, rc.errs)
}

func TestSend_EmptyReplyShowsMarkerButIsNotPersisted(t *testing.T) {
	h := newHarness(t, ScopeGlobal, func(w http.ResponseWriter, r *http.Request, call chatCall) {
		sse(w, end("c1"))
	})

	res, err := h.coord.Send(context.Background(), SendRequest{ConversationID: "c1", Text: "q"}, Callbacks{})

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, NoReplyMarker, h.assistant(t, "c1", res).Text)

	h.runner.Wait()
	saved := h.savedMessages()
	require.Len(t, saved, 1)
	assert.Equal(t, model.RoleUser, saved[0].Message.Role)
}

// =============================================================================
// VALIDATION & QUERY SELECTION
// =============================================================================

func TestSend_EmptyInputIsNoop(t *testing.T) {
	h := newHarness(t, ScopeGlobal, func(w http.ResponseWriter, r *http.Request, call chatCall) {
		t.Error("no request expected")
	})

	res, err := h.coord.Send(context.Background(), SendRequest{ConversationID: "c1", Text: " \n\t "}, Callbacks{})

	require.NoError(t, err)
	assert.Equal(t, StateIdle, res.State)
	assert.Empty(t, h.store.Messages("c1"))
	assert.False(t, h.store.IsSending("c1"))
}

func TestSend_UnresolvedConversation(t *testing.T) {
	h := newHarness(t, ScopeGlobal, func(w http.ResponseWriter, r *http.Request, call chatCall) {
		t.Error("no request expected")
	})

	for _, id := range []string{"", "temp-123", "new-456"} {
		_, err := h.coord.Send(context.Background(), SendRequest{ConversationID: id, Text: "hello"}, Callbacks{})
		assert.ErrorIs(t, err, ErrUnresolvedConversation, "id %q", id)
		assert.Empty(t, h.store.Messages(id))
	}
}

func TestSend_FileOnlyUsesDefaultQuery(t *testing.T) {
	h := newHarness(t, ScopeGlobal, func(w http.ResponseWriter, r *http.Request, call chatCall) {
		sse(w, delta("ok"), end("c1"))
	})

	_, err := h.coord.Send(context.Background(), SendRequest{
		ConversationID: "c1",
		FileIDs:        []string{"f1", "f2"},
	}, Callbacks{})
	require.NoError(t, err)

	calls := h.chatCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, DefaultFileQuery, calls[0].Query)
	require.Len(t, calls[0].Files, 2)
	assert.Equal(t, "f2", calls[0].Files[1].UploadFileID)

	msgs := h.store.Messages("c1")
	assert.Equal(t, "Uploaded 2 files", msgs[0].Text)
	assert.Equal(t, []string{"f1", "f2"}, msgs[0].FileIDs)
}

func TestSend_TextWithFilesDisplay(t *testing.T) {
	h := newHarness(t, ScopeGlobal, func(w http.ResponseWriter, r *http.Request, call chatCall) {
		sse(w, delta("ok"), end("c1"))
	})

	_, err := h.coord.Send(context.Background(), SendRequest{
		ConversationID: "c1",
		Text:           "summarize",
		FileIDs:        []string{"f1"},
	}, Callbacks{})
	require.NoError(t, err)

	assert.Equal(t, "summarize", h.chatCalls()[0].Query)
	assert.Equal(t, "summarize [1 files attached]", h.store.Messages("c1")[0].Text)

	h.runner.Wait()
	saved := h.savedMessages()
	require.NotEmpty(t, saved)
	assert.Equal(t, "summarize [1 files attached]", saved[0].Message.Text)
	assert.Equal(t, []string{"f1"}, saved[0].Message.FileIDs)
}

// =============================================================================
// ERROR PATHS
// =============================================================================

func TestSend_ProtocolError(t *testing.T) {
	h := newHarness(t, ScopeGlobal, func(w http.ResponseWriter, r *http.Request, call chatCall) {
		sse(w, delta("partial"), `{"event":"error","message":"Unsupported Extension Type: .xyz"}`, delta("never"))
	})
	rc := &recorder{}

	res, err := h.coord.Send(context.Background(), SendRequest{ConversationID: "c2", Text: "q"}, rc.callbacks())

	require.NoError(t, err)
	assert.Equal(t, StateCompletedWithError, res.State)
	assert.Equal(t, []string{"chunk", "error", "complete"}, rc.order)

	var perr *ProtocolError
	require.ErrorAs(t, rc.errs[0], &perr)
	assert.Equal(t, stream.MsgUnsupportedFileType, perr.Message)

	m := h.assistant(t, "c2", res)
	assert.True(t, m.IsError)
	assert.Equal(t, stream.MsgUnsupportedFileType, m.Text)

	assert.Equal(t, []string{"c1", "c2"}, convIDs(h.store.Conversations("dify1")), "errors do not reorder")

	h.runner.Wait()
	saved := h.savedMessages()
	require.Len(t, saved, 1, "error replies are not persisted")
	assert.Equal(t, model.RoleUser, saved[0].Message.Role)
}

func TestSend_TransportFailure(t *testing.T) {
	h := newHarness(t, ScopeGlobal, func(w http.ResponseWriter, r *http.Request, call chatCall) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"Run failed: cannot read file"}`))
	})
	rc := &recorder{}

	res, err := h.coord.Send(context.Background(), SendRequest{ConversationID: "c1", Text: "q"}, rc.callbacks())

	require.Error(t, err)
	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, SendFailedPrefix+stream.MsgUnsupportedFileType, sendErr.Message)
	assert.True(t, gateway.IsStatus(err, http.StatusBadRequest))

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, []string{"error"}, rc.order, "no completion callback on transport failure")

	m := h.assistant(t, "c1", res)
	assert.True(t, m.IsError)
	assert.False(t, m.IsLoading)
	assert.Equal(t, sendErr.Message, m.Text)

	assert.True(t, h.coord.ShouldAlert(res), "c1 is current")
	assert.False(t, h.store.IsSending("c1"))
}

func TestSend_TransportFailureOffCurrentDoesNotAlert(t *testing.T) {
	h := newHarness(t, ScopeGlobal, func(w http.ResponseWriter, r *http.Request, call chatCall) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	res, err := h.coord.Send(context.Background(), SendRequest{ConversationID: "c2", Text: "q"}, Callbacks{})

	require.Error(t, err)
	assert.Equal(t, SendFailedPrefix+"HTTP error! status: 500 Internal Server Error", h.assistant(t, "c2", res).Text)
	assert.False(t, h.coord.ShouldAlert(res))
}

// =============================================================================
// CANCELLATION
// =============================================================================

type asyncSend struct {
	rc   *recorder
	done chan struct{}
	res  Result
	err  error
}

func startSend(h *harness, ctx context.Context, req SendRequest, firstChunk chan<- struct{}) *asyncSend {
	a := &asyncSend{rc: &recorder{}, done: make(chan struct{})}
	cb := a.rc.callbacks()
	inner := cb.OnChunk
	var once sync.Once
	cb.OnChunk = func(s string) {
		inner(s)
		once.Do(func() { close(firstChunk) })
	}
	go func() {
		defer close(a.done)
		a.res, a.err = h.coord.Send(ctx, req, cb)
	}()
	return a
}

func (a *asyncSend) wait(t *testing.T) {
	t.Helper()
	select {
	case <-a.done:
	case <-time.After(5 * time.Second):
		t.Fatal("send did not finish")
	}
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
}

func TestSend_SupersedeSameConversation(t *testing.T) {
	h := newHarness(t, ScopeGlobal, func(w http.ResponseWriter, r *http.Request, call chatCall) {
		if call.Query == "A" {
			blockUntilCancelled(w, r, "Hi")
			return
		}
		sse(w, delta("second"), end("c1"))
	})

	first := make(chan struct{})
	a := startSend(h, context.Background(), SendRequest{ConversationID: "c1", Text: "A"}, first)
	waitClosed(t, first)
	assert.True(t, h.store.IsSending("c1"))

	resB, errB := h.coord.Send(context.Background(), SendRequest{ConversationID: "c1", Text: "B"}, Callbacks{})
	a.wait(t)

	require.NoError(t, errB)
	assert.Equal(t, StateCompleted, resB.State)

	require.NoError(t, a.err)
	assert.Equal(t, StateCancelled, a.res.State)
	assert.Equal(t, "Hi", a.res.Text)
	require.Len(t, a.rc.completes, 1)
	assert.Equal(t, StateCancelled, a.rc.completes[0].State)
	assert.Empty(t, a.rc.errs)
	assert.Equal(t, []string{"Hi"}, a.rc.chunks)

	assert.Equal(t, "Hi", h.assistant(t, "c1", a.res).Text)
	assert.False(t, h.store.IsSending("c1"))
	assert.Empty(t, h.coord.Active())
}

func TestSend_GlobalScopeCancelsOtherConversations(t *testing.T) {
	h := newHarness(t, ScopeGlobal, func(w http.ResponseWriter, r *http.Request, call chatCall) {
		if call.Query == "A" {
			blockUntilCancelled(w, r, "Hi")
			return
		}
		sse(w, delta("B"), end(call.ConversationID))
	})

	first := make(chan struct{})
	a := startSend(h, context.Background(), SendRequest{ConversationID: "c1", Text: "A"}, first)
	waitClosed(t, first)

	_, err := h.coord.Send(context.Background(), SendRequest{ConversationID: "c2", Text: "B"}, Callbacks{})
	require.NoError(t, err)
	a.wait(t)

	assert.Equal(t, StateCancelled, a.res.State)
	assert.False(t, h.store.IsSending("c1"))
	assert.False(t, h.store.IsSending("c2"))
}

func TestSend_ConversationScopeRunsInParallel(t *testing.T) {
	h := newHarness(t, ScopeConversation, func(w http.ResponseWriter, r *http.Request, call chatCall) {
		if call.Query == "A" {
			blockUntilCancelled(w, r, "Hi")
			return
		}
		sse(w, delta("B"), end(call.ConversationID))
	})

	first := make(chan struct{})
	a := startSend(h, context.Background(), SendRequest{ConversationID: "c1", Text: "A"}, first)
	waitClosed(t, first)

	resB, err := h.coord.Send(context.Background(), SendRequest{ConversationID: "c2", Text: "B"}, Callbacks{})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, resB.State)

	assert.Equal(t, []string{"c1"}, h.coord.Active(), "c1 still streaming")
	assert.True(t, h.store.IsSending("c1"))

	assert.True(t, h.coord.StopConversation("c1"))
	a.wait(t)

	assert.Equal(t, StateCancelled, a.res.State)
	assert.False(t, h.store.IsSending("c1"))
	assert.False(t, h.coord.StopConversation("c1"))
}

func TestStop_CancelsAndKeepsPartialText(t *testing.T) {
	h := newHarness(t, ScopeGlobal, func(w http.ResponseWriter, r *http.Request, call chatCall) {
		blockUntilCancelled(w, r, "partial")
	})

	first := make(chan struct{})
	a := startSend(h, context.Background(), SendRequest{ConversationID: "c2", Text: "A"}, first)
	waitClosed(t, first)

	assert.Equal(t, 1, h.coord.Stop())
	a.wait(t)

	require.NoError(t, a.err)
	assert.Equal(t, StateCancelled, a.res.State)
	assert.Equal(t, "partial", h.assistant(t, "c2", a.res).Text)
	assert.Equal(t, []string{"c2", "c1"}, convIDs(h.store.Conversations("dify1")), "cancelled sends still reorder")

	h.runner.Wait()
	saved := h.savedMessages()
	require.Len(t, saved, 2, "partial replies are persisted")
	assert.Equal(t, "partial", saved[1].Message.Text)
}

func TestWaitIdle(t *testing.T) {
	h := newHarness(t, ScopeGlobal, func(w http.ResponseWriter, r *http.Request, call chatCall) {
		blockUntilCancelled(w, r, "partial")
	})

	first := make(chan struct{})
	a := startSend(h, context.Background(), SendRequest{ConversationID: "c1", Text: "A"}, first)
	waitClosed(t, first)

	short, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.coord.WaitIdle(short), context.DeadlineExceeded, "a streaming send is not idle")

	h.coord.Stop()
	ctx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	require.NoError(t, h.coord.WaitIdle(ctx))
	a.wait(t)
	assert.Equal(t, StateCancelled, a.res.State)
}

func TestSend_CallerContextCancel(t *testing.T) {
	h := newHarness(t, ScopeGlobal, func(w http.ResponseWriter, r *http.Request, call chatCall) {
		blockUntilCancelled(w, r, "x")
	})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan struct{})
	a := startSend(h, ctx, SendRequest{ConversationID: "c1", Text: "A"}, first)
	waitClosed(t, first)
	cancel()
	a.wait(t)

	require.NoError(t, a.err)
	assert.Equal(t, StateCancelled, a.res.State)
	assert.Empty(t, a.rc.errs)
}

// =============================================================================
// TASK
// =============================================================================

func TestStart_EventsInOrder(t *testing.T) {
	h := newHarness(t, ScopeGlobal, func(w http.ResponseWriter, r *http.Request, call chatCall) {
		sse(w, delta("a"), delta("b"), end("srv-1"))
	})

	task := h.coord.Start(context.Background(), SendRequest{ConversationID: "c1", Text: "q"})

	var got []string
	for ev := range task.Events() {
		got = append(got, ev.String())
	}
	res, err := task.Wait()

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, []string{
		stream.TextDelta("a").String(),
		stream.TextDelta("b").String(),
		stream.Completed("srv-1").String(),
	}, got)
	assert.Equal(t, "c1", task.ConversationID())
}

func TestStart_Cancel(t *testing.T) {
	var started atomic.Bool
	h := newHarness(t, ScopeGlobal, func(w http.ResponseWriter, r *http.Request, call chatCall) {
		started.Store(true)
		blockUntilCancelled(w, r, "x")
	})

	task := h.coord.Start(context.Background(), SendRequest{ConversationID: "c1", Text: "q"})
	ev := <-task.Events()
	assert.Equal(t, stream.KindTextDelta, ev.Kind)

	task.Cancel()
	res, err := task.Wait()

	require.NoError(t, err)
	assert.True(t, started.Load())
	assert.Equal(t, StateCancelled, res.State)
	<-task.Done()
}

// =============================================================================
// UNIT TESTS
// =============================================================================

func TestParseScope(t *testing.T) {
	s, err := ParseScope("")
	require.NoError(t, err)
	assert.Equal(t, ScopeGlobal, s)

	s, err = ParseScope("Conversation")
	require.NoError(t, err)
	assert.Equal(t, ScopeConversation, s)
	assert.Equal(t, "conversation", s.String())

	_, err = ParseScope("everything")
	assert.Error(t, err)
}

func TestSlots_ReleaseKeepsNewerToken(t *testing.T) {
	s := newSlots(ScopeConversation)
	var idle []string
	onIdle := func(id string) { idle = append(idle, id) }

	ctxA, a := s.acquire(context.Background(), "c1", nil)
	_, b := s.acquire(context.Background(), "c1", nil)

	assert.ErrorIs(t, context.Cause(ctxA), errSuperseded)
	s.release(a, onIdle)
	assert.Empty(t, idle, "b is still live")
	assert.Equal(t, []string{"c1"}, s.active())

	s.release(b, onIdle)
	assert.Equal(t, []string{"c1"}, idle)
	assert.Empty(t, s.active())
}

func TestUserDisplayText(t *testing.T) {
	assert.Equal(t, "hi", userDisplayText("hi", 0))
	assert.Equal(t, "hi [3 files attached]", userDisplayText("hi", 3))
	assert.Equal(t, "Uploaded 1 files", userDisplayText("", 1))
}

func TestResult_HistoryConversationID(t *testing.T) {
	assert.Equal(t, "local", Result{ConversationID: "local"}.HistoryConversationID())
	assert.Equal(t, "srv", Result{ConversationID: "local", ServerConversationID: "srv"}.HistoryConversationID())
}

func TestSendError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := &SendError{Message: "Send failed: dial tcp: refused", Cause: cause}
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Send failed: dial tcp: refused", err.Error())
}
