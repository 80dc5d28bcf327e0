// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/difychat/internal/model"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

const (
	// DefaultBaseURL is the gateway address used when none is configured.
	DefaultBaseURL = "http://localhost:5004"

	// DefaultUser is the user identity sent with chat and upload calls.
	DefaultUser = "difychat-user"

	// DefaultConversationName is used when the gateway omits a name.
	DefaultConversationName = "New chat"

	defaultTimeout           = 30 * time.Second
	defaultRequestsPerSecond = 10
	defaultBurst             = 20

	// maxResponseBytes bounds how much of a REST body is read.
	maxResponseBytes = 16 * 1024 * 1024
)

// Config holds configuration options for the gateway client.
type Config struct {
	// BaseURL is the gateway base URL (default: http://localhost:5004)
	BaseURL string

	// User is sent as the "user" field of chat and upload requests.
	User string

	// Timeout for REST requests (default: 30s). The chat stream has none.
	Timeout time.Duration

	// RequestsPerSecond and Burst shape REST traffic. The chat stream is
	// not rate limited.
	RequestsPerSecond float64
	Burst             int

	// HTTPClient overrides the REST client. Tests inject httptest clients.
	HTTPClient *http.Client
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		User:              DefaultUser,
		Timeout:           defaultTimeout,
		RequestsPerSecond: defaultRequestsPerSecond,
		Burst:             defaultBurst,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the chat gateway.
//
// The Client is thread-safe for concurrent use.
type Client struct {
	cfg          Config
	httpClient   *http.Client
	streamClient *http.Client
	limiter      *rate.Limiter
	log          *slog.Logger
}

// NewClient creates a gateway client, filling zero values with defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.User == "" {
		cfg.User = DefaultUser
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	// The stream client shares the transport but never times out. The
	// caller's context is the only bound on a streaming response.
	streamClient := &http.Client{Transport: httpClient.Transport}

	return &Client{
		cfg:          cfg,
		httpClient:   httpClient,
		streamClient: streamClient,
		limiter:      rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		log:          slog.Default().With("component", "gateway"),
	}
}

// BaseURL returns the configured gateway address.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// User returns the configured user identity.
func (c *Client) User() string {
	return c.cfg.User
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// ListConversations returns the conversations stored for a model.
func (c *Client) ListConversations(ctx context.Context, modelID string) ([]model.Conversation, error) {
	q := url.Values{"model": {modelID}}
	var convs []model.Conversation
	if err := c.doJSON(ctx, http.MethodGet, "/chat/conversations?"+q.Encode(), nil, &convs); err != nil {
		return nil, err
	}
	if convs == nil {
		convs = []model.Conversation{}
	}
	for i := range convs {
		if convs[i].Model == "" {
			convs[i].Model = modelID
		}
	}
	return convs, nil
}

// FetchMessages returns the history of a conversation. Unresolved ids have
// no server-side history, so no request is made for them.
func (c *Client) FetchMessages(ctx context.Context, modelID, conversationID string) ([]model.Message, error) {
	if conversationID == "" || strings.HasPrefix(conversationID, model.TempIDPrefix) {
		return []model.Message{}, nil
	}

	q := url.Values{"model": {modelID}}
	path := "/chat/conversations/" + url.PathEscape(conversationID) + "/messages?" + q.Encode()

	var msgs []model.Message
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	for i := range msgs {
		msgs[i].Normalize()
	}
	return msgs, nil
}

// CreateConversation asks the gateway for a new conversation. A missing or
// placeholder id in the response is rejected.
func (c *Client) CreateConversation(ctx context.Context, modelID string) (model.Conversation, error) {
	var resp createConversationResponse
	if err := c.doJSON(ctx, http.MethodPost, "/chat/conversations", createConversationBody{Model: modelID}, &resp); err != nil {
		return model.Conversation{}, err
	}

	id := resp.ConversationID
	if id == "" || strings.HasPrefix(id, "new-") {
		return model.Conversation{}, &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: fmt.Sprintf("gateway returned an invalid conversation id %q", id),
		}
	}

	name := resp.Name
	if name == "" {
		name = DefaultConversationName
	}
	ts := resp.Timestamp
	if ts.IsZero() {
		ts = model.Now()
	}

	return model.Conversation{ID: id, Name: name, Model: modelID, Timestamp: ts}, nil
}

// DeleteConversation removes a conversation and its history.
func (c *Client) DeleteConversation(ctx context.Context, modelID, conversationID string) error {
	if conversationID == "" {
		return validationError("conversation id is required")
	}
	q := url.Values{"model": {modelID}}
	path := "/chat/conversations/" + url.PathEscape(conversationID) + "?" + q.Encode()
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// RenameConversation changes a conversation's display name.
func (c *Client) RenameConversation(ctx context.Context, modelID, conversationID, name string) error {
	if conversationID == "" {
		return validationError("conversation id is required")
	}
	q := url.Values{"model": {modelID}}
	path := "/chat/conversations/" + url.PathEscape(conversationID) + "/name?" + q.Encode()
	return c.doJSON(ctx, http.MethodPut, path, renameBody{Name: name}, nil)
}

// =============================================================================
// HISTORY
// =============================================================================

// SaveMessage appends a message to a conversation's server-side history.
// Missing id, sender and timestamp are filled in.
func (c *Client) SaveMessage(ctx context.Context, modelID, conversationID string, msg HistoryMessage) error {
	if conversationID == "" {
		return validationError("conversation id is required")
	}
	if msg.Role == "" {
		return validationError("message role is required")
	}
	if msg.Text == "" {
		return validationError("message text is required")
	}

	now := time.Now()
	if msg.ID == "" {
		msg.ID = string(msg.Role) + "-" + strconv.FormatInt(now.UnixMilli(), 10)
	}
	if msg.Sender == "" {
		msg.Sender = string(msg.Role)
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = model.NewTimestamp(now)
	}

	path := "/chat/conversations/" + url.PathEscape(conversationID) + "/messages"
	return c.doJSON(ctx, http.MethodPost, path, saveMessageBody{Model: modelID, Message: msg}, nil)
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// StreamChat opens the streaming chat call and returns the event-stream
// body. The caller must close it. Cancelling ctx aborts the stream.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	user := req.User
	if user == "" {
		user = c.cfg.User
	}

	body := chatBody{
		Query:          req.Query,
		ConversationID: req.ConversationID,
		Model:          req.Model,
		User:           user,
		Inputs:         map[string]any{},
		ResponseMode:   ResponseModeStreaming,
	}
	for _, id := range req.FileIDs {
		body.Files = append(body.Files, DocumentReference(id))
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeValidation, Message: "failed to encode chat request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat", bytes.NewReader(data))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, "chat request failed", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer drainAndClose(resp.Body)
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		return nil, statusError(resp.StatusCode, raw)
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "chat response has no body"}
	}

	c.log.Debug("chat stream opened",
		"conversation_id", req.ConversationID,
		"model", req.Model,
		"files", len(req.FileIDs))
	return resp.Body, nil
}

// =============================================================================
// REQUEST HELPERS
// =============================================================================

// doJSON performs a rate-limited REST call. in is encoded as the JSON body
// when non-nil. out receives the decoded response when non-nil; with a nil
// out any 2xx body is an acknowledgement.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &ClientError{Type: ErrTypeValidation, Message: "failed to encode request", Cause: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req, out)
}

// do waits on the limiter, sends req and normalises the response.
func (c *Client) do(req *http.Request, out any) error {
	ctx := req.Context()
	if err := c.limiter.Wait(ctx); err != nil {
		return transportError(ctx, "rate limiter", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("request failed", "method", req.Method, "path", req.URL.Path, "error", err)
		return transportError(ctx, req.Method+" "+req.URL.Path+" failed", err)
	}
	defer drainAndClose(resp.Body)

	c.log.Debug("request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	return handleResponse(resp, out)
}

// handleResponse maps an HTTP response onto out or a *ClientError.
func handleResponse(resp *http.Response, out any) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Status: resp.StatusCode, Message: "failed to read response", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, raw)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return &ClientError{Type: ErrTypeInvalidResponse, Status: resp.StatusCode, Message: "empty response body"}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Status: resp.StatusCode, Message: "failed to decode response", Cause: err}
	}
	return nil
}

// statusError builds the error for a non-2xx response. The gateway's
// "error" field wins over "message", then the status line is used.
func statusError(code int, raw []byte) *ClientError {
	msg := ""
	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil {
		msg = eb.Error
		if msg == "" {
			msg = eb.Message
		}
	}
	if msg == "" {
		msg = fmt.Sprintf("HTTP error! status: %d %s", code, http.StatusText(code))
	}
	return &ClientError{Type: ErrTypeHTTPStatus, Status: code, Message: msg}
}

// drainAndClose discards the rest of r so the connection can be reused.
func drainAndClose(r io.ReadCloser) {
	if r == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(r, maxResponseBytes))
	_ = r.Close()
}
