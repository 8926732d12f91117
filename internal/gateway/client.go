// Package gateway is the thin client for the Agent X backend. All calls are
// bearer-authenticated, rate limited, and bounded by the configured timeout;
// the sync engine decides when (and whether) to invoke them.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/agentx-app/chatsync/internal/auth"
)

const (
	// DefaultTimeout bounds connect and receive on every request.
	DefaultTimeout = 60 * time.Second

	// DefaultRateLimit is requests per minute against the backend.
	DefaultRateLimit = 30
)

// Client is the operation surface the sync engine consumes.
type Client interface {
	// ListSessions fetches the user's chat sessions.
	ListSessions(ctx context.Context) ([]RemoteSession, error)

	// ListMessages fetches the full message history of a session.
	ListMessages(ctx context.Context, sessionID int64) ([]RemoteMessage, error)

	// Process submits a user message and returns the assistant response.
	Process(ctx context.Context, req ProcessRequest) (*ProcessResponse, error)
}

// RemoteSession is a session record as the backend returns it.
type RemoteSession struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

// RemoteMessage is one backend record covering a full user/assistant
// exchange. The local store splits it into two rows.
type RemoteMessage struct {
	ID                int64           `json:"id"`
	UserMessage       string          `json:"user_message"`
	AssistantResponse string          `json:"assistant_response"`
	Timestamp         string          `json:"timestamp"`
	Metadata          json.RawMessage `json:"metadata"`
}

// ProcessRequest is the body of POST /api/agents/process.
type ProcessRequest struct {
	Message   string         `json:"message"`
	UserID    string         `json:"user_id"`
	Context   map[string]any `json:"context"`
	Timestamp string         `json:"timestamp"`
	SessionID *int64         `json:"session_id"`
}

// ProcessResponse is the backend's answer to a processed message.
// AgentName, RequiresFollowUp and SuggestedActions are passed through to the
// assistant message's metadata unmodified.
type ProcessResponse struct {
	SessionID        int64           `json:"session_id"`
	Response         string          `json:"response"`
	Metadata         json.RawMessage `json:"metadata"`
	AgentName        string          `json:"agent_name,omitempty"`
	RequiresFollowUp bool            `json:"requires_follow_up,omitempty"`
	SuggestedActions []string        `json:"suggested_actions,omitempty"`
}

// StatusError reports a response the backend did not mark successful.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("gateway: backend status %q (http %d)", e.Status, e.Code)
	}
	return fmt.Sprintf("gateway: http %d", e.Code)
}

// HTTPClient implements Client over the backend's REST API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter

	mu           sync.Mutex
	requestCount int
}

// Options configures an HTTPClient.
type Options struct {
	BaseURL   string
	Creds     auth.CredentialProvider
	Timeout   time.Duration
	RateLimit int // requests per minute, 0 uses DefaultRateLimit
}

// NewHTTPClient creates a client for the backend at opts.BaseURL.
func NewHTTPClient(opts Options) *HTTPClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	perMinute := opts.RateLimit
	if perMinute <= 0 {
		perMinute = DefaultRateLimit
	}

	httpClient := &http.Client{Timeout: timeout}
	if opts.Creds != nil {
		httpClient.Transport = &oauth2.Transport{
			Source: auth.TokenSource(opts.Creds),
		}
	}

	return &HTTPClient{
		baseURL: opts.BaseURL,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 5),
	}
}

// ListSessions fetches the user's chat sessions.
func (c *HTTPClient) ListSessions(ctx context.Context) ([]RemoteSession, error) {
	var envelope struct {
		Status   string          `json:"status"`
		Sessions []RemoteSession `json:"sessions"`
	}
	if err := c.get(ctx, "/api/chats", &envelope); err != nil {
		return nil, err
	}
	if envelope.Status != "success" {
		return nil, &StatusError{Code: http.StatusOK, Status: envelope.Status}
	}
	return envelope.Sessions, nil
}

// ListMessages fetches the full message history of a session.
func (c *HTTPClient) ListMessages(ctx context.Context, sessionID int64) ([]RemoteMessage, error) {
	var envelope struct {
		Status   string          `json:"status"`
		Messages []RemoteMessage `json:"messages"`
	}
	path := fmt.Sprintf("/api/chats/%d/messages", sessionID)
	if err := c.get(ctx, path, &envelope); err != nil {
		return nil, err
	}
	if envelope.Status != "success" {
		return nil, &StatusError{Code: http.StatusOK, Status: envelope.Status}
	}
	return envelope.Messages, nil
}

// Process submits a user message and returns the assistant response.
func (c *HTTPClient) Process(ctx context.Context, req ProcessRequest) (*ProcessResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode process request: %w", err)
	}

	var resp ProcessResponse
	if err := c.do(ctx, http.MethodPost, "/api/agents/process", bytes.NewReader(body), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RequestCount returns the number of requests issued so far.
func (c *HTTPClient) RequestCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestCount
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.Lock()
	c.requestCount++
	c.mu.Unlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
