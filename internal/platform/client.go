package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"laivdata.app/agentdesk/common/logger"
	"laivdata.app/agentdesk/core/config"
	"laivdata.app/agentdesk/internal/model"
)

const (
	apiPrefix           = "/api/v1"
	defaultConvTitle    = "New conversation"
	maxErrorBodyBytes   = 64 << 10
	maxSuccessBodyBytes = 16 << 20
)

// Client talks to the agent platform REST API. GET requests are retried on
// transport errors and 5xx responses; everything else is sent once.
type Client struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
}

type Option func(*retryablehttp.Client)

// WithRetryWait bounds the backoff between GET retries.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(rc *retryablehttp.Client) {
		rc.RetryWaitMin = minWait
		rc.RetryWaitMax = maxWait
	}
}

func New(cfg config.PlatformConfig, opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.MaxRetries
	rc.Logger = slog.Default()
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.CheckRetry = getOnlyRetryPolicy
	if cfg.Timeout > 0 {
		rc.HTTPClient.Timeout = cfg.Timeout
	}
	for _, opt := range opts {
		opt(rc)
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/") + apiPrefix,
		token:   cfg.APIToken,
		http:    rc,
	}
}

func (c *Client) GetAgent(ctx context.Context, agentID string) (*model.Agent, error) {
	var agent model.Agent
	if err := c.do(ctx, http.MethodGet, "/agents/"+url.PathEscape(agentID), nil, http.StatusOK, &agent); err != nil {
		return nil, fmt.Errorf("get agent %s: %w", agentID, err)
	}
	return &agent, nil
}

func (c *Client) ListConversations(ctx context.Context, agentID string) ([]model.ConversationSummary, error) {
	var summaries []model.ConversationSummary
	path := "/conversations?agent_id=" + url.QueryEscape(agentID)
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &summaries); err != nil {
		return nil, fmt.Errorf("list conversations for agent %s: %w", agentID, err)
	}
	return summaries, nil
}

func (c *Client) GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	var conv model.Conversation
	if err := c.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(conversationID), nil, http.StatusOK, &conv); err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", conversationID, err)
	}
	return &conv, nil
}

func (c *Client) SendAgentMessage(ctx context.Context, agentID string, req model.MessageRequest) (*model.MessageResponse, error) {
	var resp model.MessageResponse
	if err := c.do(ctx, http.MethodPost, "/agents/"+url.PathEscape(agentID)+"/message", req, http.StatusOK, &resp); err != nil {
		return nil, fmt.Errorf("send message to agent %s: %w", agentID, err)
	}
	return &resp, nil
}

// CreateConversation creates a conversation, titled "New conversation" when
// title is empty.
func (c *Client) CreateConversation(ctx context.Context, agentID, title string) (*model.Conversation, error) {
	if title == "" {
		title = defaultConvTitle
	}
	body := map[string]string{"agent_id": agentID, "title": title}
	var conv model.Conversation
	if err := c.do(ctx, http.MethodPost, "/conversations", body, http.StatusCreated, &conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return &conv, nil
}

func (c *Client) UpdateConversationTitle(ctx context.Context, conversationID, title string) (*model.Conversation, error) {
	var conv model.Conversation
	body := map[string]string{"title": title}
	if err := c.do(ctx, http.MethodPost, "/conversations/"+url.PathEscape(conversationID), body, http.StatusOK, &conv); err != nil {
		return nil, fmt.Errorf("rename conversation %s: %w", conversationID, err)
	}
	return &conv, nil
}

func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	if err := c.do(ctx, http.MethodPost, "/conversations/"+url.PathEscape(conversationID)+"/delete", nil, http.StatusNoContent, nil); err != nil {
		return fmt.Errorf("delete conversation %s: %w", conversationID, err)
	}
	return nil
}

// do sends one request and decodes a JSON response into out. Any status other
// than want becomes an *APIError.
func (c *Client) do(ctx context.Context, method, path string, in any, want int, out any) error {
	sc := logger.StartSpan(ctx, "platform."+strings.ToLower(method))
	defer sc.End()
	ctx = sc.Context()

	if method != http.MethodGet {
		ctx = context.WithValue(ctx, noRetryKey{}, true)
	}

	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID(ctx))
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		sc.RecordError(err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		apiErr := newAPIError(resp.StatusCode, raw)
		sc.RecordError(apiErr)
		slog.WarnContext(ctx, "platform request failed",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"error", logger.Truncate(apiErr.Message, 200))
		return apiErr
	}

	if out == nil {
		return nil
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxSuccessBodyBytes))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

type noRetryKey struct{}

// getOnlyRetryPolicy applies the default policy to GETs. Writes are not
// idempotent on the platform and are never retried.
func getOnlyRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if noRetry, _ := ctx.Value(noRetryKey{}).(bool); noRetry {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// requestID reuses the request id from the log fields so gateway and platform
// logs line up, and mints one otherwise.
func requestID(ctx context.Context) string {
	if f := logger.GetLogFields(ctx); f.RequestID != nil && *f.RequestID != "" {
		return *f.RequestID
	}
	return uuid.NewString()
}
