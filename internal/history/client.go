// Package history fetches past conversation messages from the backend.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/omochice/counsel-chat/internal/domain"
	"github.com/omochice/counsel-chat/internal/log"
)

// ConversationPath is the backend endpoint serving a conversation's messages.
const ConversationPath = "/api/consultation/messages/conversation"

const (
	DefaultLimit   = 50
	DefaultTimeout = 30 * time.Second

	maxErrorBody = 512
)

// Option configures a Client.
type Option func(*Client)

// WithLimit sets the page size.
func WithLimit(limit int) Option {
	return func(c *Client) {
		c.limit = limit
	}
}

// WithTimeout bounds each request. It has no effect together with WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client reads conversation history. Concurrent requests for the same page
// share one round trip.
type Client struct {
	baseURL string
	limit   int
	timeout time.Duration
	http    *http.Client
	logger  zerolog.Logger
	group   singleflight.Group
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		limit:   DefaultLimit,
		timeout: DefaultTimeout,
		logger:  log.L(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	c.logger = c.logger.With().Str(log.FieldComponent, "history").Logger()
	return c
}

// Conversation returns the first page of messages between userID and
// counselorID in the order the backend sent them.
func (c *Client) Conversation(ctx context.Context, userID, counselorID int64) ([]domain.DisplayMessage, error) {
	return c.Page(ctx, userID, counselorID, 0)
}

// Page returns one page of messages starting at offset. The shared request
// outlives a caller that gives up; that caller alone gets its ctx error.
func (c *Client) Page(ctx context.Context, userID, counselorID int64, offset int) ([]domain.DisplayMessage, error) {
	q := url.Values{}
	q.Set("userId", strconv.FormatInt(userID, 10))
	q.Set("counselorId", strconv.FormatInt(counselorID, 10))
	q.Set("limit", strconv.Itoa(c.limit))
	q.Set("offset", strconv.Itoa(offset))
	target := c.baseURL + ConversationPath + "?" + q.Encode()

	flight := context.WithoutCancel(ctx)
	ch := c.group.DoChan(target, func() (any, error) {
		return c.fetch(flight, target)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		c.logger.Debug().Str(log.FieldURL, target).Msg("shared in-flight history request")
	}

	msgs := res.Val.([]domain.DisplayMessage)
	out := make([]domain.DisplayMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (c *Client) fetch(ctx context.Context, target string) ([]domain.DisplayMessage, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build history request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str(log.FieldMethod, req.Method).
		Str(log.FieldURL, target).
		Int(log.FieldStatus, resp.StatusCode).
		Int64(log.FieldLatency, time.Since(start).Milliseconds()).
		Msg("history response")

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("history request failed with HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var msgs []domain.DisplayMessage
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return msgs, nil
}
