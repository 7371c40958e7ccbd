package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nao1215/trustscan/internal/model"
)

// maxResponseBytes caps the agent response body.
const maxResponseBytes = 4 << 20

// Client talks to a remote analysis agent.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client for the agent at baseURL. An empty baseURL
// yields a client whose Analyze always returns ErrNotConfigured.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether a base URL is set.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// Analyze asks the agent to analyze target within timeout. deep requests the
// multi-page crawl. Errors other than ErrNotConfigured wrap
// model.ErrUnavailable.
func (c *Client) Analyze(ctx context.Context, target string, timeout time.Duration, deep bool) (*Result, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(analyzeRequest{
		URL:                  target,
		TimeoutMs:            timeout.Milliseconds(),
		CheckExternalReviews: deep,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", model.ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: agent request: %w", model.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read agent response: %w", model.ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: agent returned status %d", model.ErrUnavailable, resp.StatusCode)
	}

	var r rawResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("%w: %w: %s", model.ErrUnavailable, ErrInvalidResponse, err.Error())
	}
	res, err := r.convert()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrUnavailable, err)
	}

	c.logger.Debug("agent analysis complete", "url", target, "duration", time.Since(start))
	return res, nil
}
