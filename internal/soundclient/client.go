// Package soundclient talks to a running CATrack server over HTTP.
package soundclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/deepp5/catrack/internal/domain/model"
	"github.com/deepp5/catrack/internal/domain/types"
)

const (
	defaultTimeout = 2 * time.Minute
	maxBodyBytes   = 8 << 20
)

// ErrUnexpectedStatus marks a non-2xx answer without a JSON error body.
var ErrUnexpectedStatus = errors.New("unexpected status")

// APIError is the server's {code, message} error body.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout. Rebuilds fetch every clip, so
// keep it generous.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// Client wraps http.Client with the sound API routes.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for baseURL, e.g. "http://localhost:9080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ping calls GET /ping.
func (c *Client) Ping(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	return c.do(ctx, http.MethodGet, "/ping", nil, &out)
}

// Rebuild calls POST /sound/baseline/rebuild.
func (c *Client) Rebuild(ctx context.Context, key model.Key) (types.RebuildResult, error) {
	var out types.RebuildResult
	err := c.do(ctx, http.MethodPost, "/sound/baseline/rebuild", keyQuery(key), &out)
	return out, err
}

// Check calls POST /sound/check.
func (c *Client) Check(ctx context.Context, mediaID string, key model.Key) (types.CheckResult, error) {
	q := keyQuery(key)
	q.Set("media_id", mediaID)
	var out types.CheckResult
	err := c.do(ctx, http.MethodPost, "/sound/check", q, &out)
	return out, err
}

// Baseline calls GET /sound/baseline.
func (c *Client) Baseline(ctx context.Context, key model.Key) (types.BaselineView, error) {
	var out types.BaselineView
	err := c.do(ctx, http.MethodGet, "/sound/baseline", keyQuery(key), &out)
	return out, err
}

// Assessments calls GET /sound/assessments. A zero limit uses the server default.
func (c *Client) Assessments(ctx context.Context, key model.Key, limit int) ([]types.AssessmentView, error) {
	q := keyQuery(key)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []types.AssessmentView
	err := c.do(ctx, http.MethodGet, "/sound/assessments", q, &out)
	return out, err
}

func keyQuery(key model.Key) url.Values {
	q := url.Values{}
	q.Set("machine_id", key.MachineID)
	if key.Mode != "" {
		q.Set("mode", key.Mode)
	}
	return q
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, out any) error {
	target := c.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(body, apiErr) == nil && apiErr.Code != "" {
			return apiErr
		}
		return fmt.Errorf("%w: %s %s returned %d", ErrUnexpectedStatus, method, path, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

// readResponseBody reads and closes the response body.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}
