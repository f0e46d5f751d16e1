package simulate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// Client talks to the run tracker HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client with a request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// PutUser creates or replaces a user profile.
func (c *Client) PutUser(ctx context.Context, id, name string) error {
	return c.do(ctx, http.MethodPut, "/users/"+id, map[string]string{"name": name}, nil)
}

// StartRun opens a run for userID.
func (c *Client) StartRun(ctx context.Context, userID string) (RunView, error) {
	var run RunView
	err := c.do(ctx, http.MethodPost, "/runs/start", map[string]string{"userId": userID}, &run)
	return run, err
}

// AddPoint submits one sample.
func (c *Client) AddPoint(ctx context.Context, runID string, s Sample) (RunView, error) {
	var run RunView
	err := c.do(ctx, http.MethodPost, "/runs/"+runID+"/point", s, &run)
	return run, err
}

// EndRun ends a run.
func (c *Client) EndRun(ctx context.Context, runID string) (RunView, error) {
	var run RunView
	err := c.do(ctx, http.MethodPost, "/runs/"+runID+"/end", nil, &run)
	return run, err
}

// Refresh forces a leaderboard refresh.
func (c *Client) Refresh(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/leaderboard/refresh", nil, nil)
}

// Leaderboard fetches one window.
func (c *Client) Leaderboard(ctx context.Context, window string) ([]Entry, error) {
	var entries []Entry
	err := c.do(ctx, http.MethodGet, "/leaderboard/"+window, nil, &entries)
	return entries, err
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// IsThrottled reports whether err is a 429 from the service.
func IsThrottled(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusTooManyRequests
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
