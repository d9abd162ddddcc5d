// ABOUTME: FancyHands marketplace adapter for creating and tracking tasks
// ABOUTME: Signed OAuth1.0a calls; failures surface as errors, never empty results

package fancyhands

import (
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

	"github.com/hiredesk/gateway/internal/oauth1"
)

const defaultBaseURL = "https://www.fancyhands.com/api/v1"

// Task is a FancyHands request as returned by the API
type Task struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      int    `json:"status"`
	Bid         int    `json:"bid"`
}

// Task status codes per the FancyHands API
const (
	StatusOpen     = 1
	StatusClosed   = 5
	StatusExpired  = 10
	StatusCanceled = 20
)

// Client issues signed requests to the FancyHands API
type Client struct {
	baseURL string
	signer  *oauth1.Signer
	http    *http.Client
	logger  *slog.Logger

	// Test mode creates sandbox tasks invisible to real assistants
	test bool
}

// NewClient creates a FancyHands client with the given OAuth1.0a credentials
func NewClient(creds oauth1.Credentials, test bool) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		signer:  oauth1.NewSigner(creds),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default().With("component", "fancyhands"),
		test:    test,
	}
}

// NewClientWithBaseURL is NewClient pointed at a different API root, for tests
func NewClientWithBaseURL(creds oauth1.Credentials, baseURL string) *Client {
	c := NewClient(creds, true)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// CreateTask submits a new task with the given title, description, and bid
// (in cents) and returns the created task.
func (c *Client) CreateTask(ctx context.Context, title, description string, bid int) (*Task, error) {
	form := url.Values{
		"title":       {title},
		"description": {description},
		"bid":         {strconv.Itoa(bid)},
	}
	if c.test {
		form.Set("test", "true")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/request/standard", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if err := c.signer.Sign(req, form); err != nil {
		return nil, fmt.Errorf("signing request: %w", err)
	}

	var task Task
	if err := c.do(req, &task); err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}

	c.logger.Info("task created", "task_key", task.Key, "title", title)
	return &task, nil
}

// GetTask fetches a task by key
func (c *Client) GetTask(ctx context.Context, key string) (*Task, error) {
	endpoint := c.baseURL + "/request/standard?" + url.Values{"key": {key}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if err := c.signer.Sign(req, nil); err != nil {
		return nil, fmt.Errorf("signing request: %w", err)
	}

	var task Task
	if err := c.do(req, &task); err != nil {
		return nil, fmt.Errorf("fetching task %s: %w", key, err)
	}
	return &task, nil
}

// do executes a signed request and decodes the JSON response
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("fancyhands API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
