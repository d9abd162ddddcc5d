// ABOUTME: Upwork marketplace adapter for freelancer search and job posting
// ABOUTME: All failures surface as typed errors; nothing is swallowed into empty results

package upwork

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hiredesk/gateway/internal/oauth1"
)

// ErrNoResults is returned when a search matched no freelancers. Callers can
// distinguish an empty marketplace from a failed call.
var ErrNoResults = errors.New("no freelancers matched")

const defaultBaseURL = "https://www.upwork.com/api"

// Freelancer is one provider returned by a search
type Freelancer struct {
	ID          string  `json:"id"`
	Name        string  `json:"dec_name"`
	Title       string  `json:"title"`
	Rate        float64 `json:"rate,string"`
	Country     string  `json:"country"`
	FeedbackAvg float64 `json:"feedback,string"`
}

// Job is a posted job opening
type Job struct {
	ID        string `json:"id"`
	Reference string `json:"public_url"`
	Status    string `json:"status"`
}

// JobRequest describes a job to post
type JobRequest struct {
	Title       string
	Description string
	Category    string
	Subcategory string
	Visibility  string
	Budget      int
}

// Client issues signed requests to the Upwork REST API
type Client struct {
	baseURL string
	signer  *oauth1.Signer
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates an Upwork client with the given OAuth1.0a credentials
func NewClient(creds oauth1.Credentials) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		signer:  oauth1.NewSigner(creds),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default().With("component", "upwork"),
	}
}

// NewClientWithBaseURL is NewClient pointed at a different API root, for tests
func NewClientWithBaseURL(creds oauth1.Credentials, baseURL string) *Client {
	c := NewClient(creds)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// SearchFreelancers queries providers matching q, best match first.
// Returns ErrNoResults when the search succeeds but matches nobody.
func (c *Client) SearchFreelancers(ctx context.Context, q string) ([]Freelancer, error) {
	endpoint := c.baseURL + "/profiles/v2/search/providers.json?" + url.Values{"q": {q}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if err := c.signer.Sign(req, nil); err != nil {
		return nil, fmt.Errorf("signing request: %w", err)
	}

	var body struct {
		Providers []Freelancer `json:"providers"`
	}
	if err := c.do(req, &body); err != nil {
		return nil, fmt.Errorf("searching freelancers: %w", err)
	}

	if len(body.Providers) == 0 {
		return nil, ErrNoResults
	}
	return body.Providers, nil
}

// PostJob creates a job opening and returns it
func (c *Client) PostJob(ctx context.Context, jr JobRequest) (*Job, error) {
	form := url.Values{
		"buyer_team__reference": {"hiredesk"},
		"title":                 {jr.Title},
		"job_type":              {"fixed-price"},
		"description":           {jr.Description},
		"category2":             {jr.Category},
		"subcategory2":          {jr.Subcategory},
		"visibility":            {jr.Visibility},
		"budget":                {fmt.Sprintf("%d", jr.Budget)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/hr/v2/jobs.json", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if err := c.signer.Sign(req, form); err != nil {
		return nil, fmt.Errorf("signing request: %w", err)
	}

	var body struct {
		Job Job `json:"job"`
	}
	if err := c.do(req, &body); err != nil {
		return nil, fmt.Errorf("posting job: %w", err)
	}

	c.logger.Info("job posted", "job_id", body.Job.ID, "title", jr.Title)
	return &body.Job, nil
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
		return fmt.Errorf("upwork API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
