// ABOUTME: SendGrid mail adapter used for ticket receipts
// ABOUTME: Thin wrapper over the v3 mail send endpoint

package sendgrid

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
)

const defaultBaseURL = "https://api.sendgrid.com"

// Client sends mail through the SendGrid v3 API
type Client struct {
	baseURL string
	apiKey  string
	from    string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a mail client with the given API key and sender address
func NewClient(apiKey, fromAddress string) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		from:    fromAddress,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default().With("component", "sendgrid"),
	}
}

// NewClientWithBaseURL is NewClient pointed at a different API root, for tests
func NewClientWithBaseURL(apiKey, fromAddress, baseURL string) *Client {
	c := NewClient(apiKey, fromAddress)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type address struct {
	Email string `json:"email"`
}

type personalization struct {
	To []address `json:"to"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
}

// Send delivers a plain-text email to one recipient
func (c *Client) Send(ctx context.Context, to, subject, body string) error {
	payload := sendRequest{
		Personalizations: []personalization{{To: []address{{Email: to}}}},
		From:             address{Email: c.from},
		Subject:          subject,
		Content:          []content{{Type: "text/plain", Value: body}},
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding mail: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3/mail/send", bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("sendgrid API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	c.logger.Debug("mail sent", "to", to, "subject", subject)
	return nil
}
