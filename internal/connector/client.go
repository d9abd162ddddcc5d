// ABOUTME: Bot connector client for delivering activities to channels
// ABOUTME: Sends are wrapped in an exponential-backoff retry; backend adapters are not

package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hiredesk/gateway/internal/activity"
)

// Client delivers activities through the bot connector REST API
type Client interface {
	// SendToConversation posts an activity into its conversation and
	// returns the delivery receipt id.
	SendToConversation(ctx context.Context, act *activity.Activity) (string, error)

	// ReplyToActivity posts an activity as a reply to act.ReplyToID.
	ReplyToActivity(ctx context.Context, act *activity.Activity) (string, error)

	// CreateConversation starts a new conversation with the given members
	// and returns its id.
	CreateConversation(ctx context.Context, serviceURL string, members []activity.ChannelAccount, topic string) (string, error)
}

// retry policy for connector sends: transient failures are retried with
// exponential backoff, 3 attempts total.
const (
	sendAttempts     = 3
	sendInitialDelay = 2 * time.Second
	sendMaxDelay     = 20 * time.Second
)

// resourceResponse is the connector's delivery receipt
type resourceResponse struct {
	ID string `json:"id"`
}

// HTTPClient is the production connector client
type HTTPClient struct {
	tokens *TokenSource
	http   *http.Client
	logger *slog.Logger

	// sleep is swapped out in tests to avoid real backoff waits
	sleep func(ctx context.Context, d time.Duration) error
}

// NewHTTPClient creates a connector client authenticating with tokens
func NewHTTPClient(tokens *TokenSource) *HTTPClient {
	return &HTTPClient{
		tokens: tokens,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: slog.Default().With("component", "connector"),
		sleep:  sleepContext,
	}
}

// sleepContext waits out d or returns early with the context's error when it
// is cancelled first.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SendToConversation posts an activity into its conversation
func (c *HTTPClient) SendToConversation(ctx context.Context, act *activity.Activity) (string, error) {
	endpoint := fmt.Sprintf("%s/v3/conversations/%s/activities",
		strings.TrimRight(act.ServiceURL, "/"), url.PathEscape(act.Conversation.ID))
	return c.postActivity(ctx, endpoint, act)
}

// ReplyToActivity posts an activity as a threaded reply
func (c *HTTPClient) ReplyToActivity(ctx context.Context, act *activity.Activity) (string, error) {
	if act.ReplyToID == "" {
		return c.SendToConversation(ctx, act)
	}
	endpoint := fmt.Sprintf("%s/v3/conversations/%s/activities/%s",
		strings.TrimRight(act.ServiceURL, "/"), url.PathEscape(act.Conversation.ID), url.PathEscape(act.ReplyToID))
	return c.postActivity(ctx, endpoint, act)
}

// CreateConversation starts a new conversation and returns its id
func (c *HTTPClient) CreateConversation(ctx context.Context, serviceURL string, members []activity.ChannelAccount, topic string) (string, error) {
	payload := map[string]interface{}{
		"isGroup": len(members) > 1,
		"members": members,
	}
	if topic != "" {
		payload["topicName"] = topic
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding conversation parameters: %w", err)
	}

	endpoint := strings.TrimRight(serviceURL, "/") + "/v3/conversations"
	var receipt resourceResponse
	if err := c.sendWithRetry(ctx, endpoint, raw, &receipt); err != nil {
		return "", fmt.Errorf("creating conversation: %w", err)
	}
	return receipt.ID, nil
}

func (c *HTTPClient) postActivity(ctx context.Context, endpoint string, act *activity.Activity) (string, error) {
	// SMS channels render plain text only; markdown is down-converted
	// rather than delivered raw.
	if act.ChannelID == activity.ChannelSMS && act.Text != "" {
		cp := *act
		cp.Text = PlainText(act.Text)
		cp.TextFormat = "plain"
		act = &cp
	}

	raw, err := json.Marshal(act)
	if err != nil {
		return "", fmt.Errorf("encoding activity: %w", err)
	}

	var receipt resourceResponse
	if err := c.sendWithRetry(ctx, endpoint, raw, &receipt); err != nil {
		return "", fmt.Errorf("delivering activity: %w", err)
	}
	return receipt.ID, nil
}

// sendWithRetry posts the payload, retrying transient failures with
// exponential backoff. Non-transient failures (4xx other than 429) return
// immediately.
func (c *HTTPClient) sendWithRetry(ctx context.Context, endpoint string, payload []byte, out interface{}) error {
	var lastErr error
	delay := sendInitialDelay

	for attempt := 1; attempt <= sendAttempts; attempt++ {
		if attempt > 1 {
			c.logger.Warn("retrying connector send",
				"attempt", attempt,
				"delay", delay,
				"error", lastErr)
			if err := c.sleep(ctx, delay); err != nil {
				return err
			}
			delay *= 10
			if delay > sendMaxDelay {
				delay = sendMaxDelay
			}
		}

		err := c.post(ctx, endpoint, payload, out)
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("connector send failed after %d attempts: %w", sendAttempts, lastErr)
}

func (c *HTTPClient) post(ctx context.Context, endpoint string, payload []byte, out interface{}) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connector token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &transientError{err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &transientError{fmt.Errorf("connector returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("connector returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// Some channels reply with an empty body on success
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decoding receipt: %w", err)
	}
	return nil
}

// transientError marks failures worth retrying
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
