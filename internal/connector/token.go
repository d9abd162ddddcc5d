// ABOUTME: Connector token acquisition with background refresh
// ABOUTME: Client-credentials flow against the Bot Framework login endpoint

package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const defaultLoginURL = "https://login.microsoftonline.com/botframework.com/oauth2/v2.0/token"

// TokenSource acquires and caches connector bearer tokens. An optional
// background worker keeps the cached token fresh so sends rarely pay the
// token round-trip.
type TokenSource struct {
	loginURL string
	appID    string
	password string
	http     *http.Client
	logger   *slog.Logger

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewTokenSource creates a token source for the given app credentials
func NewTokenSource(appID, appPassword string) *TokenSource {
	return &TokenSource{
		loginURL: defaultLoginURL,
		appID:    appID,
		password: appPassword,
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   slog.Default().With("component", "connector"),
	}
}

// NewTokenSourceWithURL is NewTokenSource with an overridable endpoint, for tests
func NewTokenSourceWithURL(appID, appPassword, loginURL string) *TokenSource {
	ts := NewTokenSource(appID, appPassword)
	ts.loginURL = loginURL
	return ts
}

// Token returns a valid bearer token, fetching a fresh one when the cached
// token is within a minute of expiry.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && time.Until(ts.expires) > time.Minute {
		return ts.token, nil
	}
	return ts.refreshLocked(ctx)
}

// StartRefresh runs a background refresh loop until ctx is cancelled.
// Process shutdown cancels ctx, which is the worker's only lifecycle hook.
func (ts *TokenSource) StartRefresh(ctx context.Context) {
	go func() {
		for {
			ts.mu.Lock()
			wait := time.Until(ts.expires) * 8 / 10
			ts.mu.Unlock()
			if wait < time.Minute {
				wait = time.Minute
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}

			ts.mu.Lock()
			if _, err := ts.refreshLocked(ctx); err != nil {
				ts.logger.Error("background token refresh failed", "error", err)
			}
			ts.mu.Unlock()
		}
	}()
}

// refreshLocked fetches a new token. Caller holds ts.mu.
func (ts *TokenSource) refreshLocked(ctx context.Context) (string, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {ts.appID},
		"client_secret": {ts.password},
		"scope":         {"https://api.botframework.com/.default"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("login endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}

	ts.token = body.AccessToken
	ts.expires = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	ts.logger.Debug("connector token refreshed", "expires_in", body.ExpiresIn)
	return ts.token, nil
}
