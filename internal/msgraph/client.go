// ABOUTME: Microsoft Graph adapter for user profiles and presence
// ABOUTME: Client-credentials token flow with cached bearer tokens

package msgraph

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

const (
	defaultBaseURL  = "https://graph.microsoft.com/v1.0"
	defaultLoginURL = "https://login.microsoftonline.com"
)

// GraphUser is the subset of a directory user profile the gateway reads
type GraphUser struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	MobilePhone       string `json:"mobilePhone"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// Presence is a user's availability as reported by Graph
type Presence struct {
	Availability string `json:"availability"`
	Activity     string `json:"activity"`
}

// Available reports whether the presence record counts as online
func (p *Presence) Available() bool {
	switch p.Availability {
	case "Available", "AvailableIdle", "Busy", "BusyIdle":
		return true
	}
	return false
}

// Client issues Graph calls authenticated with app-only client credentials
type Client struct {
	baseURL  string
	loginURL string
	tenantID string
	clientID string
	secret   string
	http     *http.Client
	logger   *slog.Logger

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewClient creates a Graph client for the given app registration
func NewClient(tenantID, clientID, clientSecret string) *Client {
	return &Client{
		baseURL:  defaultBaseURL,
		loginURL: defaultLoginURL,
		tenantID: tenantID,
		clientID: clientID,
		secret:   clientSecret,
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   slog.Default().With("component", "msgraph"),
	}
}

// NewClientWithURLs is NewClient with overridable endpoints, for tests
func NewClientWithURLs(tenantID, clientID, clientSecret, baseURL, loginURL string) *Client {
	c := NewClient(tenantID, clientID, clientSecret)
	c.baseURL = strings.TrimRight(baseURL, "/")
	c.loginURL = strings.TrimRight(loginURL, "/")
	return c
}

// GetUser fetches a directory user by id or principal name
func (c *Client) GetUser(ctx context.Context, idOrPrincipal string) (*GraphUser, error) {
	var user GraphUser
	if err := c.get(ctx, "/users/"+url.PathEscape(idOrPrincipal), &user); err != nil {
		return nil, fmt.Errorf("fetching user %s: %w", idOrPrincipal, err)
	}
	return &user, nil
}

// GetPresence fetches a user's current presence
func (c *Client) GetPresence(ctx context.Context, userID string) (*Presence, error) {
	var presence Presence
	if err := c.get(ctx, "/users/"+url.PathEscape(userID)+"/presence", &presence); err != nil {
		return nil, fmt.Errorf("fetching presence for %s: %w", userID, err)
	}
	return &presence, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("graph API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// accessToken returns a cached app-only token, refreshing when within a
// minute of expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Until(c.expires) > time.Minute {
		return c.token, nil
	}

	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.secret},
		"scope":         {"https://graph.microsoft.com/.default"},
		"grant_type":    {"client_credentials"},
	}

	endpoint := fmt.Sprintf("%s/%s/oauth2/v2.0/token", c.loginURL, url.PathEscape(c.tenantID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}

	c.token = body.AccessToken
	c.expires = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	c.logger.Debug("graph token refreshed", "expires_in", body.ExpiresIn)
	return c.token, nil
}
