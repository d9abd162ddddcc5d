// ABOUTME: Tests for the webhook endpoint
// ABOUTME: Token rejection, malformed payloads, and the happy path

package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiredesk/gateway/internal/activity"
)

type fakeValidator struct {
	err    error
	header string
}

func (f *fakeValidator) Validate(_ context.Context, authorizationHeader string) error {
	f.header = authorizationHeader
	return f.err
}

func postActivity(t *testing.T, url string, act *activity.Activity, token string) *http.Response {
	t.Helper()
	body, err := json.Marshal(act)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url+"/api/messages", bytes.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestWebhook_ProcessesActivity(t *testing.T) {
	h := newHarness(t)
	validator := &fakeValidator{}
	mux := http.NewServeMux()
	NewHandler(h.bot, validator, nil).Routes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp := postActivity(t, srv.URL, teamsMessage("conv-1", "research"), "good-token")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bearer good-token", validator.header)

	texts := h.sender.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "What would you like researched?")
}

func TestWebhook_RejectsBadToken(t *testing.T) {
	h := newHarness(t)
	validator := &fakeValidator{err: errors.New("bad signature")}
	mux := http.NewServeMux()
	NewHandler(h.bot, validator, nil).Routes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp := postActivity(t, srv.URL, teamsMessage("conv-1", "research"), "forged")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, h.sender.texts())
}

func TestWebhook_RejectsMalformedPayload(t *testing.T) {
	h := newHarness(t)
	mux := http.NewServeMux()
	NewHandler(h.bot, nil, nil).Routes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/messages", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, h.sender.texts())
}
