// ABOUTME: Tests for the SendGrid mail adapter
// ABOUTME: Verifies v3 payload shape and error propagation

package sendgrid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_BuildsV3Payload(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer sg-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("sg-key", "bot@contoso.com", srv.URL)
	err := c.Send(context.Background(), "dana@example.com", "Ticket #1001 created", "We are on it.")
	require.NoError(t, err)

	require.Len(t, got.Personalizations, 1)
	require.Len(t, got.Personalizations[0].To, 1)
	assert.Equal(t, "dana@example.com", got.Personalizations[0].To[0].Email)
	assert.Equal(t, "bot@contoso.com", got.From.Email)
	assert.Equal(t, "Ticket #1001 created", got.Subject)
	require.Len(t, got.Content, 1)
	assert.Equal(t, "text/plain", got.Content[0].Type)
}

func TestSend_ErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"message":"bad key"}]}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("bad", "bot@contoso.com", srv.URL)
	err := c.Send(context.Background(), "dana@example.com", "s", "b")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
