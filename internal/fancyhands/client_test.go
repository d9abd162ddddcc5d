// ABOUTME: Tests for the FancyHands adapter
// ABOUTME: Verifies task creation form encoding and error propagation

package fancyhands

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiredesk/gateway/internal/oauth1"
)

func testCreds() oauth1.Credentials {
	return oauth1.Credentials{ConsumerKey: "ck", ConsumerSecret: "cs"}
}

func TestCreateTask_SendsSignedForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/request/standard", r.URL.Path)
		assert.Contains(t, r.Header.Get("Authorization"), "OAuth ")
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "Book a restaurant", r.PostForm.Get("title"))
		assert.Equal(t, "500", r.PostForm.Get("bid"))
		assert.Equal(t, "true", r.PostForm.Get("test"))

		w.Write([]byte(`{"key":"task-abc","title":"Book a restaurant","status":1,"bid":500}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(testCreds(), srv.URL)
	task, err := c.CreateTask(context.Background(), "Book a restaurant", "Table for 4 on Friday", 500)
	require.NoError(t, err)

	assert.Equal(t, "task-abc", task.Key)
	assert.Equal(t, StatusOpen, task.Status)
}

func TestGetTask_FetchesByKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "task-abc", r.URL.Query().Get("key"))
		w.Write([]byte(`{"key":"task-abc","status":5}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(testCreds(), srv.URL)
	task, err := c.GetTask(context.Background(), "task-abc")
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, task.Status)
}

func TestCreateTask_ErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(testCreds(), srv.URL)
	_, err := c.CreateTask(context.Background(), "x", "y", 100)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
