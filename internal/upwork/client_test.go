// ABOUTME: Tests for the Upwork adapter
// ABOUTME: Verifies signed requests, typed errors, and that failures are never silent

package upwork

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
	return oauth1.Credentials{
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
		AccessToken:    "at",
		AccessSecret:   "as",
	}
}

func TestSearchFreelancers_ParsesProviders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/profiles/v2/search/providers.json", r.URL.Path)
		assert.Equal(t, "ppt design", r.URL.Query().Get("q"))
		assert.Contains(t, r.Header.Get("Authorization"), "OAuth ")

		w.Write([]byte(`{"providers":[
			{"id":"~01abc","dec_name":"Riley Chen","title":"Presentation Designer","rate":"45.0","country":"USA","feedback":"4.9"},
			{"id":"~02def","dec_name":"Sam Ortiz","title":"Slide Expert","rate":"38.5","country":"Spain","feedback":"4.7"}
		]}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(testCreds(), srv.URL)
	providers, err := c.SearchFreelancers(context.Background(), "ppt design")
	require.NoError(t, err)

	require.Len(t, providers, 2)
	assert.Equal(t, "Riley Chen", providers[0].Name)
	assert.Equal(t, 45.0, providers[0].Rate)
}

func TestSearchFreelancers_EmptyIsTypedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"providers":[]}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(testCreds(), srv.URL)
	_, err := c.SearchFreelancers(context.Background(), "nothing")

	assert.ErrorIs(t, err, ErrNoResults)
}

func TestSearchFreelancers_HTTPErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(testCreds(), srv.URL)
	_, err := c.SearchFreelancers(context.Background(), "anything")

	// A failed call is an error, never an empty result
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoResults)
	assert.Contains(t, err.Error(), "429")
}

func TestPostJob_SendsForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/hr/v2/jobs.json", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "Design a 10 slide deck", r.PostForm.Get("title"))
		assert.Equal(t, "200", r.PostForm.Get("budget"))

		w.Write([]byte(`{"job":{"id":"job-1","public_url":"https://www.upwork.com/jobs/job-1","status":"open"}}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(testCreds(), srv.URL)
	job, err := c.PostJob(context.Background(), JobRequest{
		Title:       "Design a 10 slide deck",
		Description: "Product overview deck",
		Budget:      200,
	})
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, "open", job.Status)
}
