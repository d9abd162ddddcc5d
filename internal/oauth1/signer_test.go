// ABOUTME: Tests for OAuth 1.0a request signing
// ABOUTME: Covers header structure, determinism, and parameter canonicalization

package oauth1

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedSigner() *Signer {
	s := NewSigner(Credentials{
		ConsumerKey:    "consumer-key",
		ConsumerSecret: "consumer-secret",
		AccessToken:    "access-token",
		AccessSecret:   "access-secret",
	})
	s.nonce = func() string { return "7d8f3e4a" }
	s.timestamp = func() string { return "137131201" }
	return s
}

func signedHeader(t *testing.T, s *Signer, rawURL string, form url.Values) string {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, rawURL, nil)
	require.NoError(t, err)
	require.NoError(t, s.Sign(req, form))
	return req.Header.Get("Authorization")
}

func extractSignature(t *testing.T, authz string) string {
	t.Helper()
	for _, pair := range strings.Split(strings.TrimPrefix(authz, "OAuth "), ", ") {
		if strings.HasPrefix(pair, "oauth_signature=") {
			return pair
		}
	}
	t.Fatalf("no oauth_signature in %q", authz)
	return ""
}

func TestSign_HeaderStructure(t *testing.T) {
	authz := signedHeader(t, fixedSigner(), "https://api.example.com/v1/tasks", nil)

	assert.True(t, strings.HasPrefix(authz, "OAuth "))
	assert.Contains(t, authz, `oauth_consumer_key="consumer-key"`)
	assert.Contains(t, authz, `oauth_signature_method="HMAC-SHA1"`)
	assert.Contains(t, authz, `oauth_timestamp="137131201"`)
	assert.Contains(t, authz, `oauth_token="access-token"`)
	assert.Contains(t, authz, `oauth_version="1.0"`)
	assert.Contains(t, authz, "oauth_signature=")
}

func TestSign_DeterministicForFixedNonce(t *testing.T) {
	form := url.Values{"q": {"powerpoint design"}}

	first := signedHeader(t, fixedSigner(), "https://api.example.com/v1/search", form)
	second := signedHeader(t, fixedSigner(), "https://api.example.com/v1/search", form)
	assert.Equal(t, first, second)
}

func TestSign_SignatureCoversParameters(t *testing.T) {
	base := signedHeader(t, fixedSigner(), "https://api.example.com/v1/search", url.Values{"q": {"a"}})
	changedForm := signedHeader(t, fixedSigner(), "https://api.example.com/v1/search", url.Values{"q": {"b"}})
	changedQuery := signedHeader(t, fixedSigner(), "https://api.example.com/v1/search?page=2", url.Values{"q": {"a"}})

	assert.NotEqual(t, extractSignature(t, base), extractSignature(t, changedForm))
	assert.NotEqual(t, extractSignature(t, base), extractSignature(t, changedQuery))
}

func TestSign_QueryAndFormEquivalence(t *testing.T) {
	// The same parameter contributes identically whether it travels in the
	// query string or the form body.
	viaQuery := signedHeader(t, fixedSigner(), "https://api.example.com/v1/search?q=research", nil)
	viaForm := signedHeader(t, fixedSigner(), "https://api.example.com/v1/search", url.Values{"q": {"research"}})

	assert.Equal(t, extractSignature(t, viaQuery), extractSignature(t, viaForm))
}

func TestSign_WithoutAccessToken(t *testing.T) {
	s := NewSigner(Credentials{ConsumerKey: "key", ConsumerSecret: "secret"})

	req, err := http.NewRequest(http.MethodGet, "https://api.example.com/v1/tasks", nil)
	require.NoError(t, err)
	require.NoError(t, s.Sign(req, nil))

	authz := req.Header.Get("Authorization")
	assert.Contains(t, authz, `oauth_consumer_key="key"`)
	assert.NotContains(t, authz, "oauth_token")
}

func TestEncode_RFC3986(t *testing.T) {
	assert.Equal(t, "a%20b", encode("a b"))
	assert.Equal(t, "%3D%253D", encode("=%3D"))
	assert.Equal(t, "abc-._~", encode("abc-._~"))
	assert.Equal(t, "%2B", encode("+"))
}
