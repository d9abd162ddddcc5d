// ABOUTME: Tests for inbound webhook token validation
// ABOUTME: Signs tokens with a generated key published through a fake JWKS endpoint

package connector

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannelAuthority struct {
	key *rsa.PrivateKey
	srv *httptest.Server
}

func newFakeChannelAuthority(t *testing.T) *fakeChannelAuthority {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	a := &fakeChannelAuthority{key: key}
	mux := http.NewServeMux()
	mux.HandleFunc("/metadata", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"jwks_uri":%q}`, a.srv.URL+"/keys")
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, r *http.Request) {
		n := base64.RawURLEncoding.EncodeToString(key.N.Bytes())
		e := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes())
		fmt.Fprintf(w, `{"keys":[{"kid":"key-1","kty":"RSA","n":%q,"e":%q}]}`, n, e)
	})
	a.srv = httptest.NewServer(mux)
	t.Cleanup(a.srv.Close)
	return a
}

func (a *fakeChannelAuthority) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "key-1"
	signed, err := token.SignedString(a.key)
	require.NoError(t, err)
	return signed
}

func validClaims(appID string) jwt.MapClaims {
	return jwt.MapClaims{
		"iss": "https://api.botframework.com",
		"aud": appID,
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
}

func TestValidate_AcceptsChannelToken(t *testing.T) {
	authority := newFakeChannelAuthority(t)
	v := NewTokenValidatorWithMetadataURL("app-1", authority.srv.URL+"/metadata")

	token := authority.sign(t, validClaims("app-1"))
	err := v.Validate(context.Background(), "Bearer "+token)
	assert.NoError(t, err)
}

func TestValidate_RejectsWrongAudience(t *testing.T) {
	authority := newFakeChannelAuthority(t)
	v := NewTokenValidatorWithMetadataURL("app-1", authority.srv.URL+"/metadata")

	token := authority.sign(t, validClaims("some-other-app"))
	err := v.Validate(context.Background(), "Bearer "+token)
	assert.Error(t, err)
}

func TestValidate_RejectsWrongIssuer(t *testing.T) {
	authority := newFakeChannelAuthority(t)
	v := NewTokenValidatorWithMetadataURL("app-1", authority.srv.URL+"/metadata")

	claims := validClaims("app-1")
	claims["iss"] = "https://evil.example.com"
	err := v.Validate(context.Background(), "Bearer "+authority.sign(t, claims))
	assert.Error(t, err)
}

func TestValidate_RejectsExpiredToken(t *testing.T) {
	authority := newFakeChannelAuthority(t)
	v := NewTokenValidatorWithMetadataURL("app-1", authority.srv.URL+"/metadata")

	claims := validClaims("app-1")
	claims["exp"] = time.Now().Add(-time.Hour).Unix()
	err := v.Validate(context.Background(), "Bearer "+authority.sign(t, claims))
	assert.Error(t, err)
}

func TestValidate_RejectsUnknownKey(t *testing.T) {
	authority := newFakeChannelAuthority(t)
	v := NewTokenValidatorWithMetadataURL("app-1", authority.srv.URL+"/metadata")

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims("app-1"))
	token.Header["kid"] = "key-unknown"
	signed, err := token.SignedString(otherKey)
	require.NoError(t, err)

	err = v.Validate(context.Background(), "Bearer "+signed)
	assert.Error(t, err)
}

func TestValidate_RejectsMissingBearerPrefix(t *testing.T) {
	v := NewTokenValidator("app-1")
	err := v.Validate(context.Background(), "")
	assert.Error(t, err)
}
