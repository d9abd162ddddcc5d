// ABOUTME: Inbound request authentication for the connector webhook
// ABOUTME: Validates Bot Framework JWTs against the channel's published signing keys

package connector

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultOpenIDMetadataURL = "https://login.botframework.com/v1/.well-known/openidconfiguration"

// channel-issued tokens carry this issuer
const channelIssuer = "https://api.botframework.com"

// TokenValidator verifies bearer tokens on inbound connector requests
type TokenValidator struct {
	appID       string
	metadataURL string
	http        *http.Client

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	refreshed time.Time
}

// NewTokenValidator creates a validator for tokens addressed to appID
func NewTokenValidator(appID string) *TokenValidator {
	return &TokenValidator{
		appID:       appID,
		metadataURL: defaultOpenIDMetadataURL,
		http:        &http.Client{Timeout: 30 * time.Second},
	}
}

// NewTokenValidatorWithMetadataURL is NewTokenValidator with an overridable
// metadata endpoint, for tests.
func NewTokenValidatorWithMetadataURL(appID, metadataURL string) *TokenValidator {
	v := NewTokenValidator(appID)
	v.metadataURL = metadataURL
	return v
}

// Validate checks the Authorization header of an inbound request. It verifies
// the RS256 signature against the channel's published keys and requires the
// expected issuer and audience.
func (v *TokenValidator) Validate(ctx context.Context, authorizationHeader string) error {
	raw, ok := strings.CutPrefix(authorizationHeader, "Bearer ")
	if !ok {
		return fmt.Errorf("missing bearer token")
	}

	_, err := jwt.Parse(raw,
		func(token *jwt.Token) (interface{}, error) {
			kid, _ := token.Header["kid"].(string)
			if kid == "" {
				return nil, fmt.Errorf("token has no key id")
			}
			return v.signingKey(ctx, kid)
		},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(channelIssuer),
		jwt.WithAudience(v.appID),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("invalid connector token: %w", err)
	}
	return nil
}

// signingKey returns the published key for kid, refreshing the key set when
// the kid is unknown or the cache is older than a day.
func (v *TokenValidator) signingKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if key, ok := v.keys[kid]; ok && time.Since(v.refreshed) < 24*time.Hour {
		return key, nil
	}

	if err := v.refreshKeysLocked(ctx); err != nil {
		return nil, err
	}
	key, ok := v.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown signing key %q", kid)
	}
	return key, nil
}

func (v *TokenValidator) refreshKeysLocked(ctx context.Context) error {
	var metadata struct {
		JWKSURI string `json:"jwks_uri"`
	}
	if err := v.fetchJSON(ctx, v.metadataURL, &metadata); err != nil {
		return fmt.Errorf("fetching openid metadata: %w", err)
	}

	var jwks struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := v.fetchJSON(ctx, metadata.JWKSURI, &jwks); err != nil {
		return fmt.Errorf("fetching signing keys: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := rsaKeyFromJWK(k.N, k.E)
		if err != nil {
			return fmt.Errorf("decoding key %q: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}

	v.keys = keys
	v.refreshed = time.Now()
	return nil
}

func (v *TokenValidator) fetchJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := v.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// rsaKeyFromJWK builds an RSA public key from base64url modulus and exponent
func rsaKeyFromJWK(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nb),
		E: int(new(big.Int).SetBytes(eb).Int64()),
	}, nil
}
