package web

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/afroisalreadyinu/drapes/model"
)

func generateRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func generateECKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func rsaKeyToJWK(kid string, pub *rsa.PublicKey) map[string]any {
	return map[string]any{
		"kid": kid,
		"kty": "RSA",
		"alg": "RS256",
		"use": "sig",
		"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

func ecKeyToJWK(kid string, pub *ecdsa.PublicKey) map[string]any {
	return map[string]any{
		"kid": kid,
		"kty": "EC",
		"crv": "P-256",
		"use": "sig",
		"x":   base64.RawURLEncoding.EncodeToString(pub.X.Bytes()),
		"y":   base64.RawURLEncoding.EncodeToString(pub.Y.Bytes()),
	}
}

func startJWKSServer(t *testing.T, keys ...map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"keys": keys})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signToken(t *testing.T, key any, method jwt.SigningMethod, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	token.Header["kid"] = kid
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func testAuthCfg() AuthConfig {
	return AuthConfig{
		Issuer:     "https://auth.example.com",
		Audience:   "drapes",
		Algorithms: []string{"RS256", "ES256"},
	}
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub": "alice",
		"iss": "https://auth.example.com",
		"aud": "drapes",
		"exp": jwt.NewNumericDate(time.Now().Add(1 * time.Hour)),
		"iat": jwt.NewNumericDate(time.Now()),
	}
}

// memberDirectory resolves the sub claim against a fixed set of members.
type memberDirectory map[string]member

func (d memberDirectory) CurrentSubject(_ context.Context, claims map[string]any) (model.Entity, error) {
	sub, _ := claims["sub"].(string)
	m, ok := d[sub]
	if !ok {
		return nil, fmt.Errorf("unknown subject %q", sub)
	}
	return m, nil
}

// actorRecorder captures the actor the pipeline would see downstream.
func actorRecorder(actor *any) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*actor = model.ActorFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestJWKSClientGetKey(t *testing.T) {
	rsaKey := generateRSAKey(t)
	ecKey := generateECKey(t)
	jwks := startJWKSServer(t,
		rsaKeyToJWK("rsa-1", &rsaKey.PublicKey),
		ecKeyToJWK("ec-1", &ecKey.PublicKey),
	)
	client := NewJWKSClient(jwks.URL, time.Hour)

	key, err := client.GetKey("rsa-1")
	require.NoError(t, err)
	pub, ok := key.(*rsa.PublicKey)
	require.True(t, ok, "key type = %T, want *rsa.PublicKey", key)
	assert.Zero(t, pub.N.Cmp(rsaKey.PublicKey.N), "RSA modulus mismatch")

	key, err = client.GetKey("ec-1")
	require.NoError(t, err)
	ecPub, ok := key.(*ecdsa.PublicKey)
	require.True(t, ok, "key type = %T, want *ecdsa.PublicKey", key)
	assert.Zero(t, ecPub.X.Cmp(ecKey.PublicKey.X), "EC X coordinate mismatch")

	_, err = client.GetKey("absent")
	assert.Error(t, err, "unknown key id must not resolve")
}

func TestJWKSClientCachesFetches(t *testing.T) {
	fetches := 0
	rsaKey := generateRSAKey(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]any{rsaKeyToJWK("cached", &rsaKey.PublicKey)},
		})
	}))
	t.Cleanup(srv.Close)

	client := NewJWKSClient(srv.URL, time.Hour)
	client.minRefresh = 0

	_, err := client.GetKey("cached")
	require.NoError(t, err)
	_, err = client.GetKey("cached")
	require.NoError(t, err)

	assert.Equal(t, 1, fetches, "second lookup must hit the cache")
}

func TestAuthenticateResolvesActor(t *testing.T) {
	rsaKey := generateRSAKey(t)
	jwks := startJWKSServer(t, rsaKeyToJWK("signing", &rsaKey.PublicKey))
	client := NewJWKSClient(jwks.URL, time.Hour)
	subjects := memberDirectory{"alice": {Name: "alice", Admin: true}}

	var actor any
	var claims map[string]any
	handler := Authenticate(testAuthCfg(), client, subjects, zap.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor = model.ActorFrom(r.Context())
			claims = ClaimsFrom(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, rsaKey, jwt.SigningMethodRS256, "signing", validClaims()))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, member{Name: "alice", Admin: true}, actor)
	require.NotNil(t, claims)
	assert.Equal(t, "alice", claims["sub"])
}

func TestAuthenticateContinuesAnonymously(t *testing.T) {
	rsaKey := generateRSAKey(t)
	otherKey := generateRSAKey(t)
	jwks := startJWKSServer(t, rsaKeyToJWK("signing", &rsaKey.PublicKey))
	subjects := memberDirectory{"alice": {Name: "alice"}}

	expired := validClaims()
	expired["exp"] = jwt.NewNumericDate(time.Now().Add(-1 * time.Hour))
	wrongIssuer := validClaims()
	wrongIssuer["iss"] = "https://elsewhere.example.com"
	unknownSub := validClaims()
	unknownSub["sub"] = "mallory"

	tests := []struct {
		name  string
		token string
	}{
		{"no token", ""},
		{"not a bearer token", "Basic dXNlcjpwYXNz"},
		{"wrong signing key", "Bearer " + signToken(t, otherKey, jwt.SigningMethodRS256, "signing", validClaims())},
		{"unknown kid", "Bearer " + signToken(t, rsaKey, jwt.SigningMethodRS256, "other", validClaims())},
		{"expired", "Bearer " + signToken(t, rsaKey, jwt.SigningMethodRS256, "signing", expired)},
		{"wrong issuer", "Bearer " + signToken(t, rsaKey, jwt.SigningMethodRS256, "signing", wrongIssuer)},
		{"unknown subject", "Bearer " + signToken(t, rsaKey, jwt.SigningMethodRS256, "signing", unknownSub)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewJWKSClient(jwks.URL, time.Hour)
			var actor any
			handler := Authenticate(testAuthCfg(), client, subjects, zap.NewNop())(actorRecorder(&actor))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", tt.token)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			// Rejection is the permission gate's job; the request goes on
			// as the anonymous actor.
			assert.Equal(t, http.StatusOK, w.Code)
			assert.True(t, model.IsAnonymous(actor), "actor = %#v, want anonymous", actor)
		})
	}
}

func TestAuthenticateHonorsAllowedAlgorithms(t *testing.T) {
	ecKey := generateECKey(t)
	jwks := startJWKSServer(t, ecKeyToJWK("ec-signing", &ecKey.PublicKey))
	client := NewJWKSClient(jwks.URL, time.Hour)
	subjects := memberDirectory{"alice": {Name: "alice"}}

	cfg := testAuthCfg()
	cfg.Algorithms = []string{"RS256"}

	var actor any
	handler := Authenticate(cfg, client, subjects, zap.NewNop())(actorRecorder(&actor))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, ecKey, jwt.SigningMethodES256, "ec-signing", validClaims()))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, model.IsAnonymous(actor), "ES256 token verified despite RS256-only config")
}
