// Package testhelpers provides utilities for testing deal-triage components.
package testhelpers

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestIssuer signs RS256 tokens and serves the matching JWKS document.
type TestIssuer struct {
	Key     *rsa.PrivateKey
	KeyID   string
	Server  *httptest.Server
	JWKSURL string
}

// NewTestIssuer starts a JWKS server that is closed when the test ends.
func NewTestIssuer(t *testing.T) *TestIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}

	issuer := &TestIssuer{Key: key, KeyID: "test-key"}
	jwks := map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"kid": issuer.KeyID,
			"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}},
	}

	issuer.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(issuer.Server.Close)
	issuer.JWKSURL = issuer.Server.URL + "/.well-known/jwks.json"

	return issuer
}

// Sign returns an RS256 token for sub, valid for ttl (negative ttl yields an expired token).
func (i *TestIssuer) Sign(t *testing.T, sub string, ttl time.Duration) string {
	t.Helper()

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Subject:   sub,
		Issuer:    i.Server.URL,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	token.Header["kid"] = i.KeyID

	signed, err := token.SignedString(i.Key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}
