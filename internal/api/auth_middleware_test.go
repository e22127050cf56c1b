package api

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testIssuer   = "https://securetoken.google.com/el-maiten"
	testAudience = "el-maiten"
)

type jwksFixture struct {
	key      *rsa.PrivateKey
	server   *httptest.Server
	requests atomic.Int32
}

func newJWKSFixture(t *testing.T) *jwksFixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	f := &jwksFixture{key: key}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"keys": []map[string]string{{
				"kid": "key-1",
				"kty": "RSA",
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			}},
		})
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *jwksFixture) token(t *testing.T, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(f.key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "firebase-uid-1",
		"email": "Vecina@Maiten.cl",
		"iss":   testIssuer,
		"aud":   testAudience,
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	}
}

func TestJWKSVerifier(t *testing.T) {
	f := newJWKSFixture(t)
	verifier := NewJWKSVerifier(JWKSConfig{URL: f.server.URL, Issuer: testIssuer, Audience: testAudience})

	identity, err := verifier.Verify(context.Background(), f.token(t, "key-1", validClaims()))
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if identity.Subject != "firebase-uid-1" || identity.Email != "vecina@maiten.cl" {
		t.Fatalf("unexpected identity %+v", identity)
	}

	if _, err := verifier.Verify(context.Background(), f.token(t, "key-1", validClaims())); err != nil {
		t.Fatalf("expected cached key to verify, got %v", err)
	}
	if got := f.requests.Load(); got != 1 {
		t.Fatalf("expected one JWKS fetch, got %d", got)
	}
}

func TestJWKSVerifierRejects(t *testing.T) {
	f := newJWKSFixture(t)
	verifier := NewJWKSVerifier(JWKSConfig{URL: f.server.URL, Issuer: testIssuer, Audience: testAudience})

	tests := []struct {
		name   string
		kid    string
		mutate func(jwt.MapClaims)
		want   error
	}{
		{"expired", "key-1", func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() }, jwt.ErrTokenExpired},
		{"no expiry", "key-1", func(c jwt.MapClaims) { delete(c, "exp") }, jwt.ErrTokenRequiredClaimMissing},
		{"wrong issuer", "key-1", func(c jwt.MapClaims) { c["iss"] = "https://evil.example" }, jwt.ErrTokenInvalidIssuer},
		{"wrong audience", "key-1", func(c jwt.MapClaims) { c["aud"] = "other-project" }, jwt.ErrTokenInvalidAudience},
		{"missing subject", "key-1", func(c jwt.MapClaims) { delete(c, "sub") }, ErrInvalidToken},
		{"unknown kid", "key-2", func(jwt.MapClaims) {}, ErrUnknownSigningKey},
		{"no kid", "", func(jwt.MapClaims) {}, ErrUnknownSigningKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			tt.mutate(claims)
			_, err := verifier.Verify(context.Background(), f.token(t, tt.kid, claims))
			if !errors.Is(err, ErrInvalidToken) || !errors.Is(err, tt.want) {
				t.Fatalf("expected %v wrapped in ErrInvalidToken, got %v", tt.want, err)
			}
		})
	}

	_, err := verifier.Verify(context.Background(), "not-a-jwt")
	if !errors.Is(err, ErrInvalidToken) || !errors.Is(err, jwt.ErrTokenMalformed) {
		t.Fatalf("expected malformed token error, got %v", err)
	}
}

func TestJWKSVerifierAudienceList(t *testing.T) {
	f := newJWKSFixture(t)
	verifier := NewJWKSVerifier(JWKSConfig{URL: f.server.URL, Issuer: testIssuer, Audience: testAudience})

	claims := validClaims()
	claims["aud"] = []string{"other-project", testAudience}
	if _, err := verifier.Verify(context.Background(), f.token(t, "key-1", claims)); err != nil {
		t.Fatalf("expected audience list to match, got %v", err)
	}
}

func TestJWKSVerifierKeySetUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	f := newJWKSFixture(t)
	verifier := NewJWKSVerifier(JWKSConfig{URL: server.URL, Issuer: testIssuer, Audience: testAudience})

	_, err := verifier.Verify(context.Background(), f.token(t, "key-1", validClaims()))
	if !errors.Is(err, ErrKeySetUnavailable) || !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected unavailable key set, got %v", err)
	}
}

func TestKeySetRefetchesAfterExpiry(t *testing.T) {
	f := newJWKSFixture(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	keys := newKeySet(f.server.URL, f.server.Client(), time.Minute)
	keys.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if _, err := keys.lookup(context.Background(), "key-1"); err != nil {
			t.Fatalf("lookup %d: %v", i, err)
		}
	}
	if got := f.requests.Load(); got != 1 {
		t.Fatalf("expected one fetch while fresh, got %d", got)
	}

	now = now.Add(2 * time.Minute)
	if _, err := keys.lookup(context.Background(), "key-1"); err != nil {
		t.Fatalf("lookup after expiry: %v", err)
	}
	if got := f.requests.Load(); got != 2 {
		t.Fatalf("expected a refetch after expiry, got %d fetches", got)
	}
}

func TestJSONWebKeyRejectsBadExponent(t *testing.T) {
	jwk := jsonWebKey{KeyID: "k", KeyType: "RSA", Modulus: "AQAB", Exp: base64.RawURLEncoding.EncodeToString([]byte{1})}
	if _, err := jwk.rsaPublicKey(); err == nil {
		t.Fatal("expected exponent 1 to be rejected")
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"Bearer  abc ", "abc", true},
		{"bearer abc", "", false},
		{"Bearer   ", "", false},
		{"Basic abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := bearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("bearerToken(%q) = %q, %v", tt.header, got, ok)
		}
	}
}
