package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Fblink88/ComunidadElMaiten/internal/domain"
)

var (
	// ErrInvalidToken covers malformed, expired, and wrongly scoped tokens.
	ErrInvalidToken = errors.New("identity token is invalid or expired")
	// ErrUnknownSigningKey means the token names a key the provider does not publish.
	ErrUnknownSigningKey = errors.New("identity token signed with an unknown key")
	// ErrKeySetUnavailable means the provider's signing keys could not be fetched.
	ErrKeySetUnavailable = errors.New("identity key set unavailable")
)

type contextKey string

const (
	identityContextKey contextKey = "identity"
	personContextKey   contextKey = "person"
)

const tokenLeeway = 30 * time.Second

// Identity is what the identity provider vouches for: a stable subject and,
// when the token carries one, the verified email address.
type Identity struct {
	Subject string
	Email   string
}

// TokenVerifier turns a bearer token into an Identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// JWKSConfig describes where signing keys live and which claims are expected.
type JWKSConfig struct {
	URL      string
	Issuer   string
	Audience string
}

// identityClaims are the claims the provider puts in its ID tokens.
type identityClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWKSVerifier validates RS256 identity tokens against the provider's
// published signing keys.
type JWKSVerifier struct {
	keys   *keySet
	parser *jwt.Parser
}

func NewJWKSVerifier(cfg JWKSConfig) *JWKSVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithLeeway(tokenLeeway),
		jwt.WithExpirationRequired(),
	}
	if issuer := strings.TrimSpace(cfg.Issuer); issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience := strings.TrimSpace(cfg.Audience); audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	return &JWKSVerifier{
		keys:   newKeySet(strings.TrimSpace(cfg.URL), &http.Client{Timeout: 5 * time.Second}, 10*time.Minute),
		parser: jwt.NewParser(opts...),
	}
}

// Verify checks signature, expiry, issuer, and audience of the token and
// returns the identity it carries.
func (v *JWKSVerifier) Verify(ctx context.Context, tokenString string) (Identity, error) {
	var claims identityClaims
	_, err := v.parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if strings.TrimSpace(kid) == "" {
			return nil, fmt.Errorf("%w: no kid header", ErrUnknownSigningKey)
		}
		return v.keys.lookup(ctx, kid)
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return Identity{}, fmt.Errorf("%w: subject claim missing", ErrInvalidToken)
	}
	return Identity{Subject: subject, Email: domain.NormalizeEmail(claims.Email)}, nil
}

// AuthMiddleware rejects requests without a valid bearer token and stores the
// verified Identity in the request context.
func AuthMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(strings.TrimSpace(r.Header.Get("Authorization")))
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				respondWithDetail(w, http.StatusUnauthorized, "Authorization required")
				return
			}

			identity, err := verifier.Verify(r.Context(), tokenString)
			if err != nil {
				if errors.Is(err, ErrKeySetUnavailable) {
					slog.WarnContext(r.Context(), "identity provider keys unavailable", "error", err)
				}
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				respondWithDetail(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext returns the verified identity of the request.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(Identity)
	return identity, ok
}

// PersonFromContext returns the Person resolved for the request's identity.
func PersonFromContext(ctx context.Context) (domain.Person, bool) {
	person, ok := ctx.Value(personContextKey).(domain.Person)
	return person, ok
}

func withPerson(ctx context.Context, person domain.Person) context.Context {
	return context.WithValue(ctx, personContextKey, person)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || scheme != "Bearer" {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
