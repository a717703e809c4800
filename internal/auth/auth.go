// Package auth validates the bearer tokens that guard the run journal API.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ScopeRunsRead grants read access to the run journal.
const ScopeRunsRead = "runs:read"

// Config is the shared HS256 secret and the issuer every accepted token must name.
type Config struct {
	Secret string
	Issuer string
}

// Claims identifies the caller of a request.
type Claims struct {
	Subject   string
	Scopes    map[string]struct{}
	ExpiresAt time.Time
}

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// scopeSet accepts either a JSON array of scopes or a single space-delimited string.
type scopeSet map[string]struct{}

func (s *scopeSet) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		var joined string
		if err := json.Unmarshal(b, &joined); err != nil {
			return fmt.Errorf("scopes: %w", err)
		}
		list = strings.Fields(joined)
	}
	set := make(scopeSet, len(list))
	for _, scope := range list {
		if scope = strings.TrimSpace(scope); scope != "" {
			set[scope] = struct{}{}
		}
	}
	*s = set
	return nil
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Scopes scopeSet `json:"scopes"`
}

// Parse verifies token against cfg. Tokens must be HS256, carry a subject and an expiry, and
// come from cfg.Issuer.
func Parse(token string, cfg Config) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	var tc tokenClaims
	if _, err := parser.ParseWithClaims(token, &tc, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if tc.Subject == "" {
		return nil, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}

	return &Claims{
		Subject:   tc.Subject,
		Scopes:    tc.Scopes,
		ExpiresAt: tc.ExpiresAt.Time,
	}, nil
}

// HasScope reports whether the caller was granted scope. A nil Claims has no scopes.
func (c *Claims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	_, ok := c.Scopes[scope]
	return ok
}

type claimsContextKey struct{}

// WithClaims attaches the authenticated caller to ctx.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// FromContext returns the caller attached by WithClaims.
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*Claims)
	return claims, ok && claims != nil
}
