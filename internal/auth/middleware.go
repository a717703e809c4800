package auth

import (
	"net/http"
	"strings"
)

// Skipper lets a request through without a token.
type Skipper func(r *http.Request) bool

// Middleware rejects requests without a valid bearer token and attaches the caller's claims to
// the rest.
type Middleware struct {
	Config  Config
	Skipper Skipper
}

// NewMiddleware leaves /healthz and /metrics open so probes and scrapers need no token.
func NewMiddleware(cfg Config) Middleware {
	return Middleware{Config: cfg, Skipper: openPath}
}

func openPath(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/metrics":
		return true
	}
	return false
}

// Wrap guards next.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skipper != nil && m.Skipper(r) {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := m.authenticate(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="runs"`)
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func (m Middleware) authenticate(r *http.Request) (*Claims, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return nil, ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return nil, ErrInvalidToken
	}
	return Parse(token, m.Config)
}
