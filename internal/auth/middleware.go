// Package auth authenticates API callers by delegating bearer tokens to the
// fleet backend.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"fleetwear/internal/backend"
	"fleetwear/internal/fleet"
	"fleetwear/internal/logging"
)

// contextKey is the type for context keys in the auth package
type contextKey string

// PrincipalKey is the context key for the authenticated caller.
const PrincipalKey contextKey = "principal"

// TokenCookie is the cookie the dashboards store the bearer token in.
const TokenCookie = "token"

// Principal is the authenticated caller: who they are and the session to
// forward to the backend on their behalf.
type Principal struct {
	User    fleet.User
	Session backend.Session
}

// UserResolver maps a session to its user.
type UserResolver interface {
	Me(ctx context.Context, s backend.Session) (*fleet.User, error)
}

// Authenticator resolves bearer tokens through the backend.
type Authenticator struct {
	resolver UserResolver
	cache    *sessionCache
}

// NewAuthenticator creates an authenticator caching resolved tokens for ttl.
// A ttl of zero disables caching.
func NewAuthenticator(resolver UserResolver, ttl time.Duration) *Authenticator {
	return &Authenticator{resolver: resolver, cache: newSessionCache(ttl)}
}

// Middleware rejects requests without a valid token and stores the
// Principal in the request context.
func (a *Authenticator) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		p, err := a.resolve(r.Context(), token)
		if err != nil {
			if errors.Is(err, backend.ErrUnauthorized) {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			lg := logging.Component("auth")
			lg.Error().Err(err).Msg("resolve session")
			writeError(w, http.StatusBadGateway, "Authentication backend unavailable")
			return
		}
		if p.User.Status == "inactive" {
			writeError(w, http.StatusForbidden, "Account is inactive")
			return
		}

		next(w, r.WithContext(WithPrincipal(r.Context(), p)))
	}
}

func (a *Authenticator) resolve(ctx context.Context, token string) (*Principal, error) {
	s := backend.Session{Token: token}
	if u, ok := a.cache.get(token); ok {
		return &Principal{User: u, Session: s}, nil
	}
	u, err := a.resolver.Me(ctx, s)
	if err != nil {
		return nil, err
	}
	a.cache.put(token, *u)
	return &Principal{User: *u, Session: s}, nil
}

// StartCleanup evicts expired cache entries every interval until ctx ends.
func (a *Authenticator) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.cache.cleanup()
			}
		}
	}()
}

// RequireRole allows only principals holding one of roles. It must run
// inside Middleware.
func RequireRole(next http.HandlerFunc, roles ...fleet.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFrom(r.Context())
		if p == nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if !slices.Contains(roles, p.User.Role) {
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
		next(w, r)
	}
}

// TokenFromRequest extracts the bearer token from the Authorization header
// or the token cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// PrincipalFrom returns the principal stored by Middleware, or nil.
func PrincipalFrom(ctx context.Context) *Principal {
	if p, ok := ctx.Value(PrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
