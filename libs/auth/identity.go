package auth

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
)

type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleProvider, RoleAdmin:
		return true
	}
	return false
}

const (
	HeaderUserID = "X-User-Id"
	HeaderRole   = "X-Role"
)

var ErrNoIdentity = errors.New("missing or invalid identity headers")

// Actor is the authenticated party performing an operation.
type Actor struct {
	ID   int64
	Role Role
}

func (a Actor) Is(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// ActorFromRequest reads the identity the gateway injected after verifying the token.
func ActorFromRequest(r *http.Request) (Actor, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get(HeaderUserID)), 10, 64)
	if err != nil || id <= 0 {
		return Actor{}, ErrNoIdentity
	}
	role := Role(strings.TrimSpace(r.Header.Get(HeaderRole)))
	if !role.Valid() {
		return Actor{}, ErrNoIdentity
	}
	return Actor{ID: id, Role: role}, nil
}

// RequireAuth verifies the bearer token and replaces any client-supplied
// identity headers with the verified claims.
func RequireAuth(v *Verifier) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			token = strings.TrimSpace(token)
			if !ok || token == "" {
				httpx.WriteError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
				return
			}
			claims, err := v.Verify(token)
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			if !Role(claims.Role).Valid() {
				httpx.WriteError(w, http.StatusForbidden, "unknown role")
				return
			}

			r.Header.Del(HeaderUserID)
			r.Header.Del(HeaderRole)
			r.Header.Set(HeaderUserID, claims.Subject)
			r.Header.Set(HeaderRole, claims.Role)
			next.ServeHTTP(w, r)
		})
	}
}

func RequireRole(roles ...Role) httpx.Middleware {
	allowed := map[Role]struct{}{}
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := allowed[Role(r.Header.Get(HeaderRole))]; !ok {
				httpx.WriteError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
