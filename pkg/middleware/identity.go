package middleware

import (
	"net/http"
	"strings"

	"github.com/bcgov/sbc-auth-sub003/pkg/httputil"
	"github.com/bcgov/sbc-auth-sub003/pkg/identity"
)

// Header names set by the trusted API gateway after it validates the caller's
// token. Requests reach this service only through the gateway, so the headers
// are authoritative.
const (
	HeaderUserSub   = "X-User-Sub"
	HeaderUserName  = "X-User-Name"
	HeaderUserRoles = "X-User-Roles"
)

// IdentityMiddleware extracts the caller's identity from gateway headers.
type IdentityMiddleware struct {
	// optional permits anonymous requests through; handlers that need an
	// identity still reject them individually.
	optional bool
}

// NewIdentityMiddleware creates a new identity middleware.
func NewIdentityMiddleware(optional bool) *IdentityMiddleware {
	return &IdentityMiddleware{optional: optional}
}

// Handler wraps an HTTP handler with identity extraction.
func (m *IdentityMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub := r.Header.Get(HeaderUserSub)
		if sub == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "caller identity required")
			return
		}

		user := &identity.User{
			Sub:      sub,
			Username: r.Header.Get(HeaderUserName),
			Roles:    parseRoles(r.Header.Get(HeaderUserRoles)),
		}

		ctx := identity.WithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireIdentity rejects anonymous requests. Used on routes mounted behind an
// optional IdentityMiddleware.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity.FromContext(r.Context()) == nil {
			httputil.WriteUnauthorized(w, "caller identity required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects callers that do not carry the given identity-level role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := identity.FromContext(r.Context())
			if user == nil {
				httputil.WriteUnauthorized(w, "caller identity required")
				return
			}
			if !user.HasRole(role) {
				httputil.WriteForbidden(w, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parseRoles(header string) []string {
	if header == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	roles := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			roles = append(roles, p)
		}
	}
	return roles
}
