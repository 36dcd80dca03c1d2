// Package identity carries the authenticated caller's identity through a
// request. The identity provider itself (token issuing and validation) sits in
// front of this service at the gateway; this package only models what the
// trusted gateway forwards.
package identity

import (
	"context"
	"strings"

	"github.com/bcgov/sbc-auth-sub003/pkg/contextkeys"
)

// User is the authenticated caller as asserted by the gateway.
type User struct {
	// Sub is the identity provider subject (keycloak guid).
	Sub string `json:"sub"`
	// Username is the login name presented by the gateway.
	Username string `json:"username"`
	// Roles are identity-level roles carried on the token (e.g. STAFF),
	// orthogonal to any org membership the user holds.
	Roles []string `json:"roles"`
}

// HasRole reports whether the user carries the given identity-level role.
// Comparison is case-insensitive because historical tokens are inconsistently
// cased.
func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// WithUser adds the identity to the context.
func WithUser(ctx context.Context, user *User) context.Context {
	return contextkeys.WithIdentity(ctx, user)
}

// FromContext retrieves the identity from the context, or nil when the
// request was anonymous.
func FromContext(ctx context.Context) *User {
	user, ok := ctx.Value(contextkeys.IdentityKey).(*User)
	if !ok {
		return nil
	}
	return user
}
