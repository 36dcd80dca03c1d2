package permissions

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/bcgov/sbc-auth-sub003/pkg/httputil"
	"github.com/bcgov/sbc-auth-sub003/pkg/identity"
)

// ErrNoMembership is returned by a MembershipSource when the user holds no
// active membership in the org.
var ErrNoMembership = errors.New("no active membership")

// MembershipSource looks up the caller's active membership within an org.
type MembershipSource interface {
	MembershipFor(ctx context.Context, userSub string, orgID int64) (membershipType, orgStatus string, err error)
}

// RequireActions returns a per-route guard admitting the request only when
// the caller's membership in the org named by the {orgId} path parameter
// resolves to every listed action. This is the single enforcement point for
// route-level permission checks; handlers never re-check roles themselves.
func RequireActions(cache *Cache, source MembershipSource, actions ...string) func(http.Handler) http.Handler {
	required := make([]string, len(actions))
	for i, action := range actions {
		required[i] = NormalizeAction(action)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			user := identity.FromContext(ctx)
			if user == nil {
				httputil.WriteUnauthorized(w, "caller identity required")
				return
			}

			orgID, err := strconv.ParseInt(mux.Vars(r)["orgId"], 10, 64)
			if err != nil {
				httputil.WriteBadRequest(w, "invalid org id")
				return
			}

			membershipType, orgStatus, err := source.MembershipFor(ctx, user.Sub, orgID)
			if errors.Is(err, ErrNoMembership) {
				httputil.WriteForbidden(w, "no active membership in org")
				return
			}
			if err != nil {
				httputil.WriteInternalError(w, err)
				return
			}

			allowed, err := cache.GetOrResolve(ctx, orgStatus, membershipType, nil, false)
			if err != nil {
				httputil.WriteInternalError(w, err)
				return
			}

			for _, action := range required {
				if !contains(allowed, action) {
					httputil.WriteForbidden(w, "insufficient permissions")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func contains(actions []string, action string) bool {
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}
