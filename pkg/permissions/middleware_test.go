package permissions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcgov/sbc-auth-sub003/pkg/identity"
)

type fakeMembershipSource struct {
	membershipType string
	orgStatus      string
	err            error
}

func (f *fakeMembershipSource) MembershipFor(ctx context.Context, userSub string, orgID int64) (string, string, error) {
	return f.membershipType, f.orgStatus, f.err
}

func newGuardedRouter(t *testing.T, source MembershipSource, actions ...string) *mux.Router {
	t.Helper()

	cache := NewCache(adminCatalog(), nil)
	require.NoError(t, cache.BuildAll(context.Background()))

	router := mux.NewRouter()
	guard := RequireActions(cache, source, actions...)
	router.Handle("/orgs/{orgId}/pad", guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))).Methods("PUT")
	return router
}

func asUser(req *http.Request) *http.Request {
	ctx := identity.WithUser(req.Context(), &identity.User{Sub: "u1"})
	return req.WithContext(ctx)
}

func TestRequireActionsAllows(t *testing.T) {
	source := &fakeMembershipSource{membershipType: "ADMIN", orgStatus: "NSF_SUSPENDED"}
	router := newGuardedRouter(t, source, "change_pad_info")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPut, "/orgs/42/pad", nil)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireActionsForbidsMissingAction(t *testing.T) {
	// ACTIVE orgs only carry the wildcard ADMIN rule; change_pad_info is
	// granted under NSF_SUSPENDED alone.
	source := &fakeMembershipSource{membershipType: "ADMIN", orgStatus: "ACTIVE"}
	router := newGuardedRouter(t, source, "change_pad_info")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPut, "/orgs/42/pad", nil)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireActionsCaseInsensitiveActionNames(t *testing.T) {
	source := &fakeMembershipSource{membershipType: "ADMIN", orgStatus: "NSF_SUSPENDED"}
	router := newGuardedRouter(t, source, "CHANGE_PAD_INFO")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPut, "/orgs/42/pad", nil)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireActionsForbidsNonMember(t *testing.T) {
	source := &fakeMembershipSource{err: ErrNoMembership}
	router := newGuardedRouter(t, source, "change_pad_info")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPut, "/orgs/42/pad", nil)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireActionsRejectsAnonymous(t *testing.T) {
	source := &fakeMembershipSource{membershipType: "ADMIN", orgStatus: "ACTIVE"}
	router := newGuardedRouter(t, source, "deactivate_account")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/orgs/42/pad", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireActionsRejectsBadOrgID(t *testing.T) {
	source := &fakeMembershipSource{membershipType: "ADMIN", orgStatus: "ACTIVE"}
	router := newGuardedRouter(t, source, "deactivate_account")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPut, "/orgs/not-a-number/pad", nil)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
