package permissions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcgov/sbc-auth-sub003/pkg/httputil"
	"github.com/bcgov/sbc-auth-sub003/pkg/identity"
)

func newPermissionsRouter(t *testing.T, catalog Catalog) (*mux.Router, *Cache) {
	t.Helper()
	cache := NewCache(catalog, nil)
	router := mux.NewRouter()
	NewHandlers(cache, nil).RegisterRoutes(router)
	return router, cache
}

func decodeActions(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	var actions []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &actions))
	return actions
}

func TestGetPermissions(t *testing.T) {
	router, _ := newPermissionsRouter(t, adminCatalog())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/permissions/NSF_SUSPENDED/ADMIN", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.ElementsMatch(t, []string{"deactivate_account", "change_pad_info"}, decodeActions(t, rec))
}

func TestGetPermissionsLowerCaseInput(t *testing.T) {
	router, _ := newPermissionsRouter(t, adminCatalog())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/permissions/nsf_suspended/admin", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.ElementsMatch(t, []string{"deactivate_account", "change_pad_info"}, decodeActions(t, rec))
}

func TestGetPermissionsUpperCaseParam(t *testing.T) {
	router, _ := newPermissionsRouter(t, adminCatalog())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/permissions/ACTIVE/ADMIN?case=upper", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"DEACTIVATE_ACCOUNT"}, decodeActions(t, rec))
}

func TestGetPermissionsInvalidCaseParam(t *testing.T) {
	router, _ := newPermissionsRouter(t, adminCatalog())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/permissions/ACTIVE/ADMIN?case=title", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "BAD_REQUEST", resp.Code)
}

func TestGetPermissionsUnknownPairIsEmptyArray(t *testing.T) {
	router, _ := newPermissionsRouter(t, adminCatalog())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/permissions/ANYTHING/UNKNOWN_TYPE", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestGetPermissionsIncludeAll(t *testing.T) {
	catalog := &fakeCatalog{rules: []PermissionRule{
		{ID: 1, MembershipType: "USER", OrgStatus: "ACTIVE", Action: "view_account"},
		{ID: 2, MembershipType: "STAFF", OrgStatus: "", Action: "view_all_accounts"},
	}}
	router, _ := newPermissionsRouter(t, catalog)

	req := httptest.NewRequest(http.MethodGet, "/permissions/ACTIVE/USER?includeAllPermissions=true", nil)
	ctx := identity.WithUser(req.Context(), &identity.User{Sub: "u1", Roles: []string{"STAFF"}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req.WithContext(ctx))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.ElementsMatch(t, []string{"view_account", "view_all_accounts"}, decodeActions(t, rec))
}

func TestGetPermissionsCatalogFailure(t *testing.T) {
	router, _ := newPermissionsRouter(t, &fakeCatalog{err: errors.New("database unreachable")})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/permissions/ACTIVE/ADMIN", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INTERNAL_ERROR", resp.Code)
}

func TestRebuildCacheEndpoint(t *testing.T) {
	catalog := adminCatalog()
	router, cache := newPermissionsRouter(t, catalog)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/permissions/cache/rebuild", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 2, cache.Len())

	// Rebuilt entries are served without touching the catalog again.
	catalog.findCalls = 0
	_, err := cache.GetOrResolve(context.Background(), "NSF_SUSPENDED", "ADMIN", nil, false)
	require.NoError(t, err)
	assert.Zero(t, catalog.findCalls)
}

func TestRebuildCacheEndpointFailure(t *testing.T) {
	router, _ := newPermissionsRouter(t, &fakeCatalog{err: errors.New("database unreachable")})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/permissions/cache/rebuild", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
