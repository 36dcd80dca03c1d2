package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcgov/sbc-auth-sub003/pkg/identity"
)

func TestIdentityMiddlewareExtractsUser(t *testing.T) {
	var captured *identity.User
	handler := NewIdentityMiddleware(false).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = identity.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserSub, "1b20db59-19a0-4f9a-a6c9-96f4ff8f4a23")
	req.Header.Set(HeaderUserName, "bcsc/abc123")
	req.Header.Set(HeaderUserRoles, "staff, create_accounts")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, captured)
	assert.Equal(t, "1b20db59-19a0-4f9a-a6c9-96f4ff8f4a23", captured.Sub)
	assert.Equal(t, "bcsc/abc123", captured.Username)
	assert.Equal(t, []string{"staff", "create_accounts"}, captured.Roles)
	assert.True(t, captured.HasRole("STAFF"))
}

func TestIdentityMiddlewareRejectsAnonymous(t *testing.T) {
	handler := NewIdentityMiddleware(false).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIdentityMiddlewareOptionalAllowsAnonymous(t *testing.T) {
	var reached bool
	handler := NewIdentityMiddleware(true).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		assert.Nil(t, identity.FromContext(r.Context()))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, reached)
}

func TestRequireRole(t *testing.T) {
	protected := RequireRole("staff")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("allows matching role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := identity.WithUser(req.Context(), &identity.User{Sub: "u1", Roles: []string{"STAFF"}})
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req.WithContext(ctx))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("forbids missing role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := identity.WithUser(req.Context(), &identity.User{Sub: "u1", Roles: []string{"basic"}})
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req.WithContext(ctx))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("rejects anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
