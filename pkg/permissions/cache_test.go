package permissions

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcgov/sbc-auth-sub003/pkg/identity"
)

func TestBuildAllPopulatesEveryCatalogPair(t *testing.T) {
	cache := NewCache(adminCatalog(), nil)

	require.NoError(t, cache.BuildAll(context.Background()))
	assert.Equal(t, 2, cache.Len())

	wildcard, ok := cache.Get("", "ADMIN")
	require.True(t, ok)
	assert.Equal(t, []string{"deactivate_account"}, wildcard)

	suspended, ok := cache.Get("NSF_SUSPENDED", "ADMIN")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"deactivate_account", "change_pad_info"}, suspended)
}

func TestGetOrResolveAfterBuildAllNeverQueriesCatalog(t *testing.T) {
	catalog := adminCatalog()
	cache := NewCache(catalog, nil)
	require.NoError(t, cache.BuildAll(context.Background()))

	catalog.findCalls = 0
	catalog.listPairsCalls = 0

	actions, err := cache.GetOrResolve(context.Background(), "NSF_SUSPENDED", "ADMIN", nil, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"deactivate_account", "change_pad_info"}, actions)

	_, err = cache.GetOrResolve(context.Background(), "nsf_suspended", "admin", nil, false)
	require.NoError(t, err)

	assert.Zero(t, catalog.findCalls)
	assert.Zero(t, catalog.listPairsCalls)
}

func TestGetOrResolveMissResolvesExactlyOnceThenHits(t *testing.T) {
	catalog := adminCatalog()
	cache := NewCache(catalog, nil)
	require.NoError(t, cache.BuildAll(context.Background()))
	catalog.findCalls = 0

	// ACTIVE/ADMIN was not a catalog pairing at build time.
	_, ok := cache.Get("ACTIVE", "ADMIN")
	require.False(t, ok)

	actions, err := cache.GetOrResolve(context.Background(), "ACTIVE", "ADMIN", nil, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"deactivate_account"}, actions)
	assert.Equal(t, 1, catalog.findCalls)

	again, err := cache.GetOrResolve(context.Background(), "ACTIVE", "ADMIN", nil, false)
	require.NoError(t, err)
	assert.Equal(t, actions, again)
	assert.Equal(t, 1, catalog.findCalls)
}

func TestGetOrResolveNeverCachesFailure(t *testing.T) {
	catalog := adminCatalog()
	cache := NewCache(catalog, nil)

	catalog.err = errors.New("database unreachable")
	_, err := cache.GetOrResolve(context.Background(), "ACTIVE", "ADMIN", nil, false)
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())

	// Catalog recovers; the next call resolves instead of serving a cached
	// empty result.
	catalog.err = nil
	actions, err := cache.GetOrResolve(context.Background(), "ACTIVE", "ADMIN", nil, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"deactivate_account"}, actions)
}

func TestBuildAllFailureLeavesCacheUntouched(t *testing.T) {
	catalog := adminCatalog()
	cache := NewCache(catalog, nil)
	require.NoError(t, cache.BuildAll(context.Background()))

	catalog.err = errors.New("database unreachable")
	require.Error(t, cache.BuildAll(context.Background()))

	actions, ok := cache.Get("NSF_SUSPENDED", "ADMIN")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"deactivate_account", "change_pad_info"}, actions)
}

func TestBuildAllIsIdempotentAndReplacesWholesale(t *testing.T) {
	catalog := adminCatalog()
	cache := NewCache(catalog, nil)
	require.NoError(t, cache.BuildAll(context.Background()))

	// A lazily-cached pairing disappears once the catalog no longer
	// produces it.
	_, err := cache.GetOrResolve(context.Background(), "ACTIVE", "ADMIN", nil, false)
	require.NoError(t, err)
	assert.Equal(t, 3, cache.Len())

	require.NoError(t, cache.BuildAll(context.Background()))
	assert.Equal(t, 2, cache.Len())
	_, ok := cache.Get("ACTIVE", "ADMIN")
	assert.False(t, ok)
}

func TestGetOrResolveIncludeAllBypassesSharedCache(t *testing.T) {
	catalog := &fakeCatalog{rules: []PermissionRule{
		{ID: 1, MembershipType: "USER", OrgStatus: "ACTIVE", Action: "view_account"},
		{ID: 2, MembershipType: "STAFF", OrgStatus: "", Action: "view_all_accounts"},
	}}
	cache := NewCache(catalog, nil)
	require.NoError(t, cache.BuildAll(context.Background()))

	user := &identity.User{Sub: "u1", Roles: []string{"STAFF"}}
	widened, err := cache.GetOrResolve(context.Background(), "ACTIVE", "USER", user, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"view_account", "view_all_accounts"}, widened)

	// The user-specific widening must not replace the shared entry.
	base, ok := cache.Get("ACTIVE", "USER")
	require.True(t, ok)
	assert.Equal(t, []string{"view_account"}, base)
}

func TestCacheConcurrentReadsDuringRebuild(t *testing.T) {
	catalog := adminCatalog()
	cache := NewCache(catalog, nil)
	require.NoError(t, cache.BuildAll(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				actions, err := cache.GetOrResolve(context.Background(), "NSF_SUSPENDED", "ADMIN", nil, false)
				assert.NoError(t, err)
				assert.Len(t, actions, 2)
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.NoError(t, cache.BuildAll(context.Background()))
			}
		}()
	}
	wg.Wait()
}
