package permissions

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bcgov/sbc-auth-sub003/pkg/identity"
	"github.com/bcgov/sbc-auth-sub003/pkg/observability"
)

// Cache memoizes resolver results keyed by (org status, membership type).
//
// Reads are lock-free: the entry map lives behind an atomic.Value and is
// replaced wholesale, never mutated. Concurrent misses for the same key may
// race to resolve redundantly; resolution is idempotent and side-effect-free,
// so the last write wins and nothing serializes the hot path.
//
// There is no expiry. Correctness depends on an explicit rebuild trigger when
// the catalog changes (startup, cron, pub/sub notification, admin endpoint),
// not on time-based invalidation.
type Cache struct {
	catalog  Catalog
	resolver *Resolver
	metrics  *observability.Metrics

	mu      sync.Mutex   // serializes writers only
	entries atomic.Value // map[Pair][]string
}

// NewCache creates an empty cache over the given catalog. metrics may be nil.
func NewCache(catalog Catalog, metrics *observability.Metrics) *Cache {
	c := &Cache{
		catalog:  catalog,
		resolver: NewResolver(catalog),
		metrics:  metrics,
	}
	c.entries.Store(map[Pair][]string{})
	return c
}

// BuildAll eagerly resolves every pairing present in the catalog and replaces
// the cache contents in one atomic swap. Concurrent readers observe either
// the old or the new complete map, never a partially-built one. Idempotent:
// each call fully replaces prior contents.
//
// On any catalog failure the existing cache is left untouched; a partial
// build must never be swapped in as if it were authoritative.
func (c *Cache) BuildAll(ctx context.Context) error {
	start := time.Now()

	pairs, err := c.catalog.ListPairs(ctx)
	if err != nil {
		c.observeRebuild("error", start, -1)
		return fmt.Errorf("failed to list catalog pairs for rebuild: %w", err)
	}

	next := make(map[Pair][]string, len(pairs))
	for _, pair := range pairs {
		actions, err := c.resolver.Resolve(ctx, pair.OrgStatus, pair.MembershipType, nil, false)
		if err != nil {
			c.observeRebuild("error", start, -1)
			return fmt.Errorf("failed to resolve %s/%s during rebuild: %w", pair.OrgStatus, pair.MembershipType, err)
		}
		next[pair] = actions
	}

	c.mu.Lock()
	c.entries.Store(next)
	c.mu.Unlock()

	c.observeRebuild("ok", start, len(next))
	return nil
}

// Get returns the cached resolution for a pairing, or false on miss.
func (c *Cache) Get(orgStatus, membershipType string) ([]string, bool) {
	actions, ok := c.lookup(NewPair(orgStatus, membershipType))
	return actions, ok
}

// GetOrResolve returns the cached resolution on hit. On miss it resolves
// directly, stores the result, and returns it. A failed resolution is
// surfaced and never cached: caching an empty result on a transient catalog
// failure would deny all permissions.
//
// When includeAll is requested with a user carrying roles, the widened set is
// user-specific and bypasses the shared cache entirely.
func (c *Cache) GetOrResolve(ctx context.Context, orgStatus, membershipType string, user *identity.User, includeAll bool) ([]string, error) {
	if includeAll && user != nil && len(user.Roles) > 0 {
		return c.resolveDirect(ctx, orgStatus, membershipType, user, true)
	}

	pair := NewPair(orgStatus, membershipType)
	if actions, ok := c.lookup(pair); ok {
		if c.metrics != nil {
			c.metrics.CacheHitsTotal.Inc()
		}
		return actions, nil
	}

	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}

	actions, err := c.resolveDirect(ctx, orgStatus, membershipType, nil, false)
	if err != nil {
		return nil, err
	}

	c.store(pair, actions)
	return actions, nil
}

// Len reports the number of cached pairings.
func (c *Cache) Len() int {
	return len(c.snapshot())
}

func (c *Cache) resolveDirect(ctx context.Context, orgStatus, membershipType string, user *identity.User, includeAll bool) ([]string, error) {
	start := time.Now()
	actions, err := c.resolver.Resolve(ctx, orgStatus, membershipType, user, includeAll)
	if c.metrics != nil {
		c.metrics.ObserveResolution("direct", err, time.Since(start))
	}
	return actions, err
}

func (c *Cache) snapshot() map[Pair][]string {
	entries, _ := c.entries.Load().(map[Pair][]string)
	return entries
}

func (c *Cache) lookup(pair Pair) ([]string, bool) {
	actions, ok := c.snapshot()[pair]
	return actions, ok
}

// store inserts one entry copy-on-write under the writer lock, leaving
// concurrent readers on the previous map.
func (c *Cache) store(pair Pair, actions []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.snapshot()
	next := make(map[Pair][]string, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[pair] = actions
	c.entries.Store(next)

	if c.metrics != nil {
		c.metrics.CacheEntries.Set(float64(len(next)))
	}
}

func (c *Cache) observeRebuild(status string, start time.Time, entries int) {
	if c.metrics == nil {
		return
	}
	c.metrics.CacheRebuildsTotal.WithLabelValues("build", status).Inc()
	c.metrics.CacheRebuildSeconds.Observe(time.Since(start).Seconds())
	if entries >= 0 {
		c.metrics.CacheEntries.Set(float64(entries))
	}
}
