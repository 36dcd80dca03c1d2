package authz

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/bcgov/sbc-auth-sub003/pkg/observability"
)

// Searcher is the projection surface CachedProjector wraps.
type Searcher interface {
	Search(ctx context.Context, filter Filter) ([]AuthorizationRecord, error)
}

// CachedProjector fronts the authorization view join with a bounded
// in-process LRU and an optional shared Redis layer, so the multi-way join is
// not recomputed per request. Entries carry a TTL as a safety net; the real
// invalidation is Purge, driven by the same rebuild triggers as the
// permission cache.
type CachedProjector struct {
	searcher Searcher
	local    *expirable.LRU[string, []AuthorizationRecord]
	shared   *RedisSearchCache // nil when Redis is not configured
	logger   *observability.Logger
}

// CachedProjectorConfig configures the read cache.
type CachedProjectorConfig struct {
	Size int
	TTL  time.Duration
}

// NewCachedProjector wraps a searcher with the read cache. shared may be nil.
func NewCachedProjector(searcher Searcher, cfg CachedProjectorConfig, shared *RedisSearchCache, logger *observability.Logger) *CachedProjector {
	return &CachedProjector{
		searcher: searcher,
		local:    expirable.NewLRU[string, []AuthorizationRecord](cfg.Size, nil, cfg.TTL),
		shared:   shared,
		logger:   logger,
	}
}

// Search serves from the local LRU, then the shared Redis layer, then the
// underlying join. Failed searches are never cached.
func (c *CachedProjector) Search(ctx context.Context, filter Filter) ([]AuthorizationRecord, error) {
	key := filter.CacheKey()

	if records, ok := c.local.Get(key); ok {
		return records, nil
	}

	if c.shared != nil {
		if records, ok := c.shared.Get(ctx, key); ok {
			c.local.Add(key, records)
			return records, nil
		}
	}

	records, err := c.searcher.Search(ctx, filter)
	if err != nil {
		return nil, err
	}

	c.local.Add(key, records)
	if c.shared != nil {
		if err := c.shared.Set(ctx, key, records); err != nil {
			// Shared layer is best-effort; the local cache and the join
			// remain authoritative.
			c.logger.WithError(err).Warn("failed to write authorization search to shared cache")
		}
	}

	return records, nil
}

// Purge drops every cached search result, local and shared.
func (c *CachedProjector) Purge(ctx context.Context) {
	c.local.Purge()
	if c.shared != nil {
		if err := c.shared.Purge(ctx); err != nil {
			c.logger.WithError(err).Warn("failed to purge shared authorization cache")
		}
	}
}
