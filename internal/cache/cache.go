package cache

import (
	"context"

	"callastar_back_end/internal/events"
)

// CreatorBalanceKey est la clé du solde créateur mis en cache.
func CreatorBalanceKey(creatorID string) string {
	return "creator_balance:" + creatorID
}

// InvalidationSink purge le solde en cache d'un créateur à chaque transition qui le concerne.
type InvalidationSink struct {
	cache *Cache
}

func NewInvalidationSink(c *Cache) *InvalidationSink {
	return &InvalidationSink{cache: c}
}

func (s *InvalidationSink) Name() string { return "redis_invalidation" }

func (s *InvalidationSink) Write(ctx context.Context, e events.Event) error {
	if e.CreatorID == "" {
		return nil
	}
	return s.cache.Delete(ctx, CreatorBalanceKey(e.CreatorID))
}
