package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/azizikri/deal-claim/internal/domain"
	"github.com/azizikri/deal-claim/internal/metrics"
)

// RedisClient is the subset of *redis.Client the snapshot cache uses.
type RedisClient interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ SnapshotReader = (*SnapshotCache)(nil)

// SnapshotCache is a read-through cache in front of deal snapshots. Snapshot
// fields are catalog-owned and never change on claim, so entries only need
// invalidation when the catalog rewrites a deal.
type SnapshotCache struct {
	inner  SnapshotReader
	cache  RedisClient
	ttl    time.Duration
	logger zerolog.Logger
}

func NewSnapshotCache(inner SnapshotReader, cache RedisClient, ttl time.Duration, logger zerolog.Logger) *SnapshotCache {
	return &SnapshotCache{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

func snapshotKey(id string) string {
	return "deal:snapshot:" + id
}

func (c *SnapshotCache) DealSnapshots(ctx context.Context, ids []string) (map[string]domain.DealSnapshot, error) {
	out := make(map[string]domain.DealSnapshot, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = snapshotKey(id)
	}

	var missing []string
	vals, err := c.cache.MGet(ctx, keys...).Result()
	if err != nil {
		metrics.IncCacheRequest("error")
		c.logger.Warn().Err(err).Msg("deal snapshot cache read failed")
		missing = ids
	} else {
		for i, v := range vals {
			raw, ok := v.(string)
			var snap domain.DealSnapshot
			if ok && json.Unmarshal([]byte(raw), &snap) == nil {
				metrics.IncCacheRequest("hit")
				out[ids[i]] = snap
				continue
			}
			metrics.IncCacheRequest("miss")
			missing = append(missing, ids[i])
		}
	}

	if len(missing) == 0 {
		return out, nil
	}

	fresh, err := c.inner.DealSnapshots(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, snap := range fresh {
		out[id] = snap
		b, _ := json.Marshal(snap)
		if err := c.cache.Set(ctx, snapshotKey(id), b, c.ttl).Err(); err != nil {
			c.logger.Warn().Err(err).Str("deal_id", id).Msg("deal snapshot cache write failed")
		}
	}
	return out, nil
}

func (c *SnapshotCache) Invalidate(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = snapshotKey(id)
	}
	return c.cache.Del(ctx, keys...).Err()
}
