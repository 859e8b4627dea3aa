package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Guard answers "have I already processed this provider message id" and marks
// the id as in-flight in the same step. Primary store is redis (SETNX + TTL);
// when redis is down a bounded in-process set back-stops it, trading
// cross-instance dedup for availability in the single-instance deployment.
type Guard struct {
	rdb      *redis.Client
	ttl      time.Duration
	prefix   string
	fallback *memorySet
	log      *zap.Logger
}

func New(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *Guard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Guard{
		rdb:      rdb,
		ttl:      ttl,
		prefix:   "idem:msg:",
		fallback: newMemorySet(8192),
		log:      log,
	}
}

// CheckAndMark returns true when id was already seen; the first caller for a
// given id gets false and owns the processing.
func (g *Guard) CheckAndMark(ctx context.Context, id string) bool {
	if id == "" {
		return false
	}
	if g.rdb != nil {
		fresh, err := g.rdb.SetNX(ctx, g.prefix+id, 1, g.ttl).Result()
		if err == nil {
			return !fresh
		}
		g.log.Warn("idempotency: redis unavailable, using in-process fallback", zap.Error(err))
	}
	return !g.fallback.Add(id)
}
