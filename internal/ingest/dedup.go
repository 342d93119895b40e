package ingest

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dedup is the redelivery guard. With redis configured the guard survives
// restarts and is shared across eventd replicas (SET NX with a TTL); the
// in-process LRU covers redis-less deployments and redis outages. The guard
// fails open: a guard error never blocks event processing, the worst case is
// a duplicate row.
type Dedup struct {
	rdb   *redis.Client
	local *lru.Cache[string, time.Time]
	ttl   time.Duration
	log   *zap.Logger
}

func NewDedup(rdb *redis.Client, maxKeys int, ttl time.Duration, log *zap.Logger) *Dedup {
	if maxKeys <= 0 {
		maxKeys = 4096
	}
	c, _ := lru.New[string, time.Time](maxKeys)
	return &Dedup{rdb: rdb, local: c, ttl: ttl, log: log}
}

// Seen reports whether the message id was already observed within the TTL
// window, and records it if not.
func (d *Dedup) Seen(ctx context.Context, id string) bool {
	if d.rdb != nil {
		set, err := d.rdb.SetNX(ctx, "eventd:msg:"+id, 1, d.ttl).Result()
		if err == nil {
			return !set
		}
		d.log.Warn("redelivery guard redis error, using in-process fallback", zap.Error(err))
	}

	if seenAt, ok := d.local.Get(id); ok && time.Since(seenAt) < d.ttl {
		return true
	}
	d.local.Add(id, time.Now())
	return false
}
