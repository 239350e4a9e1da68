package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/imagemill/imagemill/internal/model"
	"github.com/redis/go-redis/v9"
)

// Redis is the distributed ListCache for multi-instance API tiers. Expiry is
// server-side, so no eviction-on-access is needed here.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(addr string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func redisKey(ownerID string) string {
	return "joblist:" + ownerID
}

func (r *Redis) Get(ctx context.Context, ownerID string) (*model.ListResponse, bool) {
	raw, err := r.client.Get(ctx, redisKey(ownerID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Failed to read list-cache entry for owner %q: %v", ownerID, err)
		}
		return nil, false
	}

	var data model.ListResponse
	if err := json.Unmarshal(raw, &data); err != nil {
		log.Printf("Corrupt list-cache entry for owner %q, dropping: %v", ownerID, err)
		r.Invalidate(ctx, ownerID)
		return nil, false
	}
	return &data, true
}

func (r *Redis) Put(ctx context.Context, ownerID string, data *model.ListResponse) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("Failed to marshal list-cache entry for owner %q: %v", ownerID, err)
		return
	}

	if err := r.client.Set(ctx, redisKey(ownerID), raw, r.ttl).Err(); err != nil {
		log.Printf("Failed to write list-cache entry for owner %q: %v", ownerID, err)
	}
}

func (r *Redis) Invalidate(ctx context.Context, ownerID string) {
	if err := r.client.Del(ctx, redisKey(ownerID)).Err(); err != nil {
		log.Printf("Failed to invalidate list-cache entry for owner %q: %v", ownerID, err)
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
