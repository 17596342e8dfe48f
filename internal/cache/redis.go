package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL = 15 * time.Minute
	versionTTL = time.Hour
)

func NewRedisCache(client *redis.Client, baseTTL time.Duration) *RedisCache {
	if baseTTL <= 0 {
		baseTTL = DefaultTTL
	}
	return &RedisCache{
		client:  client,
		baseTTL: baseTTL,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

// Get returns the cached contents together with the owner's current version.
// The version is returned on a miss too; callers pass it back to Set.
func (r *RedisCache) Get(ctx context.Context, owner domain.Owner) (*domain.CartContents, int64, error) {
	vals, err := r.client.MGet(ctx, cacheKey(owner), versionKey(owner)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("redis get failed: %w", err)
	}

	var version int64
	if raw, ok := vals[1].(string); ok {
		version, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("redis get version failed: %w", err)
		}
	}

	data, ok := vals[0].(string)
	if !ok {
		return nil, version, ErrCacheMiss
	}

	var contents domain.CartContents
	if err := json.Unmarshal([]byte(data), &contents); err != nil {
		return nil, version, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &contents, version, nil
}

func (r *RedisCache) Set(ctx context.Context, owner domain.Owner, version int64, contents *domain.CartContents) error {
	data, err := json.Marshal(contents)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	vk := versionKey(owner)

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, vk).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return ErrStale
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, cacheKey(owner), data, r.baseTTL+jitter)
			return nil
		})
		return err
	}, vk)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStale), errors.Is(err, redis.TxFailedErr):
		return ErrStale
	default:
		return fmt.Errorf("redis set failed: %w", err)
	}
}

// Delete drops the cached contents and bumps the version of every owner.
func (r *RedisCache) Delete(ctx context.Context, owners ...domain.Owner) error {
	if len(owners) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, o := range owners {
			p.Incr(ctx, versionKey(o))
			p.Expire(ctx, versionKey(o), versionTTL)
			p.Del(ctx, cacheKey(o))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(owner domain.Owner) string {
	return fmt.Sprintf("cart:%s", owner.Key())
}

func versionKey(owner domain.Owner) string {
	return fmt.Sprintf("cart:%s:version", owner.Key())
}
