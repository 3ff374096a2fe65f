package catalog

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/singleflight"

	"github.com/olivierola/e-com-backend/internal/order/domain"
)

// Cache is the byte-level cache behind single-product reads.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Del(ctx context.Context, key string)
}

const productTTL = 30 * time.Second

// productCache is a cache-aside layer with singleflight so a cold key
// triggers one store read no matter how many readers race for it.
type productCache struct {
	cache Cache
	group singleflight.Group
}

func newProductCache(cache Cache) *productCache {
	return &productCache{cache: cache}
}

func productKey(id domain.ProductID) string {
	return "product:" + strconv.FormatInt(int64(id), 10)
}

func (c *productCache) get(ctx context.Context, id domain.ProductID, load func() (domain.Product, error)) (domain.Product, error) {
	key := productKey(id)
	if data, ok := c.cache.Get(ctx, key); ok {
		var p domain.Product
		if err := json.Unmarshal(data, &p); err == nil {
			return p, nil
		}
		// Poisoned entry: drop it and fall through to the store.
		c.cache.Del(ctx, key)
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		p, err := load()
		if err != nil {
			return domain.Product{}, err
		}
		if data, err := json.Marshal(p); err == nil {
			c.cache.Set(ctx, key, data, productTTL)
		}
		return p, nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return v.(domain.Product), nil
}

func (c *productCache) invalidate(ctx context.Context, id domain.ProductID) {
	c.cache.Del(ctx, productKey(id))
}

// RedisCache adapts a redis client to the Cache interface. Errors are
// swallowed: a down cache degrades to store reads, never to failures.
type RedisCache struct {
	Client *redis.Client
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.Client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	r.Client.Set(ctx, key, value, ttl)
}

func (r *RedisCache) Del(ctx context.Context, key string) {
	r.Client.Del(ctx, key)
}
