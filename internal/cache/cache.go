package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

// Cache stores rendered byte payloads with a fixed TTL. Cost is the payload size.
type Cache struct {
	c   *ristretto.Cache
	ttl time.Duration
}

func New(maxCost int64, ttl time.Duration) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c, ttl: ttl}, nil
}

func (c *Cache) Get(key string) ([]byte, bool) {
	v, ok := c.c.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

func (c *Cache) Set(key string, val []byte) bool {
	return c.c.SetWithTTL(key, val, int64(len(val)), c.ttl)
}

func (c *Cache) Del(key string) { c.c.Del(key) }

// Wait blocks until pending sets are applied.
func (c *Cache) Wait() { c.c.Wait() }

func (c *Cache) Close() { c.c.Close() }
