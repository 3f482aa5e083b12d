package token

import (
	"context"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/stephnangue/regbridge/auth/introspect"
	"github.com/stephnangue/regbridge/logger"
)

// LRUCache is the alternate backend: a strict entry bound with
// least-recently-used eviction. Unlike ristretto it admits every entry, so
// the bound is exact rather than cost-based.
type LRUCache struct {
	log    logger.Logger
	cache  *expirable.LRU[string, introspect.Result]
	source Introspector
	group  singleflight.Group
}

// NewLRUCache creates an expirable-LRU-backed token cache.
func NewLRUCache(cfg *Config, source Introspector) (Cache, error) {
	cfg = cfg.withDefaults()

	return &LRUCache{
		log:    cfg.Logger,
		cache:  expirable.NewLRU[string, introspect.Result](cfg.MaxEntries, nil, cfg.TTL),
		source: source,
	}, nil
}

func (c *LRUCache) GetOrFetch(ctx context.Context, token string) (introspect.Result, error) {
	if result, found := c.cache.Get(token); found {
		c.log.Debug("token cache hit")
		return result, nil
	}

	v, err, _ := c.group.Do(token, func() (interface{}, error) {
		if result, found := c.cache.Get(token); found {
			return result, nil
		}

		c.log.Debug("token cache miss, introspecting")

		result, err := c.source.Introspect(ctx, token)
		if err != nil {
			return introspect.Result{}, err
		}

		c.cache.Add(token, result)

		return result, nil
	})
	if err != nil {
		return introspect.Result{}, err
	}

	return v.(introspect.Result), nil
}

func (c *LRUCache) Close() {
	c.cache.Purge()
}
