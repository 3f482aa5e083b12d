package token

import (
	"context"
	"fmt"

	ristretto "github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"

	"github.com/stephnangue/regbridge/auth/introspect"
	"github.com/stephnangue/regbridge/logger"
)

// RistrettoCache is the default backend: TTL expiry with admission-based
// cost bounding.
type RistrettoCache struct {
	log    logger.Logger
	cfg    *Config
	cache  *ristretto.Cache[string, introspect.Result]
	source Introspector
	group  singleflight.Group
}

// NewRistrettoCache creates a ristretto-backed token cache.
func NewRistrettoCache(cfg *Config, source Introspector) (Cache, error) {
	cfg = cfg.withDefaults()

	cache, err := ristretto.NewCache(&ristretto.Config[string, introspect.Result]{
		NumCounters: int64(cfg.MaxEntries) * 10,
		MaxCost:     int64(cfg.MaxEntries),
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	return &RistrettoCache{
		log:    cfg.Logger,
		cfg:    cfg,
		cache:  cache,
		source: source,
	}, nil
}

// GetOrFetch returns the introspection result for token, consulting the
// authorization server on a miss. Concurrent misses for the same token are
// collapsed into a single introspection call.
func (c *RistrettoCache) GetOrFetch(ctx context.Context, token string) (introspect.Result, error) {
	if result, found := c.cache.Get(token); found {
		c.log.Debug("token cache hit")
		return result, nil
	}

	v, err, _ := c.group.Do(token, func() (interface{}, error) {
		// Double-check in case another goroutine just populated it
		if result, found := c.cache.Get(token); found {
			return result, nil
		}

		c.log.Debug("token cache miss, introspecting")

		result, err := c.source.Introspect(ctx, token)
		if err != nil {
			return introspect.Result{}, err
		}

		c.cache.SetWithTTL(token, result, 1, c.cfg.TTL)

		// Ristretto admits asynchronously
		c.cache.Wait()

		return result, nil
	})
	if err != nil {
		return introspect.Result{}, err
	}

	return v.(introspect.Result), nil
}

// Close releases the cache's resources.
func (c *RistrettoCache) Close() {
	c.cache.Close()
}
