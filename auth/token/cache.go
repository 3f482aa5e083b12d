package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stephnangue/regbridge/auth/introspect"
	"github.com/stephnangue/regbridge/logger"
)

var ErrUnknownBackend = errors.New("unknown cache backend")

// Introspector is the source of truth consulted on a cache miss.
type Introspector interface {
	Introspect(ctx context.Context, token string) (introspect.Result, error)
}

// Cache memoizes introspection results keyed by the raw token value. The
// token is opaque: it is never parsed, only used as a key. Entries live in
// process memory only and expire after the configured TTL; active and
// inactive results share the same TTL.
type Cache interface {
	// GetOrFetch returns the cached result for token, introspecting on a
	// miss or stale entry. Fetch failures are surfaced, never cached.
	GetOrFetch(ctx context.Context, token string) (introspect.Result, error)

	Close()
}

// Config holds configuration shared by all cache backends.
type Config struct {
	// TTL is how long a result stays fresh. Defaults to 60s.
	TTL time.Duration

	// MaxEntries bounds the cache so token churn cannot grow it without
	// limit. Defaults to 10000.
	MaxEntries int

	Logger logger.Logger
}

func (c *Config) withDefaults() *Config {
	out := *c
	if out.TTL <= 0 {
		out.TTL = 60 * time.Second
	}
	if out.MaxEntries <= 0 {
		out.MaxEntries = 10_000
	}
	if out.Logger == nil {
		out.Logger = logger.NewNopLogger()
	}
	return &out
}

// Factory constructs a cache backend.
type Factory func(cfg *Config, source Introspector) (Cache, error)

// Backends maps backend names to their factories.
var Backends = map[string]Factory{
	"ristretto": NewRistrettoCache,
	"lru":       NewLRUCache,
}

// NewCache constructs the named cache backend.
func NewCache(backend string, cfg *Config, source Introspector) (Cache, error) {
	factory, ok := Backends[backend]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
	return factory(cfg, source)
}
