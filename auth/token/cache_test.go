package token

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stephnangue/regbridge/auth/introspect"
)

// fakeIntrospector counts calls and answers from a fixed table.
type fakeIntrospector struct {
	calls   atomic.Int64
	results map[string]introspect.Result
	err     error
}

func (f *fakeIntrospector) Introspect(ctx context.Context, token string) (introspect.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return introspect.Result{}, f.err
	}
	return f.results[token], nil
}

func backendNames() []string {
	return []string{"ristretto", "lru"}
}

func TestNewCache_UnknownBackend(t *testing.T) {
	_, err := NewCache("memcached", &Config{}, &fakeIntrospector{})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestGetOrFetch_CachesWithinTTL(t *testing.T) {
	for _, backend := range backendNames() {
		t.Run(backend, func(t *testing.T) {
			source := &fakeIntrospector{
				results: map[string]introspect.Result{
					"tok-1": {Active: true, Scopes: []string{"read"}},
				},
			}

			cache, err := NewCache(backend, &Config{TTL: time.Minute, MaxEntries: 10}, source)
			require.NoError(t, err)
			defer cache.Close()

			for i := 0; i < 5; i++ {
				result, err := cache.GetOrFetch(context.Background(), "tok-1")
				require.NoError(t, err)
				assert.True(t, result.Active)
				assert.Equal(t, []string{"read"}, result.Scopes)
			}

			assert.Equal(t, int64(1), source.calls.Load(), "repeated lookups within the TTL must not re-introspect")
		})
	}
}

func TestGetOrFetch_NegativeResultsCached(t *testing.T) {
	for _, backend := range backendNames() {
		t.Run(backend, func(t *testing.T) {
			source := &fakeIntrospector{
				results: map[string]introspect.Result{
					"revoked": {Active: false},
				},
			}

			cache, err := NewCache(backend, &Config{TTL: time.Minute, MaxEntries: 10}, source)
			require.NoError(t, err)
			defer cache.Close()

			for i := 0; i < 3; i++ {
				result, err := cache.GetOrFetch(context.Background(), "revoked")
				require.NoError(t, err)
				assert.False(t, result.Active)
			}

			assert.Equal(t, int64(1), source.calls.Load(), "an inactive verdict is memoized like an active one")
		})
	}
}

func TestGetOrFetch_FailuresNotCached(t *testing.T) {
	for _, backend := range backendNames() {
		t.Run(backend, func(t *testing.T) {
			source := &fakeIntrospector{err: introspect.ErrUnavailable}

			cache, err := NewCache(backend, &Config{TTL: time.Minute, MaxEntries: 10}, source)
			require.NoError(t, err)
			defer cache.Close()

			_, err = cache.GetOrFetch(context.Background(), "tok-1")
			assert.ErrorIs(t, err, introspect.ErrUnavailable)
			_, err = cache.GetOrFetch(context.Background(), "tok-1")
			assert.ErrorIs(t, err, introspect.ErrUnavailable)

			assert.Equal(t, int64(2), source.calls.Load(), "a failed fetch must be retried, not memoized")

			// Recovery: the next successful fetch is cached normally
			source.err = nil
			source.results = map[string]introspect.Result{"tok-1": {Active: true}}

			result, err := cache.GetOrFetch(context.Background(), "tok-1")
			require.NoError(t, err)
			assert.True(t, result.Active)
		})
	}
}

func TestGetOrFetch_DistinctTokensFetchedSeparately(t *testing.T) {
	source := &fakeIntrospector{
		results: map[string]introspect.Result{
			"tok-a": {Active: true},
			"tok-b": {Active: false},
		},
	}

	cache, err := NewCache("lru", &Config{TTL: time.Minute, MaxEntries: 10}, source)
	require.NoError(t, err)
	defer cache.Close()

	a, err := cache.GetOrFetch(context.Background(), "tok-a")
	require.NoError(t, err)
	b, err := cache.GetOrFetch(context.Background(), "tok-b")
	require.NoError(t, err)

	assert.True(t, a.Active)
	assert.False(t, b.Active)
	assert.Equal(t, int64(2), source.calls.Load())
}

// slowIntrospector blocks until released so concurrent callers pile up on
// the same in-flight fetch.
type slowIntrospector struct {
	calls   atomic.Int64
	release chan struct{}
}

func (s *slowIntrospector) Introspect(ctx context.Context, token string) (introspect.Result, error) {
	s.calls.Add(1)
	<-s.release
	return introspect.Result{Active: true}, nil
}

func TestGetOrFetch_ConcurrentMissesCollapse(t *testing.T) {
	for _, backend := range backendNames() {
		t.Run(backend, func(t *testing.T) {
			source := &slowIntrospector{release: make(chan struct{})}

			cache, err := NewCache(backend, &Config{TTL: time.Minute, MaxEntries: 10}, source)
			require.NoError(t, err)
			defer cache.Close()

			const workers = 8
			var wg sync.WaitGroup
			errs := make([]error, workers)

			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = cache.GetOrFetch(context.Background(), "tok-1")
				}(i)
			}

			// Let the workers reach the fetch before releasing it
			time.Sleep(50 * time.Millisecond)
			close(source.release)
			wg.Wait()

			for _, err := range errs {
				require.NoError(t, err)
			}
			assert.Equal(t, int64(1), source.calls.Load(), "concurrent misses for one token must share a single fetch")
		})
	}
}

func TestGetOrFetch_ExpiredEntryRefetched(t *testing.T) {
	source := &fakeIntrospector{
		results: map[string]introspect.Result{
			"tok-1": {Active: true},
		},
	}

	cache, err := NewCache("lru", &Config{TTL: 50 * time.Millisecond, MaxEntries: 10}, source)
	require.NoError(t, err)
	defer cache.Close()

	_, err = cache.GetOrFetch(context.Background(), "tok-1")
	require.NoError(t, err)

	time.Sleep(120 * time.Millisecond)

	_, err = cache.GetOrFetch(context.Background(), "tok-1")
	require.NoError(t, err)

	assert.Equal(t, int64(2), source.calls.Load(), "a stale entry must be re-introspected")
}

func TestConfigDefaults(t *testing.T) {
	cfg := (&Config{}).withDefaults()
	assert.Equal(t, 60*time.Second, cfg.TTL)
	assert.Equal(t, 10_000, cfg.MaxEntries)
	assert.NotNil(t, cfg.Logger)
}

var errBoom = errors.New("boom")

func TestGetOrFetch_SourceErrorSurfaced(t *testing.T) {
	source := &fakeIntrospector{err: errBoom}

	cache, err := NewCache("ristretto", &Config{TTL: time.Minute, MaxEntries: 10}, source)
	require.NoError(t, err)
	defer cache.Close()

	_, err = cache.GetOrFetch(context.Background(), "tok-1")
	assert.ErrorIs(t, err, errBoom)
}
