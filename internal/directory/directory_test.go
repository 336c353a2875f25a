package directory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookflow/internal/config"
	"bookflow/internal/constants"
	"bookflow/internal/logger"
	"bookflow/pkg/models"
)

type stubSource struct {
	organizers map[string]*models.Organizer
	err        error
	calls      int
}

func (s *stubSource) Lookup(ctx context.Context, id string) (*models.Organizer, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	org, ok := s.organizers[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *org
	return &copied, nil
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]string
	ttls    map[string]time.Duration
	err     error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (c *memoryCache) Get(ctx context.Context, key string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		return "", errCacheMiss
	}
	return v, nil
}

func (c *memoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if c.err != nil {
		return c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	c.ttls[key] = ttl
	return nil
}

func acme() map[string]*models.Organizer {
	return map[string]*models.Organizer{
		"org-1": {ID: "org-1", Name: "Host", Company: "Acme Corp"},
	}
}

func TestCachedSourceReadThrough(t *testing.T) {
	source := &stubSource{organizers: acme()}
	cache := newMemoryCache()
	cached := NewCachedSource(cache, source, time.Minute, logger.NopLogger())

	org, err := cached.Lookup(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", org.Company)
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, time.Minute, cache.ttls[constants.CacheKeyPrefixOrganizer+"org-1"])

	org, err = cached.Lookup(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", org.Company)
	assert.Equal(t, 1, source.calls, "second lookup must be served from cache")
}

func TestCachedSourceDegradesOnCacheError(t *testing.T) {
	source := &stubSource{organizers: acme()}
	cache := newMemoryCache()
	cache.err = errors.New("redis down")
	cached := NewCachedSource(cache, source, 0, logger.NopLogger())

	org, err := cached.Lookup(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", org.Company)
	assert.Equal(t, time.Duration(constants.DefaultDirectoryTTLSeconds)*time.Second, cached.ttl)
}

func TestCachedSourceDiscardsMalformedEntries(t *testing.T) {
	source := &stubSource{organizers: acme()}
	cache := newMemoryCache()
	cache.entries[constants.CacheKeyPrefixOrganizer+"org-1"] = "{not json"
	cached := NewCachedSource(cache, source, time.Minute, logger.NopLogger())

	org, err := cached.Lookup(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", org.Company)
	assert.Equal(t, 1, source.calls)
}

func TestCachedSourceDoesNotCacheMisses(t *testing.T) {
	source := &stubSource{organizers: acme()}
	cache := newMemoryCache()
	cached := NewCachedSource(cache, source, time.Minute, logger.NopLogger())

	_, err := cached.Lookup(context.Background(), "org-unknown")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, cache.entries)
}

func TestDirectoryLookup(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		d := New(&stubSource{organizers: acme()}, logger.NopLogger())
		org, err := d.Lookup(context.Background(), "org-1")
		require.NoError(t, err)
		assert.Equal(t, "Acme Corp", org.Company)
	})

	t.Run("unknown organizer is not an error", func(t *testing.T) {
		d := New(&stubSource{organizers: acme()}, logger.NopLogger())
		org, err := d.Lookup(context.Background(), "nobody")
		require.NoError(t, err)
		assert.Nil(t, org)
	})

	t.Run("source errors propagate", func(t *testing.T) {
		d := New(&stubSource{err: errors.New("mongo down")}, logger.NopLogger())
		_, err := d.Lookup(context.Background(), "org-1")
		assert.Error(t, err)
	})
}

func TestWrapWithCircuitBreaker(t *testing.T) {
	t.Run("disabled returns source", func(t *testing.T) {
		source := &stubSource{}
		assert.Same(t, source, WrapWithCircuitBreaker(source, "test", config.CircuitBreakerConfig{}))
	})

	t.Run("not found does not trip", func(t *testing.T) {
		source := &stubSource{organizers: acme()}
		wrapped := WrapWithCircuitBreaker(source, "test-not-found", config.CircuitBreakerConfig{
			Enabled: true, FailureRatio: 0.5, MinRequests: 1, Timeout: time.Minute,
		})

		for i := 0; i < 3; i++ {
			_, err := wrapped.Lookup(context.Background(), "nobody")
			assert.ErrorIs(t, err, ErrNotFound)
		}
		assert.Equal(t, "closed", wrapped.(*CircuitBreakerSource).State())
	})

	t.Run("failures open the breaker", func(t *testing.T) {
		source := &stubSource{err: errors.New("mongo down")}
		wrapped := WrapWithCircuitBreaker(source, "test-open", config.CircuitBreakerConfig{
			Enabled: true, FailureRatio: 0.5, MinRequests: 2, Timeout: time.Minute,
		})

		for i := 0; i < 2; i++ {
			_, err := wrapped.Lookup(context.Background(), "org-1")
			require.Error(t, err)
		}
		_, err := wrapped.Lookup(context.Background(), "org-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "circuit breaker is open")
		assert.Equal(t, 2, source.calls)
	})
}
