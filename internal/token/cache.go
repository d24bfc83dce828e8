package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultSafetyMargin is subtracted from a token's lifetime before it is
// considered reusable, so a token is never presented close to expiry.
const DefaultSafetyMargin = 60 * time.Second

// Cache wraps a Source with a per-instance token cache. The read path takes
// only a read lock when the cached token is valid; refreshes for the same
// API key are collapsed into a single flight.
type Cache struct {
	source Source
	margin time.Duration
	now    func() time.Time

	mu     sync.RWMutex
	tokens map[string]*Token
	flight singleflight.Group
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithSafetyMargin overrides the expiry safety margin.
func WithSafetyMargin(margin time.Duration) CacheOption {
	return func(c *Cache) { c.margin = margin }
}

// WithCacheClock replaces the time source, for tests.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a cache in front of source.
func NewCache(source Source, opts ...CacheOption) *Cache {
	c := &Cache{
		source: source,
		margin: DefaultSafetyMargin,
		now:    time.Now,
		tokens: make(map[string]*Token),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a valid token for the API key, refreshing through the
// underlying source when the cached one is absent or within the safety
// margin of expiry.
func (c *Cache) Get(ctx context.Context, apiKey string) (*Token, error) {
	key := cacheKey(apiKey)

	c.mu.RLock()
	tok := c.tokens[key]
	c.mu.RUnlock()
	if tok.Valid(c.now(), c.margin) {
		return tok, nil
	}

	v, err, _ := c.flight.Do(key, func() (any, error) {
		// Re-check under the flight: a concurrent caller may have
		// refreshed while this one waited.
		c.mu.RLock()
		cached := c.tokens[key]
		c.mu.RUnlock()
		if cached.Valid(c.now(), c.margin) {
			return cached, nil
		}

		fresh, err := c.source.Get(ctx, apiKey)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.tokens[key] = fresh
		c.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Token), nil
}

// cacheKey hashes the API key so plaintext keys are not retained as map
// keys.
func cacheKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}
