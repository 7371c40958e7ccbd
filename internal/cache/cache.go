package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/trustscan/internal/model"
)

// Store is a durable cache tier. The SQLite and PostgreSQL stores in
// internal/database implement it; records are keyed by Cache.Key and carry
// their own expiry, so a Store never needs to know the TTL.
type Store interface {
	// GetCache returns the record for key or an error wrapping
	// model.ErrNotFound.
	GetCache(ctx context.Context, key string) (*model.CacheRecord, error)

	// PutCache inserts or replaces the record with rec.Key.
	PutCache(ctx context.Context, rec *model.CacheRecord) error
}

// sweepThreshold is the memory size above which expired entries are swept
// on write.
const sweepThreshold = 4096

// Cache is a two-tier analysis cache. Reads try process memory first and
// fall back to the durable Store; writes go to both. It is safe for
// concurrent use.
//
// Design decision: the durable tier is best effort. A Store that fails on
// read is treated as a miss and a failed write is only logged, because an
// analysis that cannot be cached is still a valid answer. Only the memory
// tier is authoritative for the lifetime of the process.
//
// An expired entry is dropped when a read finds it. Entries nobody reads
// again are swept on write once the map grows beyond sweepThreshold.
type Cache struct {
	// mu guards entries.
	mu sync.RWMutex
	// entries is the memory tier, keyed by Cache.Key.
	entries map[string]*model.CacheRecord

	// store is the durable tier. Nil disables it.
	store Store
	// ttl is how long a record stays live after it was written.
	ttl time.Duration
	// version is embedded in every key so a schema change never serves
	// records written by an older build.
	version string
	// now is the time source for expiry decisions.
	now func() time.Time
	// logger receives durable tier failures.
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithStore enables the durable tier.
func WithStore(s Store) Option {
	return func(c *Cache) {
		c.store = s
	}
}

// WithTTL sets how long records stay live.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		c.ttl = d
	}
}

// WithVersion sets the schema version tag of cache keys.
func WithVersion(v string) Option {
	return func(c *Cache) {
		c.version = v
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = l
	}
}

// New creates a memory-only cache with a 24 hour TTL unless configured
// otherwise.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]*model.CacheRecord),
		ttl:     24 * time.Hour,
		version: "v3",
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Key returns the cache key of host.
func (c *Cache) Key(host string) string {
	return model.CacheKey(host, c.version)
}

// Get returns a live cached result for host with Cached set. A durable hit
// is promoted to memory.
func (c *Cache) Get(ctx context.Context, host string) (*model.AnalysisResult, bool) {
	key := c.Key(host)
	now := c.now()

	c.mu.RLock()
	rec, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && rec.Expired(now) {
		c.mu.Lock()
		if cur, still := c.entries[key]; still && cur == rec {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		ok = false
	}

	if !ok && c.store != nil {
		durable, err := c.store.GetCache(ctx, key)
		switch {
		case err == nil && durable != nil && durable.Result != nil && !durable.Expired(now):
			rec, ok = durable, true
			c.mu.Lock()
			c.entries[key] = durable
			c.mu.Unlock()
		case err != nil && !errors.Is(err, model.ErrNotFound):
			c.logger.Warn("durable cache read failed", "key", key, "error", err)
		}
	}

	if !ok {
		return nil, false
	}
	hit := rec.Result.ForCache()
	hit.Cached = true
	return hit, true
}

// Put stores result for host in both tiers. The screenshot reference is
// dropped. Durable failures are logged only.
func (c *Cache) Put(ctx context.Context, host string, result *model.AnalysisResult) {
	if result == nil {
		return
	}
	now := c.now()
	rec := &model.CacheRecord{
		Key:       c.Key(host),
		Hostname:  strings.ToLower(host),
		Version:   c.version,
		Result:    result.ForCache(),
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	c.mu.Lock()
	c.entries[rec.Key] = rec
	if len(c.entries) > sweepThreshold {
		c.sweepLocked(now)
	}
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.PutCache(ctx, rec); err != nil {
			c.logger.Warn("durable cache write failed", "key", rec.Key, "error", err)
		}
	}
}

// Len returns the number of records held in memory.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) sweepLocked(now time.Time) {
	for key, rec := range c.entries {
		if rec.Expired(now) {
			delete(c.entries, key)
		}
	}
}
