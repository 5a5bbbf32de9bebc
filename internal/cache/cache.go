// Package cache implements a deduplicated, expiry-aware async cache: at
// most one loader invocation is ever in flight per key, every concurrent
// caller for a pending key receives the same outcome, and failures are
// never cached.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// ExpiryFunc computes a value's absolute expiry in epoch-milliseconds. A
// value's lifetime in the cache is [install-time, ExpiryFunc(value)).
type ExpiryFunc[V any] func(value V) int64

// Clock returns the current time as epoch-milliseconds. Tests substitute a
// fake clock; production code leaves it nil and Cache uses the real clock.
type Clock func() int64

type entry[V any] struct {
	value     V
	expiresAt int64
}

// store is the backing map for completed entries. Two implementations
// exist: an unbounded plain map (the default) and an LRU-bounded one
// (opted into via WithCapacity) so a handler fronting many distinct,
// regex-allow-listed issuers cannot grow a cache without bound.
type store[V any] interface {
	get(key string) (entry[V], bool)
	set(key string, e entry[V])
	delete(key string)
}

type mapStore[V any] struct {
	m map[string]entry[V]
}

func newMapStore[V any]() *mapStore[V] { return &mapStore[V]{m: make(map[string]entry[V])} }

func (s *mapStore[V]) get(key string) (entry[V], bool) { e, ok := s.m[key]; return e, ok }
func (s *mapStore[V]) set(key string, e entry[V])      { s.m[key] = e }
func (s *mapStore[V]) delete(key string)               { delete(s.m, key) }

type lruStore[V any] struct {
	c *lru.Cache[string, entry[V]]
}

func newLRUStore[V any](capacity int) *lruStore[V] {
	c, err := lru.New[string, entry[V]](capacity)
	if err != nil {
		// capacity <= 0; lru.New only fails on that, so fall back to 1.
		c, _ = lru.New[string, entry[V]](1)
	}
	return &lruStore[V]{c: c}
}

func (s *lruStore[V]) get(key string) (entry[V], bool) { return s.c.Get(key) }
func (s *lruStore[V]) set(key string, e entry[V])      { s.c.Add(key, e) }
func (s *lruStore[V]) delete(key string)               { s.c.Remove(key) }

// Cache is a generic, string-keyed async single-flight cache. The dedupe
// discipline ("at most one concurrent loader call per key") is delegated to
// golang.org/x/sync/singleflight, which implements exactly that contract;
// Cache layers an expiry-aware, success-only store on top, since
// singleflight.Group by itself forgets its result the instant the call
// completes and has no notion of a cache lifetime.
type Cache[V any] struct {
	name     string
	mu       sync.Mutex
	store    store[V]
	group    singleflight.Group
	expiryFn ExpiryFunc[V]
	clock    Clock
	log      *slog.Logger
}

// New creates a Cache. name is used only for log correlation. expiryFn must
// be non-nil; it is applied to every value that is installed, whether via
// Get's loader path or via Put.
func New[V any](name string, expiryFn ExpiryFunc[V], opts ...Option[V]) *Cache[V] {
	c := &Cache[V]{
		name:     name,
		store:    newMapStore[V](),
		expiryFn: expiryFn,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Option configures a Cache at construction time.
type Option[V any] func(*Cache[V])

// WithLogger overrides the cache's logger (default slog.Default()).
func WithLogger[V any](logger *slog.Logger) Option[V] {
	return func(c *Cache[V]) {
		if logger != nil {
			c.log = logger
		}
	}
}

// WithClock overrides the cache's notion of "now", for deterministic tests.
func WithClock[V any](clock Clock) Option[V] {
	return func(c *Cache[V]) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithCapacity bounds the cache to at most capacity completed entries,
// evicting least-recently-used entries once full. Without this option the
// cache grows without bound; handlers exposed to many distinct issuers
// should set this.
func WithCapacity[V any](capacity int) Option[V] {
	return func(c *Cache[V]) {
		if capacity > 0 {
			c.store = newLRUStore[V](capacity)
		}
	}
}

func (c *Cache[V]) now() int64 {
	if c.clock != nil {
		return c.clock()
	}
	return nowMillis()
}

// Contains reports whether the backing store holds an unexpired, completed
// entry for key.
func (c *Cache[V]) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.store.get(key)
	return ok && c.now() < e.expiresAt
}

// Put inserts value as an already-completed entry, bypassing the loader
// path entirely. Its lifetime is computed the same way a loaded value's
// would be, via the configured ExpiryFunc.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.set(key, entry[V]{value: value, expiresAt: c.expiryFn(value)})
}

// Loader produces a value for a cache miss, performing whatever I/O is
// required. It is invoked at most once per key for any set of concurrent
// Get calls that observe the same miss.
type Loader[V any] func(ctx context.Context) (V, error)

// Get returns the cached value for key if present and unexpired. On a miss
// (absent, present-but-expired, or a previous attempt failed, since
// failures are never cached) it invokes loader exactly once even if many
// goroutines call Get concurrently for the same key, and every one of them
// receives the same outcome.
func (c *Cache[V]) Get(ctx context.Context, key string, loader Loader[V]) (V, error) {
	c.mu.Lock()
	if e, ok := c.store.get(key); ok && c.now() < e.expiresAt {
		c.mu.Unlock()
		c.log.Debug("cache hit", "cache", c.name, "key", key)
		return e.value, nil
	}
	c.mu.Unlock()

	c.log.Debug("cache miss, joining single-flight load", "cache", c.name, "key", key)

	result, err, shared := c.group.Do(key, func() (any, error) {
		c.mu.Lock()
		if e, ok := c.store.get(key); ok && c.now() < e.expiresAt {
			c.mu.Unlock()
			return e.value, nil
		}
		c.mu.Unlock()
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.store.set(key, entry[V]{value: value, expiresAt: c.expiryFn(value)})
		c.mu.Unlock()
		return value, nil
	})

	if err != nil {
		var zero V
		return zero, fmt.Errorf("cache %q: loader failed for key %q: %w", c.name, key, err)
	}
	if shared {
		c.log.Debug("single-flight awaiter resolved from in-flight load", "cache", c.name, "key", key)
	}
	return result.(V), nil
}

// Delete removes any completed entry for key, regardless of expiry.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.delete(key)
}
