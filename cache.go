package takarik

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Cache is the interface for caching query results.
// Users should implement this interface with their preferred caching solution
// (e.g., Redis, Memcached, in-memory).
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// CacheKey derives the cache key of a query: the table, its write
// generation, and a digest of the statement and its parameters. Bumping
// the generation on every write makes stale entries unreachable.
func CacheKey(table string, generation uint64, query string, args []any) string {
	h := fnv.New64a()
	h.Write([]byte(query))
	for _, a := range args {
		fmt.Fprintf(h, "|%v", a)
	}
	return fmt.Sprintf("%s:%d:%x", table, generation, h.Sum64())
}

// cachedRows is the cache encoding of a materialized result set.
type cachedRows struct {
	Columns []string
	Rows    [][]any
}

func encodeRows(columns []string, rows [][]any) ([]byte, error) {
	return msgpack.Marshal(cachedRows{Columns: columns, Rows: rows})
}

func decodeRows(data []byte) ([]string, [][]any, error) {
	var c cachedRows
	if err := msgpack.Unmarshal(data, &c); err != nil {
		return nil, nil, err
	}
	return c.Columns, c.Rows, nil
}

// MapCache is an in-memory Cache backed by a mutex-guarded map. It is
// meant for tests and single-process setups.
type MapCache struct {
	mu      sync.Mutex
	entries map[string]mapEntry
}

type mapEntry struct {
	value   []byte
	expires time.Time
}

// NewMapCache returns an empty MapCache.
func NewMapCache() *MapCache {
	return &MapCache{entries: make(map[string]mapEntry)}
}

// Get retrieves a value from the cache.
func (c *MapCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		delete(c.entries, key)
		return nil, nil
	}
	return e.value, nil
}

// Set stores a value in the cache.
func (c *MapCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := mapEntry{value: value}
	if ttl > 0 {
		e.expires = time.Now().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

// Delete removes a value from the cache.
func (c *MapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// Clear removes all values from the cache.
func (c *MapCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]mapEntry)
	return nil
}
