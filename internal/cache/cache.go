// internal/cache/cache.go
package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/law-makers/landed/pkg/models"
	"github.com/rs/zerolog/log"
)

// DefaultTTL applies when Set is called without a positive TTL
const DefaultTTL = 30 * time.Minute

// Cache stores extraction results keyed by product URL.
//
// Implementations:
//   - MemoryCache: in-process LRU with TTL
//   - RedisCache: shared across processes
type Cache interface {
	// Get returns the cached record and whether it was found and fresh.
	Get(ctx context.Context, key string) (models.ProductRecord, bool)

	// Set stores a record for ttl, replacing any existing entry.
	Set(ctx context.Context, key string, rec models.ProductRecord, ttl time.Duration) error

	// Delete removes a record. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every record owned by this cache.
	Clear(ctx context.Context) error

	// Close releases background resources.
	Close() error
}

// KeyFromURL builds the cache key for a product URL
func KeyFromURL(rawURL string) string {
	return "landed:record:" + strings.TrimSpace(rawURL)
}

type cacheEntry struct {
	Record    models.ProductRecord
	ExpiresAt time.Time
	Key       string
	Size      int64
}

// MemoryCache is an in-memory record cache with LRU eviction by size
type MemoryCache struct {
	store   map[string]*list.Element
	lruList *list.List
	mu      sync.Mutex
	maxSize int64
	size    int64
	cancel  context.CancelFunc
	hits    uint64
	misses  uint64
}

// NewMemoryCache creates an LRU cache bounded to roughly maxSizeBytes
func NewMemoryCache(maxSizeBytes int64) *MemoryCache {
	if maxSizeBytes <= 0 {
		maxSizeBytes = 16 * 1024 * 1024
	}

	ctx, cancel := context.WithCancel(context.Background())

	mc := &MemoryCache{
		store:   make(map[string]*list.Element),
		lruList: list.New(),
		maxSize: maxSizeBytes,
		cancel:  cancel,
	}

	go mc.cleanupExpired(ctx, time.Minute)

	return mc
}

// Get retrieves a record and marks it most recently used
func (mc *MemoryCache) Get(_ context.Context, key string) (models.ProductRecord, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	element, exists := mc.store[key]
	if !exists {
		mc.misses++
		return models.ProductRecord{}, false
	}

	entry := element.Value.(*cacheEntry)
	if time.Now().After(entry.ExpiresAt) {
		mc.misses++
		mc.removeElement(element)
		return models.ProductRecord{}, false
	}

	mc.lruList.MoveToFront(element)
	mc.hits++

	log.Debug().Str("key", key).Msg("Cache hit")
	return entry.Record, true
}

// Set stores a record with TTL, evicting least recently used entries to fit
func (mc *MemoryCache) Set(_ context.Context, key string, rec models.ProductRecord, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry := &cacheEntry{
		Record:    rec,
		ExpiresAt: time.Now().Add(ttl),
		Key:       key,
		Size:      recordSize(key, rec),
	}

	if element, exists := mc.store[key]; exists {
		mc.removeElement(element)
	}

	for mc.size+entry.Size > mc.maxSize && mc.lruList.Len() > 0 {
		mc.evictLRU()
	}

	mc.store[key] = mc.lruList.PushFront(entry)
	mc.size += entry.Size

	log.Debug().
		Str("key", key).
		Dur("ttl", ttl).
		Int64("size_bytes", entry.Size).
		Msg("Cached record")

	return nil
}

// Delete removes a record
func (mc *MemoryCache) Delete(_ context.Context, key string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if element, exists := mc.store[key]; exists {
		mc.removeElement(element)
	}
	return nil
}

// Clear removes every record and resets statistics
func (mc *MemoryCache) Clear(_ context.Context) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.store = make(map[string]*list.Element)
	mc.lruList = list.New()
	mc.size = 0
	mc.hits = 0
	mc.misses = 0
	return nil
}

// Close stops the background cleanup goroutine
func (mc *MemoryCache) Close() error {
	mc.cancel()
	return nil
}

// Len returns the number of stored entries, expired or not
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.lruList.Len()
}

// Stats returns cache statistics including hit rate
func (mc *MemoryCache) Stats() map[string]interface{} {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	hitRate := 0.0
	if total := mc.hits + mc.misses; total > 0 {
		hitRate = float64(mc.hits) / float64(total) * 100
	}

	return map[string]interface{}{
		"entries":    mc.lruList.Len(),
		"size_bytes": mc.size,
		"max_size":   mc.maxSize,
		"hits":       mc.hits,
		"misses":     mc.misses,
		"hit_rate":   hitRate,
	}
}

// evictLRU removes the least recently used entry (lock held)
func (mc *MemoryCache) evictLRU() {
	if element := mc.lruList.Back(); element != nil {
		log.Debug().Str("key", element.Value.(*cacheEntry).Key).Msg("Evicted from cache (LRU)")
		mc.removeElement(element)
	}
}

// removeElement unlinks an entry and its size accounting (lock held)
func (mc *MemoryCache) removeElement(element *list.Element) {
	entry := element.Value.(*cacheEntry)
	mc.lruList.Remove(element)
	delete(mc.store, entry.Key)
	mc.size -= entry.Size
}

func (mc *MemoryCache) cleanupExpired(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			mc.mu.Lock()
			now := time.Now()
			var next *list.Element
			for element := mc.lruList.Front(); element != nil; element = next {
				next = element.Next()
				if now.After(element.Value.(*cacheEntry).ExpiresAt) {
					mc.removeElement(element)
				}
			}
			mc.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

func recordSize(key string, rec models.ProductRecord) int64 {
	n := len(key) + len(rec.URL) + len(rec.Store) + len(rec.Title) + len(rec.Currency) +
		len(rec.Image) + len(rec.Variant) + len(rec.FetchStrategy)
	return int64(n) + 256
}
