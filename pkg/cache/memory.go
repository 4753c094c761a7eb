package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMemoryTTL = 7 * 24 * time.Hour

// MemoryItem stores cached value with expiration.
type MemoryItem struct {
	Value    []byte
	ExpireAt time.Time
}

// IsExpired checks if item has expired.
func (m *MemoryItem) IsExpired(now time.Time) bool {
	return now.After(m.ExpireAt)
}

// MemoryCache implements Service in process with LRU eviction. Locks are
// only exclusive within the process.
type MemoryCache struct {
	data          *lru.Cache[string, *MemoryItem]
	locks         map[string]time.Time
	mutex         sync.Mutex
	cleanupTicker *time.Ticker
	done          chan struct{}
	closeOnce     sync.Once
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         256,
		CleanupInterval: 5 * time.Minute,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	// only fails for a non-positive size, which the options never produce
	data, _ := lru.New[string, *MemoryItem](cfg.MaxSize)

	mc := &MemoryCache{
		data:          data,
		locks:         make(map[string]time.Time),
		cleanupTicker: time.NewTicker(cfg.CleanupInterval),
		done:          make(chan struct{}),
	}

	go mc.cleanupExpired()
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value []byte, expiration time.Duration) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if expiration <= 0 {
		expiration = defaultMemoryTTL
	}
	mc.data.Add(key, &MemoryItem{
		Value:    append([]byte(nil), value...),
		ExpireAt: time.Now().Add(expiration),
	})
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	item, exists := mc.data.Get(key)
	if !exists {
		return nil, ErrCacheMiss
	}
	if item.IsExpired(time.Now()) {
		mc.data.Remove(key)
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), item.Value...), nil
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	for _, key := range keys {
		mc.data.Remove(key)
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	item, ok := mc.data.Peek(key)
	return ok && !item.IsExpired(time.Now()), nil
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	now := time.Now()
	if until, ok := mc.locks[key]; ok && now.Before(until) {
		return false, nil
	}
	mc.locks[key] = now.Add(ttl)
	return true, nil
}

func (mc *MemoryCache) Unlock(_ context.Context, key string) error {
	mc.mutex.Lock()
	delete(mc.locks, key)
	mc.mutex.Unlock()
	return nil
}

// Len reports the number of live entries.
func (mc *MemoryCache) Len() int {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	return mc.data.Len()
}

func (mc *MemoryCache) cleanupExpired() {
	for {
		select {
		case <-mc.done:
			return
		case now := <-mc.cleanupTicker.C:
			mc.mutex.Lock()
			for _, key := range mc.data.Keys() {
				if item, ok := mc.data.Peek(key); ok && item.IsExpired(now) {
					mc.data.Remove(key)
				}
			}
			for key, until := range mc.locks {
				if now.After(until) {
					delete(mc.locks, key)
				}
			}
			mc.mutex.Unlock()
		}
	}
}

// Close stops the cleanup goroutine.
func (mc *MemoryCache) Close() error {
	mc.closeOnce.Do(func() {
		mc.cleanupTicker.Stop()
		close(mc.done)
	})
	return nil
}
