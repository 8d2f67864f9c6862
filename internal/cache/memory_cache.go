package cache

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	value   []byte
	expires time.Time
}

// MemoryCache кеш в памяти процесса, используется без Redis и в тестах
type MemoryCache struct {
	mu      sync.Mutex
	items   map[string]memoryItem
	metrics CacheMetrics
	closed  bool
	now     func() time.Time
}

// NewMemoryCache создаёт пустой кеш в памяти
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]memoryItem), now: time.Now}
}

func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrCacheClosed
	}

	m.metrics.TotalRequests++
	it, ok := m.items[key]
	if ok && !it.expires.IsZero() && m.now().After(it.expires) {
		delete(m.items, key)
		ok = false
	}
	if !ok {
		m.metrics.CacheMisses++
		return nil, ErrCacheMiss
	}
	m.metrics.CacheHits++
	return it.value, nil
}

func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrCacheClosed
	}

	it := memoryItem{value: value}
	if ttl > 0 {
		it.expires = m.now().Add(ttl)
	}
	m.items[key] = it
	return nil
}

func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Close() error {
	m.mu.Lock()
	m.closed = true
	m.items = nil
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) GetMetrics() *CacheMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	metrics := m.metrics
	metrics.TotalKeys = int64(len(m.items))
	metrics.LastUpdate = m.now()
	hitRatio(&metrics)
	return &metrics
}
