package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process Cache with redis-compatible semantics for the
// operations it supports.
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]*memoryItem
	now   func() time.Time
}

type memoryItem struct {
	value     string
	list      []string
	isList    bool
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]*memoryItem), now: time.Now}
}

// SetClock replaces the clock used for expiry.
func (m *MemoryCache) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if now != nil {
		m.now = now
	}
}

func (m *MemoryCache) Ping(ctx context.Context) error { return ctx.Err() }

func (m *MemoryCache) Close() error { return nil }

// lookup returns the live item for key, evicting it when expired.
// Callers hold m.mu.
func (m *MemoryCache) lookup(key string) *memoryItem {
	item, ok := m.items[key]
	if !ok {
		return nil
	}
	if !item.expiresAt.IsZero() && !m.now().Before(item.expiresAt) {
		delete(m.items, key)
		return nil
	}
	return item
}

func (m *MemoryCache) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := m.lookup(key)
	if item == nil || item.isList {
		return "", nil
	}
	return item.value, nil
}

func (m *MemoryCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := &memoryItem{value: value}
	if ttl > 0 {
		item.expiresAt = m.now().Add(ttl)
	}
	m.items[key] = item
	return nil
}

func (m *MemoryCache) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

func (m *MemoryCache) Exists(ctx context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if m.lookup(k) != nil {
			n++
		}
	}
	return n, nil
}

func (m *MemoryCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := m.lookup(key)
	switch {
	case item == nil:
		return -2, nil
	case item.expiresAt.IsZero():
		return -1, nil
	default:
		return item.expiresAt.Sub(m.now()), nil
	}
}

func (m *MemoryCache) LPush(ctx context.Context, key string, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := m.lookup(key)
	if item == nil || !item.isList {
		item = &memoryItem{isList: true}
		m.items[key] = item
	}
	pushed := make([]string, 0, len(values)+len(item.list))
	for i := len(values) - 1; i >= 0; i-- {
		pushed = append(pushed, values[i])
	}
	item.list = append(pushed, item.list...)
	return nil
}

func (m *MemoryCache) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := m.lookup(key)
	if item == nil || !item.isList {
		return []string{}, nil
	}
	lo, hi, ok := listBounds(int64(len(item.list)), start, stop)
	if !ok {
		return []string{}, nil
	}
	out := make([]string, hi-lo+1)
	copy(out, item.list[lo:hi+1])
	return out, nil
}

func (m *MemoryCache) LTrim(ctx context.Context, key string, start, stop int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := m.lookup(key)
	if item == nil || !item.isList {
		return nil
	}
	lo, hi, ok := listBounds(int64(len(item.list)), start, stop)
	if !ok {
		delete(m.items, key)
		return nil
	}
	item.list = append([]string(nil), item.list[lo:hi+1]...)
	return nil
}

// listBounds resolves redis-style inclusive indexes, negatives counting from
// the end.
func listBounds(n, start, stop int64) (int64, int64, bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop, true
}
