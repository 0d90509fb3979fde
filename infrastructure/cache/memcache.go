package cache

import (
	"errors"
	"strings"
	"sync"
	"time"
)

var ErrNotInteger = errors.New("value is not an integer")

// MemCache is an in-process key/value cache backed by sync.Map. Items may
// carry a TTL; a janitor goroutine evicts them when a cleanup interval is
// given.
type MemCache struct {
	items sync.Map
	stop  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

type item struct {
	mu         sync.Mutex
	value      any
	expiration int64 // unix nano, 0 never expires
}

func NewMemCache(cleanupInterval time.Duration) *MemCache {
	m := &MemCache{
		stop: make(chan struct{}),
	}
	if cleanupInterval > 0 {
		m.wg.Add(1)
		go func() {
			ticker := time.NewTicker(cleanupInterval)
			defer ticker.Stop()
			defer m.wg.Done()
			for {
				select {
				case <-ticker.C:
					m.cleanup()
				case <-m.stop:
					return
				}
			}
		}()
	}
	return m
}

func (m *MemCache) Set(key string, value any, ttl time.Duration) {
	var exp int64
	if ttl > 0 {
		exp = time.Now().Add(ttl).UnixNano()
	}
	m.items.Store(key, &item{value: value, expiration: exp})
}

func (m *MemCache) Get(key string) (any, bool) {
	v, ok := m.items.Load(key)
	if !ok {
		return nil, false
	}
	it := v.(*item)
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.isExpired() {
		m.items.CompareAndDelete(key, it)
		return nil, false
	}
	return it.value, true
}

// Touch pushes a live item's expiry ttl into the future. It reports false
// when the key is missing or already expired.
func (m *MemCache) Touch(key string, ttl time.Duration) bool {
	v, ok := m.items.Load(key)
	if !ok {
		return false
	}
	it := v.(*item)
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.isExpired() {
		return false
	}
	if ttl > 0 {
		it.expiration = time.Now().Add(ttl).UnixNano()
	}
	return true
}

func (m *MemCache) Delete(key string) {
	m.items.Delete(key)
}

// Increment adds delta to the integer stored at key, creating it when
// missing. The update is atomic per key.
func (m *MemCache) Increment(key string, delta int64) (int64, error) {
	actual, _ := m.items.LoadOrStore(key, &item{value: int64(0)})
	it := actual.(*item)

	it.mu.Lock()
	defer it.mu.Unlock()

	if it.isExpired() {
		it.value = int64(0)
		it.expiration = 0
	}

	switch v := it.value.(type) {
	case int64:
		it.value = v + delta
	case int:
		it.value = int64(v) + delta
	case nil:
		it.value = delta
	default:
		return 0, ErrNotInteger
	}
	return it.value.(int64), nil
}

// WithPrefix returns the live entries whose key starts with prefix, keyed by
// the remainder of the key.
func (m *MemCache) WithPrefix(prefix string) map[string]any {
	out := make(map[string]any)
	now := time.Now().UnixNano()
	m.items.Range(func(k, v any) bool {
		key, ok := k.(string)
		if !ok || !strings.HasPrefix(key, prefix) {
			return true
		}
		it := v.(*item)
		it.mu.Lock()
		if it.expiration == 0 || now <= it.expiration {
			out[strings.TrimPrefix(key, prefix)] = it.value
		}
		it.mu.Unlock()
		return true
	})
	return out
}

func (m *MemCache) Close() {
	m.once.Do(func() {
		close(m.stop)
		m.wg.Wait()
	})
}

func (it *item) isExpired() bool {
	return it.expiration != 0 && time.Now().UnixNano() > it.expiration
}

func (m *MemCache) cleanup() {
	now := time.Now().UnixNano()
	m.items.Range(func(k, v any) bool {
		it := v.(*item)
		it.mu.Lock()
		expired := it.expiration != 0 && now > it.expiration
		it.mu.Unlock()
		if expired {
			m.items.CompareAndDelete(k, it)
		}
		return true
	})
}
