package cache

import (
	"sync"
)

// Cache is a concurrency-safe map keyed by string, used to track in-flight jobs
type Cache[T interface{}] struct {
	cache map[string]T
	mutex sync.RWMutex
}

func New[T interface{}]() *Cache[T] {
	return &Cache[T]{
		cache: make(map[string]T),
	}
}

func (c *Cache[T]) Remove(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.cache, key)
}

func (c *Cache[T]) Get(key string) T {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	info, ok := c.cache[key]
	if ok {
		return info
	}
	var zero T
	return zero
}

func (c *Cache[T]) GetKeys() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	keys := make([]string, 0, len(c.cache))
	for k := range c.cache {
		keys = append(keys, k)
	}
	return keys
}

func (c *Cache[T]) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.cache)
}

func (c *Cache[T]) Store(key string, value T) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.cache[key] = value
}

// StoreIfAbsent stores value under key unless the key is already present.
// Returns false, leaving the existing entry untouched, if it was.
func (c *Cache[T]) StoreIfAbsent(key string, value T) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if _, ok := c.cache[key]; ok {
		return false
	}
	c.cache[key] = value
	return true
}
