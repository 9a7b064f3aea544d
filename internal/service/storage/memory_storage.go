package storage

import (
	"sync"
	"time"
)

// MemoryStorage is a keyed in-memory store that remembers which keys changed
// since the last flush. Deleted keys stay dirty until cleared so a flusher
// can remove them downstream.
type MemoryStorage[K comparable, V any] struct {
	data       map[K]V
	mutex      sync.RWMutex
	dirty      map[K]bool
	lastUpdate map[K]time.Time
}

func NewMemoryStorage[K comparable, V any]() *MemoryStorage[K, V] {
	return &MemoryStorage[K, V]{
		data:       make(map[K]V),
		dirty:      make(map[K]bool),
		lastUpdate: make(map[K]time.Time),
	}
}

func (s *MemoryStorage[K, V]) Set(key K, value V) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.setLocked(key, value)
}

func (s *MemoryStorage[K, V]) setLocked(key K, value V) {
	s.data[key] = value
	s.dirty[key] = true
	s.lastUpdate[key] = time.Now()
}

// SetClean stores a value without marking it dirty, for values loaded from
// the backing store.
func (s *MemoryStorage[K, V]) SetClean(key K, value V) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.data[key] = value
	s.lastUpdate[key] = time.Now()
}

func (s *MemoryStorage[K, V]) Get(key K) (V, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	value, exists := s.data[key]
	return value, exists
}

// Update applies fn to the value under the write lock. fn receives the
// current value and whether it exists, and returns the new value and whether
// to store it. Update reports whether a value was stored.
func (s *MemoryStorage[K, V]) Update(key K, fn func(value V, exists bool) (V, bool)) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	current, exists := s.data[key]
	next, store := fn(current, exists)
	if !store {
		return false
	}
	s.setLocked(key, next)
	return true
}

func (s *MemoryStorage[K, V]) Delete(key K) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.data[key]; !exists {
		return false
	}
	delete(s.data, key)
	s.dirty[key] = true
	s.lastUpdate[key] = time.Now()
	return true
}

// GetDirty returns changed values without clearing their flags.
func (s *MemoryStorage[K, V]) GetDirty() map[K]V {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	result := make(map[K]V, len(s.dirty))
	for k := range s.dirty {
		if v, exists := s.data[k]; exists {
			result[k] = v
		}
	}
	return result
}

// GetDeleted returns dirty keys that no longer have a value.
func (s *MemoryStorage[K, V]) GetDeleted() []K {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var result []K
	for k := range s.dirty {
		if _, exists := s.data[k]; !exists {
			result = append(result, k)
		}
	}
	return result
}

func (s *MemoryStorage[K, V]) ClearDirty(keys []K) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, k := range keys {
		s.clearLocked(k)
	}
}

func (s *MemoryStorage[K, V]) clearLocked(k K) {
	delete(s.dirty, k)
	if _, exists := s.data[k]; !exists {
		delete(s.lastUpdate, k)
	}
}

// ClearDirtyBefore clears flags only for keys not updated after t, so a
// change that lands while a flush is running stays dirty.
func (s *MemoryStorage[K, V]) ClearDirtyBefore(keys []K, t time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, k := range keys {
		if updated, ok := s.lastUpdate[k]; ok && updated.After(t) {
			continue
		}
		s.clearLocked(k)
	}
}

// LastUpdate returns when key was last stored or deleted.
func (s *MemoryStorage[K, V]) LastUpdate(key K) (time.Time, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	t, ok := s.lastUpdate[key]
	return t, ok
}

// ForEach calls fn on a snapshot of the data; returning false stops early.
func (s *MemoryStorage[K, V]) ForEach(fn func(key K, value V) bool) {
	s.mutex.RLock()
	items := make(map[K]V, len(s.data))
	for k, v := range s.data {
		items[k] = v
	}
	s.mutex.RUnlock()

	for k, v := range items {
		if !fn(k, v) {
			break
		}
	}
}

func (s *MemoryStorage[K, V]) Count() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.data)
}
