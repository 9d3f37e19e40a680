package cache

import (
	"container/list"
	"sync"
	"time"
)

// MemoryStore is the default in-process Store: a TTL-aware LRU bounded by
// entry count. Safe for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[string]*list.Element
	now      func() time.Time
}

type memoryEntry struct {
	key     string
	value   []byte
	expires time.Time
}

// NewMemoryStore creates a store holding at most capacity entries. A
// non-positive capacity falls back to 1024.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryStore{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
		now:      time.Now,
	}
}

// Get returns the stored value when present and unexpired.
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	element, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	entry := element.Value.(*memoryEntry)
	if !entry.expires.IsZero() && s.now().After(entry.expires) {
		s.order.Remove(element)
		delete(s.entries, key)
		return nil, false
	}
	s.order.MoveToFront(element)
	return entry.value, true
}

// Put stores value under key, evicting the least recently used entry when the
// store is full. A non-positive ttl means no expiry.
func (s *MemoryStore) Put(key string, value []byte, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expires time.Time
	if ttl > 0 {
		expires = s.now().Add(ttl)
	}

	if element, ok := s.entries[key]; ok {
		entry := element.Value.(*memoryEntry)
		entry.value = value
		entry.expires = expires
		s.order.MoveToFront(element)
		return
	}

	element := s.order.PushFront(&memoryEntry{key: key, value: value, expires: expires})
	s.entries[key] = element

	for s.order.Len() > s.capacity {
		oldest := s.order.Back()
		if oldest == nil {
			break
		}
		s.order.Remove(oldest)
		delete(s.entries, oldest.Value.(*memoryEntry).key)
	}
}
