package cache

import (
	"container/list"
	"sync"
	"time"
)

// Memory is the L1 tier: a byte-bounded LRU.
type Memory struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	items    map[string]*list.Element
	order    *list.List // front is most recently used
	stats    Stats
}

type memoryEntry struct {
	key    string
	value  []byte
	stored time.Time
}

// NewMemory creates an L1 cache holding at most capacity bytes.
func NewMemory(capacity int64) *Memory {
	return &Memory{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the value for key and marks it recently used.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok {
		m.stats.Misses++
		return nil, false
	}
	m.order.MoveToFront(elem)
	m.stats.Hits++
	return elem.Value.(*memoryEntry).value, true
}

// Put stores value under key, evicting least recently used entries to
// make room.
func (m *Memory) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := int64(len(value))
	if n > m.capacity {
		return ErrItemTooLarge
	}

	if elem, ok := m.items[key]; ok {
		m.remove(elem)
	}
	for m.size+n > m.capacity && m.order.Len() > 0 {
		m.remove(m.order.Back())
		m.stats.Evictions++
	}

	m.items[key] = m.order.PushFront(&memoryEntry{key: key, value: value, stored: time.Now()})
	m.size += n
	return nil
}

// Delete removes key if present.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.items[key]; ok {
		m.remove(elem)
	}
}

// Contains reports whether key is cached without touching its recency.
func (m *Memory) Contains(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.items[key]
	return ok
}

// Prune removes entries stored before now-maxAge and returns how many.
func (m *Memory) Prune(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	pruned := 0
	for elem := m.order.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*memoryEntry).stored.Before(cutoff) {
			m.remove(elem)
			pruned++
		}
		elem = prev
	}
	m.stats.Expired += int64(pruned)
	return pruned
}

// Clear drops every entry.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[string]*list.Element)
	m.order.Init()
	m.size = 0
}

// Stats returns a snapshot of the tier's counters.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stats
	s.Capacity = m.capacity
	s.Size = m.size
	s.Items = len(m.items)
	return s
}

// remove must be called with m.mu held.
func (m *Memory) remove(elem *list.Element) {
	entry := m.order.Remove(elem).(*memoryEntry)
	delete(m.items, entry.key)
	m.size -= int64(len(entry.value))
}
