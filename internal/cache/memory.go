package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryProvider is an in-process Provider with per-entry TTL and an LRU
// bound on entry count. It is safe for concurrent use.
type MemoryProvider struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int
	now        func() time.Time
}

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// NewMemoryProvider constructs a MemoryProvider holding at most maxEntries
// values. A non-positive bound defaults to 256.
func NewMemoryProvider(maxEntries int) *MemoryProvider {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &MemoryProvider{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the stored bytes or ErrCacheMiss when absent or expired.
func (p *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elem, ok := p.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	entry := elem.Value.(*memoryEntry)
	if !entry.expiresAt.IsZero() && p.now().After(entry.expiresAt) {
		p.removeLocked(elem)
		return nil, ErrCacheMiss
	}
	p.order.MoveToFront(elem)

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

// Set stores a copy of value under key. A zero ttl means no expiry.
func (p *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = p.now().Add(ttl)
	}

	if elem, ok := p.entries[key]; ok {
		entry := elem.Value.(*memoryEntry)
		entry.value = stored
		entry.expiresAt = expiresAt
		p.order.MoveToFront(elem)
		return nil
	}

	elem := p.order.PushFront(&memoryEntry{key: key, value: stored, expiresAt: expiresAt})
	p.entries[key] = elem

	for p.order.Len() > p.maxEntries {
		p.removeLocked(p.order.Back())
	}
	return nil
}

// Del removes a key if present.
func (p *MemoryProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if elem, ok := p.entries[key]; ok {
		p.removeLocked(elem)
	}
	return nil
}

// Close drops all entries.
func (p *MemoryProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.entries = make(map[string]*list.Element)
	p.order.Init()
	return nil
}

func (p *MemoryProvider) removeLocked(elem *list.Element) {
	if elem == nil {
		return
	}
	entry := elem.Value.(*memoryEntry)
	delete(p.entries, entry.key)
	p.order.Remove(elem)
}
