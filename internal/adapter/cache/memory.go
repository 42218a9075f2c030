package cache

import (
	"container/list"
	"context"
	"sync"

	"github.com/couchcryptid/geo-enrichment/internal/domain"
)

// MemoryStore is a bounded in-process Store that evicts the least recently
// used entry once full. Entries do not survive the process.
type MemoryStore struct {
	maxEntries int

	mu      sync.Mutex
	order   *list.List // front is most recently used
	byKey   map[string]*list.Element
	evicted int
}

type memoryEntry struct {
	digest  string
	payload []byte
}

// NewMemoryStore creates a MemoryStore holding at most maxEntries payloads.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &MemoryStore{
		maxEntries: maxEntries,
		order:      list.New(),
		byKey:      make(map[string]*list.Element),
	}
}

// Get returns a copy of the payload and marks the entry as recently used.
func (s *MemoryStore) Get(_ context.Context, key domain.CacheKey) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.byKey[key.Digest()]
	if !ok {
		return nil, false, nil
	}
	s.order.MoveToFront(el)
	return clonePayload(el.Value.(*memoryEntry).payload), true, nil
}

// Put stores a copy of payload, evicting the oldest entry when over capacity.
func (s *MemoryStore) Put(_ context.Context, key domain.CacheKey, payload []byte) error {
	digest := key.Digest()

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.byKey[digest]; ok {
		el.Value.(*memoryEntry).payload = clonePayload(payload)
		s.order.MoveToFront(el)
		return nil
	}

	s.byKey[digest] = s.order.PushFront(&memoryEntry{digest: digest, payload: clonePayload(payload)})
	for s.order.Len() > s.maxEntries {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.byKey, oldest.Value.(*memoryEntry).digest)
		s.evicted++
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Len returns the number of cached entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// Evicted returns how many entries have been dropped to stay within capacity.
func (s *MemoryStore) Evicted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evicted
}

func clonePayload(b []byte) []byte {
	return append([]byte(nil), b...)
}
