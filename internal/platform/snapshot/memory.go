package snapshot

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type memEntry struct {
	key   string
	entry Entry
}

// MemoryStore is a thread-safe in-memory Store with lazy expiration and
// least-recently-used eviction once maxEntries is reached.
type MemoryStore struct {
	mu         sync.Mutex
	maxEntries int
	entries    map[string]*list.Element
	lru        *list.List
	now        func() time.Time
}

// NewMemoryStore creates a MemoryStore holding at most maxEntries entries.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &MemoryStore{
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
		now:        time.Now,
	}
}

// Get returns the entry for key. Expired entries are deleted and reported as
// a miss.
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	me := el.Value.(*memEntry)
	if !me.entry.ExpiresAt.IsZero() && s.now().After(me.entry.ExpiresAt) {
		s.lru.Remove(el)
		delete(s.entries, key)
		return nil, false, nil
	}
	s.lru.MoveToFront(el)
	e := me.entry
	return &e, true, nil
}

// Put stores data under key. A zero ttl never expires.
func (s *MemoryStore) Put(_ context.Context, key string, data []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	e := Entry{Data: append([]byte(nil), data...), StoredAt: now}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}
	if el, ok := s.entries[key]; ok {
		el.Value.(*memEntry).entry = e
		s.lru.MoveToFront(el)
		return nil
	}
	s.entries[key] = s.lru.PushFront(&memEntry{key: key, entry: e})
	for s.lru.Len() > s.maxEntries {
		oldest := s.lru.Back()
		s.lru.Remove(oldest)
		delete(s.entries, oldest.Value.(*memEntry).key)
	}
	return nil
}

// Delete removes key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.entries[key]; ok {
		s.lru.Remove(el)
		delete(s.entries, key)
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}
