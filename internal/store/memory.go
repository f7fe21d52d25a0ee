package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero = never
	seq       uint64
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryBackend keeps every namespace in process memory. Intended for
// development and tests.
type MemoryBackend struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]memoryEntry
	seq        uint64
	now        func() time.Time
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *MemoryBackend {
	return &MemoryBackend{
		namespaces: make(map[string]map[string]memoryEntry),
		now:        time.Now,
	}
}

// Namespace implements Backend.
func (b *MemoryBackend) Namespace(name string) KV {
	return &memoryKV{backend: b, name: name}
}

// Ping implements Backend.
func (b *MemoryBackend) Ping(context.Context) error { return nil }

// Close implements Backend.
func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.namespaces = make(map[string]map[string]memoryEntry)
	return nil
}

// DeleteExpired implements Sweeper.
func (b *MemoryBackend) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var deleted int64
	for _, entries := range b.namespaces {
		for key, entry := range entries {
			if entry.expired(now) {
				delete(entries, key)
				deleted++
			}
		}
	}
	return deleted, nil
}

type memoryKV struct {
	backend *MemoryBackend
	name    string
}

func (m *memoryKV) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b := m.backend
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, ok := b.namespaces[m.name]
	if !ok {
		entries = make(map[string]memoryEntry)
		b.namespaces[m.name] = entries
	}

	b.seq++
	entry := memoryEntry{value: append([]byte(nil), value...), seq: b.seq}
	if ttl > 0 {
		entry.expiresAt = b.now().Add(ttl)
	}
	entries[key] = entry
	return nil
}

func (m *memoryKV) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := m.backend
	b.mu.RLock()
	defer b.mu.RUnlock()

	entry, ok := b.namespaces[m.name][key]
	if !ok || entry.expired(b.now()) {
		return nil, nil
	}
	return append([]byte(nil), entry.value...), nil
}

func (m *memoryKV) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := m.backend
	b.mu.RLock()
	defer b.mu.RUnlock()

	now := b.now()
	type keyed struct {
		key string
		seq uint64
	}
	var live []keyed
	for key, entry := range b.namespaces[m.name] {
		if !entry.expired(now) {
			live = append(live, keyed{key: key, seq: entry.seq})
		}
	}
	// Insertion order, like the sqlite driver.
	sort.Slice(live, func(i, j int) bool { return live[i].seq < live[j].seq })

	keys := make([]string, 0, len(live))
	for _, k := range live {
		keys = append(keys, k.key)
	}
	return keys, nil
}
