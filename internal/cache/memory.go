package cache

import (
	"sync"
)

// Memory is the in-process cache backend. Reads take a shared lock;
// GetOrCompute serializes loads per key through a dedicated key-lock table
// so concurrent misses for the same key fire a single upstream call while
// distinct keys proceed independently.
type Memory struct {
	mu      sync.RWMutex
	entries map[Kind]map[string][]byte
	hits    int64
	misses  int64

	inflightMu sync.Mutex
	inflight   map[string]*sync.Mutex
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		entries:  make(map[Kind]map[string][]byte),
		inflight: make(map[string]*sync.Mutex),
	}
}

func (m *Memory) Get(kind Kind, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.entries[kind][key]
	if ok {
		m.hits++
	} else {
		m.misses++
	}
	return val, ok
}

func (m *Memory) Put(kind Kind, key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries[kind] == nil {
		m.entries[kind] = make(map[string][]byte)
	}
	m.entries[kind][key] = value
}

func (m *Memory) GetOrCompute(kind Kind, key string, load func() ([]byte, error)) ([]byte, error) {
	if val, ok := m.Get(kind, key); ok {
		return val, nil
	}

	lock := m.keyLock(kind, key)
	lock.Lock()
	defer lock.Unlock()

	// A concurrent caller may have stored the value while we waited.
	m.mu.Lock()
	if val, ok := m.entries[kind][key]; ok {
		m.hits++
		m.mu.Unlock()
		return val, nil
	}
	m.mu.Unlock()

	val, err := load()
	if err != nil {
		return nil, err
	}
	m.Put(kind, key, val)
	return val, nil
}

// keyLock returns the per-key mutex, creating it on first use.
func (m *Memory) keyLock(kind Kind, key string) *sync.Mutex {
	composite := string(kind) + ":" + key
	m.inflightMu.Lock()
	defer m.inflightMu.Unlock()
	lock, ok := m.inflight[composite]
	if !ok {
		lock = &sync.Mutex{}
		m.inflight[composite] = lock
	}
	return lock
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[Kind]map[string][]byte)
	m.hits = 0
	m.misses = 0

	m.inflightMu.Lock()
	m.inflight = make(map[string]*sync.Mutex)
	m.inflightMu.Unlock()
	return nil
}

func (m *Memory) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := Stats{
		Hits:        m.hits,
		Misses:      m.misses,
		SizePerKind: make(map[Kind]int64, len(m.entries)),
	}
	for kind, byKey := range m.entries {
		stats.SizePerKind[kind] = int64(len(byKey))
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

func (m *Memory) Close() error { return nil }
