package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Store is the cache contract shared by every provider. Read treats any
// retrieval failure as a miss, never an error, since callers always have a
// live-fetch fallback. The max age belongs to the reader, not the entry.
type Store interface {
	Read(key string, maxAge time.Duration) ([]byte, bool)
	Write(key string, payload any) error
}

// envelope is the persisted JSON shape: {"timestamp": unixMillis, "data": ...}
type envelope struct {
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// FileStore persists one JSON envelope per key under a cache directory.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates a file-backed store rooted at dir.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = "cache/scanner"
	}
	os.MkdirAll(dir, 0755)
	return &FileStore{dir: dir}
}

// Read returns the payload for key if it is younger than maxAge.
func (s *FileStore) Read(key string, maxAge time.Duration) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, false
	}

	writtenAt := time.UnixMilli(env.Timestamp)
	if time.Since(writtenAt) >= maxAge {
		return nil, false
	}

	return env.Data, true
}

// Write persists payload under key, replacing any previous value.
func (s *FileStore) Write(key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	env := envelope{
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return os.WriteFile(s.path(key), b, 0644)
}

func (s *FileStore) path(key string) string {
	// Keys are namespaced names like "sp500-tickers" or "hist-BRK-B";
	// replace anything that is not filename-safe.
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, key)
	return filepath.Join(s.dir, safe+".json")
}

type memEntry struct {
	data      []byte
	writtenAt time.Time
}

// MemoryStore is an in-process Store. Used standalone in tests and as the
// front tier of TwoTier.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memEntry)}
}

// Read returns the payload for key if it is younger than maxAge.
func (m *MemoryStore) Read(key string, maxAge time.Duration) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok || time.Since(e.writtenAt) >= maxAge {
		return nil, false
	}
	return e.data, true
}

// Write stores payload under key.
func (m *MemoryStore) Write(key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memEntry{data: data, writtenAt: time.Now()}
	return nil
}

// Clear drops all entries.
func (m *MemoryStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]memEntry)
}

// TwoTier layers an in-process memory store in front of a durable store so a
// single scan does not round-trip to durable storage repeatedly. The memory
// tier is populated on durable hits and on fresh writes, mirroring the same
// maxAge semantics.
type TwoTier struct {
	memory  *MemoryStore
	durable Store
}

// NewTwoTier wraps durable with a fresh memory tier.
func NewTwoTier(durable Store) *TwoTier {
	return &TwoTier{
		memory:  NewMemoryStore(),
		durable: durable,
	}
}

// Read checks the memory tier first, then the durable store. A durable hit
// populates the memory tier.
func (t *TwoTier) Read(key string, maxAge time.Duration) ([]byte, bool) {
	if data, ok := t.memory.Read(key, maxAge); ok {
		return data, true
	}

	data, ok := t.durable.Read(key, maxAge)
	if !ok {
		return nil, false
	}

	t.memory.mu.Lock()
	t.memory.entries[key] = memEntry{data: data, writtenAt: time.Now()}
	t.memory.mu.Unlock()

	return data, true
}

// Write stores payload in both tiers. A durable write failure is returned but
// the memory tier is still updated so the running scan can keep using the value.
func (t *TwoTier) Write(key string, payload any) error {
	if err := t.memory.Write(key, payload); err != nil {
		return err
	}
	return t.durable.Write(key, payload)
}

// ReadJSON reads key from s and unmarshals the payload into v.
func ReadJSON(s Store, key string, maxAge time.Duration, v any) bool {
	data, ok := s.Read(key, maxAge)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false
	}
	return true
}
