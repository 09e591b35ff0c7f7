package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Collection keys. The _v7 suffix matches the browser app's layout.
const (
	KeyProjects      = "conselho_projects_v7"
	KeyThreads       = "conselho_threads_v7"
	KeyMessages      = "conselho_messages_v7"
	KeyTags          = "conselho_tags_v7"
	KeyAgentProfiles = "conselho_agent_profiles_v7"
	KeyUserProfile   = "conselho_user_profile_v7"
	KeyAgentCustoms  = "conselho_agent_customs_v7"
	KeyTeses         = "conselho_teses_v7"
	KeyFolders       = "conselho_warmap_folders_v7"
	KeyNodes         = "conselho_warmap_nodes_v7"
	KeyConnections   = "conselho_warmap_conns_v7"
	KeyEmbeddings    = "qg_warmap_embeddings_v1"
)

// KnownKeys lists every key the store reads or writes, in dump order
var KnownKeys = []string{
	KeyProjects, KeyThreads, KeyMessages, KeyTags,
	KeyAgentProfiles, KeyUserProfile, KeyAgentCustoms, KeyTeses,
	KeyFolders, KeyNodes, KeyConnections, KeyEmbeddings,
}

// ErrNotFound is returned when an entity id does not exist
var ErrNotFound = errors.New("not found")

// Store exposes typed collections over a Backend. Every mutation re-reads the
// whole collection, changes it, and writes it back. The mutex serializes that
// cycle inside one process; there is no atomicity across collections.
type Store struct {
	backend Backend
	logger  *zap.Logger
	mu      sync.Mutex
}

// NewStore wraps a backend. A nil logger discards output.
func NewStore(b Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{backend: b, logger: logger}
}

// Backend returns the underlying key-value backend
func (s *Store) Backend() Backend { return s.backend }

// Close closes the backend
func (s *Store) Close() error { return s.backend.Close() }

// NewID returns a fresh random entity id
func NewID() string {
	return uuid.New().String()
}

// loadInto decodes key into dst. Missing keys leave dst untouched and report false.
// Undecodable values are treated as missing.
func (s *Store) loadInto(key string, dst any) (bool, error) {
	raw, ok, err := s.backend.Get(key)
	if err != nil {
		return false, err
	}
	if !ok || len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.logger.Debug("discarding undecodable collection", zap.String("key", key), zap.Error(err))
		return false, nil
	}
	return true, nil
}

func (s *Store) store(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return s.backend.Put(key, data)
}

// loadList reads a JSON array collection. Corrupt or missing values are empty.
func loadList[T any](s *Store, key string) ([]T, error) {
	var items []T
	if _, err := s.loadInto(key, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// upsert replaces the item with the same id or appends it
func upsert[T any](items []T, item T, id func(T) string) []T {
	want := id(item)
	for i := range items {
		if id(items[i]) == want {
			items[i] = item
			return items
		}
	}
	return append(items, item)
}

// without returns items for which drop is false
func without[T any](items []T, drop func(T) bool) []T {
	out := items[:0]
	for _, it := range items {
		if !drop(it) {
			out = append(out, it)
		}
	}
	return out
}

// Dump returns the raw JSON stored under every known key that has a value.
func (s *Store) Dump() (map[string]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]json.RawMessage)
	for _, key := range KnownKeys {
		raw, ok, err := s.backend.Get(key)
		if err != nil {
			return nil, err
		}
		if ok && json.Valid(raw) {
			out[key] = json.RawMessage(raw)
		}
	}
	return out, nil
}

// ImportRaw writes a browser localStorage dump. Values may be JSON arrays or
// objects, or strings holding them (localStorage stores strings). Keys the store
// does not know are returned and left alone. Every value is checked before
// anything is written, so a bad dump changes nothing.
func (s *Store) ImportRaw(dump map[string]json.RawMessage) (imported, skipped []string, err error) {
	known := make(map[string]bool, len(KnownKeys))
	for _, k := range KnownKeys {
		known[k] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	values := make(map[string][]byte, len(dump))
	for key, raw := range dump {
		if !known[key] {
			skipped = append(skipped, key)
			continue
		}
		value := []byte(raw)
		var str string
		if json.Unmarshal(raw, &str) == nil {
			value = []byte(str)
		}
		if !json.Valid(value) {
			return nil, skipped, fmt.Errorf("value for %s is not valid JSON", key)
		}
		if c := firstByte(value); c != '[' && c != '{' {
			return nil, skipped, fmt.Errorf("value for %s is not a JSON array or object", key)
		}
		values[key] = value
	}

	for key, value := range values {
		if err := s.backend.Put(key, value); err != nil {
			return imported, skipped, err
		}
		imported = append(imported, key)
	}
	return imported, skipped, nil
}

func firstByte(data []byte) byte {
	for _, c := range data {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return c
	}
	return 0
}
