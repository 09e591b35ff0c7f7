package db

import (
	"encoding/binary"
	"math"
)

// NodeEmbedding pairs a node ID with its deserialized embedding vector.
type NodeEmbedding struct {
	ID        string
	Embedding []float32
}

// storedEmbedding is one cache entry. UpdatedAt is the node's updatedAt when
// the vector was computed; a newer node makes the entry stale.
type storedEmbedding struct {
	UpdatedAt int64  `json:"updatedAt"`
	Vector    []byte `json:"vector"` // little-endian float32
}

// bytesToEmbedding converts a little-endian byte slice to []float32.
// Each 4 bytes = one LE float32. Short trailing chunk → 0.0.
func bytesToEmbedding(data []byte) []float32 {
	n := len(data) / 4
	if len(data)%4 != 0 {
		n++ // include partial chunk as 0.0
	}
	result := make([]float32, n)
	for i := 0; i < len(data)/4; i++ {
		bits := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		result[i] = math.Float32frombits(bits)
	}
	return result
}

func embeddingToBytes(v []float32) []byte {
	data := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(f))
	}
	return data
}

func (s *Store) loadEmbeddings() (map[string]storedEmbedding, error) {
	cache := map[string]storedEmbedding{}
	if _, err := s.loadInto(KeyEmbeddings, &cache); err != nil {
		return nil, err
	}
	if cache == nil {
		cache = map[string]storedEmbedding{}
	}
	return cache, nil
}

// SaveNodeEmbedding caches the embedding of a node at the given version
func (s *Store) SaveNodeEmbedding(nodeID string, updatedAt int64, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cache, err := s.loadEmbeddings()
	if err != nil {
		return err
	}
	cache[nodeID] = storedEmbedding{UpdatedAt: updatedAt, Vector: embeddingToBytes(vec)}
	return s.store(KeyEmbeddings, cache)
}

// NodeEmbeddings returns cached embeddings that are still current for nodes.
// The second result lists nodes needing a (re)computed embedding.
func (s *Store) NodeEmbeddings(nodes []Node) ([]NodeEmbedding, []Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cache, err := s.loadEmbeddings()
	if err != nil {
		return nil, nil, err
	}

	var fresh []NodeEmbedding
	var missing []Node
	for _, n := range nodes {
		entry, ok := cache[n.ID]
		if !ok || entry.UpdatedAt < n.UpdatedAt || len(entry.Vector) == 0 {
			missing = append(missing, n)
			continue
		}
		fresh = append(fresh, NodeEmbedding{ID: n.ID, Embedding: bytesToEmbedding(entry.Vector)})
	}
	return fresh, missing, nil
}

// PruneEmbeddings drops cache entries for nodes that no longer exist
func (s *Store) PruneEmbeddings() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodes, err := s.loadNodes()
	if err != nil {
		return 0, err
	}
	cache, err := s.loadEmbeddings()
	if err != nil {
		return 0, err
	}
	alive := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		alive[n.ID] = true
	}
	removed := 0
	for id := range cache {
		if !alive[id] {
			delete(cache, id)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, s.store(KeyEmbeddings, cache)
}
