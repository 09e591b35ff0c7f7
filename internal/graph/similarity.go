package graph

import (
	"math"
	"sort"

	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
)

// SimilarNode is a node with its similarity score to a target embedding.
type SimilarNode struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Similarity float32 `json:"similarity"`
}

// LinkSuggestion is an unlinked pair of nodes whose content looks related
type LinkSuggestion struct {
	FromID     string  `json:"from_id"`
	ToID       string  `json:"to_id"`
	FromTitle  string  `json:"from_title"`
	ToTitle    string  `json:"to_title"`
	Similarity float32 `json:"similarity"`
}

// CosineSimilarity computes cosine similarity between two vectors.
// Returns 0.0 for zero-norm vectors or mismatched lengths.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// FindSimilar finds the top-N nodes most similar to target, excluding
// excludeID, keeping only scores >= minSimilarity. Sorted by descending score.
func FindSimilar(target []float32, candidates []db.NodeEmbedding, excludeID string, topN int, minSimilarity float32) []SimilarNode {
	var results []SimilarNode
	for _, c := range candidates {
		if c.ID == excludeID {
			continue
		}
		if sim := CosineSimilarity(target, c.Embedding); sim >= minSimilarity {
			results = append(results, SimilarNode{ID: c.ID, Similarity: sim})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}
	return results
}

// SuggestLinks scores every pair of embedded nodes in snap and returns the
// top pairs at or above threshold that are not already connected
func SuggestLinks(snap *GraphSnapshot, embeddings []db.NodeEmbedding, threshold float32, top int) []LinkSuggestion {
	var inMap []db.NodeEmbedding
	for _, e := range embeddings {
		if _, ok := snap.Nodes[e.ID]; ok {
			inMap = append(inMap, e)
		}
	}
	sort.Slice(inMap, func(i, j int) bool { return inMap[i].ID < inMap[j].ID })

	var out []LinkSuggestion
	for i := 0; i < len(inMap); i++ {
		for j := i + 1; j < len(inMap); j++ {
			a, b := inMap[i], inMap[j]
			if snap.Linked(a.ID, b.ID) {
				continue
			}
			sim := CosineSimilarity(a.Embedding, b.Embedding)
			if sim < threshold {
				continue
			}
			out = append(out, LinkSuggestion{
				FromID:     a.ID,
				ToID:       b.ID,
				FromTitle:  snap.Title(a.ID),
				ToTitle:    snap.Title(b.ID),
				Similarity: sim,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if top > 0 && len(out) > top {
		out = out[:top]
	}
	return out
}
