package graph

import (
	"math"
	"testing"

	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero norm", []float32{0, 0, 0}, []float32{1, 0, 0}, 0},
		{"mismatched length", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(float64(got)-tt.want) > 1e-4 {
				t.Errorf("CosineSimilarity = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestFindSimilar_RanksAndLimits(t *testing.T) {
	target := []float32{1, 0, 0}
	candidates := []db.NodeEmbedding{
		{ID: "a", Embedding: []float32{1, 0, 0}},
		{ID: "b", Embedding: []float32{0.9, 0.1, 0}},
		{ID: "c", Embedding: []float32{0, 1, 0}},
		{ID: "d", Embedding: []float32{-1, 0, 0}},
	}
	results := FindSimilar(target, candidates, "", 2, 0.0)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("expected [a b], got [%s %s]", results[0].ID, results[1].ID)
	}
}

func TestFindSimilar_ExcludeAndThreshold(t *testing.T) {
	target := []float32{1, 0, 0}
	candidates := []db.NodeEmbedding{
		{ID: "self", Embedding: []float32{1, 0, 0}},
		{ID: "close", Embedding: []float32{0.9, 0.1, 0}},
		{ID: "orthogonal", Embedding: []float32{0, 1, 0}},
	}
	results := FindSimilar(target, candidates, "self", 0, 0.5)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].ID != "close" {
		t.Errorf("expected 'close', got '%s'", results[0].ID)
	}
}

func TestSuggestLinks(t *testing.T) {
	snap := quickSnapshot([]string{"a", "b", "c", "d"}, [][2]string{{"a", "b"}})
	embeddings := []db.NodeEmbedding{
		{ID: "a", Embedding: []float32{1, 0}},
		{ID: "b", Embedding: []float32{0.9, 0.1}},
		{ID: "c", Embedding: []float32{0, 1}},
		{ID: "d", Embedding: []float32{1, 0.05}},
		{ID: "gone", Embedding: []float32{1, 0}}, // not on the map
	}

	got := SuggestLinks(snap, embeddings, 0.9, 0)
	if len(got) != 2 {
		t.Fatalf("expected 2 suggestions, got %d: %+v", len(got), got)
	}
	if got[0].FromID != "a" || got[0].ToID != "d" {
		t.Errorf("best suggestion = %s-%s, want a-d", got[0].FromID, got[0].ToID)
	}
	if got[1].FromID != "b" || got[1].ToID != "d" {
		t.Errorf("second suggestion = %s-%s, want b-d", got[1].FromID, got[1].ToID)
	}
	if got[0].FromTitle != "Node a" {
		t.Errorf("FromTitle = %q", got[0].FromTitle)
	}
	for _, s := range got {
		if (s.FromID == "a" && s.ToID == "b") || s.ToID == "gone" || s.FromID == "gone" {
			t.Errorf("unexpected suggestion %+v", s)
		}
	}

	if top := SuggestLinks(snap, embeddings, 0.9, 1); len(top) != 1 {
		t.Errorf("top=1 returned %d suggestions", len(top))
	}
}
