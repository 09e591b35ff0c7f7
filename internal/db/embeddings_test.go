package db

import (
	"encoding/binary"
	"math"
	"testing"
)

func leFloats(vals ...float32) []byte {
	data := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return data
}

func TestBytesToEmbedding(t *testing.T) {
	gemini := make([]float32, 768)
	for i := range gemini {
		gemini[i] = float32(i) / 256
	}

	tests := []struct {
		name string
		data []byte
		want []float32
	}{
		{name: "nil", data: nil, want: []float32{}},
		{name: "empty", data: []byte{}, want: []float32{}},
		{name: "known values", data: leFloats(1, -0.5), want: []float32{1, -0.5}},
		// a cut-off trailing chunk decodes as zero
		{name: "short tail", data: append(leFloats(2.5), 0xFF), want: []float32{2.5, 0}},
		{name: "gemini dimension", data: leFloats(gemini...), want: gemini},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := bytesToEmbedding(tt.data)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("[%d] = %f, want %f", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestEmbeddingRoundTrip(t *testing.T) {
	vec := []float32{0.25, -1.5, 3}
	got := bytesToEmbedding(embeddingToBytes(vec))
	if len(got) != len(vec) {
		t.Fatalf("expected %d floats, got %d", len(vec), len(got))
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("[%d] = %f, want %f", i, got[i], vec[i])
		}
	}
}

func TestNodeEmbeddings_StaleAndMissing(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveNodeEmbedding("a", 100, []float32{1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveNodeEmbedding("b", 100, []float32{0, 1}); err != nil {
		t.Fatal(err)
	}

	nodes := []Node{
		{ID: "a", UpdatedAt: 100}, // current
		{ID: "b", UpdatedAt: 200}, // edited since
		{ID: "c", UpdatedAt: 100}, // never embedded
	}
	fresh, missing, err := s.NodeEmbeddings(nodes)
	if err != nil {
		t.Fatal(err)
	}
	if len(fresh) != 1 || fresh[0].ID != "a" {
		t.Errorf("fresh = %+v, want only a", fresh)
	}
	if len(missing) != 2 || missing[0].ID != "b" || missing[1].ID != "c" {
		t.Errorf("missing = %+v, want b and c", missing)
	}
}

func TestPruneEmbeddings(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveNode(Node{ID: "a", FolderID: GeneralFolderID, Type: "insight"}); err != nil {
		t.Fatal(err)
	}
	_ = s.SaveNodeEmbedding("a", 0, []float32{1})
	_ = s.SaveNodeEmbedding("gone", 0, []float32{1})

	removed, err := s.PruneEmbeddings()
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
}
