package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
	"github.com/NCDesigner/QG-Estrat-gico/internal/graph"
)

type countingEmbedder struct {
	calls int
	texts []string
	short bool
}

func (e *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	e.texts = append(e.texts, texts...)
	n := len(texts)
	if e.short {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{float32(len(texts[i])), 1}
	}
	return out, nil
}

func TestEnsureEmbeddingsCaches(t *testing.T) {
	s := newTestStore(t)
	var nodes []db.Node
	for i := 0; i < 3; i++ {
		n := db.Node{ID: fmt.Sprintf("n%d", i), FolderID: db.GeneralFolderID, Content: fmt.Sprintf("carta %d", i), UpdatedAt: 100}
		if err := s.SaveNode(n); err != nil {
			t.Fatal(err)
		}
		nodes = append(nodes, n)
	}
	nodes[0].Notes = "com notas"

	e := &countingEmbedder{}
	got, err := ensureEmbeddings(context.Background(), s, e, nodes, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || e.calls != 1 {
		t.Fatalf("first run: %d embeddings, %d calls", len(got), e.calls)
	}
	if e.texts[0] != "carta 0\n\ncom notas" {
		t.Errorf("embedded text = %q", e.texts[0])
	}

	if _, err := ensureEmbeddings(context.Background(), s, e, nodes, io.Discard); err != nil {
		t.Fatal(err)
	}
	if e.calls != 1 {
		t.Errorf("cached run called the embedder (%d calls)", e.calls)
	}

	// an edited card is embedded again
	nodes[1].UpdatedAt = 200
	var log bytes.Buffer
	got, err = ensureEmbeddings(context.Background(), s, e, nodes, &log)
	if err != nil {
		t.Fatal(err)
	}
	if e.calls != 2 || len(got) != 3 {
		t.Errorf("after edit: %d calls, %d embeddings", e.calls, len(got))
	}
	if !strings.Contains(log.String(), "2 cached, 1 to compute") {
		t.Errorf("log = %q", log.String())
	}
}

func TestEnsureEmbeddingsCountMismatch(t *testing.T) {
	s := newTestStore(t)
	nodes := []db.Node{{ID: "a", Content: "x"}, {ID: "b", Content: "y"}}
	_, err := ensureEmbeddings(context.Background(), s, &countingEmbedder{short: true}, nodes, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "got 1 vectors for 2 cards") {
		t.Errorf("error = %v", err)
	}
}

func TestPrintHumanReadable(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	old := now.AddDate(0, 0, -30).UnixMilli()
	for _, n := range []db.Node{
		{ID: "d1", FolderID: db.GeneralFolderID, Type: "decisao", Content: "Entrar no varejo", CreatedAt: old, UpdatedAt: old},
		{ID: "q1", FolderID: db.GeneralFolderID, Type: "pergunta", Content: "Qual margem?", CreatedAt: old, UpdatedAt: old},
		{ID: "i1", FolderID: db.GeneralFolderID, Type: "insight", Content: "Clientes voltam", CreatedAt: old, UpdatedAt: now.UnixMilli()},
	} {
		if err := s.SaveNode(n); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.SaveConnection(db.Connection{ID: "c1", FromID: "d1", ToID: "q1"}); err != nil {
		t.Fatal(err)
	}

	snap, err := graph.SnapshotFromStore(s, "")
	if err != nil {
		t.Fatal(err)
	}
	report := graph.Analyze(snap, &graph.AnalyzerConfig{HubThreshold: 5, TopN: 10, StaleDays: 14, Now: now})

	var out bytes.Buffer
	printHumanReadable(&out, report, folderNames(s))
	text := out.String()
	for _, want := range []string{"Map Health:", "TOPOLOGY", "Nodes: 3  Links: 1", "Isolated: 1"} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q:\n%s", want, text)
		}
	}
}
