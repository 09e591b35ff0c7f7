package cmd

import (
	"strings"
	"testing"

	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
	"github.com/NCDesigner/QG-Estrat-gico/internal/warmap"
)

func TestParsePoint(t *testing.T) {
	tests := []struct {
		in      string
		x, y    float64
		wantErr bool
	}{
		{in: "10,20", x: 10, y: 20},
		{in: " -5.5 , 3 ", x: -5.5, y: 3},
		{in: "10", wantErr: true},
		{in: "a,1", wantErr: true},
		{in: "1,b", wantErr: true},
	}
	for _, tt := range tests {
		x, y, err := parsePoint(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parsePoint(%q) accepted", tt.in)
			}
			continue
		}
		if err != nil || x != tt.x || y != tt.y {
			t.Errorf("parsePoint(%q) = %v, %v, %v", tt.in, x, y, err)
		}
	}
}

func TestCenterOn(t *testing.T) {
	for _, zoom := range []float64{1, 2, 0.5} {
		v := warmap.DefaultViewport()
		v.Zoom = zoom
		centerOn(&v, 300, -120)
		x, y := v.Center()
		if x != 300 || y != -120 {
			t.Errorf("zoom %v: center = (%v, %v), want (300, -120)", zoom, x, y)
		}
	}
}

func saveNode(t *testing.T, s *db.Store, id, folder, content string) *db.Node {
	t.Helper()
	n := db.Node{ID: id, FolderID: folder, Type: "insight", Content: content, Width: warmap.NodeWidth, Height: warmap.NodeHeight}
	if err := s.SaveNode(n); err != nil {
		t.Fatal(err)
	}
	return &n
}

func TestLinkNodes(t *testing.T) {
	s := newTestStore(t)
	a := saveNode(t, s, "node-a", db.GeneralFolderID, "Canal de vendas")
	b := saveNode(t, s, "node-b", db.GeneralFolderID, "Parceria com revendas")
	c := saveNode(t, s, "node-c", "outra-pasta", "Custo de aquisição")

	if _, _, err := linkNodes(s, a, a); err == nil || !strings.Contains(err.Error(), "itself") {
		t.Fatalf("self link: error = %v", err)
	}

	conn, existing, err := linkNodes(s, a, b)
	if err != nil {
		t.Fatal(err)
	}
	if conn.FromID != a.ID || conn.ToID != b.ID || existing != 0 {
		t.Errorf("first link = %+v, existing %d", conn, existing)
	}

	// the reverse direction counts as the same pair
	if _, existing, err = linkNodes(s, b, a); err != nil || existing != 1 {
		t.Errorf("duplicate link: existing = %d, err = %v", existing, err)
	}

	cross, _, err := linkNodes(s, a, c)
	if err != nil {
		t.Fatal(err)
	}
	if cross.ToID != c.ID {
		t.Errorf("cross-folder link = %+v", cross)
	}

	conns, err := s.Connections()
	if err != nil {
		t.Fatal(err)
	}
	if len(conns) != 3 {
		t.Errorf("connections = %d, want 3", len(conns))
	}
}

func TestOpenCanvasUnknownFolder(t *testing.T) {
	s := newTestStore(t)
	if _, err := openCanvas(s, "nowhere"); err == nil {
		t.Error("openCanvas accepted an unknown folder")
	}
	c, err := openCanvas(s, "")
	if err != nil {
		t.Fatal(err)
	}
	if c.FolderID != db.GeneralFolderID {
		t.Errorf("FolderID = %q", c.FolderID)
	}
}
