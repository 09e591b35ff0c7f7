package graph

import (
	"fmt"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
)

var testNow = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func daysAgo(d int64) int64 { return testNow.UnixMilli() - d*dayMs }

type testNode struct {
	id, nodeType, folder string
	updatedAt            int64
}

func makeSnapshot(nodes []testNode, edges [][2]string) *GraphSnapshot {
	var infos []*NodeInfo
	for _, n := range nodes {
		infos = append(infos, &NodeInfo{
			ID:        n.id,
			Title:     "Node " + n.id,
			NodeType:  n.nodeType,
			FolderID:  n.folder,
			CreatedAt: n.updatedAt,
			UpdatedAt: n.updatedAt,
		})
	}
	var edgeInfos []EdgeInfo
	for i, e := range edges {
		edgeInfos = append(edgeInfos, EdgeInfo{ID: fmt.Sprintf("e%d", i), Source: e[0], Target: e[1]})
	}
	return NewSnapshot(infos, edgeInfos)
}

// quickSnapshot builds fresh insight nodes in the general folder
func quickSnapshot(ids []string, edges [][2]string) *GraphSnapshot {
	var nodes []testNode
	for _, id := range ids {
		nodes = append(nodes, testNode{id: id, nodeType: "insight", folder: "general", updatedAt: testNow.UnixMilli()})
	}
	return makeSnapshot(nodes, edges)
}

func TestTopology_EmptyGraph(t *testing.T) {
	r := ComputeTopology(quickSnapshot(nil, nil), 5, 10)
	if r.TotalNodes != 0 || r.NumClusters != 0 || r.IsolatedCount != 0 {
		t.Errorf("unexpected report for empty map: %+v", r)
	}
}

func TestTopology_Counts(t *testing.T) {
	snap := quickSnapshot(
		[]string{"a", "b", "c", "d"},
		[][2]string{{"a", "b"}, {"b", "a"}, {"c", "c"}, {"b", "c"}, {"a", "missing"}},
	)
	r := ComputeTopology(snap, 5, 10)

	checks := []struct {
		name      string
		got, want int
	}{
		{"total nodes", r.TotalNodes, 4},
		{"total connections", r.TotalConnections, 4},
		{"duplicates", r.DuplicateConnections, 1},
		{"self links", r.SelfLinks, 1},
		{"dangling", r.DanglingConnections, 1},
		{"clusters", r.NumClusters, 2},
		{"largest", r.LargestCluster, 3},
		{"isolated", r.IsolatedCount, 1},
		{"insights", r.TypeCounts["insight"], 4},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}
	if !reflect.DeepEqual(r.Clusters[0].NodeIDs, []string{"a", "b", "c"}) {
		t.Errorf("largest cluster = %v", r.Clusters[0].NodeIDs)
	}
	if !reflect.DeepEqual(r.IsolatedIDs, []string{"d"}) {
		t.Errorf("isolated = %v", r.IsolatedIDs)
	}
	// a: b; b: a, c; c: b; d: none
	if r.DegreeHistogram[0].Count != 1 || r.DegreeHistogram[1].Count != 2 || r.DegreeHistogram[2].Count != 1 {
		t.Errorf("histogram = %+v", r.DegreeHistogram)
	}
}

func TestTopology_Hubs(t *testing.T) {
	ids := []string{"hub"}
	var edges [][2]string
	for i := 0; i < 6; i++ {
		leaf := fmt.Sprintf("leaf%d", i)
		ids = append(ids, leaf)
		edges = append(edges, [2]string{"hub", leaf})
	}
	r := ComputeTopology(quickSnapshot(ids, edges), 5, 10)
	if len(r.Hubs) != 1 {
		t.Fatalf("expected 1 hub, got %d", len(r.Hubs))
	}
	if r.Hubs[0].ID != "hub" || r.Hubs[0].Degree != 6 {
		t.Errorf("hub = %+v", r.Hubs[0])
	}
}

func TestBridges(t *testing.T) {
	tests := []struct {
		name          string
		ids           []string
		edges         [][2]string
		wantKeystones []string
		wantSingles   int
	}{
		{
			name:          "chain",
			ids:           []string{"a", "b", "c"},
			edges:         [][2]string{{"a", "b"}, {"b", "c"}},
			wantKeystones: []string{"b"},
			wantSingles:   2,
		},
		{
			name:          "cycle",
			ids:           []string{"a", "b", "c"},
			edges:         [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}},
			wantKeystones: nil,
			wantSingles:   0,
		},
		{
			name:  "two triangles joined",
			ids:   []string{"a", "b", "c", "d", "e", "f"},
			edges: [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}, {"d", "e"}, {"e", "f"}, {"f", "d"}, {"c", "d"}},
			// both ends of the joining link have 3 neighbors
			wantKeystones: []string{"c", "d"},
			wantSingles:   1,
		},
		{
			name:          "parallel links count once",
			ids:           []string{"a", "b"},
			edges:         [][2]string{{"a", "b"}, {"b", "a"}},
			wantKeystones: nil,
			wantSingles:   1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ComputeBridges(quickSnapshot(tt.ids, tt.edges))
			var got []string
			for _, k := range r.Keystones {
				got = append(got, k.ID)
			}
			if !reflect.DeepEqual(got, tt.wantKeystones) {
				t.Errorf("keystones = %v, want %v", got, tt.wantKeystones)
			}
			if r.SingleCount != tt.wantSingles {
				t.Errorf("single links = %d, want %d", r.SingleCount, tt.wantSingles)
			}
		})
	}
}

func TestBridges_SingleLinkEnds(t *testing.T) {
	r := ComputeBridges(quickSnapshot(
		[]string{"a", "b", "c", "d", "e", "f"},
		[][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}, {"d", "e"}, {"e", "f"}, {"f", "d"}, {"c", "d"}},
	))
	if len(r.SingleLinks) != 1 {
		t.Fatalf("expected 1 single link, got %d", len(r.SingleLinks))
	}
	l := r.SingleLinks[0]
	if l.SourceID != "c" || l.TargetID != "d" {
		t.Errorf("single link = %s-%s, want c-d", l.SourceID, l.TargetID)
	}
}

func TestFragileFolders(t *testing.T) {
	fresh := testNow.UnixMilli()
	snap := makeSnapshot([]testNode{
		{"a", "insight", "f1", fresh},
		{"b", "insight", "f1", fresh},
		{"c", "insight", "f2", fresh},
		{"d", "insight", "f2", fresh},
		{"e", "insight", "f3", fresh},
	}, [][2]string{
		{"a", "b"},
		// f1-f2: 2, f2-f3: 1, f1-f3: 3
		{"a", "c"}, {"b", "d"},
		{"c", "e"},
		{"a", "e"}, {"b", "e"}, {"e", "a"},
	})

	got := ComputeBridges(snap).FragileFolders
	want := []FragileFolders{
		{FolderA: "f2", FolderB: "f3", CrossLinks: 1},
		{FolderA: "f1", FolderB: "f2", CrossLinks: 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("fragile folders = %+v, want %+v", got, want)
	}
}

func TestStaleness(t *testing.T) {
	snap := makeSnapshot([]testNode{
		{"q", "pergunta", "general", daysAgo(20)},
		{"t", "tensao", "general", daysAgo(2)},
		{"i", "insight", "general", daysAgo(30)},
		{"d", "decisao", "general", daysAgo(10)},
		{"e", "evidencia", "general", daysAgo(3)},
	}, [][2]string{{"q", "t"}, {"e", "d"}, {"d", "i"}})

	r := ComputeStaleness(snap, 14, testNow)

	if r.StaleNodeCount != 1 {
		t.Fatalf("expected 1 stale node, got %d: %+v", r.StaleNodeCount, r.StaleNodes)
	}
	s := r.StaleNodes[0]
	if s.ID != "q" || s.DaysSinceUpdate != 20 || s.Links != 1 {
		t.Errorf("stale node = %+v", s)
	}

	if r.DecisionDrifting != 1 {
		t.Fatalf("expected 1 drift, got %d: %+v", r.DecisionDrifting, r.Drifts)
	}
	d := r.Drifts[0]
	if d.DecisionID != "d" || d.NodeID != "e" || d.DriftDays != 7 {
		t.Errorf("drift = %+v", d)
	}
}

func TestStaleness_FreshMapIsClean(t *testing.T) {
	snap := makeSnapshot([]testNode{
		{"q", "pergunta", "general", daysAgo(1)},
		{"a", "acao", "general", daysAgo(13)},
	}, nil)
	r := ComputeStaleness(snap, 14, testNow)
	if r.StaleNodeCount != 0 || r.DecisionDrifting != 0 {
		t.Errorf("expected nothing stale, got %+v", r)
	}
}

func TestFilterToFolder(t *testing.T) {
	fresh := testNow.UnixMilli()
	snap := makeSnapshot([]testNode{
		{"a", "insight", "f1", fresh},
		{"b", "insight", "f1", fresh},
		{"c", "insight", "f2", fresh},
	}, [][2]string{{"a", "b"}, {"b", "c"}})

	sub := snap.FilterToFolder("f1")
	if !reflect.DeepEqual(sub.NodeIDs(), []string{"a", "b"}) {
		t.Errorf("nodes = %v", sub.NodeIDs())
	}
	if len(sub.Edges) != 1 || sub.Dangling != 1 {
		t.Errorf("edges = %d dangling = %d", len(sub.Edges), sub.Dangling)
	}
	if !sub.Linked("b", "a") || sub.Linked("b", "c") {
		t.Error("Linked disagrees with the folder's connections")
	}
}

func TestHealthScore(t *testing.T) {
	cfg := &AnalyzerConfig{HubThreshold: 5, TopN: 10, StaleDays: 14, Now: testNow}

	t.Run("triangle is perfect", func(t *testing.T) {
		r := Analyze(quickSnapshot([]string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}}), cfg)
		if math.Abs(r.HealthScore-1) > 1e-9 {
			t.Errorf("expected 1.0, got %f (%+v)", r.HealthScore, r.HealthBreakdown)
		}
	})

	t.Run("scattered map stays in range", func(t *testing.T) {
		snap := makeSnapshot([]testNode{
			{"a", "pergunta", "general", daysAgo(40)},
			{"b", "tensao", "general", daysAgo(40)},
			{"c", "insight", "general", daysAgo(1)},
			{"d", "insight", "general", daysAgo(1)},
		}, [][2]string{{"a", "b"}, {"b", "c"}})
		r := Analyze(snap, cfg)
		if r.HealthScore < 0 || r.HealthScore >= 1 {
			t.Errorf("score out of range: %f", r.HealthScore)
		}
		if r.HealthBreakdown.Cohesion != 0.5 {
			t.Errorf("cohesion = %f, want 0.5", r.HealthBreakdown.Cohesion)
		}
	})

	t.Run("empty map", func(t *testing.T) {
		if r := Analyze(quickSnapshot(nil, nil), nil); r.HealthScore != 0 {
			t.Errorf("empty map score = %f", r.HealthScore)
		}
	})
}

func TestNeighborhood(t *testing.T) {
	snap := quickSnapshot(
		[]string{"a", "b", "c", "d", "e"},
		[][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}, {"e", "a"}},
	)

	got, err := Neighborhood(snap, "a", 2)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, n := range got {
		ids = append(ids, fmt.Sprintf("%s:%d", n.ID, n.Hops))
	}
	if !reflect.DeepEqual(ids, []string{"b:1", "e:1", "c:2"}) {
		t.Errorf("neighborhood = %v", ids)
	}
	if !reflect.DeepEqual(got[2].Path, []string{"a", "b", "c"}) {
		t.Errorf("path to c = %v", got[2].Path)
	}

	if _, err := Neighborhood(snap, "zzz", 2); err == nil {
		t.Error("expected an error for an unknown node")
	}
}

func TestTitleFromContent(t *testing.T) {
	tests := []struct {
		content string
		max     int
		want    string
	}{
		{"\n\n  Primeira linha  \nsegunda", 60, "Primeira linha"},
		{"Decisão sobre preço", 10, "Decisão..."},
		{"", 10, ""},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := TitleFromContent(tt.content, tt.max); got != tt.want {
			t.Errorf("TitleFromContent(%q, %d) = %q, want %q", tt.content, tt.max, got, tt.want)
		}
	}
}

func TestUnionFind(t *testing.T) {
	uf := NewUnionFind([]string{"a", "b", "c", "d"})
	if !uf.Union("a", "b") || uf.Union("b", "a") {
		t.Error("Union should report merges exactly once")
	}
	uf.Union("c", "b")
	comps := uf.Components()
	if len(comps) != 2 || !reflect.DeepEqual(comps[0], []string{"a", "b", "c"}) {
		t.Errorf("components = %v", comps)
	}
	if uf.Find("zzz") != "zzz" {
		t.Error("unknown ids are their own set")
	}
}

func TestSnapshotFromStore(t *testing.T) {
	s := db.NewStore(db.NewMemory(), nil)
	for _, n := range []db.Node{
		{ID: "a", FolderID: "f1", Type: "insight", Content: "A"},
		{ID: "b", FolderID: "f1", Type: "acao", Content: "B"},
		{ID: "c", FolderID: "f2", Type: "insight", Content: "C"},
	} {
		if err := s.SaveNode(n); err != nil {
			t.Fatal(err)
		}
	}
	for _, c := range []db.Connection{{ID: "1", FromID: "a", ToID: "b"}, {ID: "2", FromID: "b", ToID: "c"}} {
		if err := s.SaveConnection(c); err != nil {
			t.Fatal(err)
		}
	}

	all, err := SnapshotFromStore(s, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all.Nodes) != 3 || len(all.Edges) != 2 {
		t.Errorf("full map: %d nodes %d edges", len(all.Nodes), len(all.Edges))
	}
	if all.Regions["c"] != "f2" || all.Title("b") != "B" {
		t.Errorf("regions/titles wrong: %v %q", all.Regions, all.Title("b"))
	}

	f1, err := SnapshotFromStore(s, "f1")
	if err != nil {
		t.Fatal(err)
	}
	if len(f1.Nodes) != 2 || f1.Dangling != 1 {
		t.Errorf("folder f1: %d nodes, %d dangling", len(f1.Nodes), f1.Dangling)
	}
}
