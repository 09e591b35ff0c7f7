package graph

import (
	"sort"
	"strings"
)

// NodeInfo is a map node stripped down to what the analyses need
type NodeInfo struct {
	ID        string
	Title     string // first line of the content, shortened
	NodeType  string
	FolderID  string
	Author    string
	CreatedAt int64
	UpdatedAt int64
}

// EdgeInfo is one map connection
type EdgeInfo struct {
	ID     string
	Source string
	Target string
}

// GraphSnapshot holds the map with precomputed adjacency lists. Regions are
// folders.
type GraphSnapshot struct {
	Nodes   map[string]*NodeInfo
	Edges   []EdgeInfo
	Adj     map[string][]string // undirected, duplicates kept
	OutAdj  map[string][]string // fromId -> toIds
	InAdj   map[string][]string // toId -> fromIds
	Regions map[string]string   // node_id -> folder_id

	// Dangling counts connections whose ends are not both in Nodes
	Dangling int
}

// NewSnapshot builds a GraphSnapshot from raw nodes and edges
func NewSnapshot(nodes []*NodeInfo, edges []EdgeInfo) *GraphSnapshot {
	snap := &GraphSnapshot{
		Nodes:   make(map[string]*NodeInfo, len(nodes)),
		Adj:     make(map[string][]string, len(nodes)),
		OutAdj:  make(map[string][]string, len(nodes)),
		InAdj:   make(map[string][]string, len(nodes)),
		Regions: make(map[string]string, len(nodes)),
	}
	for _, n := range nodes {
		snap.Nodes[n.ID] = n
		snap.Adj[n.ID] = nil
		snap.OutAdj[n.ID] = nil
		snap.InAdj[n.ID] = nil
		snap.Regions[n.ID] = n.FolderID
	}

	for _, e := range edges {
		_, okS := snap.Nodes[e.Source]
		_, okT := snap.Nodes[e.Target]
		if !okS || !okT {
			snap.Dangling++
			continue
		}
		snap.Edges = append(snap.Edges, e)
		snap.Adj[e.Source] = append(snap.Adj[e.Source], e.Target)
		if e.Source != e.Target {
			snap.Adj[e.Target] = append(snap.Adj[e.Target], e.Source)
		}
		snap.OutAdj[e.Source] = append(snap.OutAdj[e.Source], e.Target)
		snap.InAdj[e.Target] = append(snap.InAdj[e.Target], e.Source)
	}
	return snap
}

// FilterToFolder returns a snapshot with only the nodes of folderID and the
// connections between them
func (s *GraphSnapshot) FilterToFolder(folderID string) *GraphSnapshot {
	var nodes []*NodeInfo
	for _, id := range s.NodeIDs() {
		if n := s.Nodes[id]; n.FolderID == folderID {
			nodes = append(nodes, n)
		}
	}
	return NewSnapshot(nodes, s.Edges)
}

// NodeIDs returns a sorted list of all node IDs (for deterministic output)
func (s *GraphSnapshot) NodeIDs() []string {
	ids := make([]string, 0, len(s.Nodes))
	for id := range s.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Linked reports whether a and b share at least one connection, either way
func (s *GraphSnapshot) Linked(a, b string) bool {
	for _, n := range s.Adj[a] {
		if n == b {
			return true
		}
	}
	return false
}

// Title returns the display title of a node, or its ID when unknown
func (s *GraphSnapshot) Title(id string) string {
	if n, ok := s.Nodes[id]; ok && n.Title != "" {
		return n.Title
	}
	return id
}

// TitleFromContent takes the first non-blank line of content, cut to maxLen runes
func TitleFromContent(content string, maxLen int) string {
	line := ""
	for _, l := range strings.Split(content, "\n") {
		if t := strings.TrimSpace(l); t != "" {
			line = t
			break
		}
	}
	r := []rune(line)
	if len(r) <= maxLen {
		return line
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
