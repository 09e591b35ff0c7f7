package graph

import (
	"fmt"
	"sort"
)

// Neighbor is a node reachable from the anchor within a hop budget
type Neighbor struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	NodeType string   `json:"node_type"`
	FolderID string   `json:"folder_id"`
	Hops     int      `json:"hops"`
	Path     []string `json:"path"` // node IDs from the anchor, inclusive
}

// Neighborhood walks outward from nodeID breadth-first and returns every
// node within maxHops, nearest first. Connections are undirected. The path
// recorded is the first shortest one found in sorted-ID order.
func Neighborhood(snap *GraphSnapshot, nodeID string, maxHops int) ([]Neighbor, error) {
	if _, ok := snap.Nodes[nodeID]; !ok {
		return nil, fmt.Errorf("node %s not in map", nodeID)
	}
	if maxHops < 1 {
		maxHops = 1
	}

	prev := map[string]string{nodeID: ""}
	hops := map[string]int{nodeID: 0}
	frontier := []string{nodeID}
	var order []string

	for depth := 1; depth <= maxHops && len(frontier) > 0; depth++ {
		var next []string
		for _, cur := range frontier {
			neighbors := append([]string(nil), snap.Adj[cur]...)
			sort.Strings(neighbors)
			for _, n := range neighbors {
				if _, seen := hops[n]; seen {
					continue
				}
				hops[n] = depth
				prev[n] = cur
				next = append(next, n)
				order = append(order, n)
			}
		}
		frontier = next
	}

	out := make([]Neighbor, 0, len(order))
	for _, id := range order {
		n := snap.Nodes[id]
		out = append(out, Neighbor{
			ID:       id,
			Title:    n.Title,
			NodeType: n.NodeType,
			FolderID: n.FolderID,
			Hops:     hops[id],
			Path:     pathTo(prev, id),
		})
	}
	return out, nil
}

func pathTo(prev map[string]string, id string) []string {
	var path []string
	for cur := id; cur != ""; cur = prev[cur] {
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
