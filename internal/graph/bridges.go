package graph

import "sort"

// Keystone is a node whose removal splits its cluster
type Keystone struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	NodeType  string `json:"node_type"`
	Neighbors int    `json:"neighbors"`
}

// SingleLink is a connection whose removal splits its cluster
type SingleLink struct {
	SourceID    string `json:"source_id"`
	TargetID    string `json:"target_id"`
	SourceTitle string `json:"source_title"`
	TargetTitle string `json:"target_title"`
}

// FragileFolders are two folders joined by very few connections
type FragileFolders struct {
	FolderA    string `json:"folder_a"`
	FolderB    string `json:"folder_b"`
	CrossLinks int    `json:"cross_links"`
}

// BridgeReport lists the weak points of the map
type BridgeReport struct {
	Keystones      []Keystone       `json:"keystones"`
	SingleLinks    []SingleLink     `json:"single_links"`
	FragileFolders []FragileFolders `json:"fragile_folders"`
	KeystoneCount  int              `json:"keystone_count"`
	SingleCount    int              `json:"single_link_count"`
}

// maxFragileCrossLinks is the most connections two folders can share and
// still count as fragile
const maxFragileCrossLinks = 2

// ComputeBridges finds keystones (articulation points), single links
// (bridges) and folder pairs with few cross links
func ComputeBridges(snap *GraphSnapshot) *BridgeReport {
	report := &BridgeReport{}
	if len(snap.Nodes) == 0 {
		return report
	}

	ids := snap.NodeIDs()
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}
	adj := make([][]int, len(ids))
	seen := make(map[[2]string]bool)
	for _, e := range snap.Edges {
		if e.Source == e.Target {
			continue
		}
		k := pairKey(e.Source, e.Target)
		if seen[k] {
			continue
		}
		seen[k] = true
		u, v := index[e.Source], index[e.Target]
		adj[u] = append(adj[u], v)
		adj[v] = append(adj[v], u)
	}

	cut, bridges := tarjan(adj)
	for i, isCut := range cut {
		if !isCut {
			continue
		}
		n := snap.Nodes[ids[i]]
		report.Keystones = append(report.Keystones, Keystone{
			ID:        n.ID,
			Title:     n.Title,
			NodeType:  n.NodeType,
			Neighbors: len(adj[i]),
		})
	}
	sort.SliceStable(report.Keystones, func(i, j int) bool {
		return report.Keystones[i].Neighbors > report.Keystones[j].Neighbors
	})
	for _, b := range bridges {
		src, dst := ids[b[0]], ids[b[1]]
		report.SingleLinks = append(report.SingleLinks, SingleLink{
			SourceID:    src,
			TargetID:    dst,
			SourceTitle: snap.Title(src),
			TargetTitle: snap.Title(dst),
		})
	}

	report.FragileFolders = fragileFolders(snap)
	report.KeystoneCount = len(report.Keystones)
	report.SingleCount = len(report.SingleLinks)
	return report
}

// tarjan runs an iterative low-link DFS over every component and returns the
// cut vertices and bridge edges
func tarjan(adj [][]int) ([]bool, [][2]int) {
	n := len(adj)
	disc := make([]int, n)
	low := make([]int, n)
	cut := make([]bool, n)
	var bridges [][2]int
	clock := 0

	type frame struct{ node, parent, next int }

	for root := 0; root < n; root++ {
		if disc[root] != 0 {
			continue
		}
		clock++
		disc[root], low[root] = clock, clock
		stack := []frame{{root, -1, 0}}
		rootChildren := 0

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(adj[top.node]) {
				child := adj[top.node][top.next]
				top.next++
				switch {
				case child == top.parent:
				case disc[child] != 0:
					low[top.node] = min(low[top.node], disc[child])
				default:
					clock++
					disc[child], low[child] = clock, clock
					if top.node == root {
						rootChildren++
					}
					stack = append(stack, frame{child, top.node, 0})
				}
				continue
			}

			node := top.node
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				break
			}
			parent := stack[len(stack)-1].node
			low[parent] = min(low[parent], low[node])
			if low[node] > disc[parent] {
				bridges = append(bridges, [2]int{parent, node})
			}
			if parent != root && low[node] >= disc[parent] {
				cut[parent] = true
			}
		}
		if rootChildren >= 2 {
			cut[root] = true
		}
	}
	return cut, bridges
}

func fragileFolders(snap *GraphSnapshot) []FragileFolders {
	counts := make(map[[2]string]int)
	for _, e := range snap.Edges {
		a, b := snap.Regions[e.Source], snap.Regions[e.Target]
		if a == b {
			continue
		}
		counts[pairKey(a, b)]++
	}
	var out []FragileFolders
	for pair, n := range counts {
		if n <= maxFragileCrossLinks {
			out = append(out, FragileFolders{FolderA: pair[0], FolderB: pair[1], CrossLinks: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CrossLinks != out[j].CrossLinks {
			return out[i].CrossLinks < out[j].CrossLinks
		}
		if out[i].FolderA != out[j].FolderA {
			return out[i].FolderA < out[j].FolderA
		}
		return out[i].FolderB < out[j].FolderB
	})
	return out
}
