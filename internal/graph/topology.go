package graph

import "sort"

// HubNode is a node with many links
type HubNode struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	NodeType string `json:"node_type"`
	Degree   int    `json:"degree"`
}

// DegreeBucket is one bucket in the degree histogram
type DegreeBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Cluster is one group of nodes reachable from each other
type Cluster struct {
	Size    int      `json:"size"`
	NodeIDs []string `json:"node_ids"`
}

// TopologyReport describes how the map hangs together
type TopologyReport struct {
	TotalNodes           int            `json:"total_nodes"`
	TotalConnections     int            `json:"total_connections"`
	DuplicateConnections int            `json:"duplicate_connections"`
	SelfLinks            int            `json:"self_links"`
	DanglingConnections  int            `json:"dangling_connections"`
	NumClusters          int            `json:"num_clusters"`
	LargestCluster       int            `json:"largest_cluster"`
	Clusters             []Cluster      `json:"clusters"`
	IsolatedCount        int            `json:"isolated_count"`
	IsolatedIDs          []string       `json:"isolated_ids"`
	TypeCounts           map[string]int `json:"type_counts"`
	DegreeHistogram      []DegreeBucket `json:"degree_histogram"`
	Hubs                 []HubNode      `json:"hubs"`
}

// pairKey orders a node pair so a-b and b-a collide
func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

// ComputeTopology finds clusters, isolated nodes, duplicate links and hubs
func ComputeTopology(snap *GraphSnapshot, hubThreshold, topN int) *TopologyReport {
	report := &TopologyReport{
		TotalNodes:          len(snap.Nodes),
		TotalConnections:    len(snap.Edges),
		DanglingConnections: snap.Dangling,
		TypeCounts:          map[string]int{},
		DegreeHistogram:     defaultHistogram(),
	}
	if len(snap.Nodes) == 0 {
		return report
	}

	ids := snap.NodeIDs()
	uf := NewUnionFind(ids)
	seen := make(map[[2]string]bool, len(snap.Edges))
	for _, e := range snap.Edges {
		if e.Source == e.Target {
			report.SelfLinks++
			continue
		}
		k := pairKey(e.Source, e.Target)
		if seen[k] {
			report.DuplicateConnections++
		}
		seen[k] = true
		uf.Union(e.Source, e.Target)
	}

	for _, members := range uf.Components() {
		report.Clusters = append(report.Clusters, Cluster{Size: len(members), NodeIDs: members})
	}
	report.NumClusters = len(report.Clusters)
	report.LargestCluster = report.Clusters[0].Size

	for _, id := range ids {
		report.TypeCounts[snap.Nodes[id].NodeType]++

		degree := distinctNeighbors(snap, id)
		report.DegreeHistogram[degreeBucket(degree)].Count++
		if degree == 0 {
			report.IsolatedIDs = append(report.IsolatedIDs, id)
		}
		if degree > hubThreshold {
			report.Hubs = append(report.Hubs, HubNode{
				ID:       id,
				Title:    snap.Nodes[id].Title,
				NodeType: snap.Nodes[id].NodeType,
				Degree:   degree,
			})
		}
	}
	report.IsolatedCount = len(report.IsolatedIDs)
	if len(report.IsolatedIDs) > topN {
		report.IsolatedIDs = report.IsolatedIDs[:topN]
	}

	sort.SliceStable(report.Hubs, func(i, j int) bool { return report.Hubs[i].Degree > report.Hubs[j].Degree })
	if len(report.Hubs) > topN {
		report.Hubs = report.Hubs[:topN]
	}
	return report
}

// distinctNeighbors counts the other nodes id links to, ignoring duplicates
// and self-links
func distinctNeighbors(snap *GraphSnapshot, id string) int {
	set := map[string]bool{}
	for _, n := range snap.Adj[id] {
		if n != id {
			set[n] = true
		}
	}
	return len(set)
}

func defaultHistogram() []DegreeBucket {
	return []DegreeBucket{
		{Label: "0"}, {Label: "1"}, {Label: "2-3"}, {Label: "4-7"}, {Label: "8+"},
	}
}

func degreeBucket(degree int) int {
	switch {
	case degree == 0:
		return 0
	case degree == 1:
		return 1
	case degree <= 3:
		return 2
	case degree <= 7:
		return 3
	default:
		return 4
	}
}
