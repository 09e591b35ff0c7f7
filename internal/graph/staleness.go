package graph

import (
	"sort"
	"time"
)

const dayMs = int64(24 * time.Hour / time.Millisecond)

// openTypes are node types that ask for a follow-up
var openTypes = map[string]bool{
	"pergunta": true,
	"tensao":   true,
	"acao":     true,
}

// StaleNode is an open item nobody has touched in a while
type StaleNode struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	NodeType        string `json:"node_type"`
	DaysSinceUpdate int64  `json:"days_since_update"`
	Links           int    `json:"links"`
}

// DecisionDrift is a decision linked to something edited after it
type DecisionDrift struct {
	DecisionID    string `json:"decision_id"`
	DecisionTitle string `json:"decision_title"`
	NodeID        string `json:"node_id"`
	NodeTitle     string `json:"node_title"`
	DriftDays     int64  `json:"drift_days"`
}

// StalenessReport lists forgotten open items and decisions that may be outdated
type StalenessReport struct {
	StaleNodes       []StaleNode     `json:"stale_nodes"`
	Drifts           []DecisionDrift `json:"decision_drifts"`
	StaleNodeCount   int             `json:"stale_node_count"`
	DecisionDrifting int             `json:"decision_drift_count"`
}

// ComputeStaleness finds open items (perguntas, tensões, ações) not updated
// in staleDays, and decisions linked to nodes updated after the decision
func ComputeStaleness(snap *GraphSnapshot, staleDays int64, now time.Time) *StalenessReport {
	nowMs := now.UnixMilli()
	thresholdMs := staleDays * dayMs
	report := &StalenessReport{}

	for _, id := range snap.NodeIDs() {
		n := snap.Nodes[id]
		if !openTypes[n.NodeType] {
			continue
		}
		age := nowMs - n.UpdatedAt
		if age <= thresholdMs {
			continue
		}
		report.StaleNodes = append(report.StaleNodes, StaleNode{
			ID:              n.ID,
			Title:           n.Title,
			NodeType:        n.NodeType,
			DaysSinceUpdate: age / dayMs,
			Links:           distinctNeighbors(snap, id),
		})
	}
	sort.SliceStable(report.StaleNodes, func(i, j int) bool {
		return report.StaleNodes[i].DaysSinceUpdate > report.StaleNodes[j].DaysSinceUpdate
	})

	seen := make(map[[2]string]bool)
	for _, e := range snap.Edges {
		for _, pair := range [][2]string{{e.Source, e.Target}, {e.Target, e.Source}} {
			decision, other := snap.Nodes[pair[0]], snap.Nodes[pair[1]]
			if decision.NodeType != "decisao" || decision.ID == other.ID {
				continue
			}
			if other.UpdatedAt <= decision.UpdatedAt || seen[pair] {
				continue
			}
			seen[pair] = true
			report.Drifts = append(report.Drifts, DecisionDrift{
				DecisionID:    decision.ID,
				DecisionTitle: decision.Title,
				NodeID:        other.ID,
				NodeTitle:     other.Title,
				DriftDays:     (other.UpdatedAt - decision.UpdatedAt) / dayMs,
			})
		}
	}
	sort.SliceStable(report.Drifts, func(i, j int) bool {
		return report.Drifts[i].DriftDays > report.Drifts[j].DriftDays
	})

	report.StaleNodeCount = len(report.StaleNodes)
	report.DecisionDrifting = len(report.Drifts)
	return report
}
