package graph

import (
	"math"
	"time"
)

// HealthBreakdown shows the sub-scores of the health formula
type HealthBreakdown struct {
	Connectivity float64 `json:"connectivity"`
	Cohesion     float64 `json:"cohesion"`
	Freshness    float64 `json:"freshness"`
	Robustness   float64 `json:"robustness"`
}

// AnalysisReport is the full analysis of one map (or folder)
type AnalysisReport struct {
	FolderID        string           `json:"folder_id,omitempty"`
	HealthScore     float64          `json:"health_score"`
	HealthBreakdown HealthBreakdown  `json:"health_breakdown"`
	Topology        *TopologyReport  `json:"topology"`
	Staleness       *StalenessReport `json:"staleness"`
	Bridges         *BridgeReport    `json:"bridges"`
}

// AnalyzerConfig holds analysis parameters
type AnalyzerConfig struct {
	HubThreshold int
	TopN         int
	StaleDays    int64
	Now          time.Time
}

// DefaultConfig returns the thresholds used by `qg map analyze`
func DefaultConfig() *AnalyzerConfig {
	return &AnalyzerConfig{
		HubThreshold: 5,
		TopN:         20,
		StaleDays:    14,
	}
}

// Analyze runs all analyses and computes a composite health score in [0,1]
func Analyze(snap *GraphSnapshot, config *AnalyzerConfig) *AnalysisReport {
	if config == nil {
		config = DefaultConfig()
	}
	now := config.Now
	if now.IsZero() {
		now = time.Now()
	}

	topology := ComputeTopology(snap, config.HubThreshold, config.TopN)
	staleness := ComputeStaleness(snap, config.StaleDays, now)
	bridges := ComputeBridges(snap)

	var b HealthBreakdown
	if total := float64(topology.TotalNodes); total > 0 {
		b.Connectivity = clamp(1-math.Min(float64(topology.IsolatedCount)/total, 0.5)*2, 0, 1)
		b.Cohesion = clamp(1/float64(topology.NumClusters), 0, 1)
		b.Freshness = clamp(1-math.Min(float64(staleness.StaleNodeCount)/total, 0.25)*4, 0, 1)
		b.Robustness = clamp(1-math.Min(float64(bridges.KeystoneCount)/total, 0.2)*5, 0, 1)
	}

	return &AnalysisReport{
		HealthScore:     0.30*b.Connectivity + 0.25*b.Cohesion + 0.25*b.Freshness + 0.20*b.Robustness,
		HealthBreakdown: b,
		Topology:        topology,
		Staleness:       staleness,
		Bridges:         bridges,
	}
}

func clamp(val, lo, hi float64) float64 {
	return math.Min(math.Max(val, lo), hi)
}
