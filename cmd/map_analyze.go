package cmd

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
	"github.com/NCDesigner/QG-Estrat-gico/internal/graph"
	"github.com/NCDesigner/QG-Estrat-gico/internal/llm"
	"github.com/NCDesigner/QG-Estrat-gico/internal/warmap"
)

// embedBatchSize is the most texts sent in one embedding request
const embedBatchSize = 100

var (
	analyzeFolder       string
	analyzeTopN         int
	analyzeStaleDays    int64
	analyzeHubThreshold int

	suggestFolder    string
	suggestThreshold float32
	suggestTop       int
	suggestApply     bool

	nearHops    int
	nearSimilar int
)

var mapAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze map structure: clusters, stale items, weak points, health score",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		folderID := ""
		if analyzeFolder != "" {
			f, err := s.GetFolder(analyzeFolder)
			if err != nil {
				return err
			}
			folderID = f.ID
		}
		snap, err := graph.SnapshotFromStore(s, folderID)
		if err != nil {
			return fmt.Errorf("loading map: %w", err)
		}

		report := graph.Analyze(snap, &graph.AnalyzerConfig{
			HubThreshold: analyzeHubThreshold,
			TopN:         analyzeTopN,
			StaleDays:    analyzeStaleDays,
		})
		report.FolderID = folderID

		if mapJSON {
			return printJSON(cmd.OutOrStdout(), report)
		}
		printHumanReadable(cmd.OutOrStdout(), report, folderNames(s))
		return nil
	},
}

func folderNames(s *db.Store) map[string]string {
	out := map[string]string{}
	folders, err := s.Folders()
	if err != nil {
		return out
	}
	for _, f := range folders {
		out[f.ID] = f.Name
	}
	return out
}

func printHumanReadable(w io.Writer, report *graph.AnalysisReport, folders map[string]string) {
	// Health bar
	barLen := min(int(report.HealthScore*20), 20)
	bar := strings.Repeat("█", barLen) + strings.Repeat("░", 20-barLen)
	fmt.Fprintf(w, "\n  Map Health: %.0f%%  [%s]\n", report.HealthScore*100, bar)
	fmt.Fprintf(w, "  breakdown: connectivity=%.2f cohesion=%.2f freshness=%.2f robustness=%.2f\n\n",
		report.HealthBreakdown.Connectivity,
		report.HealthBreakdown.Cohesion,
		report.HealthBreakdown.Freshness,
		report.HealthBreakdown.Robustness)

	// Topology
	t := report.Topology
	fmt.Fprintln(w, "  TOPOLOGY")
	fmt.Fprintln(w, "  ────────────────────────────────────────")
	fmt.Fprintf(w, "  Nodes: %d  Links: %d  Clusters: %d  Largest: %d\n",
		t.TotalNodes, t.TotalConnections, t.NumClusters, t.LargestCluster)
	if t.DuplicateConnections > 0 || t.SelfLinks > 0 || t.DanglingConnections > 0 {
		fmt.Fprintf(w, "  Duplicate links: %d  Self links: %d  Dangling links: %d\n",
			t.DuplicateConnections, t.SelfLinks, t.DanglingConnections)
	}
	if len(t.TypeCounts) > 0 {
		var parts []string
		for _, ti := range warmap.NodeTypes {
			if n := t.TypeCounts[string(ti.Type)]; n > 0 {
				parts = append(parts, fmt.Sprintf("%s %s %d", ti.Icon, ti.Label, n))
			}
		}
		fmt.Fprintf(w, "  %s\n", strings.Join(parts, "  "))
	}

	if t.IsolatedCount > 0 {
		fmt.Fprintf(w, "  Isolated: %d cards with no links\n", t.IsolatedCount)
		limit := min(len(t.IsolatedIDs), 5)
		for _, id := range t.IsolatedIDs[:limit] {
			fmt.Fprintf(w, "    - %s\n", truncID(id))
		}
		if t.IsolatedCount > 5 {
			fmt.Fprintf(w, "    ... and %d more\n", t.IsolatedCount-5)
		}
	}

	// Degree distribution
	fmt.Fprintln(w, "\n  Degree distribution:")
	for _, b := range t.DegreeHistogram {
		if b.Count > 0 {
			barWidth := max(int(math.Log2(float64(b.Count)))+2, 1)
			fmt.Fprintf(w, "    %5s: %4d  %s\n", b.Label, b.Count, strings.Repeat("=", barWidth))
		}
	}

	// Hubs
	if len(t.Hubs) > 0 {
		fmt.Fprintln(w, "\n  Top hubs (degree >= threshold):")
		for _, hub := range t.Hubs {
			fmt.Fprintf(w, "    %s degree=%d  %s\n", truncID(hub.ID), hub.Degree, truncTitle(hub.Title, 40))
		}
	}

	// Staleness
	s := report.Staleness
	if s.StaleNodeCount > 0 || s.DecisionDrifting > 0 {
		fmt.Fprintln(w, "\n  STALENESS")
		fmt.Fprintln(w, "  ────────────────────────────────────────")
		if s.StaleNodeCount > 0 {
			fmt.Fprintf(w, "  %d open items nobody touched lately:\n", s.StaleNodeCount)
			limit := min(len(s.StaleNodes), 10)
			for _, n := range s.StaleNodes[:limit] {
				info := warmap.Info(warmap.NodeType(n.NodeType))
				fmt.Fprintf(w, "    %s %s %dd old, %d links  %s\n",
					truncID(n.ID), info.Icon, n.DaysSinceUpdate, n.Links, truncTitle(n.Title, 40))
			}
		}
		if s.DecisionDrifting > 0 {
			fmt.Fprintf(w, "  %d decisions linked to cards edited after them:\n", s.DecisionDrifting)
			limit := min(len(s.Drifts), 10)
			for _, d := range s.Drifts[:limit] {
				fmt.Fprintf(w, "    %s -> %s (%dd drift)\n",
					truncTitle(d.DecisionTitle, 25), truncTitle(d.NodeTitle, 25), d.DriftDays)
			}
		}
	}

	// Bridges
	br := report.Bridges
	if br.KeystoneCount > 0 || br.SingleCount > 0 || len(br.FragileFolders) > 0 {
		fmt.Fprintln(w, "\n  STRUCTURAL FRAGILITY")
		fmt.Fprintln(w, "  ────────────────────────────────────────")
		if br.KeystoneCount > 0 {
			fmt.Fprintf(w, "  %d keystone cards (removal splits a cluster):\n", br.KeystoneCount)
			limit := min(len(br.Keystones), 10)
			for _, k := range br.Keystones[:limit] {
				fmt.Fprintf(w, "    %s (%d neighbors)  %s\n", truncID(k.ID), k.Neighbors, truncTitle(k.Title, 40))
			}
		}
		if br.SingleCount > 0 {
			fmt.Fprintf(w, "  %d single links (removal splits a cluster):\n", br.SingleCount)
			limit := min(len(br.SingleLinks), 10)
			for _, sl := range br.SingleLinks[:limit] {
				fmt.Fprintf(w, "    %s -> %s\n", truncTitle(sl.SourceTitle, 30), truncTitle(sl.TargetTitle, 30))
			}
		}
		if len(br.FragileFolders) > 0 {
			fmt.Fprintf(w, "  %d folder pairs joined by few links:\n", len(br.FragileFolders))
			limit := min(len(br.FragileFolders), 10)
			for _, ff := range br.FragileFolders[:limit] {
				a, b := ff.FolderA, ff.FolderB
				if name, ok := folders[a]; ok {
					a = name
				}
				if name, ok := folders[b]; ok {
					b = name
				}
				s := ""
				if ff.CrossLinks != 1 {
					s = "s"
				}
				fmt.Fprintf(w, "    %s <-> %s (%d link%s)\n", truncTitle(a, 25), truncTitle(b, 25), ff.CrossLinks, s)
			}
		}
	}

	fmt.Fprintln(w)
}

var mapSuggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest links between cards whose content is similar",
	Long:  "Embeds every card (cached until the card changes) and lists unlinked pairs whose cosine similarity reaches --threshold. --apply creates the links.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		folderID := ""
		if suggestFolder != "" {
			f, err := s.GetFolder(suggestFolder)
			if err != nil {
				return err
			}
			folderID = f.ID
		}
		snap, err := graph.SnapshotFromStore(s, folderID)
		if err != nil {
			return fmt.Errorf("loading map: %w", err)
		}
		nodes, err := s.Nodes()
		if err != nil {
			return err
		}
		var scoped []db.Node
		for _, n := range nodes {
			if _, ok := snap.Nodes[n.ID]; ok {
				scoped = append(scoped, n)
			}
		}

		ctx, cancel := interruptible(cmd)
		defer cancel()
		client, err := newClient(ctx)
		if err != nil {
			return err
		}
		embeddings, err := ensureEmbeddings(ctx, s, client, scoped, cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		suggestions := graph.SuggestLinks(snap, embeddings, suggestThreshold, suggestTop)
		if mapJSON {
			if suggestions == nil {
				suggestions = []graph.LinkSuggestion{}
			}
			return printJSON(cmd.OutOrStdout(), suggestions)
		}

		w := cmd.OutOrStdout()
		if len(suggestions) == 0 {
			fmt.Fprintf(w, "No unlinked pairs at similarity >= %.2f\n", suggestThreshold)
			return nil
		}
		for _, sg := range suggestions {
			fmt.Fprintf(w, "  %.2f  %s %s  <->  %s %s\n", sg.Similarity,
				truncID(sg.FromID), truncTitle(sg.FromTitle, 30), truncID(sg.ToID), truncTitle(sg.ToTitle, 30))
		}
		if !suggestApply {
			return nil
		}
		if !confirm(cmd, fmt.Sprintf("Create these %d links?", len(suggestions))) {
			fmt.Fprintln(w, "[map] Aborted")
			return nil
		}
		for _, sg := range suggestions {
			a, err := s.GetNode(sg.FromID)
			if err != nil {
				return err
			}
			b, err := s.GetNode(sg.ToID)
			if err != nil {
				return err
			}
			if _, _, err := linkNodes(s, a, b); err != nil {
				return err
			}
		}
		fmt.Fprintf(w, "[map] Created %d links\n", len(suggestions))
		return nil
	},
}

// embedText is what a card's embedding is computed from
func embedText(n db.Node) string {
	if n.Notes == "" {
		return n.Content
	}
	return n.Content + "\n\n" + n.Notes
}

// ensureEmbeddings returns an embedding for every node, computing and
// caching the ones that are missing or older than the node
func ensureEmbeddings(ctx context.Context, s *db.Store, e llm.Embedder, nodes []db.Node, log io.Writer) ([]db.NodeEmbedding, error) {
	fresh, missing, err := s.NodeEmbeddings(nodes)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		fmt.Fprintf(log, "[embed] %d cached, %d to compute\n", len(fresh), len(missing))
	}
	for start := 0; start < len(missing); start += embedBatchSize {
		batch := missing[start:min(start+embedBatchSize, len(missing))]
		texts := make([]string, len(batch))
		for i, n := range batch {
			texts[i] = embedText(n)
		}
		vecs, err := e.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding cards: %w", err)
		}
		if len(vecs) != len(batch) {
			return nil, fmt.Errorf("embedding cards: got %d vectors for %d cards", len(vecs), len(batch))
		}
		for i, n := range batch {
			if err := s.SaveNodeEmbedding(n.ID, n.UpdatedAt, vecs[i]); err != nil {
				return nil, err
			}
			fresh = append(fresh, db.NodeEmbedding{ID: n.ID, Embedding: vecs[i]})
		}
	}
	if pruned, err := s.PruneEmbeddings(); err != nil {
		logger.Warn("pruning embeddings failed", zap.Error(err))
	} else if pruned > 0 {
		logger.Debug("pruned embeddings", zap.Int("count", pruned))
	}
	return fresh, nil
}

var mapNearCmd = &cobra.Command{
	Use:   "near <node>",
	Short: "Show the cards linked to a card within a few hops",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := ResolveNode(s, args[0])
		if err != nil {
			return err
		}
		snap, err := graph.SnapshotFromStore(s, "")
		if err != nil {
			return fmt.Errorf("loading map: %w", err)
		}
		neighbors, err := graph.Neighborhood(snap, n.ID, nearHops)
		if err != nil {
			return err
		}

		var similar []graph.SimilarNode
		if nearSimilar > 0 {
			ctx, cancel := interruptible(cmd)
			defer cancel()
			client, err := newClient(ctx)
			if err != nil {
				return err
			}
			nodes, err := s.Nodes()
			if err != nil {
				return err
			}
			embeddings, err := ensureEmbeddings(ctx, s, client, nodes, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			for _, e := range embeddings {
				if e.ID != n.ID {
					continue
				}
				similar = graph.FindSimilar(e.Embedding, embeddings, n.ID, nearSimilar, 0)
				break
			}
			for i := range similar {
				similar[i].Title = snap.Title(similar[i].ID)
			}
		}

		if mapJSON {
			if neighbors == nil {
				neighbors = []graph.Neighbor{}
			}
			return printJSON(cmd.OutOrStdout(), struct {
				Node      string              `json:"node"`
				Neighbors []graph.Neighbor    `json:"neighbors"`
				Similar   []graph.SimilarNode `json:"similar,omitempty"`
			}{n.ID, neighbors, similar})
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "\n  %s %s\n", truncID(n.ID), nodeTitle(*n))
		fmt.Fprintln(w, "  ────────────────────────────────────────")
		if len(neighbors) == 0 {
			fmt.Fprintln(w, "  No linked cards.")
		}
		for _, nb := range neighbors {
			info := warmap.Info(warmap.NodeType(nb.NodeType))
			fmt.Fprintf(w, "  %s %s %d hop(s)  %s\n", truncID(nb.ID), info.Icon, nb.Hops, truncTitle(nb.Title, 50))
		}
		if len(similar) > 0 {
			fmt.Fprintln(w, "\n  Similar content:")
			for _, sn := range similar {
				fmt.Fprintf(w, "  %s %.2f  %s\n", truncID(sn.ID), sn.Similarity, truncTitle(sn.Title, 50))
			}
		}
		fmt.Fprintln(w)
		return nil
	},
}

func init() {
	mapAnalyzeCmd.Flags().StringVar(&analyzeFolder, "folder", "", "Scope the analysis to one folder (ID or name)")
	mapAnalyzeCmd.Flags().IntVar(&analyzeTopN, "top-n", 10, "Number of top items to show per section")
	mapAnalyzeCmd.Flags().Int64Var(&analyzeStaleDays, "stale-days", 14, "Days without an update before an open item is stale")
	mapAnalyzeCmd.Flags().IntVar(&analyzeHubThreshold, "hub-threshold", 5, "Minimum links for a card to count as a hub")

	mapSuggestCmd.Flags().StringVar(&suggestFolder, "folder", "", "Only cards in this folder (ID or name)")
	mapSuggestCmd.Flags().Float32Var(&suggestThreshold, "threshold", 0.8, "Minimum cosine similarity")
	mapSuggestCmd.Flags().IntVar(&suggestTop, "top", 10, "Maximum suggestions")
	mapSuggestCmd.Flags().BoolVar(&suggestApply, "apply", false, "Create the suggested links")

	mapNearCmd.Flags().IntVar(&nearHops, "hops", 2, "How many links away to look")
	mapNearCmd.Flags().IntVar(&nearSimilar, "similar", 0, "Also list the N cards with the most similar content")

	mapCmd.AddCommand(mapAnalyzeCmd, mapSuggestCmd, mapNearCmd)
}
