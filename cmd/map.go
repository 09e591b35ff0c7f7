package cmd

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
	"github.com/NCDesigner/QG-Estrat-gico/internal/warmap"
)

var (
	mapJSON bool

	folderAddIcon  string
	folderAddColor string

	nodesFolder string
	nodesType   string

	mapAddFolder string
	mapAddNotes  string
	mapAddAt     string

	mapPinFolder string
	mapPinType   string

	mapEditContent string
	mapEditNotes   string
	mapEditType    string
	mapEditFolder  string

	mapMoveBy string
	mapMoveTo string
)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "The war map: folders of typed cards and the links between them",
}

var mapFoldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "List map folders",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		folders, err := s.Folders()
		if err != nil {
			return err
		}
		if mapJSON {
			return printJSON(cmd.OutOrStdout(), folders)
		}
		nodes, err := s.Nodes()
		if err != nil {
			return err
		}
		counts := map[string]int{}
		for _, n := range nodes {
			counts[n.FolderID]++
		}
		w := cmd.OutOrStdout()
		for _, f := range folders {
			fmt.Fprintf(w, "  %-8s  %s %-28s %4d nodes\n", truncID(f.ID), f.Icon, f.Name, counts[f.ID])
		}
		return nil
	},
}

var mapFolderCmd = &cobra.Command{
	Use:   "folder",
	Short: "Create, rename and delete map folders",
}

var mapFolderAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a folder",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, ok := warmap.NewFolder(strings.Join(args, " "), time.Now())
		if !ok {
			return fmt.Errorf("folder name cannot be blank")
		}
		if folderAddIcon != "" {
			f.Icon = folderAddIcon
		}
		if folderAddColor != "" {
			f.Color = folderAddColor
		}
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.SaveFolder(f); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[map] Created folder %s %s (%s)\n", f.Icon, f.Name, f.ID)
		return nil
	},
}

var mapFolderRenameCmd = &cobra.Command{
	Use:   "rename <folder> <name>",
	Short: "Rename a folder",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(strings.Join(args[1:], " "))
		if name == "" {
			return fmt.Errorf("folder name cannot be blank")
		}
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		f, err := s.GetFolder(args[0])
		if err != nil {
			return err
		}
		old := f.Name
		f.Name = name
		if err := s.SaveFolder(*f); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[map] Folder %q renamed to %q\n", old, name)
		return nil
	},
}

var mapFolderDeleteCmd = &cobra.Command{
	Use:   "delete <folder>",
	Short: "Delete a folder; its nodes move to the general folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		f, err := s.GetFolder(args[0])
		if err != nil {
			return err
		}
		if f.ID == db.GeneralFolderID {
			return fmt.Errorf("the general folder cannot be deleted")
		}
		nodes, err := s.NodesInFolder(f.ID)
		if err != nil {
			return err
		}
		if !confirm(cmd, fmt.Sprintf("Delete folder %q? Its %d nodes move to the general folder.", f.Name, len(nodes))) {
			fmt.Fprintln(cmd.OutOrStdout(), "[map] Aborted")
			return nil
		}
		if err := s.DeleteFolder(f.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[map] Deleted folder %q (%d nodes moved)\n", f.Name, len(nodes))
		return nil
	},
}

var mapNodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List map nodes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var wantType warmap.NodeType
		if nodesType != "" {
			t, err := warmap.ParseNodeType(nodesType)
			if err != nil {
				return err
			}
			wantType = t
		}
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		var nodes []db.Node
		if nodesFolder != "" {
			f, err := s.GetFolder(nodesFolder)
			if err != nil {
				return err
			}
			nodes, err = s.NodesInFolder(f.ID)
			if err != nil {
				return err
			}
		} else if nodes, err = s.Nodes(); err != nil {
			return err
		}

		var out []db.Node
		for _, n := range nodes {
			if wantType != "" && n.Type != string(wantType) {
				continue
			}
			out = append(out, n)
		}
		if mapJSON {
			if out == nil {
				out = []db.Node{}
			}
			return printJSON(cmd.OutOrStdout(), out)
		}

		w := cmd.OutOrStdout()
		if len(out) == 0 {
			fmt.Fprintln(w, "No nodes. Add one with `qg map add` or pin a message with `qg map pin`.")
			return nil
		}
		conns, err := s.Connections()
		if err != nil {
			return err
		}
		degree := map[string]int{}
		for _, c := range conns {
			degree[c.FromID]++
			if c.ToID != c.FromID {
				degree[c.ToID]++
			}
		}
		for _, n := range out {
			info := warmap.Info(warmap.NodeType(n.Type))
			fmt.Fprintf(w, "  %s  %s %-10s %-10s %2d links  %s\n",
				truncID(n.ID), info.Icon, info.Label, truncTitle(n.FolderID, 10), degree[n.ID], nodeTitle(n))
		}
		return nil
	},
}

var mapShowCmd = &cobra.Command{
	Use:   "show <node>",
	Short: "Print a node with its notes, origin and links",
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
		conns, err := s.ConnectionsForNode(n.ID)
		if err != nil {
			return err
		}
		if mapJSON {
			return printJSON(cmd.OutOrStdout(), struct {
				Node        *db.Node        `json:"node"`
				Connections []db.Connection `json:"connections"`
			}{n, conns})
		}

		w := cmd.OutOrStdout()
		info := warmap.Info(warmap.NodeType(n.Type))
		fmt.Fprintf(w, "\n  %s %s  %s\n", info.Icon, info.Label, n.ID)
		fmt.Fprintf(w, "  folder: %s  at (%.0f, %.0f)  updated %s\n", n.FolderID, n.X, n.Y, ago(n.UpdatedAt))
		if n.Author != "" {
			fmt.Fprintf(w, "  author: %s", n.Author)
			if n.SourceMessageID != "" {
				fmt.Fprintf(w, "  (message %s in thread %s)", truncID(n.SourceMessageID), truncID(n.SourceThreadID))
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, "  ────────────────────────────────────────")
		fmt.Fprint(w, renderMarkdown(w, n.Content))
		if n.Notes != "" {
			fmt.Fprintln(w, "  NOTES")
			fmt.Fprint(w, renderMarkdown(w, n.Notes))
		}
		if len(conns) > 0 {
			fmt.Fprintf(w, "  %d links:\n", len(conns))
			for _, c := range conns {
				other := c.ToID
				if other == n.ID {
					other = c.FromID
				}
				title := "?"
				if o, err := s.GetNode(other); err == nil {
					title = nodeTitle(*o)
				}
				fmt.Fprintf(w, "    - %s %s\n", truncID(other), truncTitle(title, 50))
			}
		}
		fmt.Fprintln(w)
		return nil
	},
}

var mapAddCmd = &cobra.Command{
	Use:   "add <type> <content...>",
	Short: "Add a card to the map",
	Long:  "Types: insight, tensao, pergunta, decisao, acao, evidencia, anexo (labels such as \"Tensão\" work too).",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := warmap.ParseNodeType(args[0])
		if err != nil {
			return err
		}
		content := strings.TrimSpace(strings.Join(args[1:], " "))
		if content == "" {
			return fmt.Errorf("content cannot be blank")
		}
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		c, err := openCanvas(s, mapAddFolder)
		if err != nil {
			return err
		}
		if mapAddAt != "" {
			x, y, err := parsePoint(mapAddAt)
			if err != nil {
				return fmt.Errorf("--at: %w", err)
			}
			centerOn(&c.View, x+warmap.NodeWidth/2, y+warmap.NodeHeight/2)
		}
		n, err := c.CreateNode(t, content, mapAddNotes, warmap.Provenance{Author: warmap.UserAuthor})
		if err != nil {
			return err
		}
		info := warmap.Info(t)
		fmt.Fprintf(cmd.OutOrStdout(), "[map] Added %s %s %s to %s at (%.0f, %.0f)\n",
			info.Icon, info.Label, n.ID, c.FolderID, n.X, n.Y)
		return nil
	},
}

var mapPinCmd = &cobra.Command{
	Use:   "pin <message>",
	Short: "Send a chat message to the map as a card",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := warmap.ParseNodeType(mapPinType)
		if err != nil {
			return err
		}
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		m, err := ResolveMessage(s, args[0])
		if err != nil {
			return err
		}
		folderID := db.GeneralFolderID
		if mapPinFolder != "" {
			f, err := s.GetFolder(mapPinFolder)
			if err != nil {
				return err
			}
			folderID = f.ID
		}
		now := time.Now()
		n, err := warmap.PinMessage(s, *m, folderID, t, now, rand.New(rand.NewSource(now.UnixNano())))
		if err != nil {
			return err
		}
		info := warmap.Info(t)
		fmt.Fprintf(cmd.OutOrStdout(), "[map] Pinned message %s as %s %s (%s)\n", truncID(m.ID), info.Icon, info.Label, n.ID)
		return nil
	},
}

var mapEditCmd = &cobra.Command{
	Use:   "edit <node>",
	Short: "Change a card's content, notes, type or folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		var content, notes *string
		var nodeType *warmap.NodeType
		if flags.Changed("content") {
			if strings.TrimSpace(mapEditContent) == "" {
				return fmt.Errorf("content cannot be blank")
			}
			content = &mapEditContent
		}
		if flags.Changed("notes") {
			notes = &mapEditNotes
		}
		if flags.Changed("type") {
			t, err := warmap.ParseNodeType(mapEditType)
			if err != nil {
				return err
			}
			nodeType = &t
		}
		if content == nil && notes == nil && nodeType == nil && mapEditFolder == "" {
			return fmt.Errorf("nothing to change (use --content, --notes, --type or --folder)")
		}

		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := ResolveNode(s, args[0])
		if err != nil {
			return err
		}
		edited := *n
		if content != nil || notes != nil || nodeType != nil {
			edited = warmap.EditNode(edited, content, notes, nodeType, time.Now())
		}
		if mapEditFolder != "" {
			f, err := s.GetFolder(mapEditFolder)
			if err != nil {
				return err
			}
			edited.FolderID = f.ID
		}
		if err := s.SaveNode(edited); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[map] Updated %s  %s\n", truncID(edited.ID), nodeTitle(edited))
		return nil
	},
}

var mapMoveCmd = &cobra.Command{
	Use:   "move <node>",
	Short: "Drag a card by an offset (--by dx,dy) or to a position (--to x,y)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (mapMoveBy == "") == (mapMoveTo == "") {
			return fmt.Errorf("give exactly one of --by dx,dy or --to x,y")
		}
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := ResolveNode(s, args[0])
		if err != nil {
			return err
		}
		var dx, dy float64
		if mapMoveBy != "" {
			if dx, dy, err = parsePoint(mapMoveBy); err != nil {
				return fmt.Errorf("--by: %w", err)
			}
		} else {
			x, y, err := parsePoint(mapMoveTo)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			dx, dy = x-n.X, y-n.Y
		}

		c, err := openCanvas(s, n.FolderID)
		if err != nil {
			return err
		}
		c.Grab(n.ID)
		c.Move(dx, dy)
		moved, err := c.Release()
		if err != nil {
			return err
		}
		if moved == nil {
			return fmt.Errorf("node %s is not on its folder's canvas", truncID(n.ID))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[map] Moved %s to (%.0f, %.0f)\n", truncID(moved.ID), moved.X, moved.Y)
		return nil
	},
}

var mapDeleteCmd = &cobra.Command{
	Use:   "delete <node>",
	Short: "Delete a card and its links",
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
		conns, err := s.ConnectionsForNode(n.ID)
		if err != nil {
			return err
		}
		if !confirm(cmd, fmt.Sprintf("Delete %q and its %d links?", nodeTitle(*n), len(conns))) {
			fmt.Fprintln(cmd.OutOrStdout(), "[map] Aborted")
			return nil
		}
		if err := s.DeleteNode(n.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[map] Deleted %s (%d links removed)\n", truncID(n.ID), len(conns))
		return nil
	},
}

var mapLinkCmd = &cobra.Command{
	Use:   "link <node> <node>",
	Short: "Connect two cards",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		a, err := ResolveNode(s, args[0])
		if err != nil {
			return err
		}
		b, err := ResolveNode(s, args[1])
		if err != nil {
			return err
		}
		conn, existing, err := linkNodes(s, a, b)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if existing > 0 {
			fmt.Fprintf(w, "[map] Note: these cards were already linked %d time(s)\n", existing)
		}
		fmt.Fprintf(w, "[map] Linked %s -> %s (%s)\n", truncTitle(nodeTitle(*a), 30), truncTitle(nodeTitle(*b), 30), truncID(conn.ID))
		return nil
	},
}

// linkNodes connects a to b. Cards in the same folder are linked through the
// canvas as a click would; cross-folder links are saved directly.
func linkNodes(s *db.Store, a, b *db.Node) (*db.Connection, int, error) {
	if a.ID == b.ID {
		return nil, 0, fmt.Errorf("cannot link a card to itself")
	}
	conns, err := s.ConnectionsForNode(a.ID)
	if err != nil {
		return nil, 0, err
	}
	existing := 0
	for _, c := range conns {
		if c.Touches(b.ID) {
			existing++
		}
	}

	if a.FolderID != b.FolderID {
		conn := db.Connection{ID: db.NewID(), FromID: a.ID, ToID: b.ID}
		if err := s.SaveConnection(conn); err != nil {
			return nil, 0, err
		}
		return &conn, existing, nil
	}

	c, err := openCanvas(s, a.FolderID)
	if err != nil {
		return nil, 0, err
	}
	c.StartLink(a.ID)
	conn, err := c.Click(b.ID)
	if err != nil {
		return nil, 0, err
	}
	if conn == nil {
		return nil, 0, fmt.Errorf("could not link %s to %s", truncID(a.ID), truncID(b.ID))
	}
	return conn, existing, nil
}

var mapUnlinkCmd = &cobra.Command{
	Use:   "unlink <node> <node>",
	Short: "Remove every link between two cards",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		a, err := ResolveNode(s, args[0])
		if err != nil {
			return err
		}
		b, err := ResolveNode(s, args[1])
		if err != nil {
			return err
		}
		conns, err := s.ConnectionsForNode(a.ID)
		if err != nil {
			return err
		}
		removed := 0
		for _, c := range conns {
			if !c.Touches(b.ID) {
				continue
			}
			if err := s.DeleteConnection(c.ID); err != nil {
				return err
			}
			removed++
		}
		if removed == 0 {
			return fmt.Errorf("%s and %s are not linked", truncID(a.ID), truncID(b.ID))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[map] Removed %d link(s)\n", removed)
		return nil
	},
}

// openCanvas loads a folder's canvas; an empty ref opens the general folder
func openCanvas(s *db.Store, folderRef string) (*warmap.Canvas, error) {
	folderID := db.GeneralFolderID
	if folderRef != "" {
		f, err := s.GetFolder(folderRef)
		if err != nil {
			return nil, err
		}
		folderID = f.ID
	}
	nodes, err := s.NodesInFolder(folderID)
	if err != nil {
		return nil, err
	}
	return warmap.NewCanvas(s, folderID, nodes), nil
}

// centerOn pans v so that world point (x, y) is under the screen center
func centerOn(v *warmap.Viewport, x, y float64) {
	zoom := v.Zoom
	if zoom == 0 {
		zoom = 1
	}
	v.X = v.ScreenW/2 - x*zoom
	v.Y = v.ScreenH/2 - y*zoom
}

// parsePoint reads "x,y"
func parsePoint(s string) (float64, float64, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("want x,y, got %q", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad x in %q", s)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad y in %q", s)
	}
	return x, y, nil
}

func init() {
	mapCmd.PersistentFlags().BoolVar(&mapJSON, "json", false, "Output as JSON")

	mapFolderAddCmd.Flags().StringVar(&folderAddIcon, "icon", "", "Folder icon (default 📁)")
	mapFolderAddCmd.Flags().StringVar(&folderAddColor, "color", "", "Folder color (default #4f46e5)")
	mapFolderCmd.AddCommand(mapFolderAddCmd, mapFolderRenameCmd, mapFolderDeleteCmd)

	mapNodesCmd.Flags().StringVar(&nodesFolder, "folder", "", "Only nodes in this folder (ID or name)")
	mapNodesCmd.Flags().StringVar(&nodesType, "type", "", "Only nodes of this type")

	mapAddCmd.Flags().StringVar(&mapAddFolder, "folder", "", "Folder (ID or name; default general)")
	mapAddCmd.Flags().StringVar(&mapAddNotes, "notes", "", "Notes shown under the card")
	mapAddCmd.Flags().StringVar(&mapAddAt, "at", "", "Top-left position x,y (default: the middle of the view)")

	mapPinCmd.Flags().StringVar(&mapPinFolder, "folder", "", "Folder (ID or name; default general)")
	mapPinCmd.Flags().StringVar(&mapPinType, "type", string(warmap.TypeInsight), "Card type")

	mapEditCmd.Flags().StringVar(&mapEditContent, "content", "", "New content")
	mapEditCmd.Flags().StringVar(&mapEditNotes, "notes", "", "New notes")
	mapEditCmd.Flags().StringVar(&mapEditType, "type", "", "New type")
	mapEditCmd.Flags().StringVar(&mapEditFolder, "folder", "", "Move to this folder")

	mapMoveCmd.Flags().StringVar(&mapMoveBy, "by", "", "Offset dx,dy")
	mapMoveCmd.Flags().StringVar(&mapMoveTo, "to", "", "Position x,y")

	mapCmd.AddCommand(mapFoldersCmd, mapFolderCmd, mapNodesCmd, mapShowCmd, mapAddCmd, mapPinCmd,
		mapEditCmd, mapMoveCmd, mapDeleteCmd, mapLinkCmd, mapUnlinkCmd)
	rootCmd.AddCommand(mapCmd)
}
