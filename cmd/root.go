package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/NCDesigner/QG-Estrat-gico/internal/config"
	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
)

var (
	configPath  string
	dbPath      string
	backendFlag string
	verbose     bool
	assumeYes   bool

	cfg    = config.DefaultConfig()
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "qg",
	Short: "QG Estratégico: the strategy council in your terminal",
	Long: `qg keeps conversations with the advisory council (Flávio, Alfredo, Conrado,
Rafa, Luciano), the message tags and the war map in a local database, and
talks to Gemini for the replies.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to qg.yaml (default ./qg.yaml or the user config dir)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the database (.qg.db for sqlite, a directory for pebble)")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "Storage backend: sqlite, pebble or memory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
}

// setup loads the configuration and builds the logger every command uses
func setup() error {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	c, err := config.Load(path)
	if err != nil {
		return err
	}
	if backendFlag != "" {
		c.Storage.Backend = strings.ToLower(backendFlag)
	}
	if err := c.Validate(); err != nil {
		return err
	}

	l, err := newLogger(c.Logging, verbose, nil)
	if err != nil {
		return err
	}
	cfg, logger = c, l
	logger.Debug("configuration loaded",
		zap.String("path", path),
		zap.String("backend", c.Storage.Backend),
		zap.String("model", c.LLM.Model))
	return nil
}

// newLogger builds a production zap logger. outputs overrides where logs go;
// otherwise logging.file is used when set, else stderr.
func newLogger(lc config.LoggingConfig, debug bool, outputs []string) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Level != "" {
		level, err := zap.ParseAtomicLevel(lc.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid logging.level: %w", err)
		}
		zc.Level = level
	}
	if debug {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if len(outputs) == 0 && lc.File != "" {
		outputs = []string{lc.File}
	}
	if len(outputs) > 0 {
		zc.OutputPaths = outputs
		zc.ErrorOutputPaths = outputs
	}
	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return l, nil
}

// dbFileName is the name looked for while walking up from the working directory
func dbFileName(backend string) string {
	if backend == "pebble" {
		return ".qg.pebble"
	}
	return ".qg.db"
}

// DiscoverDB finds the database path using priority:
// env > flag > config > walk-up > XDG fallback.
// Unlike the walk-up, the explicit sources and the XDG path may name a
// database that does not exist yet; it is created on open.
func DiscoverDB() (string, error) {
	if cfg.Storage.Backend == "memory" {
		return "", nil
	}

	// 1. Environment variable
	if envPath := os.Getenv("QG_DB"); envPath != "" {
		return envPath, nil
	}

	// 2. CLI flag
	if dbPath != "" {
		return dbPath, nil
	}

	// 3. Config file
	if cfg.Storage.Path != "" {
		return cfg.Storage.Path, nil
	}

	// 4. Walk up from CWD
	name := dbFileName(cfg.Storage.Backend)
	dir, err := os.Getwd()
	if err == nil {
		for {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	// 5. XDG fallback
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("no database found (set QG_DB, use --db, or run from a directory containing %s)", name)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "qg", strings.TrimPrefix(name, ".")), nil
}

// OpenStore discovers and opens the database
func OpenStore() (*db.Store, error) {
	path, err := DiscoverDB()
	if err != nil {
		return nil, err
	}
	backend, err := db.Open(cfg.Storage.Backend, path)
	if err != nil {
		return nil, err
	}
	logger.Debug("store opened", zap.String("backend", cfg.Storage.Backend), zap.String("path", path))
	return db.NewStore(backend, logger), nil
}

// ResolveThread finds a thread by full ID, ID prefix, or title search
func ResolveThread(s *db.Store, reference string) (*db.Thread, error) {
	// 1. Exact ID match
	if t, err := s.GetThread(reference); err == nil {
		return t, nil
	}

	// 2. ID prefix match (≥6 hex/dash chars)
	if len(reference) >= 6 && isHexDash(reference) {
		matches, err := s.SearchThreadsByIDPrefix(reference, 10)
		if err != nil {
			return nil, err
		}
		switch len(matches) {
		case 1:
			return &matches[0], nil
		case 0:
			// fall through to title search
		default:
			lines := make([]string, len(matches))
			for i, m := range matches {
				lines[i] = fmt.Sprintf("  %s %s", truncID(m.ID), m.Title)
			}
			return nil, fmt.Errorf("ambiguous reference '%s'. %d matches:\n%s\nUse a full thread ID instead.",
				reference, len(matches), joinLines(lines))
		}
	}

	// 3. Title search
	matches, err := s.SearchThreadsByTitle(reference)
	if err != nil {
		return nil, err
	}
	if exact := exactThreadTitle(matches, reference); exact != nil {
		return exact, nil
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("thread not found: %s", reference)
	case 1:
		return &matches[0], nil
	default:
		limit := min(len(matches), 10)
		lines := make([]string, limit)
		for i := 0; i < limit; i++ {
			lines[i] = fmt.Sprintf("  %s %s", truncID(matches[i].ID), matches[i].Title)
		}
		return nil, fmt.Errorf("ambiguous reference '%s'. %d matches:\n%s\nUse a thread ID instead.",
			reference, len(matches), joinLines(lines))
	}
}

// exactThreadTitle returns the only thread titled exactly ref, ignoring case
func exactThreadTitle(threads []db.Thread, ref string) *db.Thread {
	var found *db.Thread
	for i := range threads {
		if strings.EqualFold(threads[i].Title, ref) {
			if found != nil {
				return nil
			}
			found = &threads[i]
		}
	}
	return found
}

// ResolveNode finds a war-map node by full ID, ID prefix, or content search
func ResolveNode(s *db.Store, reference string) (*db.Node, error) {
	// 1. Exact ID match
	if n, err := s.GetNode(reference); err == nil {
		return n, nil
	}

	// 2. ID prefix match (≥6 hex/dash chars)
	if len(reference) >= 6 && isHexDash(reference) {
		matches, err := s.SearchNodesByIDPrefix(reference, 10)
		if err != nil {
			return nil, err
		}
		switch len(matches) {
		case 1:
			return &matches[0], nil
		case 0:
			// fall through to content search
		default:
			lines := make([]string, len(matches))
			for i, m := range matches {
				lines[i] = fmt.Sprintf("  %s %s", truncID(m.ID), nodeTitle(m))
			}
			return nil, fmt.Errorf("ambiguous reference '%s'. %d matches:\n%s\nUse a full node ID instead.",
				reference, len(matches), joinLines(lines))
		}
	}

	// 3. Content search
	nodes, err := s.Nodes()
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(reference)
	var items []db.Node
	for _, n := range nodes {
		if strings.Contains(strings.ToLower(n.Content), q) {
			items = append(items, n)
		}
	}
	switch len(items) {
	case 0:
		return nil, fmt.Errorf("node not found: %s", reference)
	case 1:
		return &items[0], nil
	default:
		limit := min(len(items), 10)
		lines := make([]string, limit)
		for i := 0; i < limit; i++ {
			lines[i] = fmt.Sprintf("  %s %s", truncID(items[i].ID), nodeTitle(items[i]))
		}
		return nil, fmt.Errorf("ambiguous reference '%s'. %d matches:\n%s\nUse a node ID instead.",
			reference, len(items), joinLines(lines))
	}
}

// ResolveMessage finds a message by full ID or ID prefix
func ResolveMessage(s *db.Store, reference string) (*db.Message, error) {
	if m, err := s.GetMessage(reference); err == nil {
		return m, nil
	}
	if len(reference) < 6 {
		return nil, fmt.Errorf("message not found: %s (use at least 6 characters of its ID)", reference)
	}

	msgs, err := s.Messages()
	if err != nil {
		return nil, err
	}
	var matches []db.Message
	for _, m := range msgs {
		if strings.HasPrefix(m.ID, reference) {
			matches = append(matches, m)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("message not found: %s", reference)
	case 1:
		return &matches[0], nil
	default:
		limit := min(len(matches), 10)
		lines := make([]string, limit)
		for i := 0; i < limit; i++ {
			lines[i] = fmt.Sprintf("  %s %s", truncID(matches[i].ID), truncTitle(oneLine(matches[i].Content), 50))
		}
		return nil, fmt.Errorf("ambiguous reference '%s'. %d matches:\n%s\nUse a full message ID instead.",
			reference, len(matches), joinLines(lines))
	}
}

func isHexDash(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') || c == '-') {
			return false
		}
	}
	return true
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}
