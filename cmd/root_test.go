package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NCDesigner/QG-Estrat-gico/internal/config"
	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
)

func newTestStore(t *testing.T) *db.Store {
	t.Helper()
	s := db.NewStore(db.NewMemory(), nil)
	t.Cleanup(func() { s.Close() })
	return s
}

// useConfig swaps the package configuration for the test
func useConfig(t *testing.T, c *config.Config) {
	t.Helper()
	old, oldDB := cfg, dbPath
	cfg, dbPath = c, ""
	t.Cleanup(func() { cfg, dbPath = old, oldDB })
}

func saveThread(t *testing.T, s *db.Store, id, title string) {
	t.Helper()
	th := db.Thread{ID: id, Title: title, ContactID: "council", CreatedAt: 1, LastActivityAt: 1}
	if err := s.SaveThread(th); err != nil {
		t.Fatalf("SaveThread: %v", err)
	}
}

func TestResolveThread(t *testing.T) {
	s := newTestStore(t)
	saveThread(t, s, "abcdef12-0000-4000-8000-000000000001", "Plano de lançamento")
	saveThread(t, s, "abcdef34-0000-4000-8000-000000000002", "Plano de lançamento v2")
	saveThread(t, s, "99887766-0000-4000-8000-000000000003", "Precificação")

	tests := []struct {
		name    string
		ref     string
		wantID  string
		wantErr string
	}{
		{name: "exact id", ref: "99887766-0000-4000-8000-000000000003", wantID: "99887766-0000-4000-8000-000000000003"},
		{name: "unique prefix", ref: "abcdef12", wantID: "abcdef12-0000-4000-8000-000000000001"},
		{name: "ambiguous prefix", ref: "abcdef", wantErr: "ambiguous reference 'abcdef'. 2 matches"},
		{name: "unique title substring", ref: "precifica", wantID: "99887766-0000-4000-8000-000000000003"},
		{name: "exact title wins over substring", ref: "plano de lançamento", wantID: "abcdef12-0000-4000-8000-000000000001"},
		{name: "ambiguous title", ref: "plano", wantErr: "Use a thread ID instead."},
		{name: "not found", ref: "orçamento", wantErr: "thread not found: orçamento"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveThread(s, tt.ref)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("ResolveThread(%q) error = %v, want containing %q", tt.ref, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveThread(%q): %v", tt.ref, err)
			}
			if got.ID != tt.wantID {
				t.Errorf("ResolveThread(%q) = %s, want %s", tt.ref, got.ID, tt.wantID)
			}
		})
	}
}

func TestResolveNode(t *testing.T) {
	s := newTestStore(t)
	for _, n := range []db.Node{
		{ID: "aaaaaa11-0000-4000-8000-000000000001", FolderID: db.GeneralFolderID, Type: "insight", Content: "Clientes pedem integração"},
		{ID: "aaaaaa22-0000-4000-8000-000000000002", FolderID: db.GeneralFolderID, Type: "acao", Content: "Ligar para clientes antigos"},
	} {
		if err := s.SaveNode(n); err != nil {
			t.Fatal(err)
		}
	}

	n, err := ResolveNode(s, "aaaaaa22")
	if err != nil || n.Type != "acao" {
		t.Fatalf("prefix: got %v, %v", n, err)
	}
	n, err = ResolveNode(s, "INTEGRAÇÃO")
	if err != nil || n.Type != "insight" {
		t.Fatalf("content search: got %v, %v", n, err)
	}
	if _, err := ResolveNode(s, "clientes"); err == nil || !strings.Contains(err.Error(), "2 matches") {
		t.Errorf("ambiguous content: error = %v", err)
	}
	if _, err := ResolveNode(s, "aaaaaa"); err == nil || !strings.Contains(err.Error(), "Use a full node ID instead.") {
		t.Errorf("ambiguous prefix: error = %v", err)
	}
}

func TestResolveMessage(t *testing.T) {
	s := newTestStore(t)
	m := db.Message{ID: "feedbeef-0000-4000-8000-000000000001", ThreadID: "t", Role: db.RoleUser, Content: "oi", CreatedAt: 1}
	if err := s.SaveMessage(m); err != nil {
		t.Fatal(err)
	}

	got, err := ResolveMessage(s, "feedbe")
	if err != nil || got.ID != m.ID {
		t.Fatalf("ResolveMessage(prefix) = %v, %v", got, err)
	}
	if _, err := ResolveMessage(s, "feed"); err == nil || !strings.Contains(err.Error(), "at least 6") {
		t.Errorf("short prefix: error = %v", err)
	}
	if _, err := ResolveMessage(s, "00000000"); err == nil {
		t.Error("unknown prefix resolved")
	}
}

func TestDiscoverDB(t *testing.T) {
	t.Run("memory backend has no path", func(t *testing.T) {
		c := config.DefaultConfig()
		c.Storage.Backend = "memory"
		useConfig(t, c)
		t.Setenv("QG_DB", "/ignored.db")

		got, err := DiscoverDB()
		if err != nil || got != "" {
			t.Errorf("DiscoverDB() = %q, %v", got, err)
		}
	})

	t.Run("env beats flag and config", func(t *testing.T) {
		c := config.DefaultConfig()
		c.Storage.Path = "/from/config.db"
		useConfig(t, c)
		dbPath = "/from/flag.db"
		t.Setenv("QG_DB", "/from/env.db")

		got, err := DiscoverDB()
		if err != nil || got != "/from/env.db" {
			t.Errorf("DiscoverDB() = %q, %v", got, err)
		}
	})

	t.Run("flag beats config", func(t *testing.T) {
		c := config.DefaultConfig()
		c.Storage.Path = "/from/config.db"
		useConfig(t, c)
		dbPath = "/from/flag.db"
		t.Setenv("QG_DB", "")

		got, err := DiscoverDB()
		if err != nil || got != "/from/flag.db" {
			t.Errorf("DiscoverDB() = %q, %v", got, err)
		}
	})

	t.Run("walks up from the working directory", func(t *testing.T) {
		useConfig(t, config.DefaultConfig())
		t.Setenv("QG_DB", "")

		root := t.TempDir()
		want := filepath.Join(root, ".qg.db")
		if err := os.WriteFile(want, nil, 0o644); err != nil {
			t.Fatal(err)
		}
		deep := filepath.Join(root, "a", "b")
		if err := os.MkdirAll(deep, 0o755); err != nil {
			t.Fatal(err)
		}
		t.Chdir(deep)

		got, err := DiscoverDB()
		if err != nil {
			t.Fatal(err)
		}
		// macOS temp dirs resolve through a symlink
		gotReal, _ := filepath.EvalSymlinks(got)
		wantReal, _ := filepath.EvalSymlinks(want)
		if gotReal != wantReal {
			t.Errorf("DiscoverDB() = %q, want %q", got, want)
		}
	})

	t.Run("falls back to XDG data home", func(t *testing.T) {
		c := config.DefaultConfig()
		c.Storage.Backend = "pebble"
		useConfig(t, c)
		t.Setenv("QG_DB", "")
		data := t.TempDir()
		t.Setenv("XDG_DATA_HOME", data)
		t.Chdir(t.TempDir())

		got, err := DiscoverDB()
		if err != nil {
			t.Fatal(err)
		}
		if want := filepath.Join(data, "qg", "qg.pebble"); got != want {
			t.Errorf("DiscoverDB() = %q, want %q", got, want)
		}
	})
}

func TestNewLogger(t *testing.T) {
	if _, err := newLogger(config.LoggingConfig{Level: "loud"}, false, nil); err == nil {
		t.Error("invalid level accepted")
	}

	path := filepath.Join(t.TempDir(), "qg.log")
	l, err := newLogger(config.LoggingConfig{Level: "warn"}, true, []string{path})
	if err != nil {
		t.Fatal(err)
	}
	l.Debug("debug enabled by --verbose")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "debug enabled by --verbose") {
		t.Errorf("log file = %q", data)
	}
}

func TestIsHexDash(t *testing.T) {
	tests := map[string]bool{
		"abcdef-0123": true,
		"ABCDEF":      true,
		"plano":       false,
		"":            true,
	}
	for in, want := range tests {
		if got := isHexDash(in); got != want {
			t.Errorf("isHexDash(%q) = %v, want %v", in, got, want)
		}
	}
}
