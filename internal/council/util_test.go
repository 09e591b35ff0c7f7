package council

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
)

func TestFormatDurationShort(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0.0s"},
		{480 * time.Millisecond, "0.4s"},
		{12*time.Second + 340*time.Millisecond, "12.3s"},
		{4*time.Minute + 5*time.Second, "4m05s"},
		{time.Hour + 20*time.Minute + 59*time.Second, "1h20m"},
	}

	for _, tt := range tests {
		if got := FormatDurationShort(tt.d); got != tt.want {
			t.Errorf("FormatDurationShort(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestTruncateMiddle(t *testing.T) {
	tests := []struct {
		s      string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exact", 5, "exact"},
		{"abcdefghij", 7, "ab...ij"},
		{"hello world!", 9, "hel...ld!"},
		{"abcd", 3, "abc"},
		{"decisão estratégica", 9, "dec...ica"},
		{"linha um\nlinha dois", 30, "linha um linha dois"},
	}

	for _, tt := range tests {
		got := TruncateMiddle(tt.s, tt.maxLen)
		if got != tt.want {
			t.Errorf("TruncateMiddle(%q, %d) = %q, want %q", tt.s, tt.maxLen, got, tt.want)
		}
		if n := len([]rune(got)); n > tt.maxLen {
			t.Errorf("TruncateMiddle(%q, %d) length %d exceeds max %d", tt.s, tt.maxLen, n, tt.maxLen)
		}
	}
}

func TestTypingDelay(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  time.Duration
	}{
		{"short reply clamps up", "ok", time.Second},
		{"proportional", strings.Repeat("a", 150), 1500 * time.Millisecond},
		{"runes not bytes", strings.Repeat("ã", 200), 2 * time.Second},
		{"long reply clamps down", strings.Repeat("a", 1000), 4 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TypingDelay(tt.reply); got != tt.want {
				t.Errorf("TypingDelay = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestThinkingDelayRange(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		d := ThinkingDelay(r)
		if d < 1500*time.Millisecond || d >= 3500*time.Millisecond {
			t.Fatalf("ThinkingDelay = %v, outside [1.5s, 3.5s)", d)
		}
	}
}

func TestModeFor(t *testing.T) {
	tests := []struct {
		n    int
		want db.Mode
	}{
		{0, db.ModeNote},
		{1, db.ModeSingle},
		{2, db.ModeCouncil},
		{5, db.ModeCouncil},
	}
	for _, tt := range tests {
		if got := ModeFor(tt.n); got != tt.want {
			t.Errorf("ModeFor(%d) = %s, want %s", tt.n, got, tt.want)
		}
	}
}

func TestReadPrompts_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.txt")
	content := `# pauta da semana
Qual o status do funil?

# caixa
Quanto tempo de runway temos?
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}

	prompts, err := ReadPrompts(path)
	if err != nil {
		t.Fatalf("ReadPrompts: %v", err)
	}
	if len(prompts) != 2 {
		t.Fatalf("expected 2 prompts, got %d: %v", len(prompts), prompts)
	}
	if prompts[1] != "Quanto tempo de runway temos?" {
		t.Errorf("prompt[1] = %q", prompts[1])
	}
}

func TestReadPrompts_MultiLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.txt")
	content := `Contexto: perdemos dois clientes
O que faço primeiro?
---
Revise o plano de contratação
---
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}

	prompts, err := ReadPrompts(path)
	if err != nil {
		t.Fatalf("ReadPrompts: %v", err)
	}
	if len(prompts) != 2 {
		t.Fatalf("expected 2 prompts, got %d: %v", len(prompts), prompts)
	}
	if prompts[0] != "Contexto: perdemos dois clientes\nO que faço primeiro?" {
		t.Errorf("prompt[0] = %q", prompts[0])
	}
}

func TestReadPrompts_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(path, []byte("# nada\n\n"), 0o644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	_, err := ReadPrompts(path)
	if err == nil || !strings.Contains(err.Error(), "no prompts found") {
		t.Errorf("err = %v, want 'no prompts found'", err)
	}

	if _, err := ReadPrompts(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestBatchStatePath(t *testing.T) {
	tests := []struct {
		source string
		thread string
		want   string
	}{
		{"/tmp/pauta.txt", "0123456789abcdef", "/tmp/pauta.01234567.batch-state.json"},
		{"dir/prompts", "abc", "dir/prompts.abc.batch-state.json"},
	}
	for _, tt := range tests {
		if got := batchStatePath(tt.source, tt.thread); got != tt.want {
			t.Errorf("batchStatePath(%q, %q) = %q, want %q", tt.source, tt.thread, got, tt.want)
		}
	}
}

func TestBatchState_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.t1.batch-state.json")

	state := newBatchState(path, "p.txt", "t1")
	state.record(&BatchPromptResult{Prompt: "um", Status: "answered", Replies: 2})
	state.record(&BatchPromptResult{Prompt: "dois", Status: "fallback", Replies: 1, Fallbacks: 1})
	if err := state.save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := loadBatchState(path, "p.txt", "t1")
	if !loaded.isAnswered("um") || loaded.isAnswered("dois") {
		t.Errorf("answered = %v", loaded.Answered)
	}
	if len(loaded.Runs) != 2 {
		t.Errorf("runs = %d, want 2", len(loaded.Runs))
	}

	other := loadBatchState(path, "p.txt", "t2")
	if other.isAnswered("um") {
		t.Error("state of another thread must not be reused")
	}
}
