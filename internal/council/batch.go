package council

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// BatchConfig controls a batch of prompts sent to one thread
type BatchConfig struct {
	ThreadID       string
	Source         string // file path or "-" for stdin
	Targets        []string
	MaxRuns        int  // 0 means no limit
	StopOnFallback int  // consecutive fully-failed prompts before abort (default 3)
	Reset          bool // forget which prompts were already answered
	DryRun         bool
	Pause          time.Duration // between prompts
	Log            io.Writer     // progress lines; default os.Stderr
}

// BatchResult summarizes a batch run
type BatchResult struct {
	Prompts  []BatchPromptResult `json:"prompts"`
	Duration time.Duration       `json:"duration"`
}

// BatchPromptResult is the outcome of one prompt
type BatchPromptResult struct {
	Prompt    string        `json:"prompt"`
	Status    string        `json:"status"` // "answered", "partial", "fallback", "failed"
	Replies   int           `json:"replies"`
	Fallbacks int           `json:"fallbacks"`
	Duration  time.Duration `json:"duration"`
}

// Counts tallies results by status
func (r *BatchResult) Counts() map[string]int {
	out := map[string]int{}
	for _, p := range r.Prompts {
		out[p.Status]++
	}
	return out
}

// RunBatch sends each prompt from cfg.Source to the thread as its own turn.
// Answered prompts are remembered next to the source file so a rerun resumes
// where the last one stopped.
func (o *Orchestrator) RunBatch(ctx context.Context, cfg BatchConfig) (*BatchResult, error) {
	prompts, err := ReadPrompts(cfg.Source)
	if err != nil {
		return nil, err
	}
	log := cfg.Log
	if log == nil {
		log = os.Stderr
	}
	stopOn := cfg.StopOnFallback
	if stopOn <= 0 {
		stopOn = 3
	}
	maxRuns := cfg.MaxRuns
	if maxRuns <= 0 {
		maxRuns = len(prompts)
	}

	statePath := batchStatePath(cfg.Source, cfg.ThreadID)
	if cfg.Reset {
		if err := os.Remove(statePath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to delete batch state: %w", err)
		} else if err == nil {
			fmt.Fprintf(log, "[batch] State reset: deleted %s\n", statePath)
		}
	}
	state := loadBatchState(statePath, cfg.Source, cfg.ThreadID)

	fmt.Fprintf(log, "[batch] Starting: %d prompts, max %d runs, thread %s\n",
		len(prompts), maxRuns, TruncateMiddle(cfg.ThreadID, 12))
	if n := len(state.Answered); n > 0 {
		fmt.Fprintf(log, "[batch] Resuming: %d prompt(s) already answered, will skip.\n", n)
	}

	if cfg.DryRun {
		fmt.Fprintf(log, "\n[batch] === DRY RUN ===\n")
		shown := 0
		for i, p := range prompts {
			if shown >= maxRuns {
				break
			}
			mark := " "
			if state.isAnswered(p) {
				mark = "✓"
			}
			fmt.Fprintf(log, "  %s %d. %s\n", mark, i+1, TruncateMiddle(p, 70))
			shown++
		}
		fmt.Fprintf(log, "\n[batch] Would send %d prompt(s). Nothing persisted.\n", shown)
		return &BatchResult{}, nil
	}

	var results []BatchPromptResult
	consecutive := 0
	start := time.Now()

	for i, prompt := range prompts {
		if ctx.Err() != nil {
			fmt.Fprintf(log, "\n[batch] Interrupted. Stopping.\n")
			break
		}
		if len(results) >= maxRuns {
			fmt.Fprintf(log, "\n[batch] Max runs reached (%d/%d). Stopping.\n", len(results), maxRuns)
			break
		}
		if consecutive >= stopOn {
			fmt.Fprintf(log, "\n[batch] %d consecutive failed prompts. Stopping -- quota likely exhausted.\n", stopOn)
			break
		}
		if state.isAnswered(prompt) {
			fmt.Fprintf(log, "[batch] Skipping prompt %d (already answered)\n", i+1)
			continue
		}

		fmt.Fprintf(log, "\n[batch] === Prompt %d/%d: %s ===\n", i+1, len(prompts), TruncateMiddle(prompt, 60))
		promptStart := time.Now()
		turn, turnErr := o.RunTurn(ctx, Compose{ThreadID: cfg.ThreadID, Text: prompt, Targets: cfg.Targets})

		pr := BatchPromptResult{Prompt: prompt, Duration: time.Since(promptStart)}
		if turn != nil {
			pr.Replies = len(turn.Replies)
			pr.Fallbacks = turn.Fallbacks
		}
		switch {
		case turnErr != nil:
			pr.Status = "failed"
		case pr.Replies > 0 && pr.Fallbacks == pr.Replies:
			pr.Status = "fallback"
		case pr.Fallbacks > 0:
			pr.Status = "partial"
		default:
			pr.Status = "answered"
		}

		state.record(&pr)
		if err := state.save(); err != nil {
			fmt.Fprintf(log, "[batch] Warning: failed to persist batch state: %v\n", err)
		}

		switch pr.Status {
		case "answered":
			consecutive = 0
			fmt.Fprintf(log, "[batch] ANSWERED: %d repl%s, %s\n",
				pr.Replies, plural(pr.Replies, "y", "ies"), FormatDurationShort(pr.Duration))
		case "partial":
			consecutive = 0
			fmt.Fprintf(log, "[batch] PARTIAL: %d/%d replies fell back -- run `qg retry` later\n",
				pr.Fallbacks, pr.Replies)
		case "fallback":
			consecutive++
			fmt.Fprintf(log, "[batch] FALLBACK: #%d consecutive -- %s\n", consecutive, TruncateMiddle(prompt, 50))
		case "failed":
			consecutive++
			fmt.Fprintf(log, "[batch] FAILED: %s -- %s\n", TruncateMiddle(prompt, 50), TruncateMiddle(turnErr.Error(), 60))
			o.Logger.Warn("batch prompt failed", zap.Int("index", i), zap.Error(turnErr))
		}
		results = append(results, pr)

		if i+1 < len(prompts) && len(results) < maxRuns && cfg.Pause > 0 {
			if err := o.pacer().Pause(ctx, cfg.Pause); err != nil {
				break
			}
		}
	}

	res := &BatchResult{Prompts: results, Duration: time.Since(start)}
	printBatchSummary(log, res)
	return res, nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func printBatchSummary(w io.Writer, r *BatchResult) {
	c := r.Counts()
	fmt.Fprintf(w, "\n[batch] === SUMMARY ===\n")
	fmt.Fprintf(w, "[batch] Sent: %d  Answered: %d  Partial: %d  Fallback: %d  Failed: %d\n",
		len(r.Prompts), c["answered"], c["partial"], c["fallback"], c["failed"])
	fmt.Fprintf(w, "[batch] Duration: %s\n", FormatDurationShort(r.Duration))
}

// ReadPrompts reads prompts from a file or stdin.
// Supports two formats:
//  1. One prompt per line
//  2. Multi-line prompts separated by "---" on its own line
//
// In both formats, blank lines and lines starting with '#' are skipped.
// Lines of a multi-line prompt keep their line breaks.
func ReadPrompts(source string) ([]string, error) {
	var reader io.Reader
	if source == "-" {
		reader = os.Stdin
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt source '%s': %w", source, err)
		}
		defer f.Close()
		reader = f
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading prompts: %w", err)
	}

	prompts := parsePromptContent(string(content))
	if len(prompts) == 0 {
		return nil, fmt.Errorf("%w in '%s' (blank lines and # comments ignored)", ErrNoPromptsInFile, source)
	}
	return prompts, nil
}

func parsePromptContent(content string) []string {
	lines := strings.Split(content, "\n")

	hasDelimiter := false
	for _, line := range lines {
		if strings.TrimSpace(line) == "---" {
			hasDelimiter = true
			break
		}
	}

	if hasDelimiter {
		var prompts []string
		var section []string
		for _, line := range lines {
			if strings.TrimSpace(line) == "---" {
				if p := flushSection(section); p != "" {
					prompts = append(prompts, p)
				}
				section = nil
			} else {
				section = append(section, line)
			}
		}
		if p := flushSection(section); p != "" {
			prompts = append(prompts, p)
		}
		return prompts
	}

	var prompts []string
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prompts = append(prompts, line)
	}
	return prompts
}

func flushSection(lines []string) string {
	var parts []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		parts = append(parts, trimmed)
	}
	return strings.Join(parts, "\n")
}

// ---------------------------------------------------------------------------
// Batch state persistence
// ---------------------------------------------------------------------------

type batchState struct {
	Source    string          `json:"source"`
	ThreadID  string          `json:"thread_id"`
	Answered  map[string]bool `json:"answered"`
	Runs      []batchStateRun `json:"runs"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
	path      string
}

type batchStateRun struct {
	Prompt      string `json:"prompt"`
	Status      string `json:"status"`
	Replies     int    `json:"replies"`
	DurationMS  int64  `json:"duration_ms"`
	CompletedAt string `json:"completed_at"`
}

func newBatchState(path, source, threadID string) *batchState {
	now := time.Now().UTC().Format(time.RFC3339)
	return &batchState{
		Source:    source,
		ThreadID:  threadID,
		Answered:  make(map[string]bool),
		CreatedAt: now,
		UpdatedAt: now,
		path:      path,
	}
}

func loadBatchState(path, source, threadID string) *batchState {
	data, err := os.ReadFile(path)
	if err != nil {
		return newBatchState(path, source, threadID)
	}
	var state batchState
	if err := json.Unmarshal(data, &state); err != nil || state.ThreadID != threadID {
		return newBatchState(path, source, threadID)
	}
	state.path = path
	if state.Answered == nil {
		state.Answered = make(map[string]bool)
	}
	return &state
}

func (s *batchState) save() error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing batch state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing batch state to %s: %w", s.path, err)
	}
	return nil
}

func (s *batchState) isAnswered(prompt string) bool {
	return s.Answered[prompt]
}

func (s *batchState) record(r *BatchPromptResult) {
	if r.Status == "answered" {
		s.Answered[r.Prompt] = true
	}
	now := time.Now().UTC().Format(time.RFC3339)
	s.Runs = append(s.Runs, batchStateRun{
		Prompt:      r.Prompt,
		Status:      r.Status,
		Replies:     r.Replies,
		DurationMS:  r.Duration.Milliseconds(),
		CompletedAt: now,
	})
	s.UpdatedAt = now
}

// batchStatePath puts the state next to the source: prompts.txt becomes
// prompts.<thread8>.batch-state.json
func batchStatePath(source, threadID string) string {
	short := threadID
	if len(short) > 8 {
		short = short[:8]
	}
	if source == "-" {
		return filepath.Join(os.TempDir(), "qg-batch-stdin."+short+".batch-state.json")
	}
	dir := filepath.Dir(source)
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	if stem == "" {
		stem = "prompts"
	}
	return filepath.Join(dir, stem+"."+short+".batch-state.json")
}
