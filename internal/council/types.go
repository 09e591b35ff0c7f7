package council

import (
	"errors"
	"time"

	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
	"github.com/NCDesigner/QG-Estrat-gico/internal/llm"
)

var (
	ErrUnknownPersona  = errors.New("unknown persona")
	ErrThreadNotFound  = errors.New("thread not found")
	ErrNothingToRetry  = errors.New("no failed replies to retry")
	ErrNoPromptsInFile = errors.New("no prompts found")
)

// State is where a turn is for the persona currently answering
type State int

const (
	StateIdle State = iota
	StateAnalyzing
	StateTyping
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAnalyzing:
		return "analyzing"
	case StateTyping:
		return "typing"
	case StateDone:
		return "done"
	default:
		return "idle"
	}
}

// Event reports a state change during a turn. Message is set on the Idle
// event that follows a persisted reply.
type Event struct {
	ThreadID  string      `json:"threadId"`
	PersonaID string      `json:"personaId,omitempty"`
	State     State       `json:"state"`
	Index     int         `json:"index"` // 0-based position in the speaking order
	Total     int         `json:"total"`
	Message   *db.Message `json:"message,omitempty"`
}

// Progress receives turn events in order
type Progress interface {
	Report(Event)
}

// ProgressFunc adapts a function to Progress
type ProgressFunc func(Event)

func (f ProgressFunc) Report(e Event) { f(e) }

type noProgress struct{}

func (noProgress) Report(Event) {}

// Compose is one user submission
type Compose struct {
	ThreadID    string
	Text        string
	Targets     []string // persona ids; empty means a note
	Attachments []db.Attachment
	Level       llm.Level // empty uses the orchestrator's level
}

// TurnResult is what a turn persisted
type TurnResult struct {
	ThreadID    string        `json:"threadId"`
	Mode        db.Mode       `json:"mode"`
	Order       []string      `json:"order,omitempty"`
	UserMessage *db.Message   `json:"userMessage,omitempty"`
	Replies     []db.Message  `json:"replies"`
	Fallbacks   int           `json:"fallbacks"`
	Duration    time.Duration `json:"duration"`
}

// ModeFor picks the message mode from the number of targets
func ModeFor(targets int) db.Mode {
	switch {
	case targets == 0:
		return db.ModeNote
	case targets == 1:
		return db.ModeSingle
	default:
		return db.ModeCouncil
	}
}
