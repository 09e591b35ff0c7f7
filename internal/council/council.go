package council

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
	"github.com/NCDesigner/QG-Estrat-gico/internal/llm"
	"github.com/NCDesigner/QG-Estrat-gico/internal/metrics"
	"github.com/NCDesigner/QG-Estrat-gico/internal/persona"
)

// emptyReply replaces a blank model answer
const emptyReply = "Processado."

// Responder produces one persona's reply. It never fails.
type Responder interface {
	GenerateResponse(ctx context.Context, p llm.Prompt) string
}

// Orchestrator runs user turns against a store: it persists the user message,
// then asks each target persona in turn and persists every reply as soon as
// it arrives.
type Orchestrator struct {
	Store     *db.Store
	Responder Responder
	Pacer     Pacer
	Progress  Progress
	Logger    *zap.Logger
	Clock     func() time.Time
	Level     llm.Level

	mu  sync.Mutex
	rng *rand.Rand
}

// New returns an Orchestrator that paces for real and reports nowhere
func New(store *db.Store, responder Responder, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		Store:     store,
		Responder: responder,
		Pacer:     SleepPacer{},
		Progress:  noProgress{},
		Logger:    logger,
		Clock:     time.Now,
		Level:     llm.LevelDireto,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Seed makes thinking delays reproducible
func (o *Orchestrator) Seed(seed int64) {
	o.mu.Lock()
	o.rng = rand.New(rand.NewSource(seed))
	o.mu.Unlock()
}

func (o *Orchestrator) thinkingDelay() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return ThinkingDelay(o.rng)
}

func (o *Orchestrator) report(e Event) {
	if o.Progress != nil {
		o.Progress.Report(e)
	}
}

func (o *Orchestrator) pacer() Pacer {
	if o.Pacer == nil {
		return NoPacer{}
	}
	return o.Pacer
}

func (o *Orchestrator) now() time.Time {
	if o.Clock == nil {
		return time.Now()
	}
	return o.Clock()
}

// stamp returns the current time in millis, forced past last so messages of
// one turn sort strictly in the order they were produced
func (o *Orchestrator) stamp(last int64) int64 {
	t := o.now().UnixMilli()
	if t <= last {
		t = last + 1
	}
	return t
}

// dedupe keeps the first occurrence of every target
func dedupe(targets []string) []string {
	seen := make(map[string]bool, len(targets))
	var out []string
	for _, t := range targets {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// speakingOrder returns who answers and in which order
func speakingOrder(targets []string) []string {
	if len(targets) == 1 {
		return targets
	}
	return persona.Order(targets)
}

// isNewInteraction reports whether the thread was quiet long enough before at
func isNewInteraction(history []db.Message, at int64) bool {
	if len(history) == 0 {
		return true
	}
	last := history[len(history)-1].CreatedAt
	return time.Duration(at-last)*time.Millisecond > NewInteractionGap
}

// RunTurn persists the user's message and collects a reply from every target.
// An empty submission (no text, no attachments) does nothing and returns nil.
// Replies persisted before a cancellation stay persisted.
func (o *Orchestrator) RunTurn(ctx context.Context, c Compose) (*TurnResult, error) {
	text := strings.TrimSpace(c.Text)
	if text == "" && len(c.Attachments) == 0 {
		return nil, nil
	}

	targets := dedupe(c.Targets)
	if bad := persona.Unknown(targets); len(bad) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPersona, strings.Join(bad, ", "))
	}

	thread, err := o.Store.GetThread(c.ThreadID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrThreadNotFound, c.ThreadID)
		}
		return nil, err
	}

	history, err := o.Store.MessagesByThread(thread.ID)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	start := o.now()
	var last int64
	if n := len(history); n > 0 {
		last = history[n-1].CreatedAt
	}
	mode := ModeFor(len(targets))

	userMsg := db.Message{
		ID:          db.NewID(),
		ThreadID:    thread.ID,
		Role:        db.RoleUser,
		Mode:        mode,
		Content:     text,
		Attachments: c.Attachments,
		CreatedAt:   o.stamp(last),
	}
	if mode == db.ModeSingle {
		userMsg.AgentID = targets[0]
	}
	newInteraction := isNewInteraction(history, userMsg.CreatedAt)

	if err := o.persist(userMsg); err != nil {
		return nil, err
	}
	metrics.Turns.WithLabelValues(string(mode)).Inc()

	result := &TurnResult{
		ThreadID:    thread.ID,
		Mode:        mode,
		UserMessage: &userMsg,
		Replies:     []db.Message{},
	}

	o.Logger.Debug("turn started",
		zap.String("thread", thread.ID),
		zap.String("mode", string(mode)),
		zap.Strings("targets", targets))

	if mode == db.ModeNote {
		result.Duration = o.now().Sub(start)
		return result, nil
	}

	level := c.Level
	if level == "" {
		level = o.Level
	}
	order := speakingOrder(targets)
	result.Order = order

	err = o.answer(ctx, answerRun{
		thread:         thread,
		order:          order,
		transcript:     append(history, userMsg),
		userText:       text,
		attachments:    c.Attachments,
		level:          level,
		newInteraction: newInteraction,
		timeContext:    llm.NewTimeContext(start),
	}, result)
	result.Duration = o.now().Sub(start)
	return result, err
}

type answerRun struct {
	thread         *db.Thread
	order          []string
	transcript     []db.Message
	userText       string
	attachments    []db.Attachment
	level          llm.Level
	newInteraction bool
	timeContext    llm.TimeContext
	floor          int64 // replies are stamped after this
}

// answer asks every persona in run.order, strictly one after another
func (o *Orchestrator) answer(ctx context.Context, run answerRun, result *TurnResult) error {
	pacer := o.pacer()
	transcript := run.transcript
	total := len(run.order)

	defer o.report(Event{ThreadID: run.thread.ID, State: StateDone, Index: total, Total: total})

	for i, id := range run.order {
		if err := ctx.Err(); err != nil {
			return err
		}
		log := o.Logger.With(zap.String("thread", run.thread.ID), zap.String("persona", id))
		o.report(Event{ThreadID: run.thread.ID, PersonaID: id, State: StateAnalyzing, Index: i, Total: total})

		reply := o.Responder.GenerateResponse(ctx, llm.Prompt{
			PersonaID:        id,
			UserText:         run.userText,
			History:          transcript,
			Time:             &run.timeContext,
			Level:            run.level,
			Attachments:      run.attachments,
			IsNewInteraction: run.newInteraction,
		})
		if strings.TrimSpace(reply) == "" {
			reply = emptyReply
		}
		if reply == llm.Fallback {
			result.Fallbacks++
		}

		if err := pacer.Pause(ctx, o.thinkingDelay()); err != nil {
			return err
		}
		o.report(Event{ThreadID: run.thread.ID, PersonaID: id, State: StateTyping, Index: i, Total: total})
		if err := pacer.Pause(ctx, TypingDelay(reply)); err != nil {
			return err
		}

		last := run.floor
		if n := len(transcript); n > 0 && transcript[n-1].CreatedAt > last {
			last = transcript[n-1].CreatedAt
		}
		msg := db.Message{
			ID:        db.NewID(),
			ThreadID:  run.thread.ID,
			Role:      db.RoleAgent,
			Mode:      db.ModeSingle,
			AgentID:   id,
			Content:   reply,
			CreatedAt: o.stamp(last),
		}
		if err := o.persist(msg); err != nil {
			return err
		}
		transcript = append(transcript, msg)
		result.Replies = append(result.Replies, msg)
		log.Debug("reply persisted", zap.Int("chars", len(reply)))

		o.report(Event{ThreadID: run.thread.ID, PersonaID: id, State: StateIdle, Index: i, Total: total, Message: &msg})

		if err := pacer.Pause(ctx, BreathingPause); err != nil {
			return err
		}
	}
	return nil
}

// persist saves a message and bumps its thread's activity time
func (o *Orchestrator) persist(m db.Message) error {
	if err := o.Store.SaveMessage(m); err != nil {
		return fmt.Errorf("saving message: %w", err)
	}
	if err := o.Store.TouchThread(m.ThreadID, m.CreatedAt); err != nil {
		return fmt.Errorf("updating thread activity: %w", err)
	}
	metrics.MessagesPersisted.WithLabelValues(string(m.Role)).Inc()
	return nil
}

// RetryTurn re-asks the personas whose reply in the thread's latest answered
// turn was the fallback apology. The failed replies stay in the history; the
// new replies are appended after them.
func (o *Orchestrator) RetryTurn(ctx context.Context, threadID string) (*TurnResult, error) {
	thread, err := o.Store.GetThread(threadID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrThreadNotFound, threadID)
		}
		return nil, err
	}
	history, err := o.Store.MessagesByThread(thread.ID)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	userIdx := -1
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == db.RoleUser && history[i].Mode != db.ModeNote {
			userIdx = i
			break
		}
	}
	if userIdx < 0 {
		return nil, ErrNothingToRetry
	}
	userMsg := history[userIdx]

	// A persona still needs a retry when its latest reply is the apology
	latest := map[string]string{}
	var seen []string
	transcript := append([]db.Message(nil), history[:userIdx+1]...)
	for _, m := range history[userIdx+1:] {
		if m.Role != db.RoleAgent {
			continue
		}
		if _, ok := latest[m.AgentID]; !ok {
			seen = append(seen, m.AgentID)
		}
		latest[m.AgentID] = m.Content
		if m.Content != llm.Fallback {
			transcript = append(transcript, m)
		}
	}
	var failed []string
	for _, id := range seen {
		if latest[id] == llm.Fallback {
			failed = append(failed, id)
		}
	}
	if len(failed) == 0 {
		return nil, ErrNothingToRetry
	}

	start := o.now()
	order := speakingOrder(failed)
	result := &TurnResult{
		ThreadID:    thread.ID,
		Mode:        userMsg.Mode,
		Order:       order,
		UserMessage: &userMsg,
		Replies:     []db.Message{},
	}
	o.Logger.Info("retrying failed replies", zap.String("thread", thread.ID), zap.Strings("personas", order))

	err = o.answer(ctx, answerRun{
		thread:         thread,
		order:          order,
		transcript:     transcript,
		userText:       userMsg.Content,
		attachments:    userMsg.Attachments,
		level:          o.Level,
		newInteraction: false,
		timeContext:    llm.NewTimeContext(start),
		floor:          history[len(history)-1].CreatedAt,
	}, result)
	result.Duration = o.now().Sub(start)
	return result, err
}
