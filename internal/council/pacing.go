package council

import (
	"context"
	"math/rand"
	"time"
	"unicode/utf8"
)

const (
	// BreathingPause separates one persona's reply from the next
	BreathingPause = 800 * time.Millisecond

	minThinking   = 1500 * time.Millisecond
	thinkingRange = 2000 // ms
	minTyping     = 1000 * time.Millisecond
	maxTyping     = 4000 * time.Millisecond
	typingPerChar = 10 * time.Millisecond

	// NewInteractionGap is how long a thread must be quiet before the
	// greeting personas say hello again
	NewInteractionGap = 6 * time.Hour
)

// Pacer waits between the phases of a turn
type Pacer interface {
	Pause(ctx context.Context, d time.Duration) error
}

// SleepPacer waits for real
type SleepPacer struct{}

func (SleepPacer) Pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NoPacer never waits; used by the API, batch runs and tests
type NoPacer struct{}

func (NoPacer) Pause(ctx context.Context, _ time.Duration) error { return ctx.Err() }

// ThinkingDelay is drawn uniformly from [1500, 3500) ms
func ThinkingDelay(r *rand.Rand) time.Duration {
	return minThinking + time.Duration(r.Intn(thinkingRange))*time.Millisecond
}

// TypingDelay is 10 ms per character of the reply, clamped to [1s, 4s]
func TypingDelay(reply string) time.Duration {
	d := time.Duration(utf8.RuneCountInString(reply)) * typingPerChar
	if d < minTyping {
		return minTyping
	}
	if d > maxTyping {
		return maxTyping
	}
	return d
}
