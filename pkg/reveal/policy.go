// Package reveal decides when buffered-but-unconfirmed assistant text becomes
// visible. A Policy only governs DisplayMode transitions driven by text
// deltas before any tool call has been observed; tool calls and terminal run
// transitions always take visual priority and are handled by the reducer.
package reveal

import (
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/eva-chat/turnstream/pkg/turns"
)

// Policy names accepted by ForName.
const (
	NameRealtime = "realtime"
	NameDelayed  = "delayed"
	NameSmart    = "smart"
)

// Policy is a pure decision function: given the turn after a text delta has
// been buffered, return the display mode the turn should adopt. It must not
// mutate the turn; the reducer applies the decision and maintains the
// BufferStart/StreamLatched bookkeeping fields.
type Policy interface {
	Name() string
	Decide(t *turns.Turn, now time.Time) turns.DisplayMode
}

// Realtime shows every non-empty buffer immediately.
type Realtime struct{}

func (Realtime) Name() string { return NameRealtime }

func (Realtime) Decide(t *turns.Turn, _ time.Time) turns.DisplayMode {
	if t.PendingText != "" {
		return turns.DisplayStreaming
	}
	return t.DisplayMode
}

// Delayed never reveals buffered text; the turn stays in loading until a tool
// call flips it to process or completion flips it to result.
type Delayed struct{}

func (Delayed) Name() string { return NameDelayed }

func (Delayed) Decide(t *turns.Turn, _ time.Time) turns.DisplayMode {
	return t.DisplayMode
}

// Smart thresholds; elapsed time is measured from the first delta.
const (
	DefaultSmartDelay       = 2000 * time.Millisecond
	DefaultSmartBufferRunes = 300
)

// Smart buffers silently until either wall-clock time since the first delta
// exceeds Delay or the buffered text exceeds BufferRunes, then latches
// streaming for the remainder of the turn.
type Smart struct {
	Delay       time.Duration
	BufferRunes int
}

func NewSmart() Smart {
	return Smart{Delay: DefaultSmartDelay, BufferRunes: DefaultSmartBufferRunes}
}

func (Smart) Name() string { return NameSmart }

func (s Smart) Decide(t *turns.Turn, now time.Time) turns.DisplayMode {
	if t.StreamLatched {
		return turns.DisplayStreaming
	}
	if !t.BufferStart.IsZero() && now.Sub(t.BufferStart) > s.Delay {
		return turns.DisplayStreaming
	}
	if utf8.RuneCountInString(t.PendingText) > s.BufferRunes {
		return turns.DisplayStreaming
	}
	return t.DisplayMode
}

// ForName returns the policy registered under the given name.
func ForName(name string) (Policy, error) {
	switch name {
	case NameRealtime:
		return Realtime{}, nil
	case NameDelayed:
		return Delayed{}, nil
	case NameSmart:
		return NewSmart(), nil
	}
	return nil, errors.Errorf("unknown reveal policy %q", name)
}
