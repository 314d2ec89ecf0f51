package reveal

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eva-chat/turnstream/pkg/turns"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func bufferedTurn(text string) *turns.Turn {
	t := turns.New("t1")
	t.PendingText = text
	t.BufferStart = base
	return t
}

func TestRealtimeRevealsImmediately(t *testing.T) {
	turn := bufferedTurn("h")
	require.Equal(t, turns.DisplayStreaming, Realtime{}.Decide(turn, base))
}

func TestRealtimeLeavesEmptyBufferAlone(t *testing.T) {
	turn := turns.New("t1")
	require.Equal(t, turns.DisplayLoading, Realtime{}.Decide(turn, base))
}

func TestDelayedNeverReveals(t *testing.T) {
	turn := bufferedTurn(strings.Repeat("x", 10_000))
	require.Equal(t, turns.DisplayLoading, Delayed{}.Decide(turn, base.Add(time.Hour)))
}

func TestSmartBuffersBelowBothThresholds(t *testing.T) {
	p := NewSmart()

	// 299 runes after 1900 ms: neither threshold is exceeded.
	turn := bufferedTurn(strings.Repeat("x", 299))
	require.Equal(t, turns.DisplayLoading, p.Decide(turn, base.Add(1900*time.Millisecond)))
}

func TestSmartThresholdsAreStrict(t *testing.T) {
	p := NewSmart()

	turn := bufferedTurn(strings.Repeat("x", 300))
	require.Equal(t, turns.DisplayLoading, p.Decide(turn, base.Add(2000*time.Millisecond)))

	require.Equal(t, turns.DisplayStreaming, p.Decide(turn, base.Add(2001*time.Millisecond)))

	turn = bufferedTurn(strings.Repeat("x", 301))
	require.Equal(t, turns.DisplayStreaming, p.Decide(turn, base))
}

func TestSmartCountsRunesNotBytes(t *testing.T) {
	p := NewSmart()

	// 300 multi-byte runes are still 300 characters, under the threshold.
	turn := bufferedTurn(strings.Repeat("é", 300))
	require.Equal(t, turns.DisplayLoading, p.Decide(turn, base))

	turn = bufferedTurn(strings.Repeat("é", 301))
	require.Equal(t, turns.DisplayStreaming, p.Decide(turn, base))
}

func TestSmartLatchIsPermanent(t *testing.T) {
	p := NewSmart()

	turn := bufferedTurn("short")
	turn.StreamLatched = true
	require.Equal(t, turns.DisplayStreaming, p.Decide(turn, base))
}

func TestSmartIgnoresElapsedBeforeFirstDelta(t *testing.T) {
	p := NewSmart()

	turn := turns.New("t1")
	turn.PendingText = "hi"
	require.Equal(t, turns.DisplayLoading, p.Decide(turn, base.Add(time.Hour)))
}

func TestForName(t *testing.T) {
	for _, name := range []string{NameRealtime, NameDelayed, NameSmart} {
		p, err := ForName(name)
		require.NoError(t, err)
		require.Equal(t, name, p.Name())
	}

	_, err := ForName("eager")
	require.Error(t, err)
}
