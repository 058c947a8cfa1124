package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newTestRevealer wires a revealer straight to a fake clock, without a
// dispatcher in between: Advance fires ticks synchronously.
func newTestRevealer(content string, clock *fakeClock) *Revealer {
	return newRevealer("msg-1", content, clock, clock.AfterFunc)
}

func TestRevealer_MonotonicAndTerminates(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	content := strings.Repeat("abcdefghij", 30) // 300 chars, crosses the fast threshold
	r := newTestRevealer(content, clock)

	completions := 0
	r.onComplete = func() { completions++ }

	var lengths []int
	r.onProgress = func() { lengths = append(lengths, runeLen(r.Visible())) }

	r.Start()
	for i := 0; i < 500 && !r.Done(); i++ {
		clock.Advance(revealTick)
		lengths = append(lengths, runeLen(r.Visible()))
	}

	require.True(t, r.Done())
	require.Equal(t, content, r.Visible())
	require.Equal(t, 1, completions)

	last := 0
	for _, n := range lengths {
		require.GreaterOrEqual(t, n, last)
		last = n
	}
	require.Equal(t, runeLen(content), last)
}

func TestRevealer_CompletionFiresOnceDespiteRestarts(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	r := newTestRevealer("court.", clock)
	completions := 0
	r.onComplete = func() { completions++ }

	// A re-render calling Start repeatedly must not re-run the animation or
	// re-fire completion.
	r.Start()
	r.Start()
	clock.Advance(time.Second)
	r.Start()
	clock.Advance(time.Second)

	require.True(t, r.Done())
	require.Equal(t, 1, completions)
}

func TestRevealer_InstantBypass(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	r := newTestRevealer("du texte à révéler d'un coup", clock)
	r.instant = true
	completions := 0
	r.onComplete = func() { completions++ }

	r.Start()
	require.True(t, r.Done())
	require.Equal(t, "du texte à révéler d'un coup", r.Visible())
	require.Equal(t, 1, completions)
}

func TestRevealer_ProgressThrottled(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	content := strings.Repeat("x", 100)
	r := newTestRevealer(content, clock)
	progress := 0
	r.onProgress = func() { progress++ }

	r.Start()
	clock.Advance(400 * time.Millisecond)

	// 400ms of revealing can report progress at most four times.
	require.LessOrEqual(t, progress, 4)
	require.Greater(t, progress, 0)
}

func TestRevealer_StopPreventsStaleTicks(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	r := newTestRevealer(strings.Repeat("y", 200), clock)
	r.Start()
	clock.Advance(revealTick * 3)
	shown := runeLen(r.Visible())

	r.Stop()
	clock.Advance(time.Second)

	// No stale callback runs after disposal: the visible prefix is frozen.
	require.Equal(t, shown, runeLen(r.Visible()))
	require.False(t, r.Done())
}

func TestRevealer_TickDispatchedBeforeStopIsIgnored(t *testing.T) {
	t.Parallel()

	// Record scheduled tick callbacks so one can be invoked after Stop, the
	// way a tick already sitting on the dispatch queue would run.
	clock := newFakeClock()
	var pending []func()
	r := newRevealer("msg-1", strings.Repeat("y", 200), clock, func(d time.Duration, fn func()) Timer {
		pending = append(pending, fn)
		return clock.AfterFunc(d, func() {})
	})
	completions := 0
	r.onComplete = func() { completions++ }

	r.Start()
	require.Len(t, pending, 1)
	pending[0]()
	shown := runeLen(r.Visible())
	require.Len(t, pending, 2)

	r.Stop()
	pending[1]()

	require.Equal(t, shown, runeLen(r.Visible()))
	require.False(t, r.Done())
	require.Zero(t, completions)
	require.Len(t, pending, 2)
}

func TestRevealer_SpeedsUpPastThreshold(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	r := newTestRevealer(strings.Repeat("z", 400), clock)
	r.Start()

	// Up to the threshold: 2 chars per 20ms tick.
	clock.Advance(20 * revealTick)
	require.Equal(t, 40, runeLen(r.Visible()))

	// Push past the threshold, then confirm the 4-char fast step.
	for runeLen(r.Visible()) <= revealFastAfter {
		clock.Advance(revealTick)
	}
	before := runeLen(r.Visible())
	clock.Advance(revealTickFast)
	require.Equal(t, before+revealStepFast, runeLen(r.Visible()))
}
