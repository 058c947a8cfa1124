package chat

import "time"

const (
	// revealStep / revealTick control the base typing speed. Past
	// revealFastAfter revealed characters both accelerate so long messages
	// do not drag.
	revealStep      = 2
	revealStepFast  = 4
	revealFastAfter = 120
	revealTick      = 20 * time.Millisecond
	revealTickFast  = 14 * time.Millisecond

	// revealProgressEvery throttles progress callbacks (used by the view to
	// keep the conversation auto-scrolled).
	revealProgressEvery = 100 * time.Millisecond
)

type revealPhase int

const (
	revealNotStarted revealPhase = iota
	revealActive
	revealStopped
	revealDone
)

// Revealer animates one message's text, character by character.
//
// The state machine is not-started -> revealing -> revealed (terminal). The
// visible length only ever grows, and the completion callback fires exactly
// once per message regardless of how many times Start is invoked by
// re-renders. All methods must run on the owning controller's dispatch
// goroutine; ticks are posted back through the schedule hook.
type Revealer struct {
	messageID string
	content   []rune

	clock    Clock
	schedule func(time.Duration, func()) Timer

	onProgress func()
	onComplete func()

	// instant bypasses the animation entirely (test and operational skip).
	instant bool

	phase        revealPhase
	shown        int
	notified     bool
	timer        Timer
	lastProgress time.Time
}

func newRevealer(messageID, content string, clock Clock, schedule func(time.Duration, func()) Timer) *Revealer {
	return &Revealer{
		messageID: messageID,
		content:   []rune(content),
		clock:     clock,
		schedule:  schedule,
	}
}

// Start enters the revealing phase. It is idempotent: once the revealer has
// left not-started, repeated Start calls are no-ops.
func (r *Revealer) Start() {
	if r.phase != revealNotStarted {
		return
	}
	r.phase = revealActive
	if r.instant || len(r.content) == 0 {
		r.finish()
		return
	}
	r.lastProgress = r.clock.Now()
	r.timer = r.schedule(r.tickDelay(), r.tick)
}

// Visible returns the currently revealed prefix.
func (r *Revealer) Visible() string {
	if r.phase == revealDone {
		return string(r.content)
	}
	return string(r.content[:r.shown])
}

// Done reports whether the full content is revealed.
func (r *Revealer) Done() bool {
	return r.phase == revealDone
}

// Stop cancels any pending tick and leaves the active phase. Used on
// disposal: a tick that was already dispatched before Stop ran bails at the
// phase guard instead of advancing an orphaned revealer, and completion
// never fires for it.
func (r *Revealer) Stop() {
	if r.phase == revealActive {
		r.phase = revealStopped
	}
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Revealer) tick() {
	if r.phase != revealActive {
		return
	}
	step := revealStep
	if r.shown > revealFastAfter {
		step = revealStepFast
	}
	r.shown += step
	if r.shown >= len(r.content) {
		r.shown = len(r.content)
		r.finish()
		return
	}

	now := r.clock.Now()
	if now.Sub(r.lastProgress) >= revealProgressEvery {
		r.lastProgress = now
		if r.onProgress != nil {
			r.onProgress()
		}
	}
	r.timer = r.schedule(r.tickDelay(), r.tick)
}

func (r *Revealer) tickDelay() time.Duration {
	if r.shown > revealFastAfter {
		return revealTickFast
	}
	return revealTick
}

func (r *Revealer) finish() {
	r.phase = revealDone
	r.shown = len(r.content)
	r.Stop()
	if r.notified {
		return
	}
	r.notified = true
	if r.onComplete != nil {
		r.onComplete()
	}
}
