package ui

import (
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
)

// engineUpdated signals that the conversation snapshot may have changed and
// the transcript should re-render. Reveal ticks, toasts and session changes
// all collapse into the same redraw.
type engineUpdated struct{}

// Listener bridges engine callbacks onto the Bubble Tea message loop. The
// program is attached after tea.NewProgram; events arriving before that are
// dropped (the first snapshot refresh catches up).
type Listener struct {
	program atomic.Pointer[tea.Program]
}

func NewListener() *Listener { return &Listener{} }

// Attach wires the running program. Safe to call once the program exists but
// before Run; tea buffers Sends.
func (l *Listener) Attach(p *tea.Program) { l.program.Store(p) }

func (l *Listener) send(msg tea.Msg) {
	if p := l.program.Load(); p != nil {
		p.Send(msg)
	}
}

func (l *Listener) OnConversationChanged() { l.send(engineUpdated{}) }
func (l *Listener) OnRevealProgress()      { l.send(engineUpdated{}) }
func (l *Listener) OnToast(string)         { l.send(engineUpdated{}) }
func (l *Listener) OnSessionChanged(bool)  { l.send(engineUpdated{}) }
