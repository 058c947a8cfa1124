// Package ui is the terminal front-end: a viewport transcript over the
// conversation engine, a composer, the statement import dialog, and the
// status bar. All conversation logic lives in the engine; the UI only renders
// snapshots and forwards intents.
package ui

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/tristanpfefferle/IA-financial-assistant/internal/chat"
	"github.com/tristanpfefferle/IA-financial-assistant/internal/logger"
)

type mode int

const (
	modeChat mode = iota
	modePickFile
	modeConfirmFile
)

// Model is the root Bubble Tea model.
type Model struct {
	engine *chat.Controller
	keys   keyMap

	vp       viewport.Model
	input    textinput.Model
	spin     spinner.Model
	picker   filepicker.Model
	renderer *glamour.TermRenderer

	snap  chat.Snapshot
	mode  mode
	email string

	width  int
	height int
	ready  bool
}

// New constructs the root model. email is shown in the status bar when the
// user is signed in.
func New(engine *chat.Controller, email string) Model {
	input := textinput.New()
	input.Placeholder = "Écrivez votre message…"
	input.Prompt = "› "
	input.CharLimit = 4000
	input.Focus()

	spin := spinner.New(spinner.WithSpinner(spinner.MiniDot))

	picker := filepicker.New()
	picker.CurrentDirectory, _ = os.UserHomeDir()
	picker.ShowHidden = false

	return Model{
		engine: engine,
		keys:   defaultKeyMap(),
		input:  input,
		spin:   spin,
		picker: picker,
		email:  email,
	}
}

func (m Model) Init() tea.Cmd {
	engine := m.engine
	return tea.Batch(
		m.spin.Tick,
		textinput.Blink,
		func() tea.Msg {
			engine.Start()
			return engineUpdated{}
		},
	)
}

func (m Model) Update(rawMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := rawMsg.(type) {

	case tea.WindowSizeMsg:
		m.width = v.Width
		m.height = v.Height
		chatHeight := v.Height - chromeLines
		if chatHeight < 3 {
			chatHeight = 3
		}
		if !m.ready {
			m.vp = viewport.New(v.Width, chatHeight)
			m.ready = true
		} else {
			m.vp.Width = v.Width
			m.vp.Height = chatHeight
		}
		m.input.Width = v.Width - 4
		m.picker.Height = chatHeight - 4
		m.renderer = newMarkdownRenderer(v.Width - 2)
		m.refresh()
		return m, nil

	case engineUpdated:
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(v)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(v)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(v)
		return m, cmd
	}

	if m.mode == modePickFile {
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(rawMsg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modePickFile:
		return m.handlePickerKey(k)
	case modeConfirmFile:
		return m.handleConfirmKey(k)
	}

	switch {
	case key.Matches(k, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(k, m.keys.Cancel):
		if m.snap.ErrorText != "" {
			m.engine.DismissError()
		}
		return m, nil

	case key.Matches(k, m.keys.Submit):
		text := m.input.Value()
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		m.engine.Submit(text)
		return m, nil

	case key.Matches(k, m.keys.OpenImport):
		if intent := m.engine.PendingImportIntent(); intent != nil {
			return m.openImportDialog(intent)
		}
		return m, nil

	case key.Matches(k, m.keys.ToggleDebug):
		m.engine.ToggleDebug()
		return m, nil

	case key.Matches(k, m.keys.ResolveAliases):
		m.engine.ResolveAliases()
		return m, nil

	case key.Matches(k, m.keys.RefreshSession):
		m.engine.RefreshSession()
		return m, nil

	case key.Matches(k, m.keys.SignOut):
		m.engine.SignOut()
		return m, tea.Quit

	case key.Matches(k, m.keys.PageUp), key.Matches(k, m.keys.PageDown):
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(k)
		return m, cmd

	case key.Matches(k, m.keys.ScrollBottom):
		m.vp.GotoBottom()
		return m, nil
	}

	// Bare digits pick a quick reply when the composer is empty.
	if m.input.Value() == "" && len(m.snap.QuickReplies) > 0 {
		if n, err := strconv.Atoi(k.String()); err == nil && n >= 1 && n <= len(m.snap.QuickReplies) {
			m.engine.SubmitQuickReply(m.snap.QuickReplies[n-1])
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(k)
	return m, cmd
}

// openImportDialog opens the file picker scoped to the intent's accepted
// extensions.
func (m Model) openImportDialog(intent *chat.ImportIntent) (Model, tea.Cmd) {
	m.engine.OpenImportPanel(intent.SourceMessageID)

	allowed := make([]string, 0, len(intent.AcceptedTypes))
	for _, ext := range intent.AcceptedTypes {
		allowed = append(allowed, "."+ext)
	}
	m.picker.AllowedTypes = allowed
	m.mode = modePickFile
	m.input.Blur()
	return m, m.picker.Init()
}

func (m Model) handlePickerKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(k, m.keys.Quit) {
		return m, tea.Quit
	}
	if key.Matches(k, m.keys.Cancel) {
		return m.closeImportDialog(), nil
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(k)

	if ok, path := m.picker.DidSelectFile(k); ok {
		if err := m.engine.SelectImportFile(path); err != nil {
			// Validation errors render from the snapshot; the dialog stays
			// open so the user can pick another file.
			if !errors.Is(err, chat.ErrInvalidFormat) {
				logger.Errorf("ui: select import file: %v", err)
			}
			return m, cmd
		}
		m.mode = modeConfirmFile
		return m, nil
	}
	if ok, path := m.picker.DidSelectDisabledFile(k); ok {
		// Report through the engine so the message matches the chat flow.
		_ = m.engine.SelectImportFile(path)
		return m, cmd
	}
	return m, cmd
}

func (m Model) handleConfirmKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(k, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(k, m.keys.Submit):
		m.engine.ConfirmImport()
		closed := m.closeImportDialogKeepFlow()
		return closed, nil
	case key.Matches(k, m.keys.Cancel):
		return m.closeImportDialog(), nil
	}
	return m, nil
}

// closeImportDialog cancels the flow and returns to the conversation.
func (m Model) closeImportDialog() Model {
	m.engine.CancelImport()
	return m.closeImportDialogKeepFlow()
}

// closeImportDialogKeepFlow returns to the conversation without touching the
// engine-side flow (used after confirming, when the upload is in flight).
func (m Model) closeImportDialogKeepFlow() Model {
	m.mode = modeChat
	m.input.Focus()
	return m
}

// refresh pulls a fresh snapshot and re-renders the transcript, keeping the
// view glued to the bottom unless the user scrolled away.
func (m *Model) refresh() {
	m.snap = m.engine.Snapshot()
	if !m.ready {
		return
	}
	wasAtBottom := m.vp.AtBottom()
	m.vp.SetContent(m.renderTranscript())
	if wasAtBottom {
		m.vp.GotoBottom()
	}
}

// chromeLines is the fixed vertical space around the viewport: header, quick
// replies or hints, status bar, composer, banners.
const chromeLines = 6

func formatAliasBadge(count int) string {
	if count == 0 {
		return ""
	}
	return fmt.Sprintf(" · %d alias en attente (ctrl+r)", count)
}
