// Package chat implements the conversation orchestration core: it sequences
// assistant replies for a typewriter-style reveal, interprets the agent's
// embedded UI directives, drives the statement import flow, and guarantees
// each directive side effect executes at most once.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tristanpfefferle/IA-financial-assistant/internal/api"
)

const (
	// toastDuration is how long a toast stays up before auto-dismissing.
	toastDuration = 3500 * time.Millisecond

	// healthProbeTimeout bounds the startup agent healthcheck.
	healthProbeTimeout = 5 * time.Second
)

// AgentClient is the slice of the API surface the conversation core calls.
type AgentClient interface {
	Chat(ctx context.Context, req api.ChatRequest) (*api.ChatResponse, error)
	Health(ctx context.Context) error
	ImportReleves(ctx context.Context, req api.ImportRequest) (*api.ImportOutcome, error)
	PendingAliasCount(ctx context.Context) (int, error)
	ResolvePendingAliases(ctx context.Context) (*api.AliasResolveResult, error)
}

// Session is the auth collaborator surface the core observes. The core never
// looks inside the provider; it only reads the token, watches for changes,
// and triggers refresh/sign-out.
type Session interface {
	AccessToken() (string, bool)
	OnChange(fn func(loggedIn bool))
	Refresh(ctx context.Context) error
	SignOut()
}

// ReportOpener performs the concrete action behind an OpenPdfReport
// directive: fetch the report and hand it to the platform viewer.
type ReportOpener interface {
	OpenReport(ctx context.Context, url string) error
}

// Prefs persists the debug-mode flag across sessions.
type Prefs interface {
	DebugMode() bool
	SetDebugMode(enabled bool)
}

// Listener receives conversation events. Callbacks run on a dedicated
// goroutine and must not call back into the Controller synchronously.
type Listener interface {
	// OnConversationChanged fires whenever the snapshot may have changed.
	OnConversationChanged()
	// OnRevealProgress fires (throttled) while a message is typing, so the
	// view can keep the conversation scrolled to the bottom.
	OnRevealProgress()
	// OnToast delivers a transient notification.
	OnToast(text string)
	// OnSessionChanged reports login-state transitions.
	OnSessionChanged(loggedIn bool)
}

// Options configures a Controller.
type Options struct {
	Client   AgentClient
	Session  Session
	Opener   ReportOpener
	Prefs    Prefs
	Clock    Clock
	Listener Listener

	// InstantReveal force-skips the typing animation (operational and test
	// bypass).
	InstantReveal bool
}

type toast struct {
	id   string
	text string
}

// Controller owns the message list and wires the directive parser, segment
// queue, typing revealer and import flow together.
//
// All state lives behind a single dispatch goroutine; public methods post
// onto it and network continuations are posted back, so guard-set
// check-then-add is atomic and duplicate effect invocations stay idempotent.
type Controller struct {
	client   AgentClient
	session  Session
	opener   ReportOpener
	prefs    Prefs
	clock    Clock
	listener Listener

	dispatch  *dispatcher
	callbacks *dispatcher

	messages       []*Message
	loading        bool
	errorText      string
	errorIsAuth    bool
	toasts         []toast
	debugMode      bool
	loggedIn       bool
	pendingAliases int
	instantReveal  bool

	// Guard sets: membership is add-only for the conversation lifetime and
	// only reset on a full conversation reset.
	revealedIDs        map[string]struct{}
	pdfOpenedIDs       map[string]struct{}
	uploadFingerprints map[string]struct{}
	servicedImports    map[string]struct{}

	revealer *Revealer
	queue    segmentQueue
	imp      importFlow
}

// New creates a Controller. The zero collaborators (Listener, Prefs, Opener)
// may be nil; Client, Session and Clock must be set.
func New(opts Options) *Controller {
	c := &Controller{
		client:             opts.Client,
		session:            opts.Session,
		opener:             opts.Opener,
		prefs:              opts.Prefs,
		clock:              opts.Clock,
		listener:           opts.Listener,
		dispatch:           newDispatcher(0),
		callbacks:          newDispatcher(0),
		instantReveal:      opts.InstantReveal,
		revealedIDs:        make(map[string]struct{}),
		pdfOpenedIDs:       make(map[string]struct{}),
		uploadFingerprints: make(map[string]struct{}),
		servicedImports:    make(map[string]struct{}),
	}
	c.queue = segmentQueue{
		schedule: func(d time.Duration, fn func()) { c.after(d, fn) },
		deliver:  c.deliverSegment,
	}
	if c.prefs != nil {
		c.debugMode = c.prefs.DebugMode()
	}
	if c.session != nil {
		_, c.loggedIn = c.session.AccessToken()
		c.session.OnChange(func(loggedIn bool) {
			_ = c.dispatch.do(func() {
				c.loggedIn = loggedIn
				c.emitSessionChanged(loggedIn)
				c.emitChanged()
			})
		})
	}
	return c
}

// after schedules fn on the dispatch goroutine after d.
func (c *Controller) after(d time.Duration, fn func()) Timer {
	return c.clock.AfterFunc(d, func() {
		_ = c.dispatch.do(fn)
	})
}

// Start probes the agent and requests the greeting turn. Called once when
// the view mounts.
func (c *Controller) Start() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), healthProbeTimeout)
		defer cancel()
		if err := c.client.Health(ctx); err != nil {
			_ = c.dispatch.do(func() {
				c.pushToast("Agent indisponible : vérifiez la connexion.")
			})
		}
	}()
	c.StartConversation()
	c.refreshAliasCount()
}

// Submit sends free-text user input to the agent. It is a no-op while a call
// is in flight, while an import intent is pending, or when the text is blank.
func (c *Controller) Submit(text string) {
	_ = c.dispatch.do(func() {
		text := strings.TrimSpace(text)
		if c.loading || text == "" || c.pendingImportIntentLocked() != nil {
			return
		}
		c.sendUserTurn(text, text)
	})
}

// SubmitQuickReply sends the canonical value of the chosen option while
// displaying only its label locally.
func (c *Controller) SubmitQuickReply(option QuickReplyOption) {
	_ = c.dispatch.do(func() {
		if c.loading || option.Value == "" {
			return
		}
		c.sendUserTurn(option.Label, option.Value)
	})
}

// StartConversation requests the greeting turn. Used once while the message
// list is empty.
func (c *Controller) StartConversation() {
	_ = c.dispatch.do(func() {
		if c.loading || len(c.messages) > 0 {
			return
		}
		c.loading = true
		c.emitChanged()
		go c.callAgent(api.ChatRequest{RequestGreeting: true, Debug: c.debugMode})
	})
}

// sendUserTurn appends the optimistic user message and issues the agent call.
// Runs on the dispatch goroutine.
func (c *Controller) sendUserTurn(display, send string) {
	c.appendMessage(&Message{
		ID:        newMessageID(),
		Role:      RoleUser,
		Content:   display,
		CreatedAt: c.clock.Now(),
	})
	c.loading = true
	c.emitChanged()
	go c.callAgent(api.ChatRequest{Message: send, Debug: c.debugMode})
}

// callAgent performs one chat round-trip and posts the continuation back.
func (c *Controller) callAgent(req api.ChatRequest) {
	resp, err := c.client.Chat(context.Background(), req)
	_ = c.dispatch.do(func() {
		c.loading = false
		if err != nil {
			c.setError(err)
			c.emitChanged()
			return
		}
		c.clearError()
		c.enqueueReply(resp)
		c.emitChanged()
	})
}

// enqueueReply pushes one agent reply through the segment queue. The
// directive rides only on the final segment.
func (c *Controller) enqueueReply(resp *api.ChatResponse) {
	c.queue.enqueue(assistantReply{
		text:      resp.Reply,
		directive: ParseDirective(resp.ToolResult),
		debug:     resp,
	})
}

// deliverSegment appends one dequeued segment as an assistant message.
func (c *Controller) deliverSegment(item queuedSegment) {
	c.appendMessage(&Message{
		ID:           item.id,
		Role:         RoleAssistant,
		Content:      item.text,
		CreatedAt:    c.clock.Now(),
		Directive:    item.directive,
		DebugPayload: item.debug,
	})
}

// appendMessage adds a message, runs the directive side-effect scan, and
// keeps the reveal pipeline moving. Runs on the dispatch goroutine.
func (c *Controller) appendMessage(msg *Message) {
	c.messages = append(c.messages, msg)
	if msg.Role == RoleUser {
		// User turns are created already revealed.
		c.revealedIDs[msg.ID] = struct{}{}
	}
	// Side-effect scans operate on appended messages regardless of reveal
	// state: a PDF can open while its segment is still typing.
	c.scanPDFDirectives()
	c.ensureRevealing()
	c.emitChanged()
}

func (c *Controller) messageByID(id string) *Message {
	for _, msg := range c.messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

// ensureRevealing keeps exactly one assistant message typing: the oldest one
// not yet revealed. Later assistant messages stay hidden until their turn.
func (c *Controller) ensureRevealing() {
	if c.revealer != nil && !c.revealer.Done() {
		return
	}
	c.revealer = nil
	for _, msg := range c.messages {
		if msg.Role != RoleAssistant {
			continue
		}
		if _, done := c.revealedIDs[msg.ID]; done {
			continue
		}
		id := msg.ID
		r := newRevealer(id, msg.Content, c.clock, func(d time.Duration, fn func()) Timer {
			return c.after(d, fn)
		})
		r.instant = c.instantReveal
		r.onProgress = c.emitProgress
		r.onComplete = func() { c.finishReveal(id) }
		c.revealer = r
		r.Start()
		return
	}
}

// finishReveal records completion and moves the reveal pipeline to the next
// unrevealed segment. The revealed guard set and the revealer's own notified
// flag together make this exactly-once per message id.
func (c *Controller) finishReveal(messageID string) {
	if _, done := c.revealedIDs[messageID]; done {
		return
	}
	c.revealedIDs[messageID] = struct{}{}
	c.ensureRevealing()
	c.emitChanged()
}

// scanPDFDirectives claims and opens newly appended PDF directives. The
// claim (check membership and add in the same synchronous step) makes the
// open action fire exactly once per message even if the scan re-runs.
func (c *Controller) scanPDFDirectives() {
	for _, msg := range c.messages {
		url, ok := c.claimPDF(msg.ID)
		if !ok {
			continue
		}
		c.openReport(url)
	}
}

// claimPDF atomically claims the PDF directive on the given message. It
// returns the URL on the first call for a message id and false afterwards.
func (c *Controller) claimPDF(messageID string) (string, bool) {
	msg := c.messageByID(messageID)
	if msg == nil {
		return "", false
	}
	directive, ok := msg.Directive.(*PDFDirective)
	if !ok {
		return "", false
	}
	if _, opened := c.pdfOpenedIDs[messageID]; opened {
		return "", false
	}
	c.pdfOpenedIDs[messageID] = struct{}{}
	return directive.URL, true
}

func (c *Controller) openReport(url string) {
	if c.opener == nil {
		return
	}
	go func() {
		if err := c.opener.OpenReport(context.Background(), url); err != nil {
			_ = c.dispatch.do(func() {
				c.pushToast("Impossible d'ouvrir le rapport PDF.")
			})
		}
	}()
}

// RefreshSession asks the auth collaborator for a fresh token. Offered when
// the agent call failed with a 401-flavored error.
func (c *Controller) RefreshSession() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := c.session.Refresh(ctx)
		_ = c.dispatch.do(func() {
			if err != nil {
				c.pushToast(fmt.Sprintf("Échec du rafraîchissement : %s", err))
				return
			}
			c.clearError()
			c.pushToast("Session actualisée.")
			c.emitChanged()
		})
	}()
}

// SignOut signs out (best effort, handled by the session collaborator) and
// resets the conversation.
func (c *Controller) SignOut() {
	c.session.SignOut()
	c.Reset()
}

// Reset clears the whole conversation, including the guard sets. This is the
// only point where guard-set membership shrinks.
func (c *Controller) Reset() {
	_ = c.dispatch.do(func() {
		if c.revealer != nil {
			c.revealer.Stop()
			c.revealer = nil
		}
		if c.imp.progressTimer != nil {
			c.imp.progressTimer.Stop()
		}
		c.messages = nil
		c.queue.items = nil
		c.queue.draining = false
		c.revealedIDs = make(map[string]struct{})
		c.pdfOpenedIDs = make(map[string]struct{})
		c.uploadFingerprints = make(map[string]struct{})
		c.servicedImports = make(map[string]struct{})
		c.imp = importFlow{}
		c.loading = false
		c.clearError()
		c.emitChanged()
	})
}

// ToggleDebug flips the persisted debug-mode flag.
func (c *Controller) ToggleDebug() {
	_ = c.dispatch.do(func() {
		c.debugMode = !c.debugMode
		if c.prefs != nil {
			c.prefs.SetDebugMode(c.debugMode)
		}
		if c.debugMode {
			c.pushToast("Mode debug activé.")
		} else {
			c.pushToast("Mode debug désactivé.")
		}
		c.emitChanged()
	})
}

// ResolveAliases runs merchant-alias resolution and reports the outcome as a
// toast. Consumed by the side panel, not by the conversation itself.
func (c *Controller) ResolveAliases() {
	go func() {
		result, err := c.client.ResolvePendingAliases(context.Background())
		_ = c.dispatch.do(func() {
			if err != nil {
				c.pushToast(fmt.Sprintf("Résolution des alias impossible : %s", err))
				return
			}
			c.pushToast(fmt.Sprintf(
				"Alias marchands : %d appliqués, %d en attente.",
				result.Stats.Applied, result.PendingAfter,
			))
			c.pendingAliases = result.PendingAfter
			c.emitChanged()
		})
	}()
}

func (c *Controller) refreshAliasCount() {
	go func() {
		count, err := c.client.PendingAliasCount(context.Background())
		if err != nil {
			return
		}
		_ = c.dispatch.do(func() {
			c.pendingAliases = count
			c.emitChanged()
		})
	}()
}

// DismissError clears the top-level error banner.
func (c *Controller) DismissError() {
	_ = c.dispatch.do(func() {
		c.clearError()
		c.emitChanged()
	})
}

func (c *Controller) setError(err error) {
	c.errorText = err.Error()
	c.errorIsAuth = api.IsAuthError(err)
}

func (c *Controller) clearError() {
	c.errorText = ""
	c.errorIsAuth = false
}

func (c *Controller) pushToast(text string) {
	id := uuid.NewString()
	c.toasts = append(c.toasts, toast{id: id, text: text})
	c.emitToast(text)
	c.emitChanged()
	c.after(toastDuration, func() {
		for i, t := range c.toasts {
			if t.id == id {
				c.toasts = append(c.toasts[:i], c.toasts[i+1:]...)
				break
			}
		}
		c.emitChanged()
	})
}

func (c *Controller) emitChanged() {
	if c.listener == nil {
		return
	}
	_ = c.callbacks.do(c.listener.OnConversationChanged)
}

func (c *Controller) emitProgress() {
	if c.listener == nil {
		return
	}
	_ = c.callbacks.do(c.listener.OnRevealProgress)
}

func (c *Controller) emitToast(text string) {
	if c.listener == nil {
		return
	}
	_ = c.callbacks.do(func() { c.listener.OnToast(text) })
}

func (c *Controller) emitSessionChanged(loggedIn bool) {
	if c.listener == nil {
		return
	}
	_ = c.callbacks.do(func() { c.listener.OnSessionChanged(loggedIn) })
}
