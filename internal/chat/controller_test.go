package chat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tristanpfefferle/IA-financial-assistant/internal/api"
)

type fakeAgent struct {
	mu sync.Mutex

	chatFn   func(req api.ChatRequest) (*api.ChatResponse, error)
	importFn func(req api.ImportRequest) (*api.ImportOutcome, error)

	chatCalls    []api.ChatRequest
	importCalls  []api.ImportRequest
	pendingCount int
}

func (f *fakeAgent) Chat(_ context.Context, req api.ChatRequest) (*api.ChatResponse, error) {
	f.mu.Lock()
	f.chatCalls = append(f.chatCalls, req)
	fn := f.chatFn
	f.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return &api.ChatResponse{Reply: "ok"}, nil
}

func (f *fakeAgent) Health(context.Context) error { return nil }

func (f *fakeAgent) ImportReleves(_ context.Context, req api.ImportRequest) (*api.ImportOutcome, error) {
	f.mu.Lock()
	f.importCalls = append(f.importCalls, req)
	fn := f.importFn
	f.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return &api.ImportOutcome{ImportedCount: 1}, nil
}

func (f *fakeAgent) PendingAliasCount(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pendingCount, nil
}

func (f *fakeAgent) ResolvePendingAliases(context.Context) (*api.AliasResolveResult, error) {
	return &api.AliasResolveResult{OK: true}, nil
}

func (f *fakeAgent) chatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chatCalls)
}

func (f *fakeAgent) importCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.importCalls)
}

func (f *fakeAgent) lastChat() api.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chatCalls[len(f.chatCalls)-1]
}

type fakeSession struct {
	mu        sync.Mutex
	token     string
	onChange  func(bool)
	signedOut bool
}

func (s *fakeSession) AccessToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

func (s *fakeSession) OnChange(fn func(bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *fakeSession) Refresh(context.Context) error { return nil }

func (s *fakeSession) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signedOut = true
}

type fakeOpener struct {
	mu   sync.Mutex
	urls []string
}

func (o *fakeOpener) OpenReport(_ context.Context, url string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.urls = append(o.urls, url)
	return nil
}

func (o *fakeOpener) opened() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.urls...)
}

type fakePrefs struct {
	mu    sync.Mutex
	debug bool
}

func (p *fakePrefs) DebugMode() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.debug
}

func (p *fakePrefs) SetDebugMode(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.debug = enabled
}

type testRig struct {
	c       *Controller
	clock   *fakeClock
	agent   *fakeAgent
	session *fakeSession
	opener  *fakeOpener
	prefs   *fakePrefs
}

func newTestRig(agent *fakeAgent, instant bool) *testRig {
	clock := newFakeClock()
	rig := &testRig{
		clock:   clock,
		agent:   agent,
		session: &fakeSession{token: "token-1"},
		opener:  &fakeOpener{},
		prefs:   &fakePrefs{},
	}
	rig.c = New(Options{
		Client:        agent,
		Session:       rig.session,
		Opener:        rig.opener,
		Prefs:         rig.prefs,
		Clock:         clock,
		InstantReveal: instant,
	})
	clock.afterFire = rig.c.dispatch.barrier
	return rig
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, time.Millisecond)
}

func importToolResult(types ...string) json.RawMessage {
	encoded, _ := json.Marshal(map[string]any{
		"type":           "ui_request",
		"name":           "import_file",
		"accepted_types": types,
	})
	return encoded
}

func TestSubmit_AppendsUserTurnAndReply(t *testing.T) {
	t.Parallel()

	agent := &fakeAgent{chatFn: func(req api.ChatRequest) (*api.ChatResponse, error) {
		return &api.ChatResponse{Reply: "Bonjour !"}, nil
	}}
	rig := newTestRig(agent, true)

	rig.c.Submit("salut")
	waitFor(t, func() bool {
		snap := rig.c.Snapshot()
		return len(snap.Messages) == 2 && !snap.Loading
	})

	snap := rig.c.Snapshot()
	require.Equal(t, RoleUser, snap.Messages[0].Role)
	require.Equal(t, "salut", snap.Messages[0].Content)
	require.Equal(t, RoleAssistant, snap.Messages[1].Role)
	require.Equal(t, "Bonjour !", snap.Messages[1].Content)
	require.Equal(t, "salut", agent.lastChat().Message)
}

func TestSubmit_IgnoresBlankInput(t *testing.T) {
	t.Parallel()

	agent := &fakeAgent{}
	rig := newTestRig(agent, true)

	rig.c.Submit("   \n ")
	rig.c.dispatch.barrier()

	require.Empty(t, rig.c.Snapshot().Messages)
	require.Zero(t, agent.chatCount())
}

func TestSubmit_RejectedWhileLoading(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	agent := &fakeAgent{chatFn: func(req api.ChatRequest) (*api.ChatResponse, error) {
		<-release
		return &api.ChatResponse{Reply: "fini"}, nil
	}}
	rig := newTestRig(agent, true)

	rig.c.Submit("premier")
	// The agent call runs on its own goroutine; wait until it is in flight
	// before probing the loading gate.
	waitFor(t, func() bool { return agent.chatCount() == 1 && rig.c.Snapshot().Loading })

	rig.c.Submit("deuxième")
	rig.c.dispatch.barrier()
	require.Equal(t, 1, agent.chatCount())

	close(release)
	waitFor(t, func() bool { return !rig.c.Snapshot().Loading })
	// Only the first submission produced a user turn.
	snap := rig.c.Snapshot()
	require.Len(t, snap.Messages, 2)
	require.Equal(t, "premier", snap.Messages[0].Content)
}

func TestSubmit_RejectedWhileImportIntentPending(t *testing.T) {
	t.Parallel()

	agent := &fakeAgent{chatFn: func(req api.ChatRequest) (*api.ChatResponse, error) {
		return &api.ChatResponse{Reply: "Envoyez votre relevé.", ToolResult: importToolResult("csv")}, nil
	}}
	rig := newTestRig(agent, true)

	rig.c.Submit("je veux importer un relevé")
	waitFor(t, func() bool { return rig.c.PendingImportIntent() != nil })

	rig.c.Submit("autre chose")
	rig.c.dispatch.barrier()
	require.Equal(t, 1, agent.chatCount())
	require.Len(t, rig.c.Snapshot().Messages, 2)
}

func TestStartConversation_GreetingOnce(t *testing.T) {
	t.Parallel()

	agent := &fakeAgent{chatFn: func(req api.ChatRequest) (*api.ChatResponse, error) {
		return &api.ChatResponse{Reply: "Bienvenue !"}, nil
	}}
	rig := newTestRig(agent, true)

	rig.c.StartConversation()
	waitFor(t, func() bool { return len(rig.c.Snapshot().Messages) == 1 })
	require.True(t, agent.lastChat().RequestGreeting)
	require.Empty(t, agent.lastChat().Message)

	rig.c.StartConversation()
	rig.c.dispatch.barrier()
	require.Equal(t, 1, agent.chatCount())
}

func TestQuickReplies_GatedOnRevealCompletion(t *testing.T) {
	t.Parallel()

	agent := &fakeAgent{chatFn: func(req api.ChatRequest) (*api.ChatResponse, error) {
		if len(req.Message) > 4 {
			return &api.ChatResponse{
				Reply:      "Voulez-vous continuer ?",
				ToolResult: json.RawMessage(`{"action":"quick_reply_yes_no"}`),
			}, nil
		}
		return &api.ChatResponse{Reply: "Très bien."}, nil
	}}
	rig := newTestRig(agent, false)

	rig.c.Submit("une question")
	waitFor(t, func() bool {
		snap := rig.c.Snapshot()
		return len(snap.Messages) == 2 && snap.Messages[1].Typing
	})

	// Buttons must not appear mid-typing.
	require.Nil(t, rig.c.Snapshot().QuickReplies)

	for rig.c.Snapshot().Messages[1].Typing {
		rig.clock.Advance(revealTick)
	}
	snap := rig.c.Snapshot()
	require.Len(t, snap.QuickReplies, 2)

	rig.c.SubmitQuickReply(snap.QuickReplies[0])
	waitFor(t, func() bool { return agent.chatCount() == 2 })
	require.Equal(t, "oui", agent.lastChat().Message)

	snap = rig.c.Snapshot()
	require.Equal(t, "✅", snap.Messages[2].Content)
	// The prompt is no longer offered once the user has answered.
	require.Nil(t, snap.QuickReplies)
}

func TestPDFDirective_OpensExactlyOnce(t *testing.T) {
	t.Parallel()

	agent := &fakeAgent{chatFn: func(req api.ChatRequest) (*api.ChatResponse, error) {
		if req.Message == "rapport de dépenses" {
			return &api.ChatResponse{
				Reply:      "Voici votre rapport.",
				ToolResult: json.RawMessage(`{"type":"ui_request","name":"open_pdf_report","url":"/finance/reports/spending.pdf"}`),
			}, nil
		}
		return &api.ChatResponse{Reply: "Avec plaisir."}, nil
	}}
	rig := newTestRig(agent, true)

	rig.c.Submit("rapport de dépenses")
	waitFor(t, func() bool { return len(rig.opener.opened()) == 1 })
	require.Equal(t, []string{"/finance/reports/spending.pdf"}, rig.opener.opened())

	// Locate the message and claim again: the second claim must yield nothing.
	var messageID string
	_, _ = rig.c.dispatch.call(func() (any, error) {
		for _, msg := range rig.c.messages {
			if _, ok := msg.Directive.(*PDFDirective); ok {
				messageID = msg.ID
			}
		}
		return nil, nil
	})
	require.NotEmpty(t, messageID)

	_, _ = rig.c.dispatch.call(func() (any, error) {
		url, ok := rig.c.claimPDF(messageID)
		require.False(t, ok)
		require.Empty(t, url)
		return nil, nil
	})

	// Further scans (triggered by new messages) never re-open it.
	rig.c.Submit("merci")
	waitFor(t, func() bool { return agent.chatCount() == 2 })
	rig.c.dispatch.barrier()
	require.Len(t, rig.opener.opened(), 1)
}

func writeStatement(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("date;montant\n2026-01-02;-12.50\n"), 0o600))
	return path
}

func startImport(t *testing.T, rig *testRig) *ImportIntent {
	t.Helper()
	rig.c.Submit("je veux importer un relevé")
	waitFor(t, func() bool { return rig.c.PendingImportIntent() != nil })
	intent := rig.c.PendingImportIntent()
	rig.c.OpenImportPanel(intent.SourceMessageID)
	waitFor(t, func() bool { return rig.c.Snapshot().Import.Phase == ImportPanelOpen })
	return intent
}

func TestImportFlow_HappyPath(t *testing.T) {
	t.Parallel()

	agent := &fakeAgent{
		chatFn: func(req api.ChatRequest) (*api.ChatResponse, error) {
			if req.Message == "" {
				return &api.ChatResponse{Reply: "Merci, votre relevé est pris en compte !"}, nil
			}
			return &api.ChatResponse{Reply: "Envoyez votre relevé.", ToolResult: importToolResult("csv")}, nil
		},
		importFn: func(req api.ImportRequest) (*api.ImportOutcome, error) {
			return &api.ImportOutcome{
				ImportedCount:   12,
				DateRange:       &api.DateRange{Start: "2026-01-01", End: "2026-01-31"},
				BankAccountName: "UBS",
			}, nil
		},
	}
	rig := newTestRig(agent, true)

	startImport(t, rig)
	path := writeStatement(t, "releve.csv")
	require.NoError(t, rig.c.SelectImportFile(path))
	require.Equal(t, ImportFileSelected, rig.c.Snapshot().Import.Phase)

	rig.c.ConfirmImport()
	// Settlement pins the bar at 100 % / Terminé for one frame before the
	// in-place swap to the success text.
	waitFor(t, func() bool {
		snap := rig.c.Snapshot()
		if snap.Import.Phase != ImportIdle || len(snap.Messages) == 0 {
			return false
		}
		last := snap.Messages[len(snap.Messages)-1]
		return last.Progress != nil && last.Progress.Percent == 100
	})
	{
		snap := rig.c.Snapshot()
		last := snap.Messages[len(snap.Messages)-1]
		require.Equal(t, "Terminé", last.Progress.StepLabel)
	}

	rig.clock.Advance(time.Millisecond)
	waitFor(t, func() bool {
		return agent.chatCount() == 2 && len(rig.c.Snapshot().Messages) == 5
	})

	snap := rig.c.Snapshot()
	transcript := make([]string, 0, len(snap.Messages))
	for _, msg := range snap.Messages {
		transcript = append(transcript, msg.Content)
	}

	sent := indexContaining(transcript, "Fichier envoyé : releve.csv")
	success := indexContaining(transcript, "Parfait, j'ai bien reçu votre relevé UBS. 12 transactions importées (du 2026-01-01 au 2026-01-31).")
	followUp := indexContaining(transcript, "Merci, votre relevé est pris en compte !")
	require.GreaterOrEqual(t, sent, 0, "transcript: %v", transcript)
	require.Greater(t, success, sent, "transcript: %v", transcript)
	require.Greater(t, followUp, success, "transcript: %v", transcript)

	// The follow-up is an empty-message agent call.
	require.Empty(t, agent.lastChat().Message)

	// One upload, whole file base64-encoded.
	require.Equal(t, 1, agent.importCount())
	upload := agent.importCalls[0]
	require.Equal(t, "commit", upload.ImportMode)
	require.Equal(t, "replace", upload.ModifiedAction)
	require.Len(t, upload.Files, 1)
	require.Equal(t, "releve.csv", upload.Files[0].Filename)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, base64.StdEncoding.EncodeToString(content), upload.Files[0].ContentBase64)

	// The served directive was consumed: no intent remains pending.
	require.Nil(t, rig.c.PendingImportIntent())
}

func indexContaining(list []string, substr string) int {
	for i, s := range list {
		if strings.Contains(s, substr) {
			return i
		}
	}
	return -1
}

func TestImportFlow_Clarification(t *testing.T) {
	t.Parallel()

	no := false
	agent := &fakeAgent{
		chatFn: func(req api.ChatRequest) (*api.ChatResponse, error) {
			return &api.ChatResponse{Reply: "Envoyez votre relevé.", ToolResult: importToolResult("csv")}, nil
		},
		importFn: func(req api.ImportRequest) (*api.ImportOutcome, error) {
			return &api.ImportOutcome{OK: &no, Type: "clarification", Message: "Lequel ?"}, nil
		},
	}
	rig := newTestRig(agent, true)

	startImport(t, rig)
	require.NoError(t, rig.c.SelectImportFile(writeStatement(t, "releve.csv")))
	rig.c.ConfirmImport()

	waitFor(t, func() bool { return rig.c.Snapshot().Import.Phase == ImportIdle })
	waitFor(t, func() bool {
		snap := rig.c.Snapshot()
		last := snap.Messages[len(snap.Messages)-1]
		return last.Content == "Lequel ?"
	})

	snap := rig.c.Snapshot()
	for _, msg := range snap.Messages {
		require.NotContains(t, msg.Content, "Parfait, j'ai bien reçu")
	}
	// No follow-up agent call on clarification.
	require.Equal(t, 1, agent.chatCount())

	// The serviced directive no longer gates the composer: the user answers
	// the clarification in chat.
	require.Nil(t, rig.c.PendingImportIntent())
	rig.c.Submit("le compte UBS principal")
	waitFor(t, func() bool { return agent.chatCount() == 2 })
	require.Equal(t, "le compte UBS principal", agent.lastChat().Message)
	waitFor(t, func() bool {
		return indexContaining(messageContents(rig.c.Snapshot()), "le compte UBS principal") >= 0
	})
}

func TestImportFlow_InvalidFormatIsLocal(t *testing.T) {
	t.Parallel()

	agent := &fakeAgent{chatFn: func(req api.ChatRequest) (*api.ChatResponse, error) {
		return &api.ChatResponse{Reply: "Envoyez votre relevé.", ToolResult: importToolResult("csv")}, nil
	}}
	rig := newTestRig(agent, true)

	startImport(t, rig)
	err := rig.c.SelectImportFile(writeStatement(t, "x.pdf"))
	require.ErrorIs(t, err, ErrInvalidFormat)

	snap := rig.c.Snapshot()
	require.Equal(t, ImportPanelOpen, snap.Import.Phase)
	require.Contains(t, snap.Import.DialogError, "Format invalide")
	// The backend was never contacted.
	require.Zero(t, agent.importCount())

	// A valid file passes.
	require.NoError(t, rig.c.SelectImportFile(writeStatement(t, "x.csv")))
}

func TestImportFlow_FingerprintPreventsDuplicateOptimisticTurn(t *testing.T) {
	t.Parallel()

	no := false
	agent := &fakeAgent{
		chatFn: func(req api.ChatRequest) (*api.ChatResponse, error) {
			return &api.ChatResponse{Reply: "Envoyez votre relevé.", ToolResult: importToolResult("csv")}, nil
		},
		importFn: func(req api.ImportRequest) (*api.ImportOutcome, error) {
			return &api.ImportOutcome{OK: &no, Type: "clarification", Message: "Lequel ?"}, nil
		},
	}
	rig := newTestRig(agent, true)

	intent := startImport(t, rig)
	path := writeStatement(t, "releve.csv")

	require.NoError(t, rig.c.SelectImportFile(path))
	rig.c.ConfirmImport()
	waitFor(t, func() bool { return agent.importCount() == 1 && rig.c.Snapshot().Import.Phase == ImportIdle })

	// Same physical file, second round.
	rig.c.OpenImportPanel(intent.SourceMessageID)
	waitFor(t, func() bool { return rig.c.Snapshot().Import.Phase == ImportPanelOpen })
	require.NoError(t, rig.c.SelectImportFile(path))
	rig.c.ConfirmImport()
	waitFor(t, func() bool { return agent.importCount() == 2 && rig.c.Snapshot().Import.Phase == ImportIdle })

	sent := 0
	for _, msg := range rig.c.Snapshot().Messages {
		if strings.Contains(msg.Content, "Fichier envoyé") {
			sent++
		}
	}
	require.Equal(t, 1, sent)
}

func TestImportFlow_HardError(t *testing.T) {
	t.Parallel()

	no := false
	agent := &fakeAgent{
		chatFn: func(req api.ChatRequest) (*api.ChatResponse, error) {
			return &api.ChatResponse{Reply: "Envoyez votre relevé.", ToolResult: importToolResult("csv")}, nil
		},
		importFn: func(req api.ImportRequest) (*api.ImportOutcome, error) {
			return &api.ImportOutcome{OK: &no, Type: "error", Message: "Relevé illisible."}, nil
		},
	}
	rig := newTestRig(agent, true)

	startImport(t, rig)
	require.NoError(t, rig.c.SelectImportFile(writeStatement(t, "releve.csv")))
	rig.c.ConfirmImport()

	waitFor(t, func() bool { return rig.c.Snapshot().Import.Phase == ImportIdle })
	waitFor(t, func() bool {
		snap := rig.c.Snapshot()
		return indexContaining(messageContents(snap), "Relevé illisible.") >= 0
	})
	require.Equal(t, 1, agent.chatCount())
	// A failed flow does not keep the composer locked.
	require.Nil(t, rig.c.PendingImportIntent())
}

func messageContents(snap Snapshot) []string {
	out := make([]string, 0, len(snap.Messages))
	for _, msg := range snap.Messages {
		out = append(out, msg.Content)
	}
	return out
}

func TestChatFailure_SurfacesErrorWithoutAssistantTurn(t *testing.T) {
	t.Parallel()

	agent := &fakeAgent{chatFn: func(req api.ChatRequest) (*api.ChatResponse, error) {
		return nil, &api.Error{Status: 500, Detail: "agent exploded"}
	}}
	rig := newTestRig(agent, true)

	rig.c.Submit("bonjour")
	waitFor(t, func() bool { return rig.c.Snapshot().ErrorText != "" })

	snap := rig.c.Snapshot()
	require.Contains(t, snap.ErrorText, "agent exploded")
	require.False(t, snap.ErrorIsAuth)
	require.Len(t, snap.Messages, 1) // only the optimistic user turn

	rig.c.DismissError()
	waitFor(t, func() bool { return rig.c.Snapshot().ErrorText == "" })

	// The conversation stays interactive: a retry goes through.
	agent.mu.Lock()
	agent.chatFn = nil
	agent.mu.Unlock()
	rig.c.Submit("on réessaie")
	waitFor(t, func() bool { return len(rig.c.Snapshot().Messages) == 3 })
}

func TestChatFailure_401OffersSessionRefresh(t *testing.T) {
	t.Parallel()

	agent := &fakeAgent{chatFn: func(req api.ChatRequest) (*api.ChatResponse, error) {
		return nil, &api.Error{Status: 401, Detail: "jwt expired"}
	}}
	rig := newTestRig(agent, true)

	rig.c.Submit("bonjour")
	waitFor(t, func() bool { return rig.c.Snapshot().ErrorIsAuth })
}

func TestToggleDebug_PersistsAndToasts(t *testing.T) {
	t.Parallel()

	rig := newTestRig(&fakeAgent{}, true)

	rig.c.ToggleDebug()
	rig.c.dispatch.barrier()

	snap := rig.c.Snapshot()
	require.True(t, snap.DebugMode)
	require.True(t, rig.prefs.DebugMode())
	require.Len(t, snap.Toasts, 1)

	// Toasts auto-dismiss.
	rig.clock.Advance(toastDuration + time.Millisecond)
	require.Empty(t, rig.c.Snapshot().Toasts)
}

func TestReset_ClearsConversationAndGuards(t *testing.T) {
	t.Parallel()

	agent := &fakeAgent{chatFn: func(req api.ChatRequest) (*api.ChatResponse, error) {
		return &api.ChatResponse{Reply: "Bonjour !"}, nil
	}}
	rig := newTestRig(agent, true)

	rig.c.Submit("salut")
	waitFor(t, func() bool { return len(rig.c.Snapshot().Messages) == 2 })

	rig.c.Reset()
	rig.c.dispatch.barrier()

	snap := rig.c.Snapshot()
	require.Empty(t, snap.Messages)
	require.Empty(t, snap.ErrorText)
	require.False(t, snap.Loading)

	_, _ = rig.c.dispatch.call(func() (any, error) {
		require.Empty(t, rig.c.revealedIDs)
		require.Empty(t, rig.c.pdfOpenedIDs)
		require.Empty(t, rig.c.uploadFingerprints)
		require.Empty(t, rig.c.servicedImports)
		return nil, nil
	})
}

func TestDebugPayload_RendersLiteralStandInWhenUnserializable(t *testing.T) {
	t.Parallel()

	msg := &Message{DebugPayload: map[string]any{"bad": func() {}}}
	require.Equal(t, "<unserializable payload>", msg.DebugText())

	msg = &Message{DebugPayload: json.RawMessage(`{"plan":null}`)}
	require.Equal(t, `{"plan":null}`, msg.DebugText())
}

func TestSegmentedReply_RevealsStrictlyInOrder(t *testing.T) {
	t.Parallel()

	agent := &fakeAgent{chatFn: func(req api.ChatRequest) (*api.ChatResponse, error) {
		return &api.ChatResponse{Reply: "Un.\n\nDeux.\n\nTrois."}, nil
	}}
	rig := newTestRig(agent, false)

	rig.c.Submit("segmente-moi ça")
	waitFor(t, func() bool { return len(rig.c.Snapshot().Messages) >= 2 })

	// Later segments stay invisible (not merely un-typed) until their turn.
	snap := rig.c.Snapshot()
	require.Len(t, snap.Messages, 2)
	require.True(t, snap.Messages[1].Typing)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap = rig.c.Snapshot()
		// At most one message types at a time, and it is always the last
		// visible one.
		for i, msg := range snap.Messages {
			if msg.Typing {
				require.Equal(t, len(snap.Messages)-1, i)
			}
		}
		if len(snap.Messages) == 4 && !snap.Messages[3].Typing {
			break
		}
		rig.clock.Advance(revealTick)
	}
	require.Equal(t, []string{"segmente-moi ça", "Un.", "Deux.", "Trois."}, messageContents(snap))
}
