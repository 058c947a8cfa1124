package chat

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tristanpfefferle/IA-financial-assistant/internal/api"
)

// ErrInvalidFormat is the local, pre-network validation failure for a file
// whose extension is not in the pending intent's accepted list.
var ErrInvalidFormat = errors.New("INVALID_FORMAT")

const (
	// Progress simulation: the real upload has no progress channel, so the
	// placeholder climbs by progressStep every progressTickEvery until the
	// ceiling, and only settlement moves it to 100.
	progressTickEvery = 250 * time.Millisecond
	progressStep      = 3
	progressCeiling   = 85
)

var importSteps = []string{
	"Lecture du fichier",
	"Analyse du relevé",
	"Import des transactions",
}

// ImportPhase is the import flow lifecycle state.
type ImportPhase int

const (
	ImportIdle ImportPhase = iota
	ImportPanelOpen
	ImportFileSelected
	ImportUploading
)

// ImportIntent is the currently pending, unresolved request for the user to
// supply a statement file. It is derived by scanning messages newest-first
// and never stored.
type ImportIntent struct {
	SourceMessageID string
	AcceptedTypes   []string
	Origin          string // "action" or "legacy-request"
}

// importFlow is the controller-owned import state. All fields are touched
// only on the dispatch goroutine.
type importFlow struct {
	phase           ImportPhase
	sourceMessageID string
	acceptedTypes   []string

	selectedPath  string
	selectedName  string
	selectedSize  int64
	selectedMTime time.Time
	dialogError   string

	progressMessageID string
	progressTimer     Timer
}

// PendingImportIntent returns the newest unconsumed import directive, if any.
// The scan stops at the first (newest) match so at most one intent is pending
// at a time. A directive whose flow already settled (clarification or hard
// error) no longer counts as pending: the conversation continues in chat.
func (c *Controller) PendingImportIntent() *ImportIntent {
	value, _ := c.dispatch.call(func() (any, error) {
		return c.pendingImportIntentLocked(), nil
	})
	intent, _ := value.(*ImportIntent)
	return intent
}

func (c *Controller) pendingImportIntentLocked() *ImportIntent {
	for i := len(c.messages) - 1; i >= 0; i-- {
		msg := c.messages[i]
		if msg.Role != RoleAssistant {
			continue
		}
		directive, ok := msg.Directive.(*ImportDirective)
		if !ok {
			continue
		}
		if _, serviced := c.servicedImports[msg.ID]; serviced {
			continue
		}
		origin := "action"
		if directive.Legacy {
			origin = "legacy-request"
		}
		return &ImportIntent{
			SourceMessageID: msg.ID,
			AcceptedTypes:   directive.AcceptedTypes,
			Origin:          origin,
		}
	}
	return nil
}

// OpenImportPanel opens the file-selection dialog for the message carrying
// the import directive (the "Importer maintenant" affordance).
func (c *Controller) OpenImportPanel(sourceMessageID string) {
	_ = c.dispatch.do(func() {
		if c.imp.phase != ImportIdle {
			return
		}
		msg := c.messageByID(sourceMessageID)
		if msg == nil {
			return
		}
		directive, ok := msg.Directive.(*ImportDirective)
		if !ok {
			return
		}
		c.imp.phase = ImportPanelOpen
		c.imp.sourceMessageID = sourceMessageID
		c.imp.acceptedTypes = directive.AcceptedTypes
		c.imp.dialogError = ""
		c.emitChanged()
	})
}

// SelectImportFile validates the picked file against the accepted types.
// A mismatch is a local error: the backend is never contacted and the dialog
// stays open with the validation message.
func (c *Controller) SelectImportFile(path string) error {
	_, err := c.dispatch.call(func() (any, error) {
		if c.imp.phase != ImportPanelOpen && c.imp.phase != ImportFileSelected {
			return nil, fmt.Errorf("no import dialog open")
		}
		name := filepath.Base(path)
		if !extensionAccepted(name, c.imp.acceptedTypes) {
			c.imp.dialogError = fmt.Sprintf(
				"Format invalide : seuls les fichiers %s sont acceptés.",
				strings.Join(c.imp.acceptedTypes, ", "),
			)
			c.emitChanged()
			return nil, ErrInvalidFormat
		}
		info, err := os.Stat(path)
		if err != nil {
			c.imp.dialogError = fmt.Sprintf("Fichier illisible : %s", name)
			c.emitChanged()
			return nil, fmt.Errorf("stat selected file: %w", err)
		}
		c.imp.phase = ImportFileSelected
		c.imp.selectedPath = path
		c.imp.selectedName = name
		c.imp.selectedSize = info.Size()
		c.imp.selectedMTime = info.ModTime()
		c.imp.dialogError = ""
		c.emitChanged()
		return nil, nil
	})
	return err
}

// extensionAccepted compares the file extension against the accepted list,
// case- and dot-insensitively.
func extensionAccepted(name string, accepted []string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	for _, a := range accepted {
		if ext == strings.ToLower(strings.TrimPrefix(strings.TrimSpace(a), ".")) {
			return true
		}
	}
	return false
}

// CancelImport closes the dialog and returns the flow to idle. An upload
// already in flight is not cancelled; only settlement moves it out of
// uploading.
func (c *Controller) CancelImport() {
	_ = c.dispatch.do(func() {
		if c.imp.phase == ImportIdle || c.imp.phase == ImportUploading {
			return
		}
		c.imp = importFlow{}
		c.emitChanged()
	})
}

// ConfirmImport reads and uploads the selected file, driving the progress
// simulation until the backend settles.
func (c *Controller) ConfirmImport() {
	_ = c.dispatch.do(func() {
		if c.imp.phase != ImportFileSelected {
			return
		}
		content, err := os.ReadFile(c.imp.selectedPath)
		if err != nil {
			c.imp.dialogError = fmt.Sprintf("Fichier illisible : %s", c.imp.selectedName)
			c.emitChanged()
			return
		}

		// The same physical file re-selected twice must not duplicate the
		// optimistic user turn. Check-then-add happens in this same
		// synchronous step, before any await point.
		fingerprint := fmt.Sprintf("%s|%d|%d",
			c.imp.selectedName, c.imp.selectedSize, c.imp.selectedMTime.UnixMilli())
		if _, seen := c.uploadFingerprints[fingerprint]; !seen {
			c.uploadFingerprints[fingerprint] = struct{}{}
			c.appendMessage(&Message{
				ID:        newMessageID(),
				Role:      RoleUser,
				Content:   fmt.Sprintf("Fichier envoyé : %s", c.imp.selectedName),
				CreatedAt: c.clock.Now(),
			})
		}

		progress := &Message{
			ID:        newMessageID(),
			Role:      RoleAssistant,
			Content:   "Import du relevé en cours…",
			CreatedAt: c.clock.Now(),
			Directive: &ProgressDirective{
				Percent:   0,
				StepLabel: importSteps[0],
				Steps:     append([]string(nil), importSteps...),
			},
		}
		// Progress placeholders skip the typing reveal; they update in place.
		c.revealedIDs[progress.ID] = struct{}{}
		c.appendMessage(progress)

		c.imp.phase = ImportUploading
		c.imp.progressMessageID = progress.ID
		c.imp.progressTimer = c.after(progressTickEvery, c.tickImportProgress)

		request := api.ImportRequest{
			Files: []api.ImportFile{{
				Filename:      c.imp.selectedName,
				ContentBase64: base64.StdEncoding.EncodeToString(content),
			}},
			ImportMode:     "commit",
			ModifiedAction: "replace",
		}
		go func() {
			outcome, err := c.client.ImportReleves(context.Background(), request)
			_ = c.dispatch.do(func() { c.settleImport(outcome, err) })
		}()
	})
}

// tickImportProgress advances the simulated percent up to the ceiling.
func (c *Controller) tickImportProgress() {
	if c.imp.phase != ImportUploading {
		return
	}
	msg := c.messageByID(c.imp.progressMessageID)
	if msg == nil {
		return
	}
	if progress, ok := msg.Directive.(*ProgressDirective); ok {
		if progress.Percent < progressCeiling {
			progress.Percent += progressStep
			if progress.Percent > progressCeiling {
				progress.Percent = progressCeiling
			}
		}
		progress.StepLabel = stepLabelFor(progress.Percent)
		c.emitChanged()
	}
	c.imp.progressTimer = c.after(progressTickEvery, c.tickImportProgress)
}

func stepLabelFor(percent int) string {
	switch {
	case percent < 30:
		return importSteps[0]
	case percent < 70:
		return importSteps[1]
	default:
		return importSteps[2]
	}
}

// settleImport branches on the three outcomes. The progress interval is
// always cleared here, whatever the branch.
func (c *Controller) settleImport(outcome *api.ImportOutcome, err error) {
	if c.imp.progressTimer != nil {
		c.imp.progressTimer.Stop()
		c.imp.progressTimer = nil
	}
	progressMsg := c.messageByID(c.imp.progressMessageID)
	sourceID := c.imp.sourceMessageID
	c.imp = importFlow{}

	if progressMsg == nil {
		return
	}

	switch {
	case err != nil:
		progressMsg.Content = fmt.Sprintf("L'import a échoué : %s", err)
		progressMsg.Directive = nil
		c.servicedImports[sourceID] = struct{}{}
		c.setError(err)

	case !outcome.Success():
		// Clarification is a normal branch, not an error: the flow can be
		// reopened for the same message, but the directive no longer gates
		// the composer. The user answers in chat.
		progressMsg.Content = outcome.Message
		progressMsg.Directive = nil
		if progressMsg.Content == "" {
			progressMsg.Content = "L'import a échoué."
		}
		c.servicedImports[sourceID] = struct{}{}

	default:
		if progress, ok := progressMsg.Directive.(*ProgressDirective); ok {
			progress.Percent = 100
			progress.StepLabel = "Terminé"
		}
		// The completed bar stays visible for one frame; the swap to the
		// success text runs on the next dispatch turn.
		c.after(0, func() {
			progressMsg.Content = importSuccessMessage(outcome)
			progressMsg.Directive = nil
			// The served directive is consumed: the "Importer maintenant"
			// affordance disappears.
			if source := c.messageByID(sourceID); source != nil {
				source.Directive = nil
			}
			c.followUpAfterImport()
			c.refreshAliasCount()
			c.emitChanged()
		})
	}
	c.emitChanged()
}

// importSuccessMessage interpolates the imported count and, when detected,
// the bank account name and statement period.
func importSuccessMessage(outcome *api.ImportOutcome) string {
	var b strings.Builder
	b.WriteString("Parfait, j'ai bien reçu votre relevé")
	if outcome.BankAccountName != "" {
		b.WriteString(" ")
		b.WriteString(outcome.BankAccountName)
	}
	if outcome.ImportedCount == 1 {
		b.WriteString(". 1 transaction importée")
	} else {
		fmt.Fprintf(&b, ". %d transactions importées", outcome.ImportedCount)
	}
	if outcome.DateRange != nil {
		fmt.Fprintf(&b, " (du %s au %s)", outcome.DateRange.Start, outcome.DateRange.End)
	}
	b.WriteString(".")
	return b.String()
}

// followUpAfterImport lets the agent react to the completed import with an
// empty-message request. Best effort: a failure is logged into the error
// state but the import itself already succeeded.
func (c *Controller) followUpAfterImport() {
	go func() {
		resp, err := c.client.Chat(context.Background(), api.ChatRequest{Message: ""})
		_ = c.dispatch.do(func() {
			if err != nil {
				c.setError(err)
				c.emitChanged()
				return
			}
			c.enqueueReply(resp)
		})
	}()
}
