package chat

import "time"

// MessageView is one visible conversation turn, safe for the view layer to
// hold across renders.
type MessageView struct {
	ID        string
	Role      Role
	Content   string
	CreatedAt time.Time

	// Typing marks the message whose text is still being revealed.
	Typing bool
	// ImportPrompt offers the "Importer maintenant" affordance.
	ImportPrompt bool
	// Progress mirrors the in-place import progress indicator.
	Progress *ProgressDirective
	// DebugText is the raw provider payload, set only in debug mode.
	DebugText string
}

// ImportView is the import dialog state exposed to the view.
type ImportView struct {
	Phase         ImportPhase
	AcceptedTypes []string
	SelectedFile  string
	DialogError   string
}

// Snapshot is a point-in-time copy of the conversation state.
type Snapshot struct {
	Messages    []MessageView
	Loading     bool
	ErrorText   string
	ErrorIsAuth bool
	Toasts      []string

	// QuickReplies is non-nil only when the newest message is an assistant
	// turn carrying a quick-reply prompt whose reveal has finished: the
	// buttons must never appear mid-typing.
	QuickReplies []QuickReplyOption

	PendingImport *ImportIntent
	Import        ImportView

	DebugMode      bool
	LoggedIn       bool
	PendingAliases int
}

// Snapshot captures the current conversation state. Hidden messages
// (assistant turns past the active typing one) are omitted entirely.
func (c *Controller) Snapshot() Snapshot {
	value, _ := c.dispatch.call(func() (any, error) {
		return c.snapshotLocked(), nil
	})
	snap, _ := value.(Snapshot)
	return snap
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Loading:        c.loading,
		ErrorText:      c.errorText,
		ErrorIsAuth:    c.errorIsAuth,
		DebugMode:      c.debugMode,
		LoggedIn:       c.loggedIn,
		PendingAliases: c.pendingAliases,
		PendingImport:  c.pendingImportIntentLocked(),
		Import: ImportView{
			Phase:         c.imp.phase,
			AcceptedTypes: append([]string(nil), c.imp.acceptedTypes...),
			SelectedFile:  c.imp.selectedName,
			DialogError:   c.imp.dialogError,
		},
	}
	for _, t := range c.toasts {
		snap.Toasts = append(snap.Toasts, t.text)
	}

	for _, msg := range c.messages {
		view, visible := c.messageViewLocked(msg)
		if visible {
			snap.Messages = append(snap.Messages, view)
		}
	}

	// Quick replies gate on the newest turn having fully revealed.
	if len(c.messages) > 0 {
		last := c.messages[len(c.messages)-1]
		if last.Role == RoleAssistant {
			if prompt, ok := last.Directive.(*QuickRepliesDirective); ok {
				if _, revealed := c.revealedIDs[last.ID]; revealed {
					snap.QuickReplies = append([]QuickReplyOption(nil), prompt.Options...)
				}
			}
		}
	}
	return snap
}

// messageViewLocked renders one message for the view. An assistant message
// that is neither revealed nor actively typing is invisible, not merely
// un-typed.
func (c *Controller) messageViewLocked(msg *Message) (MessageView, bool) {
	view := MessageView{
		ID:        msg.ID,
		Role:      msg.Role,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}
	if c.debugMode {
		view.DebugText = msg.DebugText()
	}

	switch d := msg.Directive.(type) {
	case *ImportDirective:
		_, serviced := c.servicedImports[msg.ID]
		view.ImportPrompt = !serviced
	case *ProgressDirective:
		progress := *d
		view.Progress = &progress
	}

	if msg.Role == RoleUser {
		return view, true
	}
	if _, revealed := c.revealedIDs[msg.ID]; revealed {
		return view, true
	}
	if c.revealer != nil && c.revealer.messageID == msg.ID {
		view.Content = c.revealer.Visible()
		view.Typing = true
		return view, true
	}
	return MessageView{}, false
}
