package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tristanpfefferle/IA-financial-assistant/internal/chat"
)

func (m Model) View() string {
	if !m.ready {
		return "Initialisation…"
	}

	var sections []string
	sections = append(sections, m.headerView())

	switch m.mode {
	case modePickFile:
		sections = append(sections, m.pickerView())
	case modeConfirmFile:
		sections = append(sections, m.confirmView())
	default:
		sections = append(sections, m.vp.View())
		if bar := m.quickReplyView(); bar != "" {
			sections = append(sections, bar)
		}
	}

	if banner := m.errorView(); banner != "" {
		sections = append(sections, banner)
	}
	if toasts := m.toastView(); toasts != "" {
		sections = append(sections, toasts)
	}
	sections = append(sections, m.statusView())
	sections = append(sections, m.composerView())

	return strings.Join(sections, "\n")
}

func (m Model) headerView() string {
	title := assistantPrefixStyle.Render("Assistant financier")
	if m.snap.DebugMode {
		title += debugStyle.Render("  [debug]")
	}
	return title
}

// renderTranscript builds the whole conversation view. Assistant text renders
// as markdown once revealed; mid-typing text stays raw so partial markup never
// flickers through the renderer.
func (m Model) renderTranscript() string {
	if len(m.snap.Messages) == 0 {
		if m.snap.Loading {
			return m.spin.View() + " Connexion à l'assistant…"
		}
		return "Démarrage de la conversation…"
	}

	var b strings.Builder
	for _, msg := range m.snap.Messages {
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}
	if m.snap.Loading {
		b.WriteString(m.spin.View())
		b.WriteString(" L'assistant réfléchit…\n")
	}
	return b.String()
}

func (m Model) renderMessage(msg chat.MessageView) string {
	var b strings.Builder

	switch msg.Role {
	case chat.RoleUser:
		b.WriteString(userPrefixStyle.Render("Vous"))
		b.WriteString("\n")
		b.WriteString(msg.Content)
		b.WriteString("\n")

	case chat.RoleAssistant:
		b.WriteString(assistantPrefixStyle.Render("Assistant"))
		b.WriteString("\n")
		switch {
		case msg.Progress != nil:
			b.WriteString(renderProgress(msg.Progress))
			if msg.Content != "" {
				b.WriteString(msg.Content)
				b.WriteString("\n")
			}
		case msg.Typing:
			b.WriteString(msg.Content)
			b.WriteString(typingCursorStyle.Render("▋"))
			b.WriteString("\n")
		default:
			b.WriteString(strings.TrimRight(renderMarkdown(m.renderer, msg.Content), "\n"))
			b.WriteString("\n")
		}
	}

	if msg.ImportPrompt {
		b.WriteString(quickReplyStyle.Render("Importer maintenant (ctrl+o)"))
		b.WriteString("\n")
	}
	if m.snap.DebugMode && msg.DebugText != "" {
		b.WriteString(debugStyle.Render("⋯ " + msg.DebugText))
		b.WriteString("\n")
	}
	return b.String()
}

// renderProgress draws the in-place import progress indicator.
func renderProgress(p *chat.ProgressDirective) string {
	const width = 24
	filled := p.Percent * width / 100
	if filled > width {
		filled = width
	}
	bar := progressBarFilled.Render(strings.Repeat("█", filled)) +
		progressBarEmpty.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %3d %% — %s\n", bar, p.Percent, p.StepLabel)
}

func (m Model) quickReplyView() string {
	if len(m.snap.QuickReplies) == 0 {
		return ""
	}
	parts := make([]string, 0, len(m.snap.QuickReplies))
	for i, option := range m.snap.QuickReplies {
		parts = append(parts, quickReplyStyle.Render(fmt.Sprintf("[%d] %s", i+1, option.Label)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) pickerView() string {
	var b strings.Builder
	b.WriteString("Choisissez un relevé (")
	b.WriteString(strings.Join(m.snap.Import.AcceptedTypes, ", "))
	b.WriteString(") — Échap pour annuler\n\n")
	if m.snap.Import.DialogError != "" {
		b.WriteString(errorStyle.Render(m.snap.Import.DialogError))
		b.WriteString("\n\n")
	}
	b.WriteString(m.picker.View())
	return b.String()
}

func (m Model) confirmView() string {
	content := fmt.Sprintf(
		"Fichier sélectionné : %s\n\nEntrée pour envoyer le relevé, Échap pour annuler.",
		m.snap.Import.SelectedFile,
	)
	if m.snap.Import.DialogError != "" {
		content += "\n\n" + errorStyle.Render(m.snap.Import.DialogError)
	}
	return dialogStyle.Render(content)
}

func (m Model) errorView() string {
	if m.snap.ErrorText == "" {
		return ""
	}
	text := m.snap.ErrorText
	if m.snap.ErrorIsAuth {
		text += " — ctrl+l pour rafraîchir la session"
	}
	return errorStyle.Render(text + " (échap pour fermer)")
}

func (m Model) toastView() string {
	if len(m.snap.Toasts) == 0 {
		return ""
	}
	parts := make([]string, 0, len(m.snap.Toasts))
	for _, t := range m.snap.Toasts {
		parts = append(parts, toastStyle.Render(t))
	}
	return strings.Join(parts, " ")
}

func (m Model) statusView() string {
	identity := "anonyme"
	if m.snap.LoggedIn {
		identity = "connecté"
		if m.email != "" {
			identity = m.email
		}
	}
	status := identity + formatAliasBadge(m.snap.PendingAliases)
	if m.snap.PendingImport != nil {
		status += " · relevé attendu (ctrl+o)"
	}
	return statusStyle.Width(m.width).Render(status)
}

func (m Model) composerView() string {
	if m.snap.PendingImport != nil && m.mode == modeChat {
		return debugStyle.Render("L'assistant attend un relevé. Importez-le avec ctrl+o.")
	}
	if m.snap.Loading {
		return m.spin.View() + " " + m.input.View()
	}
	return m.input.View()
}
