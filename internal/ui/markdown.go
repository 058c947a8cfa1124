package ui

import "github.com/charmbracelet/glamour"

// newMarkdownRenderer builds a glamour renderer sized to the current width.
// Rendering is best effort; callers fall back to the raw text on error.
func newMarkdownRenderer(width int) *glamour.TermRenderer {
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
		glamour.WithEmoji(),
	)
	if err != nil {
		return nil
	}
	return r
}

// renderMarkdown renders markdown for display, returning the input unchanged
// when the renderer is unavailable or fails.
func renderMarkdown(r *glamour.TermRenderer, text string) string {
	if r == nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return out
}
