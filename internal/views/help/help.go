// Package help renders the key reference overlay from markdown.
package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/glamour"
	"github.com/tetherview/tetherview/internal/theme"
)

// Model caches the rendered markdown per width.
type Model struct {
	bindings []key.Binding
	width    int
	rendered string
}

// New builds the overlay for the given bindings.
func New(bindings []key.Binding) Model {
	return Model{bindings: bindings}
}

// Markdown returns the help text as markdown.
func (m Model) Markdown() string {
	var b strings.Builder
	b.WriteString("# tetherview\n\n")
	b.WriteString("Live view and capture for a tethered camera.\n\n")
	b.WriteString("| Key | Action |\n|---|---|\n")
	for _, kb := range m.bindings {
		h := kb.Help()
		if h.Key == "" {
			continue
		}
		fmt.Fprintf(&b, "| `%s` | %s |\n", h.Key, h.Desc)
	}
	b.WriteString("\nPreview starts when the camera connects and stops when it disconnects. ")
	b.WriteString("Captures marked `*` arrived in the last few seconds.\n")
	return b.String()
}

// View renders the overlay at width, falling back to raw markdown if the
// renderer fails.
func (m *Model) View(width int) string {
	innerW := width - 4
	if innerW < 30 {
		innerW = 30
	}
	if m.rendered == "" || m.width != innerW {
		m.width = innerW
		m.rendered = render(m.Markdown(), innerW-4)
	}
	return theme.Panel(innerW).Render(m.rendered)
}

func render(md string, wrap int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimSpace(out)
}
