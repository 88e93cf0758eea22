// Package debug provides a scrollable event log overlay.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/tetherview/tetherview/internal/theme"
)

const maxEntries = 200

// Log kinds.
const (
	KindEvent   = "evt"
	KindCommand = "cmd"
	KindError   = "err"
	KindHealth  = "hlth"
)

// Entry is a single event log line. Identical consecutive lines are folded
// into one entry with a repeat count.
type Entry struct {
	Time    time.Time
	Kind    string
	Message string
	Count   int
}

// Model holds debug log state.
type Model struct {
	Entries    []Entry
	Offset     int // scroll offset (from bottom)
	ErrorsOnly bool
	errors     int
	now        func() time.Time
}

// New creates an empty debug model.
func New() Model {
	return Model{now: time.Now}
}

// Add appends a log entry and caps the buffer.
func (m *Model) Add(kind, message string) {
	now := time.Now
	if m.now != nil {
		now = m.now
	}
	if kind == KindError {
		m.errors++
	}
	m.Offset = 0

	if n := len(m.Entries); n > 0 {
		last := &m.Entries[n-1]
		if last.Kind == kind && last.Message == message {
			last.Count++
			last.Time = now()
			return
		}
	}
	m.Entries = append(m.Entries, Entry{
		Time:    now(),
		Kind:    kind,
		Message: message,
		Count:   1,
	})
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
}

// Errors returns how many errors were logged, repeats included.
func (m Model) Errors() int {
	return m.errors
}

// ToggleErrors switches between all entries and errors only.
func (m *Model) ToggleErrors() {
	m.ErrorsOnly = !m.ErrorsOnly
	m.Offset = 0
}

func (m Model) visible() []Entry {
	if !m.ErrorsOnly {
		return m.Entries
	}
	var out []Entry
	for _, e := range m.Entries {
		if e.Kind == KindError {
			out = append(out, e)
		}
	}
	return out
}

// ScrollUp moves the viewport up.
func (m *Model) ScrollUp(n int) {
	m.Offset += n
	limit := len(m.visible()) - 1
	if limit < 0 {
		limit = 0
	}
	if m.Offset > limit {
		m.Offset = limit
	}
}

// ScrollDown moves the viewport down.
func (m *Model) ScrollDown(n int) {
	m.Offset = max(m.Offset-n, 0)
}

// View renders the log as an overlay panel.
func (m Model) View(width, height int) string {
	innerW := max(width-4, 20)
	visibleLines := max(height-6, 3)

	title := " EVENT LOG "
	if m.ErrorsOnly {
		title = " EVENT LOG (errors) "
	}
	header := theme.StyleHeader.Render(title)
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  e:errors only  esc:close  %d entries  %d errors",
		len(m.Entries), m.errors))

	entries := m.visible()
	if len(entries) == 0 {
		body := theme.StyleDimmed.Render("  No events recorded yet.")
		content := lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", help)
		return theme.Panel(innerW).Render(content)
	}

	end := len(entries) - m.Offset
	start := max(end-visibleLines, 0)

	lines := make([]string, 0, end-start)
	for _, e := range entries[start:end] {
		lines = append(lines, m.line(e, innerW))
	}

	more := ""
	if m.Offset > 0 {
		more = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, header, strings.Join(lines, "\n"), more, help)
	return theme.Panel(innerW).Render(content)
}

func (m Model) line(e Entry, width int) string {
	ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05.000"))
	kind := lipgloss.NewStyle().Foreground(kindColor(e.Kind)).Width(4).Render(e.Kind)
	msg := e.Message
	if e.Count > 1 {
		msg = fmt.Sprintf("%s (x%d)", msg, e.Count)
	}
	if len(msg) > width-20 && width > 23 {
		msg = msg[:width-23] + "..."
	}
	return fmt.Sprintf("%s %s %s", ts, kind, msg)
}

func kindColor(kind string) lipgloss.Color {
	switch kind {
	case KindEvent:
		return theme.ColorEvent
	case KindCommand:
		return theme.ColorCommand
	case KindError:
		return theme.ColorError
	case KindHealth:
		return theme.ColorHealth
	default:
		return theme.ColorDimmed
	}
}
