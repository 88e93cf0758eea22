// Package gallery renders the capture list.
package gallery

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/tetherview/tetherview/internal/client"
	store "github.com/tetherview/tetherview/internal/gallery"
	"github.com/tetherview/tetherview/internal/theme"
)

// Model is the gallery list state.
type Model struct {
	Files    []client.FileInfo
	Selected int
	IsNew    func(name string) bool
	Width    int
	Height   int
}

func New() Model {
	return Model{}
}

// SetFiles replaces the listing and keeps the selection in range. If the
// previously selected file is still listed it stays selected.
func (m *Model) SetFiles(files []client.FileInfo) {
	prev, hadPrev := m.Current()
	m.Files = files
	if hadPrev {
		for i, f := range files {
			if f.Filename == prev.Filename {
				m.Selected = i
				return
			}
		}
	}
	m.clamp()
}

func (m *Model) Up() {
	if len(m.Files) > 0 {
		m.Selected = (m.Selected - 1 + len(m.Files)) % len(m.Files)
	}
}

func (m *Model) Down() {
	if len(m.Files) > 0 {
		m.Selected = (m.Selected + 1) % len(m.Files)
	}
}

// Current returns the selected file.
func (m Model) Current() (client.FileInfo, bool) {
	if m.Selected < 0 || m.Selected >= len(m.Files) {
		return client.FileInfo{}, false
	}
	return m.Files[m.Selected], true
}

func (m *Model) clamp() {
	if m.Selected >= len(m.Files) {
		m.Selected = len(m.Files) - 1
	}
	if m.Selected < 0 {
		m.Selected = 0
	}
}

// View renders the list, scrolled so the selection is visible.
func (m Model) View() string {
	title := theme.StyleHeader.Render(fmt.Sprintf("CAPTURES (%d)", len(m.Files)))
	if len(m.Files) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title, theme.StyleDimmed.Render("  No captures yet"))
	}

	rows := m.Height - 1
	if rows < 3 {
		rows = 3
	}
	start := 0
	if m.Selected >= rows {
		start = m.Selected - rows + 1
	}
	end := start + rows
	if end > len(m.Files) {
		end = len(m.Files)
	}

	nameW := m.Width - 34
	if nameW < 12 {
		nameW = 12
	}

	lines := []string{title}
	for i := start; i < end; i++ {
		f := m.Files[i]
		prefix := "  "
		name := truncate(f.Filename, nameW)
		if i == m.Selected {
			prefix = "> "
			name = theme.StyleSelected.Render(name)
		}
		marker := " "
		if m.IsNew != nil && m.IsNew(f.Filename) {
			marker = lipgloss.NewStyle().Foreground(theme.ColorNew).Render("*")
		}
		date := f.Date
		if t, ok := f.Time(); ok {
			date = t.Format("01-02 15:04:05")
		}
		pad := strings.Repeat(" ", max(nameW-lipgloss.Width(truncate(f.Filename, nameW)), 0))
		lines = append(lines, fmt.Sprintf("%s%s%s%s  %9s  %s",
			prefix, marker, name, pad, store.FormatSize(f.Size), theme.StyleDimmed.Render(date)))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
