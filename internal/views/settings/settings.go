// Package settings renders the read-only camera settings overlay.
package settings

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/tetherview/tetherview/internal/client"
	"github.com/tetherview/tetherview/internal/theme"
)

// Model holds the last fetched settings.
type Model struct {
	Current   *client.Settings
	Available map[string][]string
	Loading   bool
	Err       string
}

func New() Model {
	return Model{}
}

// View renders the overlay.
func (m Model) View(width int) string {
	innerW := width - 4
	if innerW < 30 {
		innerW = 30
	}
	title := theme.StyleHeader.Render(" CAMERA SETTINGS ")
	help := theme.StyleDimmed.Render("esc:close")

	var body string
	switch {
	case m.Loading:
		body = theme.StyleDimmed.Render("  loading...")
	case m.Err != "":
		body = theme.StyleError.Render("  " + m.Err)
	case m.Current == nil:
		body = theme.StyleDimmed.Render("  no settings loaded")
	default:
		body = m.table()
	}

	content := lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help)
	return theme.Panel(innerW).Render(content)
}

func (m Model) table() string {
	s := m.Current
	iso := "-"
	if s.ISO != nil {
		iso = fmt.Sprintf("%d", *s.ISO)
	}
	rows := [][2]string{
		{"ISO", iso},
		{"Aperture", orDash(s.Aperture)},
		{"Shutter", orDash(s.ShutterSpeed)},
		{"White balance", orDash(s.WhiteBalance)},
		{"Exposure", orDash(s.ExposureMode)},
		{"Focus", orDash(s.FocusMode)},
	}
	var lines []string
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("  %-14s %s", r[0], theme.StyleSelected.Render(r[1])))
	}

	if len(m.Available) > 0 {
		lines = append(lines, "", theme.StyleHeader.Render("  Available"))
		names := make([]string, 0, len(m.Available))
		for k := range m.Available {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			lines = append(lines, fmt.Sprintf("  %-14s %s", k, theme.StyleDimmed.Render(strings.Join(m.Available[k], " "))))
		}
	}
	return strings.Join(lines, "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
