package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/tetherview/tetherview/internal/client"
	"github.com/tetherview/tetherview/internal/preview"
	"github.com/tetherview/tetherview/internal/probe"
	"github.com/tetherview/tetherview/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	Device  client.DeviceState
	Busy    string // command in progress, e.g. "connecting"
	Spinner string
	Stream  preview.Stats
	Probe   probe.Result
	Probing bool
	Viewers int
	Relay   bool
	Width   int
}

// New creates a status bar model.
func New() Model {
	return Model{}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	switch {
	case m.Busy != "":
		connStr = lipgloss.NewStyle().Foreground(theme.ColorConnecting).Render(m.Spinner + " " + m.Busy + "...")
	case m.Device.Connected:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorConnected).Render("● Connected")
	default:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDisconnected).Render("○ Disconnected")
	}

	parts := []string{connStr}
	if m.Device.Model != "" {
		parts = append(parts, theme.StyleHeader.Render(m.Device.Model))
	}
	if m.Device.Battery != nil {
		b := *m.Device.Battery
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.BatteryColor(b)).Render(fmt.Sprintf("bat %d%%", b)))
	}
	if m.Device.StorageAvailable != nil {
		parts = append(parts, fmt.Sprintf("%d shots left", *m.Device.StorageAvailable))
	}
	parts = append(parts, m.streamView())
	if m.Probing {
		parts = append(parts, m.probeView())
	}
	if m.Relay {
		parts = append(parts, fmt.Sprintf("relay %d", m.Viewers))
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := strings.Join(parts, sep)

	bar := lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)

	return bar
}

func (m Model) streamView() string {
	switch {
	case m.Stream.State != preview.Running:
		return theme.StyleDimmed.Render("preview idle")
	case m.Stream.Degraded:
		return lipgloss.NewStyle().Foreground(theme.ColorWarning).Render(
			fmt.Sprintf("preview degraded (%d fails, retry %s)", m.Stream.Failures, m.Stream.Delay))
	default:
		return lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("preview live")
	}
}

func (m Model) probeView() string {
	r := m.Probe
	switch {
	case r.At.IsZero():
		return theme.StyleDimmed.Render("ping …")
	case !r.Reachable():
		return lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("ping lost")
	default:
		ms := float64(r.RTT.Microseconds()) / 1000
		return lipgloss.NewStyle().Foreground(theme.RTTColor(ms)).Render(fmt.Sprintf("ping %.1fms", ms))
	}
}
