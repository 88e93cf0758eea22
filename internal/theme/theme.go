// Package theme provides the Lip Gloss palette and shared styles for the
// terminal UI. It is a leaf package with no internal imports to avoid
// import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Device state colors.
var (
	ColorConnected    = lipgloss.Color("#22c55e")
	ColorDisconnected = lipgloss.Color("#dc2626")
	ColorConnecting   = lipgloss.Color("#d97706")
)

// Battery thresholds.
var (
	ColorBatteryHigh = lipgloss.Color("#22c55e") // >50%
	ColorBatteryMid  = lipgloss.Color("#d97706") // 20-50%
	ColorBatteryLow  = lipgloss.Color("#dc2626") // <20%
)

// Debug log kinds.
var (
	ColorEvent   = lipgloss.Color("#2563eb")
	ColorCommand = lipgloss.Color("#7c3aed")
	ColorError   = lipgloss.Color("#dc2626")
	ColorHealth  = lipgloss.Color("#d97706")
)

// Gallery markers.
var (
	ColorNew = lipgloss.Color("#f59e0b")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// BatteryColor returns the color for a battery percentage.
func BatteryColor(pct int) lipgloss.Color {
	switch {
	case pct > 50:
		return ColorBatteryHigh
	case pct >= 20:
		return ColorBatteryMid
	default:
		return ColorBatteryLow
	}
}

// RTTColor grades a round-trip time in milliseconds.
func RTTColor(ms float64) lipgloss.Color {
	switch {
	case ms < 20:
		return ColorHealthy
	case ms < 100:
		return ColorWarning
	default:
		return ColorDanger
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorDanger)
)

// Panel returns the bordered overlay style shared by modal views.
func Panel(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(ColorBorder)
}
