// Package theme provides the Lip Gloss color palette and reusable styles
// for the runtrace TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Phase colors.
var (
	ColorIdle    = lipgloss.Color("#6b7280")
	ColorRunning = lipgloss.Color("#22c55e")
	ColorPaused  = lipgloss.Color("#d97706")
	ColorStopped = lipgloss.Color("#3b82f6")
)

// Route colors.
var (
	ColorRoute   = lipgloss.Color("#22c55e")
	ColorStart   = lipgloss.Color("#f9fafb")
	ColorCurrent = lipgloss.Color("#dc2626")
	ColorRawFix  = lipgloss.Color("#a855f7")
)

// Tier colors.
var (
	ColorBronze   = lipgloss.Color("#d97706")
	ColorSilver   = lipgloss.Color("#9ca3af")
	ColorGold     = lipgloss.Color("#f59e0b")
	ColorPlatinum = lipgloss.Color("#67e8f9")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorAccent  = lipgloss.Color("#2563eb")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// PhaseColor returns the color for a run phase name.
func PhaseColor(phase string) lipgloss.Color {
	switch phase {
	case "running":
		return ColorRunning
	case "paused":
		return ColorPaused
	case "stopped":
		return ColorStopped
	default:
		return ColorIdle
	}
}

// PhaseGlyph returns a glyph for a run phase name.
func PhaseGlyph(phase string) string {
	switch phase {
	case "running":
		return "▶"
	case "paused":
		return "❚❚"
	case "stopped":
		return "■"
	default:
		return "○"
	}
}

// HealthColor returns the color for a feed health value.
func HealthColor(health string) lipgloss.Color {
	switch health {
	case "healthy":
		return ColorHealthy
	case "degraded":
		return ColorWarning
	case "failed":
		return ColorDanger
	default:
		return ColorDimmed
	}
}

// TierColor returns the color for a tier name.
func TierColor(tier string) lipgloss.Color {
	switch tier {
	case "bronze":
		return ColorBronze
	case "silver":
		return ColorSilver
	case "gold":
		return ColorGold
	case "platinum":
		return ColorPlatinum
	default:
		return ColorDimmed
	}
}

// GoalBarColor returns the bar color for a fraction of the goal distance.
func GoalBarColor(frac float64) lipgloss.Color {
	switch {
	case frac >= 1:
		return ColorGold
	case frac >= 0.5:
		return ColorRunning
	default:
		return ColorAccent
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

	StyleValue = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorDanger)
)
