// Package achievements provides the achievements modal overlay for the TUI.
package achievements

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/runtrace/runtrace/internal/tui/client"
	"github.com/runtrace/runtrace/internal/tui/theme"
)

// Categories in tab order.
var categories = []string{
	"Milestones",
	"Distance",
	"Lifetime",
	"Speed",
	"Consistency",
}

// Model holds the panel's navigation state. The achievement list itself
// comes from the records passed to ViewOverlay.
type Model struct {
	activeTab int
	scroll    int
}

// New returns a Model on the first tab.
func New() Model {
	return Model{}
}

// Tab returns the active category name.
func (m Model) Tab() string {
	return categories[m.activeTab]
}

// Update processes key messages forwarded from the parent when this overlay is active.
func (m Model) Update(msg tea.KeyMsg) Model {
	switch msg.String() {
	case "left", "h":
		if m.activeTab > 0 {
			m.activeTab--
			m.scroll = 0
		}
	case "right", "l":
		if m.activeTab < len(categories)-1 {
			m.activeTab++
			m.scroll = 0
		}
	case "tab":
		m.activeTab = (m.activeTab + 1) % len(categories)
		m.scroll = 0
	case "j", "down":
		m.scroll++
	case "k", "up":
		if m.scroll > 0 {
			m.scroll--
		}
	}
	return m
}

// ViewOverlay renders the achievements panel centered in a terminal of size w×h.
// rec may be nil while records are loading.
func (m Model) ViewOverlay(rec *client.Records, w, h int) string {
	mw := clamp(w-8, 50, 100)
	mh := max(h-4, 14)

	box := lipgloss.NewStyle().
		Width(mw).
		Height(mh).
		Padding(1, 2).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(m.renderInner(rec, mw-4, mh-2))

	return lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, box)
}

func (m Model) renderInner(rec *client.Records, w, h int) string {
	var b strings.Builder

	b.WriteString(theme.StyleHeader.Render("ACHIEVEMENTS") + "\n\n")

	if rec == nil {
		b.WriteString(theme.StyleDimmed.Render("Loading..."))
		return b.String()
	}

	var tabs []string
	for i, cat := range categories {
		if i == m.activeTab {
			tabs = append(tabs, lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBright).Underline(true).Render(cat))
		} else {
			tabs = append(tabs, theme.StyleDimmed.Render(cat))
		}
	}
	b.WriteString(strings.Join(tabs, "  ") + "\n")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(strings.Repeat("─", w)) + "\n")

	filtered := filterByCategory(rec.Achievements, m.Tab())
	unlocked := 0
	for _, a := range filtered {
		if a.Unlocked() {
			unlocked++
		}
	}
	b.WriteString(theme.StyleDimmed.Render(fmt.Sprintf("%d / %d unlocked", unlocked, len(filtered))) + "\n\n")

	// Each row is two lines: name and description.
	maxItems := max((h-7)/2, 1)
	start := clamp(m.scroll, 0, max(len(filtered)-1, 0))

	shown := 0
	for i := start; i < len(filtered) && shown < maxItems; i++ {
		a := filtered[i]

		lockGlyph := theme.StyleDimmed.Render("○")
		nameStyle := theme.StyleDimmed
		when := ""
		if a.Unlocked() {
			lockGlyph = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("✓")
			nameStyle = lipgloss.NewStyle().Foreground(theme.ColorBright)
			when = theme.StyleDimmed.Render("  " + a.UnlockedAt.Local().Format("Jan 2, 2006"))
		}

		b.WriteString(lockGlyph + " " + tierBadge(a.Tier) + " " + nameStyle.Render(a.Name) + when + "\n")
		b.WriteString(theme.StyleDimmed.Render("    "+truncate(a.Description, w-5)) + "\n")
		shown++
	}

	if len(filtered) == 0 {
		b.WriteString(theme.StyleDimmed.Render("No achievements in this category."))
	}

	if remaining := len(filtered) - start - shown; remaining > 0 {
		b.WriteString("\n" + theme.StyleDimmed.Render(fmt.Sprintf("↓ %d more (j/k to scroll)", remaining)))
	}

	b.WriteString("\n\n" + theme.StyleDimmed.Render("←/→ tab  j/k scroll  esc close"))
	return b.String()
}

func tierBadge(tier string) string {
	label := "[?]"
	switch tier {
	case "bronze":
		label = "[B]"
	case "silver":
		label = "[S]"
	case "gold":
		label = "[G]"
	case "platinum":
		label = "[P]"
	}
	return lipgloss.NewStyle().Foreground(theme.TierColor(tier)).Bold(true).Render(label)
}

func filterByCategory(items []client.Achievement, cat string) []client.Achievement {
	var out []client.Achievement
	for _, a := range items {
		if a.Category == cat {
			out = append(out, a)
		}
	}
	return out
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
