// Package debug keeps the client's event log and renders it as an overlay.
//
// Repeats of the same event collapse into one line with a count, so a feed
// that reports the same error every second does not push everything else
// out of the buffer.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/runtrace/runtrace/internal/tui/theme"
)

const maxEntries = 200

// Kind classifies an event.
type Kind int

const (
	KindWS Kind = iota
	KindControl
	KindError
	KindHealth
	KindAchievement
)

func (k Kind) String() string {
	switch k {
	case KindWS:
		return "ws"
	case KindControl:
		return "ctl"
	case KindError:
		return "err"
	case KindHealth:
		return "hlth"
	case KindAchievement:
		return "ach"
	default:
		return "?"
	}
}

func (k Kind) color() lipgloss.Color {
	switch k {
	case KindWS:
		return theme.ColorAccent
	case KindControl:
		return theme.ColorRunning
	case KindError:
		return theme.ColorDanger
	case KindHealth:
		return theme.ColorWarning
	case KindAchievement:
		return theme.ColorGold
	default:
		return theme.ColorDimmed
	}
}

// Entry is one logged event. Count > 1 means the same event arrived that
// many times in a row; Time is the latest arrival.
type Entry struct {
	Time    time.Time
	Kind    Kind
	Message string
	Count   int
}

// Model holds the log. Offset counts visible lines scrolled up from the
// newest one.
type Model struct {
	Entries    []Entry
	Offset     int
	ErrorsOnly bool

	now func() time.Time
}

func New() Model {
	return Model{now: time.Now}
}

func (m *Model) Addf(kind Kind, format string, args ...interface{}) {
	m.Add(kind, fmt.Sprintf(format, args...))
}

// Add records an event and snaps the view back to the newest line.
func (m *Model) Add(kind Kind, message string) {
	at := time.Now()
	if m.now != nil {
		at = m.now()
	}
	m.Offset = 0

	if n := len(m.Entries); n > 0 {
		last := &m.Entries[n-1]
		if last.Kind == kind && last.Message == message {
			last.Count++
			last.Time = at
			return
		}
	}

	m.Entries = append(m.Entries, Entry{Time: at, Kind: kind, Message: message, Count: 1})
	if over := len(m.Entries) - maxEntries; over > 0 {
		m.Entries = append(m.Entries[:0], m.Entries[over:]...)
	}
}

// ToggleErrors switches between every event and errors only.
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

func (m *Model) ScrollUp(n int) {
	m.Offset = min(m.Offset+n, max(len(m.visible())-1, 0))
}

func (m *Model) ScrollDown(n int) {
	m.Offset = max(m.Offset-n, 0)
}

// tally counts events per kind, repeats included.
func (m Model) tally() string {
	var counts [KindAchievement + 1]int
	for _, e := range m.Entries {
		if e.Kind >= 0 && int(e.Kind) < len(counts) {
			counts[e.Kind] += e.Count
		}
	}
	var parts []string
	for k, n := range counts {
		if n > 0 {
			parts = append(parts, lipgloss.NewStyle().Foreground(Kind(k).color()).Render(fmt.Sprintf("%s %d", Kind(k), n)))
		}
	}
	return strings.Join(parts, theme.StyleDimmed.Render(" · "))
}

// View renders the log inside a bordered panel of the given terminal size.
func (m Model) View(width, height int) string {
	innerW := max(width-4, 24)
	rows := max(height-8, 3)

	heading := " EVENT LOG "
	if m.ErrorsOnly {
		heading = " EVENT LOG · errors "
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top, theme.StyleHeader.Render(heading), "  ", m.tally())
	help := theme.StyleDimmed.Render("j/k:scroll  f:errors only  esc:close")

	entries := m.visible()
	var body string
	switch {
	case len(m.Entries) == 0:
		body = theme.StyleDimmed.Render("No events recorded yet.")
	case len(entries) == 0:
		body = theme.StyleDimmed.Render("No errors since the client started.")
	default:
		end := max(len(entries)-m.Offset, 0)
		start := max(end-rows, 0)
		lines := make([]string, 0, end-start)
		for _, e := range entries[start:end] {
			lines = append(lines, m.line(e, innerW))
		}
		if m.Offset > 0 {
			lines = append(lines, theme.StyleDimmed.Render(fmt.Sprintf("  … %d newer", m.Offset)))
		}
		body = strings.Join(lines, "\n")
	}

	return lipgloss.NewStyle().
		Width(innerW).
		Padding(1, 2).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", help))
}

func (m Model) line(e Entry, width int) string {
	stamp := theme.StyleDimmed.Render(e.Time.Format("15:04:05"))
	tag := lipgloss.NewStyle().Foreground(e.Kind.color()).Render(fmt.Sprintf("%-4s", e.Kind))

	msg := e.Message
	if e.Count > 1 {
		msg += fmt.Sprintf(" (x%d)", e.Count)
	}
	// 8 for the stamp, 4 for the tag, 2 separators.
	if room := width - 14; room > 3 && len(msg) > room {
		msg = msg[:room-1] + "…"
	}
	return stamp + " " + tag + " " + msg
}
