// Package report renders the run report overlay: a markdown summary with
// mile splits, achievements and lifetime records, rendered by glamour.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/runtrace/runtrace/internal/geo"
	"github.com/runtrace/runtrace/internal/session"
	"github.com/runtrace/runtrace/internal/tui/client"
	"github.com/runtrace/runtrace/internal/tui/theme"
)

const metersPerMile = 1609.344

// Split is the time taken to cover one mile, or the remaining part of a
// mile at the end of the run.
type Split struct {
	Mile      int
	DistanceM float64
	Duration  time.Duration
}

// Pace returns the split pace in min/mi.
func (s Split) Pace() string {
	return geo.FormatPace(geo.PaceMinPerMile(s.DistanceM, s.Duration))
}

// Splits divides a track into mile splits using point timestamps. The
// crossing time of each mile is interpolated between the two points that
// straddle it. Points without timestamps yield no splits.
func Splits(points []geo.Fix) []Split {
	if len(points) < 2 || points[0].Timestamp == 0 {
		return nil
	}

	var out []Split
	var dist float64
	markT := points[0].Timestamp
	markD := 0.0
	next := metersPerMile

	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1], points[i]
		step := geo.Distance(prev.LatLon(), cur.LatLon())
		for step > 0 && dist+step >= next {
			frac := (next - dist) / step
			at := prev.Timestamp + int64(frac*float64(cur.Timestamp-prev.Timestamp))
			out = append(out, Split{
				Mile:      len(out) + 1,
				DistanceM: next - markD,
				Duration:  time.Duration(at-markT) * time.Millisecond,
			})
			markT, markD = at, next
			next += metersPerMile
		}
		dist += step
	}

	last := points[len(points)-1]
	if rest := dist - markD; rest > 1 {
		out = append(out, Split{
			Mile:      len(out) + 1,
			DistanceM: rest,
			Duration:  time.Duration(last.Timestamp-markT) * time.Millisecond,
		})
	}
	return out
}

// Model holds the report overlay state.
type Model struct {
	Run          session.Snapshot
	Records      *client.Records
	Achievements []client.AchievementUnlockedPayload
}

// Markdown builds the report source.
func (m Model) Markdown() string {
	sum := session.Summarize(m.Run)
	var b strings.Builder

	title := "Run"
	if m.Run.StartedAt != nil {
		title = "Run " + m.Run.StartedAt.Local().Format("Mon Jan 2 15:04")
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	b.WriteString("| Time | Miles | Pace | Avg mph | Points |\n")
	b.WriteString("|---|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %s | %.2f | %s /mi | %.1f | %d |\n\n",
		sum.Elapsed, sum.Miles, sum.Pace, sum.AvgMPH, sum.PointCount)

	if splits := Splits(m.Run.Points); len(splits) > 0 {
		b.WriteString("## Splits\n\n")
		b.WriteString("| Mile | Distance | Time | Pace |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, s := range splits {
			fmt.Fprintf(&b, "| %d | %.2f mi | %s | %s /mi |\n",
				s.Mile, geo.MetersToMiles(s.DistanceM), geo.FormatElapsed(s.Duration), s.Pace())
		}
		b.WriteString("\n")
	}

	if len(m.Achievements) > 0 {
		b.WriteString("## Unlocked this session\n\n")
		for _, a := range m.Achievements {
			fmt.Fprintf(&b, "- **%s** (%s): %s\n", a.Name, a.Tier, a.Description)
		}
		b.WriteString("\n")
	}

	if r := m.Records; r != nil {
		st := r.Stats
		b.WriteString("## Lifetime\n\n")
		fmt.Fprintf(&b, "- Runs: %d\n", st.TotalRuns)
		fmt.Fprintf(&b, "- Distance: %.1f mi\n", geo.MetersToMiles(st.TotalDistanceM))
		fmt.Fprintf(&b, "- Longest run: %.2f mi\n", geo.MetersToMiles(st.LongestRunM))
		if st.BestPace > 0 {
			fmt.Fprintf(&b, "- Best pace: %s /mi\n", geo.FormatPace(st.BestPace))
		}
		fmt.Fprintf(&b, "- Streak: %d days (best %d)\n", st.CurrentStreakDays, st.LongestStreakDays)
		fmt.Fprintf(&b, "- Achievements: %d of %d\n", r.UnlockedCount(), len(r.Achievements))
	}

	return b.String()
}

// View renders the report as an overlay panel of the given size.
func (m Model) View(width, height int) string {
	innerW := max(width-6, 20)

	body := m.Markdown()
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(innerW),
	)
	if err == nil {
		if out, err := r.Render(body); err == nil {
			body = out
		}
	}

	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	if maxLines := height - 4; maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
	}

	help := theme.StyleDimmed.Render("esc:close")
	return lipgloss.NewStyle().
		Width(innerW).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(lipgloss.JoinVertical(lipgloss.Left, strings.Join(lines, "\n"), help))
}
