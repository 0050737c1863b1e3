package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Sagar8169/improved-journey-mediaPose/internal/stats"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 2)
)

// View implements tea.Model.
func (m *Model) View() string {
	var content string
	if m.final != nil {
		content = m.renderFinal()
	} else {
		content = m.renderLive()
	}
	if content == "" {
		return ""
	}
	footer := m.renderFooter()
	if m.width == 0 || m.height < 3 {
		return content + "\n" + footer
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) renderLive() string {
	rec := m.mgr.Snapshot()
	g, ok := m.mgr.LiveKPIs()
	if rec == nil || !ok {
		return ""
	}
	elapsed := time.Duration(m.now().Sub(m.startedAt).Milliseconds()) * time.Millisecond
	detection := 0.0
	if rec.FrameCount > 0 {
		detection = float64(rec.DetectionFrames) / float64(rec.FrameCount) * 100
	}
	rows := [][2]string{
		{"Elapsed", elapsed.Truncate(time.Second).String()},
		{"Frames", fmt.Sprintf("%d (%.0f%% detected)", rec.FrameCount, detection)},
		{"Reps", fmt.Sprintf("%d  streak %d  best %d", rec.TotalReps, rec.CurrentStreak, rec.MaxRepStreak)},
		{"Intensity", optInt(g.IntensityScore)},
		{"Control", optPct(g.ControlPercentPct)},
		{"Consistency", optInt(g.ConsistencyRating)},
		{"Reaction", optMs(g.ReactionTimeMs)},
		{"Posture issues", fmt.Sprintf("%d", rec.PostureIssues)},
		{"Interruptions", fmt.Sprintf("%d", rec.Interruptions)},
	}
	lines := []string{titleStyle.Render("Live session " + shortID(rec.SessionID))}
	lines = append(lines, renderRows(rows)...)
	if len(m.intensity) > 1 {
		lines = append(lines, "", labelStyle.Render("intensity ")+valueStyle.Render(stats.Sparkline(m.intensity)))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderFinal() string {
	rec := m.final
	lines := []string{titleStyle.Render("Session " + shortID(rec.SessionID) + " finalized")}
	rows := [][2]string{
		{"Duration", optSec(rec.DurationSec)},
		{"Detection", optRate(rec.DetectionRate)},
		{"Reps", fmt.Sprintf("%d", rec.TotalReps)},
		{"Form score", optInt(rec.FormConsistencyScore)},
	}
	if rec.QualityFlags != nil {
		rows = append(rows, [2]string{"Quality", rec.QualityFlags.Label()})
	}
	if rep := rec.Report; rep != nil {
		rows = append(rows,
			[2]string{"Scorecard", optFloat(rep.Summary.OverallSessionScorecard, 1)},
			[2]string{"Endurance", optFloat(rep.EffortEnduranceMetrics.EnduranceIndicator, 1)},
		)
		if curve := rep.EffortEnduranceMetrics.FatigueCurve; len(curve) > 1 {
			rows = append(rows, [2]string{"Fatigue", stats.Sparkline(curve)})
		}
		rows = append(rows, positionRows(rep.CorePositionalMetrics.PositionalControlTimes)...)
	}
	lines = append(lines, renderRows(rows)...)
	for _, e := range rec.Errors {
		lines = append(lines, warnStyle.Render("! "+e))
	}
	if m.saveErr != nil {
		lines = append(lines, warnStyle.Render("not saved: "+m.saveErr.Error()))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderFooter() string {
	keys := "i interrupt · q end · x discard"
	if m.final != nil {
		keys = "q quit"
	}
	segments := []string{keys}
	if m.lastScore != nil {
		segments = append(segments, fmt.Sprintf("Last scorecard %.1f", *m.lastScore))
	}
	if totals := m.mgr.Totals(); totals.Sessions > 0 {
		segments = append(segments, fmt.Sprintf("This run %d sessions · %d reps", totals.Sessions, totals.TotalReps))
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}

func renderRows(rows [][2]string) []string {
	width := 0
	for _, r := range rows {
		if len(r[0]) > width {
			width = len(r[0])
		}
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = labelStyle.Render(fmt.Sprintf("%-*s", width, r[0])) + "  " + valueStyle.Render(r[1])
	}
	return out
}

func positionRows(times map[string]*float64) [][2]string {
	names := make([]string, 0, len(times))
	for name := range times {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([][2]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, [2]string{name, optFloat(times[name], 1) + "%"})
	}
	return rows
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func optPct(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d%%", *v)
}

func optMs(v *int64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%dms", *v)
}

func optSec(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1fs", *v)
}

func optRate(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", *v*100)
}

func optFloat(v *float64, places int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.*f", places, *v)
}
