package statsui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Sagar8169/improved-journey-mediaPose/internal/model"
	"github.com/Sagar8169/improved-journey-mediaPose/internal/stats"
)

const dash = "-"

// RenderSessionDetail formats a stored session and its report as plain text
// lines fitted to width. A non-positive width disables truncation.
func RenderSessionDetail(rec *model.SessionRecord, width int) string {
	if rec == nil {
		return "No session selected."
	}
	started := time.UnixMilli(rec.StartTs).Local().Format("2006-01-02 15:04")
	user := rec.UserID
	if user == "" {
		user = "anonymous"
	}
	lines := []string{
		truncateLine(fmt.Sprintf("Session %s  user=%s  started %s", rec.SessionID, user, started), width),
		"",
	}

	quality := dash
	if rec.QualityFlags != nil {
		quality = rec.QualityFlags.Label()
	}
	overview := [][]string{
		{"Duration", fmtSeconds(rec.DurationSec)},
		{"Frames", strconv.Itoa(rec.FrameCount)},
		{"Detection", fmtRate(rec.DetectionRate)},
		{"Reps", repsSummary(rec)},
		{"Max streak", strconv.Itoa(rec.MaxRepStreak)},
		{"Form score", fmtInt(rec.FormConsistencyScore)},
		{"Quality", quality},
		{"Interruptions", strconv.Itoa(rec.Interruptions)},
		{"Posture issues", strconv.Itoa(rec.PostureIssues)},
		{"Shoulder sym", fmtSpread(rec.ShoulderSym.RunningStat)},
		{"Knee sym", fmtSpread(rec.KneeSym.RunningStat)},
	}
	lines = append(lines, stats.FormatTable(nil, overview, nil, width)...)

	if r := rec.Report; r != nil {
		lines = append(lines, "", "Report")
		effort := r.EffortEnduranceMetrics
		summary := [][]string{
			{"Scorecard", fmtFloat(r.Summary.OverallSessionScorecard, 1)},
			{"Intensity", fmtInt(effort.RollingIntensityScore)},
			{"Endurance", fmtPct(effort.EnduranceIndicator)},
			{"Recovery", fmtSeconds(effort.RecoveryTimeBetweenRounds)},
			{"Reaction", fmtSeconds(r.Summary.ReactionSpeed)},
			{"Consistency", fmtInt(r.ConsistencyTrends.SessionConsistencyRating)},
			{"Variety", fmtInt(r.ConsistencyTrends.TechnicalVarietyIndex)},
		}
		if len(effort.FatigueCurve) > 0 {
			summary = append(summary, []string{"Fatigue", stats.Sparkline(effort.FatigueCurve)})
		}
		if len(r.Summary.HistoricalPerformanceTrend) > 0 {
			summary = append(summary, []string{"Trend", stats.Sparkline(r.Summary.HistoricalPerformanceTrend)})
		}
		lines = append(lines, stats.FormatTable(nil, summary, nil, width)...)

		if rows := positionTableRows(r); len(rows) > 0 {
			lines = append(lines, "")
			lines = append(lines, stats.FormatTable(
				[]string{"Position", "Control", "Win/Loss"},
				rows,
				map[int]bool{1: true, 2: true},
				width,
			)...)
		}
	}

	if len(rec.Segments) > 0 {
		rows := make([][]string, 0, len(rec.Segments))
		for i, seg := range rec.Segments {
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				fmt.Sprintf("%.1f", float64(seg.TStart-rec.StartTs)/1000),
				fmt.Sprintf("%.1f", float64(seg.DurationMs())/1000),
				strconv.Itoa(seg.Reps),
				strconv.Itoa(seg.PostureIssues),
			})
		}
		lines = append(lines, "")
		lines = append(lines, stats.FormatTable(
			[]string{"#", "Start (s)", "Length (s)", "Reps", "Issues"},
			rows,
			map[int]bool{0: true, 1: true, 2: true, 3: true, 4: true},
			width,
		)...)
	}

	if len(rec.Errors) > 0 {
		lines = append(lines, "", "Errors")
		for _, e := range rec.Errors {
			lines = append(lines, truncateLine("  "+e, width))
		}
	}
	return strings.Join(lines, "\n")
}

func positionTableRows(r *model.SessionReport) [][]string {
	names := map[string]struct{}{}
	for name := range r.CorePositionalMetrics.PositionalControlTimes {
		names[name] = struct{}{}
	}
	for name := range r.Summary.WinLossRatioByPosition {
		names[name] = struct{}{}
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)
	rows := make([][]string, 0, len(sorted))
	for _, name := range sorted {
		ratio := dash
		if v, ok := r.Summary.WinLossRatioByPosition[name]; ok {
			ratio = strconv.FormatFloat(v, 'f', 2, 64)
		}
		rows = append(rows, []string{name, fmtPct(r.CorePositionalMetrics.PositionalControlTimes[name]), ratio})
	}
	return rows
}

func repsSummary(rec *model.SessionRecord) string {
	if len(rec.RepsByMode) == 0 {
		return strconv.Itoa(rec.TotalReps)
	}
	modes := make([]string, 0, len(rec.RepsByMode))
	for mode := range rec.RepsByMode {
		modes = append(modes, mode)
	}
	sort.Strings(modes)
	parts := make([]string, 0, len(modes))
	for _, mode := range modes {
		parts = append(parts, fmt.Sprintf("%s %d", mode, rec.RepsByMode[mode]))
	}
	return fmt.Sprintf("%d (%s)", rec.TotalReps, strings.Join(parts, ", "))
}

func fmtInt(v *int) string {
	if v == nil {
		return dash
	}
	return strconv.Itoa(*v)
}

func fmtFloat(v *float64, places int) string {
	if v == nil {
		return dash
	}
	return strconv.FormatFloat(*v, 'f', places, 64)
}

// fmtSpread renders mean ± sample standard deviation.
func fmtSpread(s stats.RunningStat) string {
	if s.Count == 0 {
		return dash
	}
	return fmt.Sprintf("%.1f ± %.1f", s.Mean, s.StdDev())
}

func fmtPct(v *float64) string {
	if v == nil {
		return dash
	}
	return fmt.Sprintf("%.1f%%", *v)
}

// fmtRate renders a 0..1 fraction as a percentage.
func fmtRate(v *float64) string {
	if v == nil {
		return dash
	}
	return fmt.Sprintf("%.1f%%", *v*100)
}

func fmtSeconds(v *float64) string {
	if v == nil {
		return dash
	}
	return fmt.Sprintf("%.1fs", *v)
}

func fmtDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
