package report

import (
	"github.com/Sagar8169/improved-journey-mediaPose/internal/model"
	"github.com/Sagar8169/improved-journey-mediaPose/internal/stats"
)

// BuildSessionReport derives the report from a session record. Counters
// are reported only once the record has ingested frames; before that every
// leaf is null. A sub-metric that fails becomes null and its failure is
// appended to rec.Errors; the rest of the report is still built.
func BuildSessionReport(rec *model.SessionRecord, history []model.SessionRecord) model.SessionReport {
	var out model.SessionReport
	out.CorePositionalMetrics.PositionalControlTimes = map[string]*float64{}
	if rec == nil {
		return out
	}
	if rec.Errors == nil {
		rec.Errors = []string{}
	}
	errs := &rec.Errors
	g := rec.Grappling
	hasData := rec.HasFrames()
	count := func(v int) *int {
		if !hasData {
			return nil
		}
		return ptr(v)
	}

	durMs := rec.DurationMs()
	for pos, ms := range g.ControlTimeByPos {
		if durMs <= 0 {
			out.CorePositionalMetrics.PositionalControlTimes[pos] = nil
			continue
		}
		out.CorePositionalMetrics.PositionalControlTimes[pos] = Pct(float64(ms), float64(durMs))
	}
	out.CorePositionalMetrics.Escapes = model.EscapeMetrics{
		Attempts:       count(g.Escape.Attempts),
		SuccessPercent: Pct(float64(g.Escape.Successes), float64(g.Escape.Attempts)),
	}
	out.CorePositionalMetrics.Reversals = model.ReversalMetrics{
		Count:          count(g.Transition.Attempts),
		SuccessPercent: Pct(float64(g.Transition.Successes), float64(g.Transition.Attempts)),
	}

	// Guard figures are estimates derived from sweep and pass counters.
	guardAttempts := float64(g.Sweep.Attempts + g.Pass.Attempts)
	out.GuardMetrics = model.GuardMetrics{
		GuardRetentionPercent:      Pct(guardAttempts-float64(g.Pass.Successes), guardAttempts),
		SweepAttempts:              count(g.Sweep.Attempts),
		SweepSuccessPercent:        Pct(float64(g.Sweep.Successes), float64(g.Sweep.Attempts)),
		PassingAttempts:            count(g.Pass.Attempts),
		GuardPassPreventionPercent: Pct(float64(g.Pass.Attempts-g.Pass.Successes), float64(g.Pass.Attempts)),
	}

	out.TransitionMetrics.TransitionEfficiencyPercent = Pct(float64(g.Transition.Successes), float64(g.Transition.Attempts))
	// Failed transitions and lost guard are not tracked separately yet.
	out.TransitionMetrics.ErrorCounts = model.ErrorCounts{
		FailedTransition:  count(0),
		LostGuard:         count(0),
		PositionalMistake: count(rec.PostureIssues),
	}

	out.SubmissionMetrics = model.SubmissionMetrics{
		SubmissionAttempts:       count(g.Submission.Attempts),
		SubmissionSuccessPercent: Pct(float64(g.Submission.Successes), float64(g.Submission.Attempts)),
		// Without chain detection, attempts stand in for chains.
		SubmissionChains: count(g.Submission.Attempts),
	}

	if g.Scramble.Attempts > 0 {
		out.ScrambleMetrics.ScrambleFrequency = ptr(g.Scramble.Attempts)
	}
	out.ScrambleMetrics.ScrambleWinPercent = Pct(float64(g.Scramble.Wins), float64(g.Scramble.Attempts))
	out.ScrambleMetrics.ScrambleOutcomeImpact = ScrambleImpact(g.Scramble.Wins, g.Scramble.Losses)

	effort := &out.EffortEnduranceMetrics
	effort.RollingIntensityScore = copyPtr(g.IntensityScore)
	effort.FatigueCurve = guarded(errs, "fatigue_curve", func() []float64 {
		return FatigueCurve(rec.Segments)
	})
	effort.EnduranceIndicator = guarded(errs, "endurance_indicator", func() *float64 {
		return EnduranceIndicator(effort.FatigueCurve)
	})
	effort.RecoveryTimeBetweenRounds = guarded(errs, "recovery_time", func() *float64 {
		return RecoveryTime(rec.Segments)
	})

	trends := &out.ConsistencyTrends
	trends.SessionConsistencyRating = copyPtr(g.ConsistencyRating)
	if trends.SessionConsistencyRating == nil {
		trends.SessionConsistencyRating = copyPtr(rec.FormConsistencyScore)
	}
	trends.TechnicalVarietyIndex = copyPtr(g.TechnicalVariety)
	if trends.TechnicalVarietyIndex == nil && len(g.ControlTimeByPos) > 0 {
		trends.TechnicalVarietyIndex = ptr(len(g.ControlTimeByPos))
	}
	trends.PositionalErrorTrends = guarded(errs, "positional_error_trends", func() []string {
		for _, seg := range rec.Segments {
			if seg.PostureIssues > 0 {
				return []string{positionalMistake}
			}
		}
		return nil
	})

	summary := &out.Summary
	if hasData {
		summary.OverallSessionScorecard = guarded(errs, "overall_score", func() *float64 {
			return ptr(OverallScorecard(trends.SessionConsistencyRating, effort.RollingIntensityScore, rec.PostureIssues))
		})
	}
	summary.HistoricalPerformanceTrend = guarded(errs, "historical_trend", func() []float64 {
		return historicalTrend(history)
	})
	summary.WinLossRatioByPosition = guarded(errs, "win_loss_by_pos", func() map[string]float64 {
		return winLossRatios(g.WinLossByPosition)
	})
	if g.ReactionTimeMs != nil {
		summary.ReactionSpeed = seconds(float64(*g.ReactionTimeMs))
	}
	return out
}

// historicalTrend lists the scorecards of the most recent sessions, falling
// back to their form score and then zero.
func historicalTrend(history []model.SessionRecord) []float64 {
	if len(history) == 0 {
		return nil
	}
	if len(history) > historyTrendLen {
		history = history[:historyTrendLen]
	}
	out := make([]float64, len(history))
	for i, h := range history {
		switch {
		case h.Report != nil && h.Report.Summary.OverallSessionScorecard != nil:
			out[i] = *h.Report.Summary.OverallSessionScorecard
		case h.FormConsistencyScore != nil:
			out[i] = float64(*h.FormConsistencyScore)
		}
	}
	return out
}

func winLossRatios(byPos map[string]model.WinLoss) map[string]float64 {
	if len(byPos) == 0 {
		return nil
	}
	out := make(map[string]float64, len(byPos))
	for pos, wl := range byPos {
		denom := wl.Wins + wl.Losses
		if denom == 0 {
			out[pos] = 0
			continue
		}
		out[pos] = stats.Round(float64(wl.Wins)/float64(denom), 2)
	}
	return out
}
