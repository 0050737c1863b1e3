package report

import (
	"github.com/Sagar8169/improved-journey-mediaPose/internal/kpi"
	"github.com/Sagar8169/improved-journey-mediaPose/internal/model"
	"github.com/Sagar8169/improved-journey-mediaPose/internal/stats"
)

// BuildReportFromEvents derives the report from a discrete event log over
// the window [startAt, endAt] in unix ms. Fields that events alone cannot
// support (fatigue, endurance, consistency, history, win/loss by position)
// are always null.
func BuildReportFromEvents(events []model.RawEvent, startAt, endAt int64) model.SessionReport {
	ctx := kpi.Context{StartAt: startAt, EndAt: endAt}
	control := kpi.ControlTimePctByPosition(events, ctx)
	submission := kpi.Attempts(events, model.KindSubmissionAttempt, model.KindSubmissionResult)
	escape := kpi.Attempts(events, model.KindEscapeAttempt, model.KindEscapeResult)
	sweep := kpi.Attempts(events, model.KindSweepAttempt, model.KindSweepResult)
	pass := kpi.Attempts(events, model.KindPassAttempt, model.KindPassResult)
	scramble := kpi.Scramble(events)
	transitions := kpi.Transitions(events)

	var out model.SessionReport

	positional := make(map[string]*float64, len(control))
	for pos, pct := range control {
		positional[pos] = ptr(pct)
	}
	out.CorePositionalMetrics = model.CorePositionalMetrics{
		PositionalControlTimes: positional,
		Escapes: model.EscapeMetrics{
			Attempts:       nonZero(escape.Attempts),
			SuccessPercent: rate(escape.Successes, escape.Attempts),
		},
		Reversals: model.ReversalMetrics{
			Count:          nonZero(transitions.Attempts),
			SuccessPercent: rate(transitions.Successes, transitions.Attempts),
		},
	}

	out.GuardMetrics = model.GuardMetrics{
		GuardRetentionPercent:      guardShare(control),
		SweepAttempts:              nonZero(sweep.Attempts),
		SweepSuccessPercent:        rate(sweep.Successes, sweep.Attempts),
		PassingAttempts:            nonZero(pass.Attempts),
		GuardPassPreventionPercent: rate(pass.Attempts-pass.Successes, pass.Attempts),
	}

	out.TransitionMetrics.TransitionEfficiencyPercent = rate(transitions.Successes, transitions.Attempts)
	if len(events) > 0 {
		out.TransitionMetrics.ErrorCounts = model.ErrorCounts{
			FailedTransition:  ptr(max(0, transitions.Attempts-transitions.Successes)),
			LostGuard:         ptr(0),
			PositionalMistake: ptr(0),
		}
	}

	out.SubmissionMetrics.SubmissionAttempts = nonZero(submission.Attempts)
	out.SubmissionMetrics.SubmissionSuccessPercent = rate(submission.Successes, submission.Attempts)

	out.ScrambleMetrics = model.ScrambleMetrics{
		ScrambleFrequency:     nonZero(scramble.Attempts),
		ScrambleWinPercent:    rate(scramble.Wins, scramble.Attempts),
		ScrambleOutcomeImpact: ScrambleImpact(scramble.Wins, scramble.Losses),
	}

	if avg, ok := kpi.AvgIntensity(events); ok {
		out.EffortEnduranceMetrics.RollingIntensityScore = ptr(avg)
	}
	if avgMs, ok := kpi.ReactionAvg(events); ok {
		out.Summary.ReactionSpeed = seconds(float64(avgMs))
	}
	return out
}

// rate is Pct over counts, rounded to two decimals.
func rate(n, d int) *float64 {
	return roundPtr(Pct(float64(n), float64(d)), 2)
}

func nonZero(v int) *int {
	if v == 0 {
		return nil
	}
	return ptr(v)
}

// guardShare sums the control percentages of guard positions, or nil when
// no guard position was seen.
func guardShare(control map[string]float64) *float64 {
	var sum float64
	seen := false
	for _, pos := range model.GuardPositions {
		if pct, ok := control[pos]; ok {
			sum += pct
			seen = true
		}
	}
	if !seen {
		return nil
	}
	return ptr(stats.Round(stats.Clamp(sum, 0, 100), 2))
}
