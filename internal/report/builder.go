// Package report builds the canonical SessionReport from either a finalized
// session record or a raw event log.
package report

import (
	"fmt"
	"math"

	"github.com/Sagar8169/improved-journey-mediaPose/internal/model"
	"github.com/Sagar8169/improved-journey-mediaPose/internal/stats"
)

const (
	historyTrendLen   = 10
	positionalMistake = "positional mistake"
)

// Pct returns 100*n/d clamped to [0,100], or nil when d <= 0 or either
// operand is not finite.
func Pct(n, d float64) *float64 {
	if !stats.Finite(n) || !stats.Finite(d) || d <= 0 {
		return nil
	}
	v := stats.Clamp(n/d*100, 0, 100)
	return &v
}

// ScrambleImpact classifies the scramble balance, or nil when no scramble
// was decided.
func ScrambleImpact(wins, losses int) *model.ScrambleOutcomeImpact {
	if wins+losses < 1 {
		return nil
	}
	impact := model.ScrambleDisadvantaged
	switch {
	case wins > losses:
		impact = model.ScrambleDominant
	case wins == losses:
		impact = model.ScrambleNeutral
	}
	return &impact
}

// FatigueCurve returns posture issues per minute for each segment, rounded
// to two decimals, or nil without segments.
func FatigueCurve(segments []model.SegmentSummary) []float64 {
	if len(segments) == 0 {
		return nil
	}
	out := make([]float64, len(segments))
	for i, seg := range segments {
		minutes := float64(seg.DurationMs()) / 60000
		out[i] = stats.Round(float64(seg.PostureIssues)/math.Max(1, minutes), 2)
	}
	return out
}

// EnduranceIndicator compares the first and last fatigue points. Positive
// means fewer issues per minute late in the session.
func EnduranceIndicator(curve []float64) *float64 {
	if len(curve) < 2 {
		return nil
	}
	first, last := curve[0], curve[len(curve)-1]
	v := stats.Round((first-last)/math.Max(1, first)*100, 1)
	return &v
}

// RecoveryTime returns the mean gap in seconds between consecutive
// segments, or nil with fewer than two segments.
func RecoveryTime(segments []model.SegmentSummary) *float64 {
	if len(segments) < 2 {
		return nil
	}
	var sum float64
	for i := 1; i < len(segments); i++ {
		sum += float64(segments[i].TStart - segments[i-1].TEnd)
	}
	return seconds(sum / float64(len(segments)-1))
}

// OverallScorecard weighs consistency, intensity and posture issues. Missing
// inputs count as zero.
func OverallScorecard(consistency, intensity *int, postureIssues int) float64 {
	a, b := 0.0, 0.0
	if consistency != nil {
		a = float64(*consistency)
	}
	if intensity != nil {
		b = float64(*intensity)
	}
	c := math.Max(0, 100-float64(postureIssues))
	return stats.Round(0.5*a+0.3*b+0.2*c, 1)
}

// guarded runs fn and converts a panic into a tagged entry on errs, leaving
// the zero value as the result.
func guarded[T any](errs *[]string, tag string, fn func() T) (out T) {
	defer func() {
		if r := recover(); r != nil {
			*errs = append(*errs, fmt.Sprintf("%s: %v", tag, r))
			var zero T
			out = zero
		}
	}()
	return fn()
}

func seconds(ms float64) *float64 {
	if !stats.Finite(ms) {
		return nil
	}
	v := stats.Round(ms/1000, 3)
	return &v
}

func ptr[T any](v T) *T {
	return &v
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func roundPtr(p *float64, places int) *float64 {
	if p == nil {
		return nil
	}
	v := stats.Round(*p, places)
	return &v
}
