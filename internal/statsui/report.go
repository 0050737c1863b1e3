package statsui

import (
	"context"

	"gonum.org/v1/gonum/stat"

	"github.com/Sagar8169/improved-journey-mediaPose/internal/model"
	"github.com/Sagar8169/improved-journey-mediaPose/internal/stats"
)

// Source is the read side of the session store.
type Source interface {
	ListSessions(ctx context.Context, cfg model.StatsConfig) ([]model.SessionAggregate, error)
	ListSegmentsForSessions(ctx context.Context, sessionIDs []string) (map[string][]model.SegmentSummary, error)
	GetSession(ctx context.Context, sessionID string) (*model.SessionRecord, error)
}

// Report contains aggregated history for a filtered set of sessions.
type Report struct {
	Sessions []model.SessionAggregate
	Segments map[string][]model.SegmentSummary

	TotalReps        int
	TotalDurationMs  int64
	PostureIssues    int
	AvgDetectionRate *float64

	// Scorecards holds the scorecard of every scored session, oldest first.
	Scorecards      []float64
	AvgScorecard    *float64
	ScorecardStdDev *float64
	BestScorecard   *float64
}

// BuildReport loads session aggregates and their segments for cfg.
func BuildReport(ctx context.Context, src Source, cfg model.StatsConfig) (Report, error) {
	sessions, err := src.ListSessions(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	report := Report{Sessions: sessions, Segments: map[string][]model.SegmentSummary{}}
	if len(sessions) == 0 {
		return report, nil
	}
	segments, err := src.ListSegmentsForSessions(ctx, sessionIDs(sessions))
	if err != nil {
		return Report{}, err
	}
	report.Segments = segments

	rates := make([]float64, 0, len(sessions))
	for _, s := range sessions {
		report.TotalReps += s.TotalReps
		report.TotalDurationMs += s.DurationMs
		rates = append(rates, s.DetectionRate)
		if s.Scorecard != nil {
			report.Scorecards = append(report.Scorecards, *s.Scorecard)
			if report.BestScorecard == nil || *s.Scorecard > *report.BestScorecard {
				best := *s.Scorecard
				report.BestScorecard = &best
			}
		}
		for _, seg := range segments[s.SessionID] {
			report.PostureIssues += seg.PostureIssues
		}
	}
	avgRate := stats.Round(stat.Mean(rates, nil), 4)
	report.AvgDetectionRate = &avgRate
	if len(report.Scorecards) > 0 {
		avg := stats.Round(stat.Mean(report.Scorecards, nil), 2)
		report.AvgScorecard = &avg
	}
	if len(report.Scorecards) > 1 {
		sd := stats.Round(stat.StdDev(report.Scorecards, nil), 2)
		report.ScorecardStdDev = &sd
	}
	return report, nil
}

func sessionIDs(sessions []model.SessionAggregate) []string {
	ids := make([]string, len(sessions))
	for i, s := range sessions {
		ids[i] = s.SessionID
	}
	return ids
}
