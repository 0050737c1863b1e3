package report

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/Sagar8169/improved-journey-mediaPose/internal/model"
)

func TestPctTotality(t *testing.T) {
	cases := []struct {
		n, d float64
		nil_ bool
	}{
		{1, 0, true},
		{1, -5, true},
		{math.NaN(), 4, true},
		{1, math.Inf(1), true},
		{math.Inf(-1), 4, true},
		{0, 4, false},
		{3, 4, false},
		{9, 4, false},
		{-3, 4, false},
	}
	for _, tc := range cases {
		got := Pct(tc.n, tc.d)
		if tc.nil_ {
			require.Nil(t, got, "pct(%v, %v)", tc.n, tc.d)
			continue
		}
		require.NotNil(t, got, "pct(%v, %v)", tc.n, tc.d)
		require.GreaterOrEqual(t, *got, 0.0)
		require.LessOrEqual(t, *got, 100.0)
	}
	require.InDelta(t, 75.0, *Pct(3, 4), 1e-12)
	require.Equal(t, 100.0, *Pct(9, 4))
}

func TestBuildSessionReportEmptyRecord(t *testing.T) {
	rec := model.NewSessionRecord("s1", "u1", 1_700_000_000_000, 1, false)
	rep := BuildSessionReport(rec, nil)

	raw, err := json.Marshal(rep)
	require.NoError(t, err)
	var tree map[string]any
	require.NoError(t, json.Unmarshal(raw, &tree))
	assertNoValues(t, "", tree)
	require.Empty(t, rec.Errors)
}

// assertNoValues fails on any leaf that is not null or an empty container.
func assertNoValues(t *testing.T, path string, v any) {
	t.Helper()
	switch node := v.(type) {
	case nil:
	case map[string]any:
		for k, child := range node {
			assertNoValues(t, path+"."+k, child)
		}
	case []any:
		if len(node) > 0 {
			t.Fatalf("%s: expected empty list, got %v", path, node)
		}
	default:
		t.Fatalf("%s: expected null, got %v", path, node)
	}
}

func TestBuildReportFromEventsEmpty(t *testing.T) {
	rep := BuildReportFromEvents(nil, 0, 10_000)
	raw, err := json.Marshal(rep)
	require.NoError(t, err)
	var tree map[string]any
	require.NoError(t, json.Unmarshal(raw, &tree))
	assertNoValues(t, "", tree)
}

func finishedRecord() *model.SessionRecord {
	rec := model.NewSessionRecord("s1", "u1", 1_000_000, 1, false)
	end := int64(1_000_000 + 90_000)
	rec.EndTs = &end
	rec.FrameCount = 2700
	rec.DetectionFrames = 2700
	rec.PostureIssues = 6
	rec.Segments = []model.SegmentSummary{
		{TStart: 1_000_000, TEnd: 1_030_000, PostureIssues: 4},
		{TStart: 1_030_000, TEnd: 1_060_000, PostureIssues: 2},
		{TStart: 1_062_000, TEnd: 1_090_000, PostureIssues: 0},
	}
	return rec
}

func TestFrameDerivedMetrics(t *testing.T) {
	rec := finishedRecord()
	rating, intensity := 80, 50
	rec.Grappling.ConsistencyRating = &rating
	rec.Grappling.IntensityScore = &intensity

	rep := BuildSessionReport(rec, nil)

	// Half-minute segments are floored to one minute.
	require.Equal(t, []float64{4, 2, 0}, rep.EffortEnduranceMetrics.FatigueCurve)
	require.NotNil(t, rep.EffortEnduranceMetrics.EnduranceIndicator)
	require.Equal(t, 100.0, *rep.EffortEnduranceMetrics.EnduranceIndicator)
	require.NotNil(t, rep.EffortEnduranceMetrics.RecoveryTimeBetweenRounds)
	require.Equal(t, 1.0, *rep.EffortEnduranceMetrics.RecoveryTimeBetweenRounds)

	// 0.5*80 + 0.3*50 + 0.2*94
	require.NotNil(t, rep.Summary.OverallSessionScorecard)
	require.InDelta(t, 73.8, *rep.Summary.OverallSessionScorecard, 1e-9)
	require.Equal(t, []string{"positional mistake"}, rep.ConsistencyTrends.PositionalErrorTrends)

	ec := rep.TransitionMetrics.ErrorCounts
	require.Equal(t, 0, *ec.FailedTransition)
	require.Equal(t, 0, *ec.LostGuard)
	require.Equal(t, 6, *ec.PositionalMistake)
	require.Empty(t, rec.Errors)
}

func TestGuardEstimates(t *testing.T) {
	rec := finishedRecord()
	rec.Grappling.Sweep = model.AttemptStats{Attempts: 2, Successes: 1}
	rec.Grappling.Pass = model.AttemptStats{Attempts: 2, Successes: 1}
	rec.Grappling.Transition = model.AttemptStats{Attempts: 4, Successes: 3}
	rec.Grappling.ControlTimeByPos["mount"] = 45_000

	rep := BuildSessionReport(rec, nil)

	require.Equal(t, 75.0, *rep.GuardMetrics.GuardRetentionPercent)
	require.Equal(t, 50.0, *rep.GuardMetrics.GuardPassPreventionPercent)
	require.Equal(t, 75.0, *rep.TransitionMetrics.TransitionEfficiencyPercent)
	require.Equal(t, 50.0, *rep.CorePositionalMetrics.PositionalControlTimes["mount"])
	require.Nil(t, rep.SubmissionMetrics.SubmissionSuccessPercent)
	require.Equal(t, 0, *rep.SubmissionMetrics.SubmissionAttempts)
}

func TestScorecardWithMissingInputs(t *testing.T) {
	rec := finishedRecord()
	rec.PostureIssues = 150
	rep := BuildSessionReport(rec, nil)
	require.NotNil(t, rep.Summary.OverallSessionScorecard)
	require.Equal(t, 0.0, *rep.Summary.OverallSessionScorecard)
}

func TestHistoricalTrend(t *testing.T) {
	score := 61.5
	form := 70
	history := []model.SessionRecord{
		{Report: &model.SessionReport{Summary: model.ReportSummary{OverallSessionScorecard: &score}}},
		{FormConsistencyScore: &form},
		{},
	}
	for i := 0; i < 10; i++ {
		history = append(history, model.SessionRecord{})
	}
	rep := BuildSessionReport(finishedRecord(), history)
	require.Len(t, rep.Summary.HistoricalPerformanceTrend, 10)
	require.Equal(t, []float64{61.5, 70, 0}, rep.Summary.HistoricalPerformanceTrend[:3])
}

func TestWinLossRatio(t *testing.T) {
	rec := finishedRecord()
	rec.Grappling.WinLossByPosition["mount"] = model.WinLoss{Wins: 2, Losses: 1}
	rec.Grappling.WinLossByPosition["turtle"] = model.WinLoss{}
	rep := BuildSessionReport(rec, nil)
	want := map[string]float64{"mount": 0.67, "turtle": 0}
	if diff := cmp.Diff(want, rep.Summary.WinLossRatioByPosition); diff != "" {
		t.Fatalf("win/loss mismatch (-want +got):\n%s", diff)
	}
}

func TestGuardedRecordsFailure(t *testing.T) {
	var errs []string
	got := guarded(&errs, "fatigue_curve", func() []float64 {
		var segs []model.SegmentSummary
		_ = segs[3]
		return []float64{1}
	})
	require.Nil(t, got)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0], "fatigue_curve: ")

	ok := guarded(&errs, "overall_score", func() int { return 7 })
	require.Equal(t, 7, ok)
	require.Len(t, errs, 1)
}

func TestScrambleImpact(t *testing.T) {
	require.Nil(t, ScrambleImpact(0, 0))
	require.Equal(t, model.ScrambleDominant, *ScrambleImpact(2, 1))
	require.Equal(t, model.ScrambleNeutral, *ScrambleImpact(1, 1))
	require.Equal(t, model.ScrambleDisadvantaged, *ScrambleImpact(0, 1))
}

func TestReportFromEventsGuardClosed(t *testing.T) {
	events := []model.RawEvent{
		{Ts: 0, Kind: model.KindPositionStart, Position: model.PositionGuardClosed},
		{Ts: 5000, Kind: model.KindPositionEnd, Position: model.PositionGuardClosed},
	}
	rep := BuildReportFromEvents(events, 0, 10_000)
	require.Equal(t, 50.0, *rep.CorePositionalMetrics.PositionalControlTimes[model.PositionGuardClosed])
	require.Equal(t, 50.0, *rep.GuardMetrics.GuardRetentionPercent)
}

func TestReportFromEventsScramble(t *testing.T) {
	events := []model.RawEvent{
		{Ts: 1, Kind: model.KindScrambleStart},
		{Ts: 2, Kind: model.KindScrambleEnd, Winner: model.WinnerSelf},
		{Ts: 3, Kind: model.KindScrambleStart},
		{Ts: 4, Kind: model.KindScrambleEnd, Winner: model.WinnerSelf},
		{Ts: 5, Kind: model.KindScrambleStart},
		{Ts: 6, Kind: model.KindScrambleEnd, Winner: model.WinnerOpponent},
	}
	rep := BuildReportFromEvents(events, 0, 10)
	sm := rep.ScrambleMetrics
	require.Equal(t, 3, *sm.ScrambleFrequency)
	require.Equal(t, 66.67, *sm.ScrambleWinPercent)
	require.Equal(t, model.ScrambleDominant, *sm.ScrambleOutcomeImpact)

	require.Nil(t, rep.EffortEnduranceMetrics.FatigueCurve)
	require.Nil(t, rep.EffortEnduranceMetrics.EnduranceIndicator)
	require.Nil(t, rep.ConsistencyTrends.SessionConsistencyRating)
	require.Nil(t, rep.Summary.HistoricalPerformanceTrend)
	require.Nil(t, rep.Summary.WinLossRatioByPosition)
}

func TestReportFromEventsIntensityAndReaction(t *testing.T) {
	v1, v2 := 0.2, 0.5
	events := []model.RawEvent{
		{Ts: 10, Kind: model.KindIntensitySample, Value: &v1},
		{Ts: 20, Kind: model.KindIntensitySample, Value: &v2},
		{Ts: 100, Kind: model.KindReactionSignal, ID: "a"},
		{Ts: 400, Kind: model.KindReactionMove, ID: "a"},
		{Ts: 500, Kind: model.KindTransition, Outcome: model.OutcomeSuccess},
		{Ts: 600, Kind: model.KindTransition, Outcome: model.OutcomeFail},
	}
	rep := BuildReportFromEvents(events, 0, 1000)
	require.Equal(t, 35, *rep.EffortEnduranceMetrics.RollingIntensityScore)
	require.Equal(t, 0.3, *rep.Summary.ReactionSpeed)
	require.Equal(t, 50.0, *rep.TransitionMetrics.TransitionEfficiencyPercent)
	require.Equal(t, 1, *rep.TransitionMetrics.ErrorCounts.FailedTransition)
	require.Equal(t, 0, *rep.TransitionMetrics.ErrorCounts.LostGuard)
	require.Equal(t, 0, *rep.TransitionMetrics.ErrorCounts.PositionalMistake)
}

func TestReportFromEventsErrorCountsWithoutTransitions(t *testing.T) {
	events := []model.RawEvent{
		{Ts: 0, Kind: model.KindPositionStart, Position: model.PositionMount},
	}
	ec := BuildReportFromEvents(events, 0, 1000).TransitionMetrics.ErrorCounts
	require.Equal(t, 0, *ec.FailedTransition)
	require.Equal(t, 0, *ec.LostGuard)
	require.Equal(t, 0, *ec.PositionalMistake)
}
