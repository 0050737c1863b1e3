package tracker

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Sagar8169/improved-journey-mediaPose/internal/model"
	"github.com/Sagar8169/improved-journey-mediaPose/internal/stats"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTracker(t *testing.T) (*Tracker, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	tr, err := New(Options{
		UserID:          "athlete",
		ModelComplexity: 1,
		Clock:           clock.Now,
		NewID:           func() string { return "session-1" },
	})
	require.NoError(t, err)
	return tr, clock
}

func f(v float64) *float64 { return &v }

func TestNewRejectsComplexity(t *testing.T) {
	_, err := New(Options{ModelComplexity: 3})
	require.ErrorIs(t, err, ErrInvalidModelComplexity)
	_, err = New(Options{ModelComplexity: -1})
	require.ErrorIs(t, err, ErrInvalidModelComplexity)
}

func TestNewStampsIdentity(t *testing.T) {
	tr, clock := newTracker(t)
	rec := tr.Record()
	require.Equal(t, "session-1", rec.SessionID)
	require.Equal(t, "athlete", rec.UserID)
	require.Equal(t, clock.now.UnixMilli(), rec.StartTs)
	require.Equal(t, model.SchemaVersion, rec.SchemaVersion)
	require.Nil(t, rec.SegActive)
}

func TestDetectionRate(t *testing.T) {
	tr, clock := newTracker(t)
	for i := 0; i < 100; i++ {
		require.NoError(t, tr.UpdateFrame(model.FrameUpdatePayload{HasPose: i < 80}))
		clock.Advance(100 * time.Millisecond)
	}
	rec := tr.Finalize(nil)
	require.Equal(t, 100, rec.FrameCount)
	require.Equal(t, 80, rec.DetectionFrames)
	require.InDelta(t, 0.8, *rec.DetectionRate, 1e-12)
	require.InDelta(t, 80.0, *rec.FocusScore, 1e-9)
}

func TestRepStreak(t *testing.T) {
	tr, clock := newTracker(t)
	for i := 0; i < 12; i++ {
		require.NoError(t, tr.UpdateFrame(model.FrameUpdatePayload{HasPose: true, RepIncrement: true, RepMode: "squat"}))
		clock.Advance(time.Second)
	}
	rec := tr.Record()
	require.Equal(t, 12, rec.TotalReps)
	require.Equal(t, 12, rec.RepsByMode["squat"])
	require.Equal(t, 12, rec.MaxRepStreak)

	tr.Interrupt()
	require.Equal(t, 0, rec.CurrentStreak)
	require.Equal(t, 1, rec.Interruptions)
	require.NoError(t, tr.UpdateFrame(model.FrameUpdatePayload{HasPose: true, RepIncrement: true, RepMode: "squat"}))
	require.Equal(t, 12, rec.MaxRepStreak)
	require.Equal(t, 1, rec.CurrentStreak)
}

func TestRepWithoutModeIsIgnored(t *testing.T) {
	tr, _ := newTracker(t)
	require.NoError(t, tr.UpdateFrame(model.FrameUpdatePayload{HasPose: true, RepIncrement: true}))
	require.Equal(t, 0, tr.Record().TotalReps)
}

func TestSegmentRollover(t *testing.T) {
	tr, clock := newTracker(t)
	// 30fps for exactly 90s, final frame at t=90000.
	for ms := 0; ms <= 90_000; ms += 33 {
		require.NoError(t, tr.UpdateFrame(model.FrameUpdatePayload{HasPose: true}))
		clock.Advance(33 * time.Millisecond)
	}
	rec := tr.Finalize(nil)
	require.InDelta(t, 3, len(rec.Segments), 1)
	for _, seg := range rec.Segments[:2] {
		require.InDelta(t, SegmentMS, seg.DurationMs(), 50)
	}
	require.Nil(t, rec.SegActive)
}

func TestShortTrailingSegmentDropped(t *testing.T) {
	tr, clock := newTracker(t)
	for i := 0; i < 31; i++ {
		require.NoError(t, tr.UpdateFrame(model.FrameUpdatePayload{HasPose: true}))
		clock.Advance(time.Second)
	}
	// the frame at 30s opened a fresh segment that is only 500ms old at finalize
	clock.Advance(-500 * time.Millisecond)
	rec := tr.Finalize(nil)
	require.Len(t, rec.Segments, 1)
}

func TestPostureIssuesPerSegment(t *testing.T) {
	tr, clock := newTracker(t)
	require.NoError(t, tr.UpdateFrame(model.FrameUpdatePayload{HasPose: true, PostureIssue: true, TorsoAngle: f(10)}))
	clock.Advance(10 * time.Second)
	require.NoError(t, tr.UpdateFrame(model.FrameUpdatePayload{HasPose: true, PostureIssue: true, TorsoAngle: f(20)}))
	clock.Advance(5 * time.Second)
	rec := tr.Finalize(nil)
	require.Equal(t, 2, rec.PostureIssues)
	require.Len(t, rec.Segments, 1)
	require.Equal(t, 2, rec.Segments[0].PostureIssues)
	require.InDelta(t, 15, *rec.Segments[0].AvgTorsoAngle, 1e-9)
}

func TestIntensityEMA(t *testing.T) {
	tr, _ := newTracker(t)
	require.NoError(t, tr.UpdateFrame(model.FrameUpdatePayload{HasPose: true, BBoxAreaPct: f(0.30)}))
	require.Equal(t, 0, *tr.Record().Grappling.IntensityScore)

	// delta 0.01 scales to 40, EMA moves a tenth of the way
	require.NoError(t, tr.UpdateFrame(model.FrameUpdatePayload{HasPose: true, BBoxAreaPct: f(0.31)}))
	require.InDelta(t, 4.0, tr.Record().IntensityEMA, 1e-9)
	require.Equal(t, 4, *tr.Record().Grappling.IntensityScore)

	// huge jumps clamp at 100 before smoothing
	require.NoError(t, tr.UpdateFrame(model.FrameUpdatePayload{HasPose: true, BBoxAreaPct: f(0.9)}))
	require.InDelta(t, 0.1*100+0.9*4.0, tr.Record().IntensityEMA, 1e-9)
}

func TestNoPoseFrameCountsOnly(t *testing.T) {
	tr, _ := newTracker(t)
	require.NoError(t, tr.UpdateFrame(model.FrameUpdatePayload{HasPose: false, ShoulderSym: f(5), PostureIssue: true, FPS: f(30)}))
	rec := tr.Record()
	require.Equal(t, 1, rec.FrameCount)
	require.Equal(t, 0, rec.DetectionFrames)
	require.Equal(t, 0, rec.PostureIssues)
	require.Equal(t, uint(0), rec.ShoulderSym.Count)
	require.Equal(t, 30.0, rec.FPSSum)
	require.Nil(t, rec.FirstPoseTs)
}

func TestSymmetryAndJoints(t *testing.T) {
	tr, _ := newTracker(t)
	for _, v := range []float64{4, 8, 6} {
		require.NoError(t, tr.UpdateFrame(model.FrameUpdatePayload{
			HasPose:     true,
			ShoulderSym: f(v),
			JointAngles: map[string]float64{"leftKnee": v * 10},
		}))
	}
	rec := tr.Record()
	require.Equal(t, 4.0, rec.ShoulderSym.Min)
	require.Equal(t, 8.0, rec.ShoulderSym.Max)
	require.InDelta(t, 6.0, rec.ShoulderSym.Mean, 1e-12)
	require.InDelta(t, 4.0, rec.ShoulderSym.Variance(), 1e-12)
	require.Equal(t, 80.0, rec.JointStats["leftKnee"].Max)
}

func TestNonFiniteMeasurementsAreIgnored(t *testing.T) {
	tr, clock := newTracker(t)
	nan, inf := math.NaN(), math.Inf(1)
	for i := 0; i < 20; i++ {
		p := model.FrameUpdatePayload{
			HasPose:     true,
			ShoulderSym: f(4),
			KneeSym:     f(2),
			BBoxAreaPct: f(30 + float64(i%3)),
			TorsoAngle:  f(10),
			JointAngles: map[string]float64{"leftKnee": 90},
			FPS:         f(30),
		}
		if i == 5 {
			p.ShoulderSym = &nan
			p.KneeSym = &inf
			p.BBoxAreaPct = &nan
			p.TorsoAngle = &inf
			p.VisibilityAvg = &nan
			p.FPS = &inf
			p.JointAngles = map[string]float64{"leftKnee": nan, "rightKnee": inf}
		}
		require.NoError(t, tr.UpdateFrame(p))
		clock.Advance(time.Second)
	}

	live := tr.CurrentKPIs()
	require.NotNil(t, live.IntensityScore)
	require.GreaterOrEqual(t, *live.IntensityScore, 0)
	require.LessOrEqual(t, *live.IntensityScore, 100)

	rec := tr.Finalize(nil)
	require.Equal(t, 20, rec.FrameCount)
	require.Equal(t, uint(19), rec.ShoulderSym.Count)
	require.NotContains(t, rec.JointStats, "rightKnee")
	require.Equal(t, 90.0, rec.JointStats["leftKnee"].Max)
	require.NotNil(t, rec.FormConsistencyScore)
	require.GreaterOrEqual(t, *rec.FormConsistencyScore, 0)
	require.LessOrEqual(t, *rec.FormConsistencyScore, 100)
	if score := rec.Report.Summary.OverallSessionScorecard; score != nil {
		require.GreaterOrEqual(t, *score, 0.0)
		require.LessOrEqual(t, *score, 100.0)
	}

	_, err := json.Marshal(rec)
	require.NoError(t, err)
}

func TestQualityFlags(t *testing.T) {
	tr, clock := newTracker(t)
	require.NoError(t, tr.UpdateFrame(model.FrameUpdatePayload{HasPose: true}))
	clock.Advance(5 * time.Second)
	rec := tr.Finalize(nil)
	require.InDelta(t, 5.0, *rec.DurationSec, 1e-9)
	require.True(t, rec.QualityFlags.Short)
	require.False(t, rec.QualityFlags.LowQuality)
	require.Equal(t, "short", rec.QualityFlags.Label())

	tr, clock = newTracker(t)
	for i := 0; i < 10; i++ {
		require.NoError(t, tr.UpdateFrame(model.FrameUpdatePayload{HasPose: i < 2}))
		clock.Advance(2 * time.Second)
	}
	rec = tr.Finalize(nil)
	require.InDelta(t, 0.2, *rec.DetectionRate, 1e-12)
	require.True(t, rec.QualityFlags.LowQuality)
	require.False(t, rec.QualityFlags.Short)
	require.Equal(t, "low", rec.QualityFlags.Label())
}

func TestFinalizeIsIdempotent(t *testing.T) {
	tr, clock := newTracker(t)
	for i := 0; i < 20; i++ {
		require.NoError(t, tr.UpdateFrame(model.FrameUpdatePayload{HasPose: true, ShoulderSym: f(float64(i))}))
		clock.Advance(time.Second)
	}
	first := tr.Finalize(nil)
	end := *first.EndTs
	score := *first.FormConsistencyScore
	report := first.Report

	clock.Advance(time.Minute)
	second := tr.Finalize(nil)
	require.Same(t, first, second)
	require.Equal(t, end, *second.EndTs)
	require.Equal(t, score, *second.FormConsistencyScore)
	require.Same(t, report, second.Report)
	require.True(t, tr.Record().Finalized)
}

func TestInputAfterFinalize(t *testing.T) {
	tr, _ := newTracker(t)
	require.NoError(t, tr.UpdateFrame(model.FrameUpdatePayload{HasPose: true}))
	rec := tr.Finalize(nil)

	err := tr.UpdateFrame(model.FrameUpdatePayload{HasPose: true})
	require.True(t, errors.Is(err, ErrFinalized))
	require.ErrorIs(t, tr.ApplyEvent(model.RawEvent{Kind: model.KindScrambleStart}), ErrFinalized)
	tr.Interrupt()
	require.Equal(t, 1, rec.FrameCount)
	require.Equal(t, 0, rec.Interruptions)
}

func TestFinalizeBuildsReport(t *testing.T) {
	tr, clock := newTracker(t)
	for i := 0; i < 40; i++ {
		require.NoError(t, tr.UpdateFrame(model.FrameUpdatePayload{HasPose: i%4 != 0, BBoxAreaPct: f(0.2 + float64(i%3)*0.01)}))
		clock.Advance(time.Second)
	}
	rec := tr.Finalize(nil)
	require.NotNil(t, rec.Report)
	require.Empty(t, rec.Errors)

	// 40s at 75% detection
	require.Equal(t, int64(30_000), rec.Grappling.ControlTimeByPos[model.ActiveControl])
	pct := rec.Report.CorePositionalMetrics.PositionalControlTimes[model.ActiveControl]
	require.NotNil(t, pct)
	require.InDelta(t, 75.0, *pct, 1e-9)
	require.NotNil(t, rec.Report.Summary.OverallSessionScorecard)
	require.Equal(t, *rec.FormConsistencyScore, *rec.Report.ConsistencyTrends.SessionConsistencyRating)
	last := rec.Grappling.ControlTimeline[len(rec.Grappling.ControlTimeline)-1]
	require.Equal(t, model.ActiveControl, last.Name)
}

func TestFormConsistencyScore(t *testing.T) {
	var steady stats.RunningStat
	require.Equal(t, 100, FormConsistencyScore(steady, steady, 0, 60, 1))

	var noisy stats.RunningStat
	for _, v := range []float64{0, 40, 0, 40} {
		noisy.Update(v)
	}
	// variance 533.3 saturates the symmetry term; 5 issues over max(10, 5)s
	// halves the posture term
	require.Equal(t, 39, FormConsistencyScore(noisy, steady, 5, 5, 0.8))
}

func TestCurrentKPIs(t *testing.T) {
	tr, clock := newTracker(t)
	clock.Advance(500 * time.Millisecond)
	require.NoError(t, tr.UpdateFrame(model.FrameUpdatePayload{HasPose: true}))
	clock.Advance(time.Second)
	require.NoError(t, tr.UpdateFrame(model.FrameUpdatePayload{HasPose: false}))
	clock.Advance(500 * time.Millisecond)

	g := tr.CurrentKPIs()
	require.Equal(t, int64(1000), g.ControlTimeByPos[model.ActiveControl])
	require.Equal(t, 50, *g.ControlPercentPct)
	require.Equal(t, int64(500), *g.ReactionTimeMs)
	require.NotNil(t, g.ConsistencyRating)

	// snapshot is detached from the live record
	g.ControlTimeByPos["mount"] = 1
	_, leaked := tr.Record().Grappling.ControlTimeByPos["mount"]
	require.False(t, leaked)
	require.False(t, tr.Record().Finalized)
}

func TestCurrentKPIsReactionBackfill(t *testing.T) {
	tr, _ := newTracker(t)
	first, rep := int64(1_000), int64(1_800)
	tr.rec.FirstPoseTs = &first
	tr.rec.FirstRepTs = &rep
	g := tr.CurrentKPIs()
	require.Equal(t, int64(800), *g.ReactionTimeMs)
}

func TestApplyEvent(t *testing.T) {
	tr, clock := newTracker(t)
	start := clock.now.UnixMilli()
	events := []model.RawEvent{
		{Ts: start, Kind: model.KindPositionStart, Position: model.PositionMount},
		{Ts: start + 100, Kind: model.KindSubmissionAttempt, Technique: "armbar"},
		{Ts: start + 200, Kind: model.KindSubmissionResult, Outcome: model.OutcomeSuccess},
		{Ts: start + 300, Kind: model.KindEscapeResult, Outcome: model.OutcomeFail},
		{Ts: start + 4000, Kind: model.KindPositionEnd, Position: model.PositionMount},
		{Ts: start + 4100, Kind: model.KindScrambleStart},
		{Ts: start + 4200, Kind: model.KindScrambleEnd, Winner: model.WinnerSelf},
		{Ts: start + 4300, Kind: model.KindTransition, Outcome: model.OutcomeSuccess, To: model.PositionBackControl},
	}
	for _, ev := range events {
		require.NoError(t, tr.ApplyEvent(ev))
	}
	g := tr.Record().Grappling
	require.Equal(t, model.AttemptStats{Attempts: 1, Successes: 1}, g.Submission)
	require.Equal(t, model.ScrambleStats{Attempts: 1, Wins: 1}, g.Scramble)
	require.Equal(t, model.AttemptStats{Attempts: 1, Successes: 1}, g.Transition)
	require.Equal(t, int64(4000), g.ControlTimeByPos[model.PositionMount])
	require.Equal(t, model.WinLoss{Wins: 1, Losses: 1}, g.WinLossByPosition[model.PositionMount])
	// mount, armbar, back_control
	require.Equal(t, 3, *g.TechnicalVariety)

	err := tr.ApplyEvent(model.RawEvent{Kind: "teleport"})
	require.ErrorIs(t, err, model.ErrInvalidEvent)
}

func TestFinalizeClosesOpenPositions(t *testing.T) {
	tr, clock := newTracker(t)
	start := clock.now.UnixMilli()
	require.NoError(t, tr.ApplyEvent(model.RawEvent{Ts: start, Kind: model.KindPositionStart, Position: model.PositionGuardClosed}))
	require.NoError(t, tr.UpdateFrame(model.FrameUpdatePayload{HasPose: true}))
	clock.Advance(20 * time.Second)
	rec := tr.Finalize(nil)
	require.Equal(t, int64(20_000), rec.Grappling.ControlTimeByPos[model.PositionGuardClosed])
	require.InDelta(t, 100.0, *rec.Report.CorePositionalMetrics.PositionalControlTimes[model.PositionGuardClosed], 1e-9)
}
