package statsui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sagar8169/improved-journey-mediaPose/internal/model"
	"github.com/Sagar8169/improved-journey-mediaPose/internal/store"
)

func storedRecord(id string, startMs int64, reps int, rate float64, score *float64) *model.SessionRecord {
	rec := model.NewSessionRecord(id, "athlete", startMs, 1, false)
	end := startMs + 120_000
	rec.EndTs = &end
	dur := 120.0
	rec.DurationSec = &dur
	rec.DetectionRate = &rate
	rec.FrameCount = 3600
	rec.TotalReps = reps
	rec.RepsByMode["squat"] = reps
	rec.QualityFlags = &model.QualityFlags{}
	rec.Finalized = true
	rec.Segments = []model.SegmentSummary{
		{TStart: startMs, TEnd: startMs + 90_000, Reps: reps, PostureIssues: 2},
		{TStart: startMs + 90_000, TEnd: end, PostureIssues: 1},
	}
	rec.Report = &model.SessionReport{Summary: model.ReportSummary{OverallSessionScorecard: score}}
	return rec
}

func TestBuildReport(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "rollmetrics.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	ctx := context.Background()
	base := int64(1_700_000_000_000)
	s60, s80 := 60.0, 80.0
	recs := []*model.SessionRecord{
		storedRecord("s1", base, 5, 0.5, nil),
		storedRecord("s2", base+600_000, 10, 0.9, &s60),
		storedRecord("s3", base+1_200_000, 14, 0.8, &s80),
	}
	for _, rec := range recs {
		if err := st.SaveSession(ctx, rec); err != nil {
			t.Fatalf("save session: %v", err)
		}
	}

	report, err := BuildReport(ctx, st, model.StatsConfig{Last: 2})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(report.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(report.Sessions))
	}
	if report.Sessions[0].SessionID != "s2" || report.Sessions[1].SessionID != "s3" {
		t.Fatalf("unexpected session order: %+v", report.Sessions)
	}
	if report.TotalReps != 24 || report.TotalDurationMs != 240_000 {
		t.Fatalf("unexpected totals: reps=%d duration=%d", report.TotalReps, report.TotalDurationMs)
	}
	if report.PostureIssues != 6 {
		t.Fatalf("expected 6 posture issues, got %d", report.PostureIssues)
	}
	if len(report.Segments["s3"]) != 2 {
		t.Fatalf("expected segments for s3, got %+v", report.Segments)
	}
	if report.AvgDetectionRate == nil || *report.AvgDetectionRate != 0.85 {
		t.Fatalf("unexpected detection rate: %v", report.AvgDetectionRate)
	}
	if report.AvgScorecard == nil || *report.AvgScorecard != 70 {
		t.Fatalf("unexpected avg scorecard: %v", report.AvgScorecard)
	}
	if report.ScorecardStdDev == nil || *report.ScorecardStdDev != 14.14 {
		t.Fatalf("unexpected scorecard spread: %v", report.ScorecardStdDev)
	}
	if report.BestScorecard == nil || *report.BestScorecard != 80 {
		t.Fatalf("unexpected best scorecard: %v", report.BestScorecard)
	}
}

func TestBuildReportEmpty(t *testing.T) {
	src := &fakeSource{}
	report, err := BuildReport(context.Background(), src, model.StatsConfig{UserID: "nobody"})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(report.Sessions) != 0 || report.AvgDetectionRate != nil || report.AvgScorecard != nil {
		t.Fatalf("expected empty report, got %+v", report)
	}
	if src.segmentCalls != 0 {
		t.Fatalf("segments should not be queried without sessions")
	}
}

func TestRenderSessionDetail(t *testing.T) {
	score := 73.8
	rec := storedRecord("abc", 1_700_000_000_000, 12, 0.75, &score)
	mount := 40.0
	rec.Report.CorePositionalMetrics.PositionalControlTimes = map[string]*float64{"mount": &mount}
	rec.Report.Summary.WinLossRatioByPosition = map[string]float64{"mount": 0.67}
	rec.Report.EffortEnduranceMetrics.FatigueCurve = []float64{2, 1}
	rec.Errors = []string{"fatigue: boom"}
	for _, v := range []float64{4, 8, 6} {
		rec.ShoulderSym.Observe(v)
	}

	out := RenderSessionDetail(rec, 0)
	for _, want := range []string{
		"Session abc",
		"12 (squat 12)",
		"75.0%",
		"73.8",
		"mount",
		"40.0%",
		"0.67",
		"Length (s)",
		"90.0",
		"fatigue: boom",
		"6.0 ± 2.0",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("detail missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Trend") {
		t.Fatalf("empty trend should be omitted:\n%s", out)
	}

	narrow := RenderSessionDetail(rec, 20)
	for _, line := range strings.Split(narrow, "\n") {
		if len([]rune(line)) > 20 {
			t.Fatalf("line exceeds width: %q", line)
		}
	}
}

func TestRenderSessionDetailNil(t *testing.T) {
	if got := RenderSessionDetail(nil, 80); got != "No session selected." {
		t.Fatalf("unexpected output: %q", got)
	}
}
