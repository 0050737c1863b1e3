package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Sagar8169/improved-journey-mediaPose/internal/model"
	"github.com/Sagar8169/improved-journey-mediaPose/internal/tracker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakePersister struct {
	saved []*model.SessionRecord
	err   error
}

func (p *fakePersister) SaveSession(_ context.Context, rec *model.SessionRecord) error {
	if p.err != nil {
		return p.err
	}
	p.saved = append(p.saved, rec)
	return nil
}

type testEnv struct {
	now time.Time
	ids int
}

func (e *testEnv) clock() time.Time { return e.now }

func (e *testEnv) newID() string {
	e.ids++
	return fmt.Sprintf("s%d", e.ids)
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newManager(p Persister, limit int) (*Manager, *testEnv) {
	env := &testEnv{now: time.UnixMilli(1_700_000_000_000)}
	m := NewManager(ManagerOptions{
		Persister:    p,
		Logger:       quietLogger(),
		Clock:        env.clock,
		NewID:        env.newID,
		HistoryLimit: limit,
	})
	return m, env
}

func runSession(t *testing.T, m *Manager, env *testEnv, frames int) *model.SessionRecord {
	t.Helper()
	started, err := m.Start("athlete", 1, false)
	require.NoError(t, err)
	require.True(t, started)
	for i := 0; i < frames; i++ {
		require.NoError(t, m.UpdateFrame(model.FrameUpdatePayload{HasPose: true, RepIncrement: true, RepMode: "squat"}))
		env.now = env.now.Add(time.Second)
	}
	rec, err := m.End(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec)
	return rec
}

func TestStartIsNoOpWhileActive(t *testing.T) {
	m, _ := newManager(nil, 0)
	started, err := m.Start("a", 0, false)
	require.NoError(t, err)
	require.True(t, started)

	started, err = m.Start("b", 2, true)
	require.NoError(t, err)
	require.False(t, started)
	require.Equal(t, "a", m.Snapshot().UserID)
}

func TestSnapshotIsDetached(t *testing.T) {
	m, env := newManager(nil, 0)
	_, err := m.Start("athlete", 1, false)
	require.NoError(t, err)
	require.NoError(t, m.UpdateFrame(model.FrameUpdatePayload{HasPose: true, RepIncrement: true, RepMode: "squat"}))

	snap := m.Snapshot()
	require.Equal(t, 1, snap.RepsByMode["squat"])

	env.now = env.now.Add(time.Second)
	require.NoError(t, m.UpdateFrame(model.FrameUpdatePayload{
		HasPose:      true,
		RepIncrement: true,
		RepMode:      "squat",
		PostureIssue: true,
		JointAngles:  map[string]float64{"leftKnee": 90},
	}))

	require.Equal(t, 1, snap.RepsByMode["squat"])
	require.Equal(t, 1, snap.TotalReps)
	require.Empty(t, snap.JointStats)
	require.NotNil(t, snap.SegActive)
	require.Zero(t, snap.SegActive.PostureIssues)
	require.Equal(t, 2, m.Snapshot().RepsByMode["squat"])
	m.Discard()
}

func TestStartRejectsComplexity(t *testing.T) {
	m, _ := newManager(nil, 0)
	_, err := m.Start("a", 5, false)
	require.ErrorIs(t, err, tracker.ErrInvalidModelComplexity)
	require.False(t, m.Active())
}

func TestIdleManagerIgnoresInput(t *testing.T) {
	m, _ := newManager(nil, 0)
	require.NoError(t, m.UpdateFrame(model.FrameUpdatePayload{HasPose: true}))
	require.NoError(t, m.ApplyEvent(model.RawEvent{Kind: model.KindScrambleStart}))
	m.Interrupt()
	m.Discard()
	_, ok := m.LiveKPIs()
	require.False(t, ok)
	rec, err := m.End(context.Background())
	require.NoError(t, err)
	require.Nil(t, rec)
	require.Nil(t, m.Snapshot())
}

func TestEndPersistsAndRecordsHistory(t *testing.T) {
	p := &fakePersister{}
	m, env := newManager(p, 0)

	first := runSession(t, m, env, 12)
	second := runSession(t, m, env, 15)

	require.Len(t, p.saved, 2)
	require.Same(t, second, p.saved[1])
	hist := m.History()
	require.Len(t, hist, 2)
	require.Equal(t, second.SessionID, hist[0].SessionID)
	require.Equal(t, first.SessionID, hist[1].SessionID)
	require.False(t, m.Active())

	// the first session feeds the second one's trend
	require.Len(t, second.Report.Summary.HistoricalPerformanceTrend, 1)
	require.Equal(t, *first.Report.Summary.OverallSessionScorecard, second.Report.Summary.HistoricalPerformanceTrend[0])

	totals := m.Totals()
	require.Equal(t, 2, totals.Sessions)
	require.Equal(t, 27, totals.TotalReps)
	require.NotNil(t, totals.LastUpdated)
	require.Nil(t, totals.BestShoulderSym)

	m.ClearHistory()
	require.Empty(t, m.History())
}

func TestHistoryIsCapped(t *testing.T) {
	m, env := newManager(nil, 3)
	for i := 0; i < 5; i++ {
		runSession(t, m, env, 2)
	}
	hist := m.History()
	require.Len(t, hist, 3)
	require.Equal(t, "s5", hist[0].SessionID)
}

func TestPersistFailureStillReturnsRecord(t *testing.T) {
	boom := errors.New("disk full")
	m, env := newManager(&fakePersister{err: boom}, 0)
	_, err := m.Start("a", 1, false)
	require.NoError(t, err)
	env.now = env.now.Add(2 * time.Second)

	rec, err := m.End(context.Background())
	require.ErrorIs(t, err, boom)
	require.NotNil(t, rec)
	require.True(t, rec.Finalized)
	require.Len(t, m.History(), 1)
}

func TestDiscardDropsSession(t *testing.T) {
	p := &fakePersister{}
	m, _ := newManager(p, 0)
	_, err := m.Start("a", 1, false)
	require.NoError(t, err)
	m.Discard()
	require.False(t, m.Active())
	rec, err := m.End(context.Background())
	require.NoError(t, err)
	require.Nil(t, rec)
	require.Empty(t, p.saved)
	require.Empty(t, m.History())
}

func TestLiveKPIs(t *testing.T) {
	m, env := newManager(nil, 0)
	_, err := m.Start("a", 1, false)
	require.NoError(t, err)
	require.NoError(t, m.UpdateFrame(model.FrameUpdatePayload{HasPose: true}))
	env.now = env.now.Add(4 * time.Second)

	g, ok := m.LiveKPIs()
	require.True(t, ok)
	require.Equal(t, int64(4000), g.ControlTimeByPos[model.ActiveControl])
	require.Equal(t, 100, *g.ControlPercentPct)
}

func TestSeededHistory(t *testing.T) {
	seed := make([]model.SessionRecord, 12)
	for i := range seed {
		seed[i].SessionID = fmt.Sprintf("old%d", i)
	}
	m := NewManager(ManagerOptions{History: seed, HistoryLimit: 10, Logger: quietLogger()})
	require.Len(t, m.History(), 10)
}
