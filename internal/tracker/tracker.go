// Package tracker ingests per-frame pose signals into a session record.
//
// A Tracker is driven by a single frame loop: UpdateFrame is called once per
// video frame, CurrentKPIs may be read between frames, and Finalize freezes
// the record exactly once. A Tracker holds no locks.
package tracker

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/Sagar8169/improved-journey-mediaPose/internal/model"
	"github.com/Sagar8169/improved-journey-mediaPose/internal/report"
	"github.com/Sagar8169/improved-journey-mediaPose/internal/stats"
)

const (
	// SegmentMS is the fixed window length used to partition a session.
	SegmentMS = 30_000
	// MinSegmentCloseMS is the shortest trailing segment kept at finalize.
	MinSegmentCloseMS = 1_000
	// MinValidSessionSec flags shorter sessions as short.
	MinValidSessionSec = 10
	// MinDetectionRate flags sessions with fewer pose detections as low quality.
	MinDetectionRate = 0.4

	// IntensityScale maps a per-frame bbox area delta onto 0..100.
	IntensityScale = 4000
	// IntensityAlpha is the EMA smoothing factor, roughly a 2s horizon at 30fps.
	IntensityAlpha = 0.1

	activeControlConfidence = 0.5
)

var (
	// ErrFinalized is returned when a finalized tracker receives input.
	ErrFinalized = errors.New("session already finalized")
	// ErrInvalidModelComplexity is returned for complexities outside 0..2.
	ErrInvalidModelComplexity = errors.New("model complexity must be 0, 1 or 2")
)

// Options configure a new Tracker.
type Options struct {
	UserID          string
	ModelComplexity int
	MirrorUsed      bool
	// Clock returns the current time; defaults to time.Now.
	Clock func() time.Time
	// NewID allocates the session id; defaults to a random UUID.
	NewID func() string
}

// Tracker accumulates one training session.
type Tracker struct {
	rec   *model.SessionRecord
	clock func() time.Time

	// per-segment moments for the open segment
	segTorso    stats.RunningStat
	segShoulder stats.RunningStat
	segKnee     stats.RunningStat

	// classifier state fed by ApplyEvent
	openSpans map[string]int
	variety   map[string]struct{}
}

// New starts a session at the current clock time.
func New(opts Options) (*Tracker, error) {
	if opts.ModelComplexity < 0 || opts.ModelComplexity > 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidModelComplexity, opts.ModelComplexity)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	rec := model.NewSessionRecord(newID(), opts.UserID, clock().UnixMilli(), opts.ModelComplexity, opts.MirrorUsed)
	return &Tracker{rec: rec, clock: clock}, nil
}

// Record returns the record being accumulated. Callers must not mutate it.
func (t *Tracker) Record() *model.SessionRecord {
	return t.rec
}

func (t *Tracker) now() int64 {
	return t.clock().UnixMilli()
}

// UpdateFrame ingests one frame.
func (t *Tracker) UpdateFrame(p model.FrameUpdatePayload) error {
	if t.rec.Finalized {
		return ErrFinalized
	}
	p = finiteFields(p)
	rec := t.rec
	now := t.now()
	t.rollSegment(now)

	rec.FrameCount++
	if p.FPS != nil {
		rec.FPSSum += *p.FPS
		rec.FPSSumSq += *p.FPS * *p.FPS
	}
	if !p.HasPose {
		return nil
	}
	rec.DetectionFrames++

	// Time to first detected pose stands in for reaction speed until a
	// stimulus/response classifier exists.
	if rec.FirstPoseTs == nil {
		first := now
		rec.FirstPoseTs = &first
		reaction := now - rec.StartTs
		rec.Grappling.ReactionTimeMs = &reaction
	}

	if p.BBoxAreaPct != nil {
		area := *p.BBoxAreaPct
		prev := area
		if rec.LastBBoxAreaPct != nil {
			prev = *rec.LastBBoxAreaPct
		}
		rec.LastBBoxAreaPct = &area
		scaled := stats.Clamp(math.Abs(area-prev)*IntensityScale, 0, 100)
		rec.IntensityEMA = IntensityAlpha*scaled + (1-IntensityAlpha)*rec.IntensityEMA
		score := int(math.Round(rec.IntensityEMA))
		rec.Grappling.IntensityScore = &score
	}

	if p.VisibilityAvg != nil {
		rec.AvgVisibilitySum += *p.VisibilityAvg
	}
	if p.BBoxAreaPct != nil {
		rec.BBoxAreaSumPct += *p.BBoxAreaPct
		rec.BBoxAreaSumSqPct += *p.BBoxAreaPct * *p.BBoxAreaPct
	}
	if p.TorsoAngle != nil {
		rec.TorsoAngleSum += *p.TorsoAngle
		rec.TorsoAngleSumSq += *p.TorsoAngle * *p.TorsoAngle
		t.segTorso.Update(*p.TorsoAngle)
	}
	if p.ShoulderSym != nil {
		rec.ShoulderSym.Observe(*p.ShoulderSym)
		t.segShoulder.Update(*p.ShoulderSym)
	}
	if p.KneeSym != nil {
		rec.KneeSym.Observe(*p.KneeSym)
		t.segKnee.Update(*p.KneeSym)
	}
	for name, angle := range p.JointAngles {
		if !stats.Finite(angle) {
			continue
		}
		js, ok := rec.JointStats[name]
		if !ok {
			fresh := stats.NewRangeStat()
			js = &fresh
			rec.JointStats[name] = js
		}
		js.Observe(angle)
	}

	if p.PostureIssue {
		rec.PostureIssues++
		if rec.SegActive != nil {
			rec.SegActive.PostureIssues++
		}
	}
	if p.RepIncrement && p.RepMode != "" {
		rec.RepsByMode[p.RepMode]++
		rec.TotalReps++
		if rec.FirstRepTs == nil {
			first := now
			rec.FirstRepTs = &first
		}
		rec.CurrentStreak++
		if rec.CurrentStreak > rec.MaxRepStreak {
			rec.MaxRepStreak = rec.CurrentStreak
		}
		if rec.SegActive != nil {
			rec.SegActive.Reps++
		}
	}
	return nil
}

// Interrupt records an externally detected tracking loss without ending
// the session.
func (t *Tracker) Interrupt() {
	if t.rec.Finalized {
		return
	}
	t.rec.Interruptions++
	t.rec.CurrentStreak = 0
}

func (t *Tracker) startSegment(now int64) {
	t.rec.SegActive = &model.SegmentSummary{TStart: now, TEnd: now}
	t.segTorso = stats.RunningStat{}
	t.segShoulder = stats.RunningStat{}
	t.segKnee = stats.RunningStat{}
}

func (t *Tracker) rollSegment(now int64) {
	seg := t.rec.SegActive
	if seg == nil {
		t.startSegment(now)
		return
	}
	seg.TEnd = now
	if seg.DurationMs() >= SegmentMS {
		t.closeSegment()
		t.startSegment(now)
	}
}

func (t *Tracker) closeSegment() {
	seg := *t.rec.SegActive
	seg.AvgTorsoAngle = t.segTorso.MeanPtr()
	seg.ShoulderSymMean = t.segShoulder.MeanPtr()
	seg.KneeSymMean = t.segKnee.MeanPtr()
	t.rec.Segments = append(t.rec.Segments, seg)
	t.rec.SegActive = nil
}

// Finalize freezes the session, computes derived fields and builds the
// report. history feeds the historical trend and may be nil. Calling
// Finalize again returns the frozen record unchanged.
func (t *Tracker) Finalize(history []model.SessionRecord) *model.SessionRecord {
	rec := t.rec
	if rec.Finalized {
		return rec
	}
	end := t.now()
	rec.EndTs = &end
	durationSec := float64(end-rec.StartTs) / 1000
	rec.DurationSec = &durationSec

	if rec.SegActive != nil {
		rec.SegActive.TEnd = end
		if rec.SegActive.DurationMs() > MinSegmentCloseMS {
			t.closeSegment()
		}
		rec.SegActive = nil
	}

	detectionRate := float64(rec.DetectionFrames) / math.Max(1, float64(rec.FrameCount))
	rec.DetectionRate = &detectionRate
	avgVisibility := 0.0
	if rec.DetectionFrames > 0 {
		avgVisibility = rec.AvgVisibilitySum / float64(rec.DetectionFrames)
	}
	rec.AvgVisibility = &avgVisibility

	form := FormConsistencyScore(rec.ShoulderSym.RunningStat, rec.KneeSym.RunningStat, rec.PostureIssues, durationSec, detectionRate)
	rec.FormConsistencyScore = &form
	focus := detectionRate * 100
	rec.FocusScore = &focus
	rating := form
	rec.Grappling.ConsistencyRating = &rating

	t.closeOpenPositions(end)
	// Single generic position until a position classifier exists.
	totalMs := math.Max(0, float64(end-rec.StartTs))
	rec.Grappling.ControlTimeByPos[model.ActiveControl] = int64(math.Round(totalMs * detectionRate))
	spanEnd := end
	rec.Grappling.ControlTimeline = append(rec.Grappling.ControlTimeline, model.PositionSpan{
		Name:       model.ActiveControl,
		Confidence: activeControlConfidence,
		TStart:     rec.StartTs,
		TEnd:       &spanEnd,
	})

	rec.QualityFlags = &model.QualityFlags{
		Short:      durationSec < MinValidSessionSec,
		LowQuality: detectionRate < MinDetectionRate,
	}
	rec.Finalized = true

	t.buildReport(history)
	return rec
}

func (t *Tracker) buildReport(history []model.SessionRecord) {
	defer func() {
		if r := recover(); r != nil {
			t.rec.Errors = append(t.rec.Errors, fmt.Sprintf("report_build: %v", r))
		}
	}()
	rep := report.BuildSessionReport(t.rec, history)
	t.rec.Report = &rep
}

// CurrentKPIs returns a snapshot of the live KPIs with control time
// computed from elapsed time and the detection rate so far.
func (t *Tracker) CurrentKPIs() model.GrapplingKPIs {
	rec := t.rec
	g := rec.Grappling.Clone()

	durMs := float64(t.now() - rec.StartTs)
	if rec.EndTs != nil {
		durMs = float64(*rec.EndTs - rec.StartTs)
	}
	rate := t.liveDetectionRate()
	activeMs := math.Round(math.Max(0, durMs) * rate)
	g.ControlTimeByPos[model.ActiveControl] = int64(activeMs)
	controlPct := int(math.Round(activeMs / math.Max(1, durMs) * 100))
	g.ControlPercentPct = &controlPct

	if g.IntensityScore == nil && rec.LastBBoxAreaPct != nil {
		score := int(math.Round(rec.IntensityEMA))
		g.IntensityScore = &score
	}
	durationSec := 1.0
	if rec.DurationSec != nil {
		durationSec = *rec.DurationSec
	}
	form := FormConsistencyScore(rec.ShoulderSym.RunningStat, rec.KneeSym.RunningStat, rec.PostureIssues, durationSec, rate)
	g.ConsistencyRating = &form
	if g.ReactionTimeMs == nil && rec.FirstPoseTs != nil && rec.FirstRepTs != nil {
		reaction := *rec.FirstRepTs - *rec.FirstPoseTs
		if reaction < 0 {
			reaction = 0
		}
		g.ReactionTimeMs = &reaction
	}
	return g
}

// finiteFields drops NaN and infinite optional measurements so they count as
// absent instead of poisoning the running sums.
func finiteFields(p model.FrameUpdatePayload) model.FrameUpdatePayload {
	p.FPS = finiteOrNil(p.FPS)
	p.VisibilityAvg = finiteOrNil(p.VisibilityAvg)
	p.BBoxAreaPct = finiteOrNil(p.BBoxAreaPct)
	p.TorsoAngle = finiteOrNil(p.TorsoAngle)
	p.ShoulderSym = finiteOrNil(p.ShoulderSym)
	p.KneeSym = finiteOrNil(p.KneeSym)
	return p
}

func finiteOrNil(v *float64) *float64 {
	if v == nil || !stats.Finite(*v) {
		return nil
	}
	return v
}

func (t *Tracker) liveDetectionRate() float64 {
	if t.rec.DetectionRate != nil {
		return *t.rec.DetectionRate
	}
	if t.rec.FrameCount == 0 {
		return 0
	}
	return float64(t.rec.DetectionFrames) / float64(t.rec.FrameCount)
}

// FormConsistencyScore scores form steadiness on 0..100 from symmetry
// variance, detection rate and posture issues per second. The weights are
// product-tuned; changing them requires a schema version bump.
func FormConsistencyScore(shoulder, knee stats.RunningStat, postureIssues int, durationSec, detectionRate float64) int {
	symVar := shoulder.Variance() + knee.Variance()
	posturePenalty := math.Min(1, float64(postureIssues)/math.Max(10, durationSec))
	raw := 0.4*(1-math.Min(1, symVar/400)) + 0.3*detectionRate + 0.3*(1-posturePenalty)
	return int(math.Round(raw * 100))
}
