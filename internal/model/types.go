// Package model defines shared data structures.
package model

import (
	"time"

	"github.com/Sagar8169/improved-journey-mediaPose/internal/stats"
)

// SchemaVersion is stamped on every session record. Changing any scoring
// constant requires a bump.
const SchemaVersion = 1

// ActiveControl is the synthetic position used until a real position
// classifier exists.
const ActiveControl = "Active Control"

// Config defines live session settings.
type Config struct {
	UserID          string
	ModelComplexity int
	MirrorUsed      bool
	FPS             float64
	Duration        time.Duration
	FramesPath      string
	Seed            int64
}

// StatsConfig defines filters for session listings.
type StatsConfig struct {
	UserID         string
	Since          *time.Time
	Last           int
	HideLowQuality bool
}

// FrameUpdatePayload is the per-frame signal produced by the pose estimator.
// Optional fields are nil when the estimator could not provide them.
type FrameUpdatePayload struct {
	HasPose       bool               `json:"hasPose"`
	VisibilityAvg *float64           `json:"visibilityAvg,omitempty"`
	BBoxAreaPct   *float64           `json:"bboxAreaPct,omitempty"`
	TorsoAngle    *float64           `json:"torsoAngle,omitempty"`
	ShoulderSym   *float64           `json:"shoulderSym,omitempty"`
	KneeSym       *float64           `json:"kneeSym,omitempty"`
	JointAngles   map[string]float64 `json:"jointAngles,omitempty"`
	FPS           *float64           `json:"fps,omitempty"`
	PostureIssue  bool               `json:"postureIssue,omitempty"`
	RepMode       string             `json:"repMode,omitempty"`
	RepIncrement  bool               `json:"repIncrement,omitempty"`
}

// SegmentSummary covers one fixed-duration window of a session.
type SegmentSummary struct {
	TStart          int64    `json:"tStart"`
	TEnd            int64    `json:"tEnd"`
	Reps            int      `json:"reps"`
	PostureIssues   int      `json:"postureIssues"`
	AvgTorsoAngle   *float64 `json:"avgTorsoAngle,omitempty"`
	ShoulderSymMean *float64 `json:"shoulderSymMean,omitempty"`
	KneeSymMean     *float64 `json:"kneeSymMean,omitempty"`
}

// DurationMs returns the segment length.
func (s SegmentSummary) DurationMs() int64 {
	return s.TEnd - s.TStart
}

func (s SegmentSummary) clone() SegmentSummary {
	s.AvgTorsoAngle = clonePtr(s.AvgTorsoAngle)
	s.ShoulderSymMean = clonePtr(s.ShoulderSymMean)
	s.KneeSymMean = clonePtr(s.KneeSymMean)
	return s
}

// QualityFlags marks sessions with too little usable data. Flags are
// independent and may coexist.
type QualityFlags struct {
	LowQuality bool `json:"lowQuality,omitempty"`
	Short      bool `json:"short,omitempty"`
}

// Label returns the quality tag used by listings: low, short or good.
func (q QualityFlags) Label() string {
	switch {
	case q.LowQuality:
		return "low"
	case q.Short:
		return "short"
	default:
		return "good"
	}
}

// SessionRecord is the top-level aggregate of one training session.
type SessionRecord struct {
	SchemaVersion   int      `json:"schemaVersion"`
	SessionID       string   `json:"sessionId"`
	UserID          string   `json:"userId"`
	StartTs         int64    `json:"startTs"`
	EndTs           *int64   `json:"endTs"`
	DurationSec     *float64 `json:"durationSec"`
	ModelComplexity int      `json:"modelComplexity"`
	MirrorUsed      bool     `json:"mirrorUsed"`

	FrameCount       int     `json:"frameCount"`
	DetectionFrames  int     `json:"detectionFrames"`
	AvgVisibilitySum float64 `json:"avgVisibilitySum"`
	BBoxAreaSumPct   float64 `json:"bboxAreaSumPct"`
	BBoxAreaSumSqPct float64 `json:"bboxAreaSumSqPct"`
	TorsoAngleSum    float64 `json:"torsoAngleSum"`
	TorsoAngleSumSq  float64 `json:"torsoAngleSumSq"`
	FPSSum           float64 `json:"fpsSum"`
	FPSSumSq         float64 `json:"fpsSumSq"`

	PostureIssues int                         `json:"postureIssues"`
	ShoulderSym   stats.RangeStat             `json:"shoulderSym"`
	KneeSym       stats.RangeStat             `json:"kneeSym"`
	JointStats    map[string]*stats.RangeStat `json:"jointStats"`

	RepsByMode    map[string]int `json:"repsByMode"`
	TotalReps     int            `json:"totalReps"`
	FirstRepTs    *int64         `json:"firstRepTs,omitempty"`
	MaxRepStreak  int            `json:"maxRepStreak"`
	CurrentStreak int            `json:"currentStreak"`
	Interruptions int            `json:"interruptions"`

	Errors    []string         `json:"errors"`
	Segments  []SegmentSummary `json:"segments"`
	SegActive *SegmentSummary  `json:"segActive"`

	DetectionRate        *float64      `json:"detectionRate,omitempty"`
	AvgVisibility        *float64      `json:"avgVisibility,omitempty"`
	FormConsistencyScore *int          `json:"formConsistencyScore,omitempty"`
	FocusScore           *float64      `json:"focusScore,omitempty"`
	QualityFlags         *QualityFlags `json:"qualityFlags,omitempty"`
	Finalized            bool          `json:"finalized"`

	Grappling GrapplingKPIs `json:"grappling"`

	FirstPoseTs     *int64   `json:"firstPoseTs,omitempty"`
	LastBBoxAreaPct *float64 `json:"lastBboxAreaPct,omitempty"`
	IntensityEMA    float64  `json:"intensityEma"`

	Report *SessionReport `json:"report,omitempty"`
}

// NewSessionRecord returns a record with every counter at zero.
func NewSessionRecord(sessionID, userID string, startTs int64, modelComplexity int, mirror bool) *SessionRecord {
	return &SessionRecord{
		SchemaVersion:   SchemaVersion,
		SessionID:       sessionID,
		UserID:          userID,
		StartTs:         startTs,
		ModelComplexity: modelComplexity,
		MirrorUsed:      mirror,
		ShoulderSym:     stats.NewRangeStat(),
		KneeSym:         stats.NewRangeStat(),
		JointStats:      map[string]*stats.RangeStat{},
		RepsByMode:      map[string]int{},
		Errors:          []string{},
		Segments:        []SegmentSummary{},
		Grappling:       NewGrapplingKPIs(),
	}
}

// DurationMs returns end minus start, or 0 while the session is open.
func (r *SessionRecord) DurationMs() int64 {
	if r.EndTs == nil {
		return 0
	}
	return *r.EndTs - r.StartTs
}

// Clone returns a deep copy of the record. Report is shared since it is
// never mutated after Finalize.
func (r *SessionRecord) Clone() *SessionRecord {
	out := *r
	out.EndTs = clonePtr(r.EndTs)
	out.DurationSec = clonePtr(r.DurationSec)
	out.JointStats = make(map[string]*stats.RangeStat, len(r.JointStats))
	for name, js := range r.JointStats {
		out.JointStats[name] = clonePtr(js)
	}
	out.RepsByMode = make(map[string]int, len(r.RepsByMode))
	for mode, n := range r.RepsByMode {
		out.RepsByMode[mode] = n
	}
	out.FirstRepTs = clonePtr(r.FirstRepTs)
	out.Errors = append([]string{}, r.Errors...)
	out.Segments = make([]SegmentSummary, len(r.Segments))
	for i, seg := range r.Segments {
		out.Segments[i] = seg.clone()
	}
	if r.SegActive != nil {
		seg := r.SegActive.clone()
		out.SegActive = &seg
	}
	out.DetectionRate = clonePtr(r.DetectionRate)
	out.AvgVisibility = clonePtr(r.AvgVisibility)
	out.FormConsistencyScore = clonePtr(r.FormConsistencyScore)
	out.FocusScore = clonePtr(r.FocusScore)
	out.QualityFlags = clonePtr(r.QualityFlags)
	out.Grappling = r.Grappling.Clone()
	out.FirstPoseTs = clonePtr(r.FirstPoseTs)
	out.LastBBoxAreaPct = clonePtr(r.LastBBoxAreaPct)
	return &out
}

// HasFrames reports whether any frame was ingested.
func (r *SessionRecord) HasFrames() bool {
	return r.FrameCount > 0
}

// SessionAggregate summarizes a stored session for listings.
type SessionAggregate struct {
	SessionID     string
	UserID        string
	StartedAt     time.Time
	EndedAt       time.Time
	DurationMs    int64
	FrameCount    int
	DetectionRate float64
	TotalReps     int
	QualityFlag   string
	Scorecard     *float64
}
