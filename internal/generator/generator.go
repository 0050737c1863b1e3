// Package generator synthesizes pose frame streams for demos and replay
// tests.
package generator

import (
	"math"
	"math/rand"
	"time"

	"github.com/Sagar8169/improved-journey-mediaPose/internal/framelog"
	"github.com/Sagar8169/improved-journey-mediaPose/internal/model"
)

// Profile shapes the synthetic athlete.
type Profile struct {
	RepMode string
	// RepPeriodMs is the average time between reps.
	RepPeriodMs float64
	// DropoutPct is the chance a frame has no detected pose.
	DropoutPct float64
	// PostureIssuePct is the chance a detected frame flags bad posture.
	PostureIssuePct float64
	// InterruptPct is the chance per second of a tracking loss.
	InterruptPct float64
	// FatigueRate grows posture issues and sway over the session.
	FatigueRate float64
}

// DefaultProfile is a steady squat session with light fatigue.
var DefaultProfile = Profile{
	RepMode:         "squat",
	RepPeriodMs:     2500,
	DropoutPct:      0.08,
	PostureIssuePct: 0.01,
	InterruptPct:    0.01,
	FatigueRate:     0.5,
}

// Generator produces randomized frame streams.
type Generator struct {
	rnd     *rand.Rand
	profile Profile
}

// New returns a Generator seeded with the current time.
func New(profile Profile) *Generator {
	return NewSeeded(profile, time.Now().UnixNano())
}

// NewSeeded returns a deterministic Generator.
func NewSeeded(profile Profile, seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed)), profile: profile}
}

// Generate returns frames covering durationMs at the given rate. Offsets
// start at 0 and never decrease.
func (g *Generator) Generate(durationMs int64, fps float64) []framelog.Frame {
	if durationMs <= 0 || fps <= 0 {
		return nil
	}
	step := 1000 / fps
	count := int(float64(durationMs)/step) + 1
	frames := make([]framelog.Frame, 0, count)

	nextRep := g.jitter(g.profile.RepPeriodMs)
	area := 0.25
	for i := 0; i < count; i++ {
		t := int64(math.Round(float64(i) * step))
		progress := float64(t) / float64(durationMs)

		if i > 0 && t/1000 != frames[len(frames)-1].T/1000 && g.rnd.Float64() < g.profile.InterruptPct {
			frames = append(frames, framelog.Frame{T: t, Interrupt: true})
		}

		frame := framelog.Frame{T: t, FrameUpdatePayload: g.payload(progress, fps, &area)}
		if frame.HasPose && g.profile.RepMode != "" && float64(t) >= nextRep {
			frame.RepMode = g.profile.RepMode
			frame.RepIncrement = true
			nextRep = float64(t) + g.jitter(g.profile.RepPeriodMs)
		}
		frames = append(frames, frame)
	}
	return frames
}

func (g *Generator) payload(progress, fps float64, area *float64) model.FrameUpdatePayload {
	p := model.FrameUpdatePayload{FPS: ptr(fps + g.rnd.NormFloat64()*0.5)}
	if g.rnd.Float64() < g.profile.DropoutPct {
		return p
	}
	fatigue := 1 + g.profile.FatigueRate*progress

	*area = clamp(*area+g.rnd.NormFloat64()*0.004*fatigue, 0.05, 0.9)
	p.HasPose = true
	p.VisibilityAvg = ptr(clamp(0.85+g.rnd.NormFloat64()*0.05, 0, 1))
	p.BBoxAreaPct = ptr(*area)
	p.TorsoAngle = ptr(12 + g.rnd.NormFloat64()*3*fatigue)
	p.ShoulderSym = ptr(math.Abs(g.rnd.NormFloat64() * 4 * fatigue))
	p.KneeSym = ptr(math.Abs(g.rnd.NormFloat64() * 5 * fatigue))
	p.JointAngles = map[string]float64{
		"leftKnee":  95 + g.rnd.NormFloat64()*20,
		"rightKnee": 95 + g.rnd.NormFloat64()*20,
		"leftHip":   110 + g.rnd.NormFloat64()*15,
		"rightHip":  110 + g.rnd.NormFloat64()*15,
	}
	p.PostureIssue = g.rnd.Float64() < g.profile.PostureIssuePct*fatigue
	return p
}

func (g *Generator) jitter(mean float64) float64 {
	return math.Max(200, mean*(0.75+g.rnd.Float64()*0.5))
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

func ptr(v float64) *float64 {
	return &v
}
