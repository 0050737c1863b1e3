package model

// PositionSpan is one entry on the control timeline.
type PositionSpan struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	TStart     int64   `json:"tStart"`
	TEnd       *int64  `json:"tEnd,omitempty"`
}

// AttemptStats counts attempts and successful results of one technique category.
type AttemptStats struct {
	Attempts  int `json:"attempts"`
	Successes int `json:"successes"`
}

// ScrambleStats counts scrambles and their decided outcomes.
type ScrambleStats struct {
	Attempts int `json:"attempts"`
	Wins     int `json:"wins"`
	Losses   int `json:"losses"`
}

// WinLoss counts outcomes decided while in a position.
type WinLoss struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
}

// GrapplingKPIs is the live half of a session record, mutated frame by
// frame and read without finalizing.
type GrapplingKPIs struct {
	ControlTimeline   []PositionSpan   `json:"controlTimeline"`
	ControlTimeByPos  map[string]int64 `json:"controlTimeByPos"`
	ControlPercentPct *int             `json:"controlPercentPct,omitempty"`

	Submission AttemptStats  `json:"submission"`
	Escape     AttemptStats  `json:"escape"`
	Transition AttemptStats  `json:"transition"`
	Takedown   AttemptStats  `json:"takedown"`
	Pass       AttemptStats  `json:"pass"`
	Sweep      AttemptStats  `json:"sweep"`
	Scramble   ScrambleStats `json:"scramble"`

	ConsistencyRating *int               `json:"consistencyRating,omitempty"`
	TechnicalVariety  *int               `json:"technicalVarietyIdx,omitempty"`
	WinLossByPosition map[string]WinLoss `json:"winLossByPosition"`
	IntensityScore    *int               `json:"intensityScore,omitempty"`
	ReactionTimeMs    *int64             `json:"reactionTimeMs,omitempty"`
}

// NewGrapplingKPIs returns empty live KPIs.
func NewGrapplingKPIs() GrapplingKPIs {
	return GrapplingKPIs{
		ControlTimeline:   []PositionSpan{},
		ControlTimeByPos:  map[string]int64{},
		WinLossByPosition: map[string]WinLoss{},
	}
}

// Clone returns a deep copy safe to hand to a UI.
func (g GrapplingKPIs) Clone() GrapplingKPIs {
	out := g
	out.ControlTimeline = make([]PositionSpan, len(g.ControlTimeline))
	for i, span := range g.ControlTimeline {
		out.ControlTimeline[i] = span
		if span.TEnd != nil {
			end := *span.TEnd
			out.ControlTimeline[i].TEnd = &end
		}
	}
	out.ControlTimeByPos = make(map[string]int64, len(g.ControlTimeByPos))
	for k, v := range g.ControlTimeByPos {
		out.ControlTimeByPos[k] = v
	}
	out.WinLossByPosition = make(map[string]WinLoss, len(g.WinLossByPosition))
	for k, v := range g.WinLossByPosition {
		out.WinLossByPosition[k] = v
	}
	out.ControlPercentPct = clonePtr(g.ControlPercentPct)
	out.ConsistencyRating = clonePtr(g.ConsistencyRating)
	out.TechnicalVariety = clonePtr(g.TechnicalVariety)
	out.IntensityScore = clonePtr(g.IntensityScore)
	out.ReactionTimeMs = clonePtr(g.ReactionTimeMs)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
