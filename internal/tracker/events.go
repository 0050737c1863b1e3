package tracker

import (
	"github.com/Sagar8169/improved-journey-mediaPose/internal/model"
)

// ApplyEvent folds a discrete event from a technique or position classifier
// into the live grappling KPIs. Intensity and reaction events are ignored
// here: the frame signals own those fields.
func (t *Tracker) ApplyEvent(ev model.RawEvent) error {
	if t.rec.Finalized {
		return ErrFinalized
	}
	if err := ev.Validate(); err != nil {
		return err
	}
	g := &t.rec.Grappling
	switch ev.Kind {
	case model.KindPositionStart:
		t.openPosition(ev.Position, ev.Ts)
	case model.KindPositionEnd:
		t.closePosition(ev.Position, ev.Ts)
	case model.KindSubmissionAttempt:
		g.Submission.Attempts++
	case model.KindEscapeAttempt:
		g.Escape.Attempts++
	case model.KindSweepAttempt:
		g.Sweep.Attempts++
	case model.KindPassAttempt:
		g.Pass.Attempts++
	case model.KindTakedownAttempt:
		g.Takedown.Attempts++
	case model.KindSubmissionResult:
		t.applyResult(&g.Submission, ev)
	case model.KindEscapeResult:
		t.applyResult(&g.Escape, ev)
	case model.KindSweepResult:
		t.applyResult(&g.Sweep, ev)
	case model.KindPassResult:
		t.applyResult(&g.Pass, ev)
	case model.KindTakedownResult:
		t.applyResult(&g.Takedown, ev)
	case model.KindTransition:
		g.Transition.Attempts++
		if ev.Succeeded() {
			g.Transition.Successes++
		}
		if ev.To != "" {
			t.noteVariety("pos:" + ev.To)
		}
	case model.KindScrambleStart:
		g.Scramble.Attempts++
	case model.KindScrambleEnd:
		switch ev.Winner {
		case model.WinnerSelf:
			g.Scramble.Wins++
		case model.WinnerOpponent:
			g.Scramble.Losses++
		}
	}
	if ev.Technique != "" {
		t.noteVariety("tech:" + ev.Technique)
	}
	return nil
}

func (t *Tracker) applyResult(stat *model.AttemptStats, ev model.RawEvent) {
	if ev.Succeeded() {
		stat.Successes++
	}
	pos := ev.Position
	if pos == "" {
		pos = t.currentPosition()
	}
	if pos == "" || ev.Outcome == "" {
		return
	}
	wl := t.rec.Grappling.WinLossByPosition[pos]
	if ev.Succeeded() {
		wl.Wins++
	} else {
		wl.Losses++
	}
	t.rec.Grappling.WinLossByPosition[pos] = wl
}

// openPosition starts a timeline span; re-opening an open position is a no-op.
func (t *Tracker) openPosition(pos string, ts int64) {
	if t.openSpans == nil {
		t.openSpans = map[string]int{}
	}
	if _, open := t.openSpans[pos]; open {
		return
	}
	g := &t.rec.Grappling
	g.ControlTimeline = append(g.ControlTimeline, model.PositionSpan{Name: pos, Confidence: 1, TStart: ts})
	t.openSpans[pos] = len(g.ControlTimeline) - 1
	t.noteVariety("pos:" + pos)
}

func (t *Tracker) closePosition(pos string, ts int64) {
	idx, open := t.openSpans[pos]
	if !open {
		return
	}
	g := &t.rec.Grappling
	span := &g.ControlTimeline[idx]
	end := ts
	span.TEnd = &end
	if elapsed := ts - span.TStart; elapsed > 0 {
		g.ControlTimeByPos[pos] += elapsed
	}
	delete(t.openSpans, pos)
}

func (t *Tracker) closeOpenPositions(ts int64) {
	for pos := range t.openSpans {
		t.closePosition(pos, ts)
	}
}

// currentPosition returns the most recently opened position still open.
func (t *Tracker) currentPosition() string {
	best, bestIdx := "", -1
	for pos, idx := range t.openSpans {
		if idx > bestIdx {
			best, bestIdx = pos, idx
		}
	}
	return best
}

func (t *Tracker) noteVariety(key string) {
	if t.variety == nil {
		t.variety = map[string]struct{}{}
	}
	t.variety[key] = struct{}{}
	n := len(t.variety)
	t.rec.Grappling.TechnicalVariety = &n
}
