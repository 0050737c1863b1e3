// Package kpi computes grappling KPIs from a log of discrete events.
//
// Every function is pure: the event slice is never mutated and results
// depend only on the events and the context window.
package kpi

import (
	"math"
	"sort"
	"time"

	"github.com/Sagar8169/improved-journey-mediaPose/internal/model"
	"github.com/Sagar8169/improved-journey-mediaPose/internal/stats"
)

// Context is the session window, in unix milliseconds. A zero EndAt means
// the session is still running and "now" is used.
type Context struct {
	StartAt int64
	EndAt   int64
}

func (c Context) end() int64 {
	if c.EndAt == 0 {
		return time.Now().UnixMilli()
	}
	return c.EndAt
}

func sortedByTs(events []model.RawEvent) []model.RawEvent {
	out := make([]model.RawEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Ts < out[j].Ts })
	return out
}

// ControlTimePctByPosition returns the share of the session window spent in
// each position, as a percentage rounded to two decimals. A start for a
// position that is already open is ignored until its matching end; positions
// still open at the end of the window are closed there.
func ControlTimePctByPosition(events []model.RawEvent, ctx Context) map[string]float64 {
	endAt := ctx.end()
	totalMs := math.Max(1, float64(endAt-ctx.StartAt))

	open := map[string]int64{}
	accum := map[string]int64{}
	for _, ev := range sortedByTs(events) {
		switch ev.Kind {
		case model.KindPositionStart:
			if _, ok := open[ev.Position]; !ok {
				open[ev.Position] = ev.Ts
			}
		case model.KindPositionEnd:
			t0, ok := open[ev.Position]
			if !ok {
				continue
			}
			accum[ev.Position] += max(0, ev.Ts-t0)
			delete(open, ev.Position)
		}
	}
	for pos, t0 := range open {
		accum[pos] += max(0, endAt-t0)
	}

	out := make(map[string]float64, len(accum))
	for pos, ms := range accum {
		out[pos] = stats.Round(stats.Clamp(float64(ms)/totalMs*100, 0, 100), 2)
	}
	return out
}

// Attempts counts attempt events of one kind and successful result events
// of another. Attempts and results are not paired by id, so an adversarial
// log can report more successes than attempts.
func Attempts(events []model.RawEvent, attemptKind, resultKind model.EventKind) model.AttemptStats {
	var out model.AttemptStats
	for _, ev := range events {
		if ev.Kind == attemptKind {
			out.Attempts++
		}
		if ev.Kind == resultKind && ev.Succeeded() {
			out.Successes++
		}
	}
	return out
}

// Scramble counts scramble starts and decided scramble ends. Ends with an
// unknown winner count as neither a win nor a loss.
func Scramble(events []model.RawEvent) model.ScrambleStats {
	var out model.ScrambleStats
	for _, ev := range events {
		switch ev.Kind {
		case model.KindScrambleStart:
			out.Attempts++
		case model.KindScrambleEnd:
			switch ev.Winner {
			case model.WinnerSelf:
				out.Wins++
			case model.WinnerOpponent:
				out.Losses++
			}
		}
	}
	return out
}

// AvgIntensity returns the mean intensity sample scaled to 0..100 and
// rounded. ok is false when the log has no samples.
func AvgIntensity(events []model.RawEvent) (avg int, ok bool) {
	var sum float64
	var n int
	for _, ev := range events {
		if ev.Kind != model.KindIntensitySample {
			continue
		}
		n++
		if ev.Value != nil && stats.Finite(*ev.Value) {
			sum += *ev.Value
		}
	}
	if n == 0 {
		return 0, false
	}
	return int(math.Round(sum / float64(n) * 100)), true
}

// ReactionAvg pairs each reaction_signal with the next reaction_move that
// shares its id and returns the mean latency in ms. Unmatched signals never
// expire and are simply ignored; ok is false when nothing matched.
func ReactionAvg(events []model.RawEvent) (avgMs int64, ok bool) {
	signals := map[string]int64{}
	var sum float64
	var n int
	for _, ev := range sortedByTs(events) {
		switch ev.Kind {
		case model.KindReactionSignal:
			signals[ev.ID] = ev.Ts
		case model.KindReactionMove:
			t0, found := signals[ev.ID]
			if !found {
				continue
			}
			delete(signals, ev.ID)
			sum += float64(ev.Ts - t0)
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return int64(math.Round(sum / float64(n))), true
}

// Transitions counts transition events and the successful ones.
func Transitions(events []model.RawEvent) model.AttemptStats {
	var out model.AttemptStats
	for _, ev := range events {
		if ev.Kind != model.KindTransition {
			continue
		}
		out.Attempts++
		if ev.Succeeded() {
			out.Successes++
		}
	}
	return out
}

// TechnicalVariety counts distinct positions and techniques in the log.
func TechnicalVariety(events []model.RawEvent) int {
	seen := map[string]struct{}{}
	for _, ev := range events {
		if ev.Kind == model.KindPositionStart {
			seen["pos:"+ev.Position] = struct{}{}
		}
		if ev.Technique != "" {
			seen["tech:"+ev.Technique] = struct{}{}
		}
	}
	return len(seen)
}
