package model

import (
	"errors"
	"fmt"

	"github.com/Sagar8169/improved-journey-mediaPose/internal/stats"
)

// EventKind discriminates RawEvent variants.
type EventKind string

const (
	KindPositionStart     EventKind = "position_start"
	KindPositionEnd       EventKind = "position_end"
	KindSubmissionAttempt EventKind = "submission_attempt"
	KindSubmissionResult  EventKind = "submission_result"
	KindEscapeAttempt     EventKind = "escape_attempt"
	KindEscapeResult      EventKind = "escape_result"
	KindSweepAttempt      EventKind = "sweep_attempt"
	KindSweepResult       EventKind = "sweep_result"
	KindPassAttempt       EventKind = "pass_attempt"
	KindPassResult        EventKind = "pass_result"
	KindTakedownAttempt   EventKind = "takedown_attempt"
	KindTakedownResult    EventKind = "takedown_result"
	KindTransition        EventKind = "transition"
	KindScrambleStart     EventKind = "scramble_start"
	KindScrambleEnd       EventKind = "scramble_end"
	KindIntensitySample   EventKind = "intensity_sample"
	KindReactionSignal    EventKind = "reaction_signal"
	KindReactionMove      EventKind = "reaction_move"
)

// Outcome is the result of an attempt or transition.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFail    Outcome = "fail"
)

// ScrambleWinner decides a scramble.
type ScrambleWinner string

const (
	WinnerSelf     ScrambleWinner = "self"
	WinnerOpponent ScrambleWinner = "opponent"
	WinnerUnknown  ScrambleWinner = "unknown"
)

// Known positions emitted by the classifier.
const (
	PositionGuardClosed = "guard_closed"
	PositionGuardOpen   = "guard_open"
	PositionHalfGuard   = "half_guard"
	PositionMount       = "mount"
	PositionSideControl = "side_control"
	PositionBackControl = "back_control"
	PositionTurtle      = "turtle"
	PositionStanding    = "standing"
	PositionUnknown     = "unknown"
)

// GuardPositions are the bottom positions counted as guard.
var GuardPositions = []string{PositionGuardClosed, PositionGuardOpen, PositionHalfGuard}

// ErrInvalidEvent is returned by RawEvent.Validate.
var ErrInvalidEvent = errors.New("invalid event")

// RawEvent is a timestamped discrete occurrence. Only the fields relevant to
// Kind are set; events are immutable once recorded.
type RawEvent struct {
	Ts        int64          `json:"ts"`
	Kind      EventKind      `json:"kind"`
	Position  string         `json:"position,omitempty"`
	Technique string         `json:"technique,omitempty"`
	Outcome   Outcome        `json:"outcome,omitempty"`
	Winner    ScrambleWinner `json:"winner,omitempty"`
	Value     *float64       `json:"value,omitempty"`
	ID        string         `json:"id,omitempty"`
	From      string         `json:"from,omitempty"`
	To        string         `json:"to,omitempty"`
}

// Validate checks the fields required by the event kind.
func (e RawEvent) Validate() error {
	switch e.Kind {
	case KindPositionStart, KindPositionEnd:
		if e.Position == "" {
			return fmt.Errorf("%w: %s without position", ErrInvalidEvent, e.Kind)
		}
	case KindSubmissionResult, KindEscapeResult, KindSweepResult, KindPassResult, KindTakedownResult, KindTransition:
		if e.Outcome != "" && e.Outcome != OutcomeSuccess && e.Outcome != OutcomeFail {
			return fmt.Errorf("%w: %s with outcome %q", ErrInvalidEvent, e.Kind, e.Outcome)
		}
	case KindScrambleEnd:
		switch e.Winner {
		case WinnerSelf, WinnerOpponent, WinnerUnknown, "":
		default:
			return fmt.Errorf("%w: scramble_end with winner %q", ErrInvalidEvent, e.Winner)
		}
	case KindIntensitySample:
		if e.Value == nil {
			return fmt.Errorf("%w: intensity_sample without value", ErrInvalidEvent)
		}
		if !stats.Finite(*e.Value) || *e.Value < 0 || *e.Value > 1 {
			return fmt.Errorf("%w: intensity_sample value %v outside [0,1]", ErrInvalidEvent, *e.Value)
		}
	case KindReactionSignal, KindReactionMove:
		if e.ID == "" {
			return fmt.Errorf("%w: %s without id", ErrInvalidEvent, e.Kind)
		}
	case KindSubmissionAttempt, KindEscapeAttempt, KindSweepAttempt, KindPassAttempt, KindTakedownAttempt, KindScrambleStart:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	}
	return nil
}

// Succeeded reports whether the event carries a success outcome.
func (e RawEvent) Succeeded() bool {
	return e.Outcome == OutcomeSuccess
}
