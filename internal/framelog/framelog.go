// Package framelog reads and writes recorded frame streams and event logs
// as JSON Lines.
package framelog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Sagar8169/improved-journey-mediaPose/internal/model"
)

const maxLineBytes = 1 << 20

// ErrInvalidEvent wraps event validation failures.
var ErrInvalidEvent = model.ErrInvalidEvent

// Frame is one recorded frame. T is the offset from session start in ms.
// Interrupt lines model a tracking loss and carry no payload.
type Frame struct {
	T         int64 `json:"t"`
	Interrupt bool  `json:"interrupt,omitempty"`
	model.FrameUpdatePayload
}

// LoadFrames reads a frame log from path.
func LoadFrames(path string) ([]Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only log.
			_ = cerr
		}
	}()
	return ReadFrames(file)
}

// ReadFrames decodes frames, one JSON object per line. Blank lines and
// lines starting with # are skipped. Offsets must not decrease.
func ReadFrames(r io.Reader) ([]Frame, error) {
	var frames []Frame
	err := eachLine(r, func(lineNo int, line []byte) error {
		var f Frame
		if err := json.Unmarshal(line, &f); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if f.T < 0 {
			return fmt.Errorf("line %d: negative offset %d", lineNo, f.T)
		}
		if n := len(frames); n > 0 && f.T < frames[n-1].T {
			return fmt.Errorf("line %d: offset %d before previous %d", lineNo, f.T, frames[n-1].T)
		}
		frames = append(frames, f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("frame log is empty")
	}
	return frames, nil
}

// WriteFrames encodes frames as JSON Lines.
func WriteFrames(w io.Writer, frames []Frame) error {
	enc := json.NewEncoder(w)
	for _, f := range frames {
		if err := enc.Encode(f); err != nil {
			return err
		}
	}
	return nil
}

// LoadEvents reads an event log from path.
func LoadEvents(path string) ([]model.RawEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only log.
			_ = cerr
		}
	}()
	return ReadEvents(file)
}

// ReadEvents decodes and validates events. An empty log is valid.
func ReadEvents(r io.Reader) ([]model.RawEvent, error) {
	events := []model.RawEvent{}
	err := eachLine(r, func(lineNo int, line []byte) error {
		var ev model.RawEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := ev.Validate(); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		events = append(events, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// IsInvalidEvent reports whether err came from event validation.
func IsInvalidEvent(err error) bool {
	return errors.Is(err, ErrInvalidEvent)
}

func eachLine(r io.Reader, fn func(lineNo int, line []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := fn(lineNo, []byte(line)); err != nil {
			return err
		}
	}
	return scanner.Err()
}
