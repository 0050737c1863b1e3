// Package tui provides the Bubble Tea live session view.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/Sagar8169/improved-journey-mediaPose/internal/framelog"
	"github.com/Sagar8169/improved-journey-mediaPose/internal/model"
	"github.com/Sagar8169/improved-journey-mediaPose/internal/session"
)

const intensityHistoryLen = 60

type frameMsg struct{}

// Model drives a session manager from a frame stream in real time.
type Model struct {
	config model.Config
	mgr    *session.Manager
	frames []framelog.Frame
	now    func() time.Time
	log    logrus.FieldLogger

	width  int
	height int

	startedAt time.Time
	next      int

	intensity []float64
	lastScore *float64

	final   *model.SessionRecord
	saveErr error
	err     error
}

// Options configure NewModel.
type Options struct {
	Config  model.Config
	Manager *session.Manager
	Frames  []framelog.Frame
	// LastScore is the previous session's scorecard, shown in the footer.
	LastScore *float64
	Clock     func() time.Time
	Logger    logrus.FieldLogger
}

// NewModel constructs the live view. The session starts on Init.
func NewModel(opts Options) *Model {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Model{
		config:    opts.Config,
		mgr:       opts.Manager,
		frames:    opts.Frames,
		now:       now,
		log:       log,
		lastScore: opts.LastScore,
	}
}

// Final returns the finalized record once the session ended.
func (m *Model) Final() *model.SessionRecord {
	return m.final
}

// Err returns the error that stopped the session, if any.
func (m *Model) Err() error {
	if m.err != nil {
		return m.err
	}
	return m.saveErr
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	if _, err := m.mgr.Start(m.config.UserID, m.config.ModelComplexity, m.config.MirrorUsed); err != nil {
		m.err = err
		return tea.Quit
	}
	m.startedAt = m.now()
	return m.scheduleNext()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case frameMsg:
		if m.final != nil {
			return m, nil
		}
		m.feedDue()
		if m.next >= len(m.frames) {
			m.end()
			return m, nil
		}
		return m, m.scheduleNext()
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			if m.final == nil {
				m.end()
			}
			return m, tea.Quit
		case tea.KeyRunes:
			return m.handleKey(string(msg.Runes))
		default:
			return m, nil
		}
	default:
		return m, nil
	}
}

func (m *Model) handleKey(key string) (tea.Model, tea.Cmd) {
	if m.final != nil {
		if key == "q" {
			return m, tea.Quit
		}
		return m, nil
	}
	switch key {
	case "i":
		m.mgr.Interrupt()
	case "q":
		m.end()
	case "x":
		m.mgr.Discard()
		return m, tea.Quit
	}
	return m, nil
}

// feedDue applies every frame whose offset has elapsed.
func (m *Model) feedDue() {
	elapsed := m.now().Sub(m.startedAt).Milliseconds()
	for m.next < len(m.frames) && m.frames[m.next].T <= elapsed {
		f := m.frames[m.next]
		m.next++
		if f.Interrupt {
			m.mgr.Interrupt()
			continue
		}
		if err := m.mgr.UpdateFrame(f.FrameUpdatePayload); err != nil {
			m.log.WithError(err).Warn("frame rejected")
			continue
		}
	}
	if g, ok := m.mgr.LiveKPIs(); ok && g.IntensityScore != nil {
		m.intensity = append(m.intensity, float64(*g.IntensityScore))
		if len(m.intensity) > intensityHistoryLen {
			m.intensity = m.intensity[len(m.intensity)-intensityHistoryLen:]
		}
	}
}

func (m *Model) scheduleNext() tea.Cmd {
	if m.next >= len(m.frames) {
		return func() tea.Msg { return frameMsg{} }
	}
	elapsed := m.now().Sub(m.startedAt)
	wait := time.Duration(m.frames[m.next].T)*time.Millisecond - elapsed
	if wait < 0 {
		wait = 0
	}
	return tea.Tick(wait, func(time.Time) tea.Msg { return frameMsg{} })
}

func (m *Model) end() {
	rec, err := m.mgr.End(context.Background())
	m.final = rec
	m.saveErr = err
	if err != nil {
		m.log.WithError(err).Error("failed to save session")
	}
}
