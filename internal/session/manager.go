// Package session holds the active tracker on behalf of a UI and hands
// finalized records to a persistence collaborator.
package session

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sagar8169/improved-journey-mediaPose/internal/model"
	"github.com/Sagar8169/improved-journey-mediaPose/internal/tracker"
)

const (
	// DefaultHistoryLimit caps the in-memory history.
	DefaultHistoryLimit = 100
	// TrendWindow is how many recent sessions feed the historical trend.
	TrendWindow = 10
)

// Persister stores finalized sessions.
type Persister interface {
	SaveSession(ctx context.Context, rec *model.SessionRecord) error
}

// ManagerOptions configure NewManager. Every field is optional.
type ManagerOptions struct {
	Persister    Persister
	Logger       logrus.FieldLogger
	Clock        func() time.Time
	NewID        func() string
	HistoryLimit int
	// History seeds the in-memory history, newest first.
	History []model.SessionRecord
}

// Totals are lifetime aggregates over the sessions ended by a Manager.
type Totals struct {
	Sessions        int
	TotalReps       int
	PostureIssues   int
	BestShoulderSym *float64
	BestKneeSym     *float64
	LastUpdated     *time.Time
}

// Manager owns at most one active tracker.
type Manager struct {
	mu      sync.Mutex
	opts    ManagerOptions
	log     logrus.FieldLogger
	active  *tracker.Tracker
	history []model.SessionRecord
	totals  Totals
}

// NewManager returns an idle manager.
func NewManager(opts ManagerOptions) *Manager {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	history := append([]model.SessionRecord(nil), opts.History...)
	if len(history) > opts.HistoryLimit {
		history = history[:opts.HistoryLimit]
	}
	return &Manager{opts: opts, log: log, history: history}
}

// Start begins tracking a session. It reports false without error when a
// session is already active.
func (m *Manager) Start(userID string, modelComplexity int, mirror bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return false, nil
	}
	tr, err := tracker.New(tracker.Options{
		UserID:          userID,
		ModelComplexity: modelComplexity,
		MirrorUsed:      mirror,
		Clock:           m.opts.Clock,
		NewID:           m.opts.NewID,
	})
	if err != nil {
		return false, fmt.Errorf("start session: %w", err)
	}
	m.active = tr
	m.log.WithFields(logrus.Fields{
		"session_id": tr.Record().SessionID,
		"user_id":    userID,
	}).Info("session started")
	return true, nil
}

// Active reports whether a session is being tracked.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}

// UpdateFrame forwards a frame to the active tracker. Idle managers ignore
// frames.
func (m *Manager) UpdateFrame(p model.FrameUpdatePayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	return m.active.UpdateFrame(p)
}

// Interrupt records a tracking loss on the active session.
func (m *Manager) Interrupt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return
	}
	m.active.Interrupt()
	m.log.WithField("session_id", m.active.Record().SessionID).Debug("tracking interrupted")
}

// ApplyEvent forwards a classifier event to the active tracker.
func (m *Manager) ApplyEvent(ev model.RawEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	return m.active.ApplyEvent(ev)
}

// LiveKPIs returns the active session's live snapshot.
func (m *Manager) LiveKPIs() (model.GrapplingKPIs, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return model.GrapplingKPIs{}, false
	}
	return m.active.CurrentKPIs(), true
}

// Snapshot returns a deep copy of the active record for display, or nil.
func (m *Manager) Snapshot() *model.SessionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	return m.active.Record().Clone()
}

// End finalizes the active session, records it in history and persists it.
// A persistence failure is returned together with the finalized record.
// End on an idle manager returns nil, nil.
func (m *Manager) End(ctx context.Context) (*model.SessionRecord, error) {
	m.mu.Lock()
	tr := m.active
	if tr == nil {
		m.mu.Unlock()
		return nil, nil
	}
	m.active = nil
	window := m.history
	if len(window) > TrendWindow {
		window = window[:TrendWindow]
	}
	rec := tr.Finalize(window)
	m.history = append([]model.SessionRecord{*rec}, m.history...)
	if len(m.history) > m.opts.HistoryLimit {
		m.history = m.history[:m.opts.HistoryLimit]
	}
	m.addTotals(rec)
	m.mu.Unlock()

	log := m.log.WithFields(logrus.Fields{
		"session_id": rec.SessionID,
		"user_id":    rec.UserID,
		"frames":     rec.FrameCount,
	})
	for _, e := range rec.Errors {
		log.WithField("reason", e).Warn("report sub-metric failed")
	}
	log.Info("session finalized")

	if m.opts.Persister == nil {
		return rec, nil
	}
	if err := m.opts.Persister.SaveSession(ctx, rec); err != nil {
		log.WithError(err).Error("persist session")
		return rec, fmt.Errorf("persist session %s: %w", rec.SessionID, err)
	}
	return rec, nil
}

// Discard drops the active session without finalizing it.
func (m *Manager) Discard() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return
	}
	m.log.WithField("session_id", m.active.Record().SessionID).Info("session discarded")
	m.active = nil
}

// History returns finalized records, newest first.
func (m *Manager) History() []model.SessionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.SessionRecord(nil), m.history...)
}

// ClearHistory empties the in-memory history.
func (m *Manager) ClearHistory() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = nil
}

// Totals returns lifetime aggregates.
func (m *Manager) Totals() Totals {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totals
}

func (m *Manager) addTotals(rec *model.SessionRecord) {
	t := &m.totals
	t.Sessions++
	t.TotalReps += rec.TotalReps
	t.PostureIssues += rec.PostureIssues
	t.BestShoulderSym = lowest(t.BestShoulderSym, rec.ShoulderSym.Min)
	t.BestKneeSym = lowest(t.BestKneeSym, rec.KneeSym.Min)
	now := time.UnixMilli(*rec.EndTs)
	t.LastUpdated = &now
}

// lowest keeps the smaller asymmetry; an unobserved stat has +Inf min.
func lowest(best *float64, v float64) *float64 {
	if math.IsInf(v, 0) {
		return best
	}
	if best == nil || v < *best {
		return &v
	}
	return best
}
