// Package store handles SQLite persistence of finalized sessions.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/Sagar8169/improved-journey-mediaPose/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrNotFound is returned when a session id is unknown.
var ErrNotFound = errors.New("session not found")

// Store wraps SQLite access for session data.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			frame_count INTEGER NOT NULL,
			detection_rate REAL NOT NULL,
			total_reps INTEGER NOT NULL,
			quality_flag TEXT NOT NULL,
			scorecard REAL,
			record_json TEXT NOT NULL,
			report_json TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS session_segments (
			session_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			t_start INTEGER NOT NULL,
			t_end INTEGER NOT NULL,
			reps INTEGER NOT NULL,
			posture_issues INTEGER NOT NULL,
			PRIMARY KEY (session_id, idx)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, ended_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// tsLayout is fixed width so stored timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTs(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(tsLayout)
}

// SaveSession stores a finalized session and its segments. Saving the same
// session id again replaces the previous row.
func (s *Store) SaveSession(ctx context.Context, rec *model.SessionRecord) (err error) {
	if rec == nil || rec.EndTs == nil {
		return errors.New("save session: record is not finalized")
	}
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	var reportJSON sql.NullString
	var scorecard sql.NullFloat64
	if rec.Report != nil {
		raw, err := json.Marshal(rec.Report)
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		reportJSON = sql.NullString{String: string(raw), Valid: true}
		if sc := rec.Report.Summary.OverallSessionScorecard; sc != nil {
			scorecard = sql.NullFloat64{Float64: *sc, Valid: true}
		}
	}
	detectionRate := 0.0
	if rec.DetectionRate != nil {
		detectionRate = *rec.DetectionRate
	}
	quality := model.QualityFlags{}
	if rec.QualityFlags != nil {
		quality = *rec.QualityFlags
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err == nil {
			return
		}
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			err = multierr.Append(err, fmt.Errorf("rollback: %w", rerr))
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (session_id, user_id, schema_version, started_at, ended_at, duration_ms, frame_count, detection_rate, total_reps, quality_flag, scorecard, record_json, report_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID,
		rec.UserID,
		rec.SchemaVersion,
		formatTs(rec.StartTs),
		formatTs(*rec.EndTs),
		rec.DurationMs(),
		rec.FrameCount,
		detectionRate,
		rec.TotalReps,
		quality.Label(),
		scorecard,
		string(recordJSON),
		reportJSON,
	)
	if err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM session_segments WHERE session_id = ?`, rec.SessionID); err != nil {
		return err
	}

	if len(rec.Segments) > 0 {
		stmt, perr := tx.PrepareContext(ctx,
			`INSERT INTO session_segments (session_id, idx, t_start, t_end, reps, posture_issues)
			 VALUES (?, ?, ?, ?, ?, ?)`)
		if perr != nil {
			err = perr
			return err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for i, seg := range rec.Segments {
			if _, err = stmt.ExecContext(ctx, rec.SessionID, i, seg.TStart, seg.TEnd, seg.Reps, seg.PostureIssues); err != nil {
				return err
			}
		}
	}

	err = tx.Commit()
	return err
}

// GetSession loads a stored session record.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*model.SessionRecord, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT record_json FROM sessions WHERE session_id = ?`, sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}
	return decodeRecord(raw)
}

func decodeRecord(raw string) (*model.SessionRecord, error) {
	var rec model.SessionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}

// RecentRecords returns up to n of the user's most recent sessions, newest
// first. An empty userID matches every user.
func (s *Store) RecentRecords(ctx context.Context, userID string, n int) ([]model.SessionRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_json FROM sessions
		 WHERE (? = '' OR user_id = ?)
		 ORDER BY ended_at DESC
		 LIMIT ?`, userID, userID, n)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.SessionRecord
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListSessions returns session aggregates filtered by stats config, oldest
// first.
func (s *Store) ListSessions(ctx context.Context, cfg model.StatsConfig) ([]model.SessionAggregate, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, cfg.UserID)
	}
	if cfg.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, cfg.Since.UTC().Format(tsLayout))
	}
	if cfg.HideLowQuality {
		clauses = append(clauses, "quality_flag = 'good'")
	}
	limit := -1
	if cfg.Last > 0 {
		limit = cfg.Last
	}
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT * FROM (
		SELECT session_id, user_id, started_at, ended_at, duration_ms, frame_count, detection_rate, total_reps, quality_flag, scorecard
		FROM sessions
		WHERE %s
		ORDER BY ended_at DESC
		LIMIT ?
	) ORDER BY ended_at ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var sessions []model.SessionAggregate
	for rows.Next() {
		var agg model.SessionAggregate
		var startedAt, endedAt string
		var scorecard sql.NullFloat64
		if err := rows.Scan(&agg.SessionID, &agg.UserID, &startedAt, &endedAt, &agg.DurationMs, &agg.FrameCount,
			&agg.DetectionRate, &agg.TotalReps, &agg.QualityFlag, &scorecard); err != nil {
			return nil, err
		}
		if agg.StartedAt, err = time.Parse(tsLayout, startedAt); err != nil {
			return nil, err
		}
		if agg.EndedAt, err = time.Parse(tsLayout, endedAt); err != nil {
			return nil, err
		}
		if scorecard.Valid {
			v := scorecard.Float64
			agg.Scorecard = &v
		}
		sessions = append(sessions, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// ListSegmentsForSessions returns the stored segments of each session.
func (s *Store) ListSegmentsForSessions(ctx context.Context, sessionIDs []string) (map[string][]model.SegmentSummary, error) {
	if len(sessionIDs) == 0 {
		return map[string][]model.SegmentSummary{}, nil
	}
	placeholders := make([]string, len(sessionIDs))
	args := make([]any, len(sessionIDs))
	for i, id := range sessionIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT session_id, t_start, t_end, reps, posture_issues
		FROM session_segments
		WHERE session_id IN (%s)
		ORDER BY session_id, idx`, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	result := map[string][]model.SegmentSummary{}
	for rows.Next() {
		var id string
		var seg model.SegmentSummary
		if err := rows.Scan(&id, &seg.TStart, &seg.TEnd, &seg.Reps, &seg.PostureIssues); err != nil {
			return nil, err
		}
		result[id] = append(result[id], seg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
