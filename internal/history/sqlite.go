// Package history persists evaluated samples and status transitions to
// SQLite, so operators can inspect what a metric did before a transition.
// The engine itself never reads history; it is an audit surface only, and
// the process runs memory-only when persistence is disabled.
package history

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/essenlikcia/health-tracker/internal/model"
)

// Store provides database operations.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens (or creates) the SQLite database and runs migrations.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite single-writer
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &Store{db: db, dbPath: dbPath}, nil
}

// DBPath returns the database file path.
func (s *Store) DBPath() string { return s.dbPath }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertSample records one evaluated sample. Failed acquisitions are stored
// with a NULL value so averages stay meaningful.
func (s *Store) InsertSample(sample model.Sample, status model.Status) error {
	var value sql.NullFloat64
	if sample.OK && !math.IsNaN(sample.Value) {
		value = sql.NullFloat64{Float64: sample.Value, Valid: true}
	}
	okInt := 0
	if sample.OK {
		okInt = 1
	}
	_, err := s.db.Exec(
		"INSERT INTO metric_samples (timestamp, metric, value, ok, status) VALUES (?, ?, ?, ?, ?)",
		sample.Timestamp.Unix(), sample.Metric, value, okInt, status.String())
	return err
}

// InsertTransition records a status change.
func (s *Store) InsertTransition(tr model.Transition) error {
	var value sql.NullFloat64
	if !math.IsNaN(tr.Value) {
		value = sql.NullFloat64{Float64: tr.Value, Valid: true}
	}
	_, err := s.db.Exec(
		"INSERT INTO status_transitions (timestamp, metric, from_status, to_status, value) VALUES (?, ?, ?, ?, ?)",
		tr.Timestamp.Unix(), tr.Metric, tr.From.String(), tr.To.String(), value)
	return err
}

// SamplePoint is one row of recorded history.
type SamplePoint struct {
	Timestamp int64    `json:"timestamp"`
	Metric    string   `json:"metric"`
	Value     *float64 `json:"value"`
	OK        bool     `json:"ok"`
	Status    string   `json:"status"`
}

// QuerySamples retrieves recorded samples for one metric with optional
// downsampling. step is in seconds; if step > 0, values are averaged per
// step (failed acquisitions are excluded from the averages).
func (s *Store) QuerySamples(name string, from, to int64, step int) ([]SamplePoint, error) {
	var rows *sql.Rows
	var err error

	if step > 0 {
		rows, err = s.db.Query(`
			SELECT (timestamp / ? * ?) as ts, metric, AVG(value), MAX(ok), MAX(status)
			FROM metric_samples
			WHERE metric = ? AND timestamp >= ? AND timestamp <= ?
			GROUP BY ts
			ORDER BY ts`,
			step, step, name, from, to)
	} else {
		rows, err = s.db.Query(`
			SELECT timestamp, metric, value, ok, status
			FROM metric_samples
			WHERE metric = ? AND timestamp >= ? AND timestamp <= ?
			ORDER BY timestamp`,
			name, from, to)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SamplePoint
	for rows.Next() {
		var p SamplePoint
		var value sql.NullFloat64
		var ok int
		if err := rows.Scan(&p.Timestamp, &p.Metric, &value, &ok, &p.Status); err != nil {
			return nil, err
		}
		if value.Valid {
			v := value.Float64
			p.Value = &v
		}
		p.OK = ok != 0
		result = append(result, p)
	}
	return result, rows.Err()
}

// TransitionRow is one recorded status change.
type TransitionRow struct {
	Timestamp int64    `json:"timestamp"`
	Metric    string   `json:"metric"`
	From      string   `json:"from"`
	To        string   `json:"to"`
	Value     *float64 `json:"value"`
}

// RecentTransitions returns the latest status changes, newest first.
// An empty name returns transitions for all metrics.
func (s *Store) RecentTransitions(name string, limit int) ([]TransitionRow, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if name == "" {
		rows, err = s.db.Query(`
			SELECT timestamp, metric, from_status, to_status, value
			FROM status_transitions ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	} else {
		rows, err = s.db.Query(`
			SELECT timestamp, metric, from_status, to_status, value
			FROM status_transitions WHERE metric = ?
			ORDER BY timestamp DESC, id DESC LIMIT ?`, name, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TransitionRow
	for rows.Next() {
		var t TransitionRow
		var value sql.NullFloat64
		if err := rows.Scan(&t.Timestamp, &t.Metric, &t.From, &t.To, &value); err != nil {
			return nil, err
		}
		if value.Valid {
			v := value.Float64
			t.Value = &v
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// PurgeOlderThan removes samples and transitions older than the given
// retention window.
func (s *Store) PurgeOlderThan(hours int) (int64, error) {
	cutoff := time.Now().Unix() - int64(hours*3600)
	res, err := s.db.Exec("DELETE FROM metric_samples WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	res, err = s.db.Exec("DELETE FROM status_transitions WHERE timestamp < ?", cutoff)
	if err != nil {
		return n, err
	}
	m, _ := res.RowsAffected()
	return n + m, nil
}
