package recorder

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists pipeline history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so dashboards can read while refreshes write.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pipeline_runs (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp        INTEGER NOT NULL,
			pair             TEXT NOT NULL,
			lookback         TEXT,
			interval         TEXT,
			outcome          TEXT,
			error_kind       TEXT,
			error            TEXT,
			optional_status  TEXT,
			primary_points   INTEGER,
			secondary_points INTEGER,
			duration_ms      INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON pipeline_runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS ratio_snapshots (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			pair      TEXT NOT NULL,
			series    TEXT NOT NULL,
			bar_time  INTEGER,
			value     REAL,
			change    REAL,
			high      REAL,
			low       REAL,
			position  REAL,
			rsi       REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ratio_pair ON ratio_snapshots(pair, series, timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(run *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := run.Timestamp
	if ts == 0 {
		ts = time.Now().Unix()
	}
	_, err := r.db.Exec(`INSERT INTO pipeline_runs
		(timestamp, pair, lookback, interval, outcome, error_kind, error,
		 optional_status, primary_points, secondary_points, duration_ms)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		ts, run.Pair, run.Lookback, run.Interval, run.Outcome, run.ErrorKind, run.Error,
		run.OptionalStatus, run.PrimaryPoints, run.SecondaryPoints, run.DurationMs,
	)
	return err
}

func (r *SQLiteRecorder) RecordRatio(rec *RatioRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := rec.Timestamp
	if ts == 0 {
		ts = time.Now().Unix()
	}
	_, err := r.db.Exec(`INSERT INTO ratio_snapshots
		(timestamp, pair, series, bar_time, value, change, high, low, position, rsi)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		ts, rec.Pair, rec.Series, rec.Time, rec.Value, rec.Change,
		rec.High, rec.Low, rec.Position, rec.RSI,
	)
	return err
}

// LatestRatio returns the most recent record for a series, or nil if none exists.
func (r *SQLiteRecorder) LatestRatio(pair, series string) (*RatioRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := RatioRecord{Pair: pair, Series: series}
	err := r.db.QueryRow(`SELECT timestamp, bar_time, value, change, high, low, position, rsi
		FROM ratio_snapshots WHERE pair = ? AND series = ?
		ORDER BY timestamp DESC, id DESC LIMIT 1`, pair, series).
		Scan(&rec.Timestamp, &rec.Time, &rec.Value, &rec.Change, &rec.High, &rec.Low, &rec.Position, &rec.RSI)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecentRuns returns up to limit runs, newest first.
func (r *SQLiteRecorder) RecentRuns(limit int) ([]RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT timestamp, pair, lookback, interval, outcome, error_kind, error,
		optional_status, primary_points, secondary_points, duration_ms
		FROM pipeline_runs ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var run RunRecord
		if err := rows.Scan(&run.Timestamp, &run.Pair, &run.Lookback, &run.Interval, &run.Outcome,
			&run.ErrorKind, &run.Error, &run.OptionalStatus,
			&run.PrimaryPoints, &run.SecondaryPoints, &run.DurationMs); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
