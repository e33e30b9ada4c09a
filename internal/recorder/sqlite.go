package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"StageSentinel/internal/model"
)

// SQLiteRecorder persists historical data to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the API read while the scheduler writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS generation_runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT NOT NULL UNIQUE,
			timestamp   INTEGER NOT NULL,
			symbol      TEXT NOT NULL,
			source      TEXT,
			start_date  TEXT,
			end_date    TEXT,
			base_price  REAL,
			days        INTEGER,
			stage       INTEGER,
			sata_score  REAL,
			close       REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON generation_runs(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_symbol ON generation_runs(symbol)`,

		`CREATE TABLE IF NOT EXISTS stage_transitions (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id     TEXT NOT NULL,
			symbol     TEXT NOT NULL,
			date       TEXT NOT NULL,
			from_stage INTEGER,
			to_stage   INTEGER,
			trigger_text TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_run ON stage_transitions(run_id)`,

		`CREATE TABLE IF NOT EXISTS alerts (
			id         TEXT PRIMARY KEY,
			timestamp  INTEGER NOT NULL,
			kind       TEXT,
			symbol     TEXT,
			title      TEXT,
			from_stage INTEGER,
			to_stage   INTEGER,
			trigger_text TEXT,
			sata_score REAL,
			confidence REAL,
			price      REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(timestamp)`,
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

	ts := run.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.db.Exec(`INSERT INTO generation_runs
		(run_id, timestamp, symbol, source, start_date, end_date, base_price, days, stage, sata_score, close)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		run.RunID, ts.Unix(), run.Symbol, run.Source,
		run.StartDate.String(), run.EndDate.String(), run.BasePrice, run.Days,
		int(run.Stage), run.SATAScore, run.Close,
	)
	return err
}

func (r *SQLiteRecorder) RecordTransitions(runID, symbol string, transitions []model.StageTransition) error {
	if len(transitions) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO stage_transitions
		(run_id, symbol, date, from_stage, to_stage, trigger_text) VALUES (?,?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, t := range transitions {
		if _, err := stmt.Exec(runID, symbol, t.Date.String(), int(t.FromStage), int(t.ToStage), t.Trigger); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert transition: %w", err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordAlert(a *model.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT OR REPLACE INTO alerts
		(id, timestamp, kind, symbol, title, from_stage, to_stage, trigger_text, sata_score, confidence, price)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.CreatedAt.Unix(), string(a.Kind), a.Symbol, a.Title,
		int(a.FromStage), int(a.ToStage), a.Trigger, a.SATAScore, a.Confidence, a.Price,
	)
	return err
}

// RecentRuns returns up to limit runs, newest first.
func (r *SQLiteRecorder) RecentRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`SELECT g.run_id, g.timestamp, g.symbol, g.source, g.start_date, g.end_date,
		g.base_price, g.days, g.stage, g.sata_score, g.close,
		(SELECT COUNT(*) FROM stage_transitions t WHERE t.run_id = g.run_id)
		FROM generation_runs g ORDER BY g.timestamp DESC, g.id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var (
			run        RunRecord
			ts         int64
			start, end string
			stage      int
		)
		if err := rows.Scan(&run.RunID, &ts, &run.Symbol, &run.Source, &start, &end,
			&run.BasePrice, &run.Days, &stage, &run.SATAScore, &run.Close, &run.Transitions); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.CreatedAt = time.Unix(ts, 0)
		run.Stage = model.Stage(stage)
		if run.StartDate, err = model.ParseDate(start); err != nil {
			return nil, err
		}
		if run.EndDate, err = model.ParseDate(end); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
