package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/slurmview/slurmview/pkg/models"
)

// SQLiteStore is a SQLite-backed transition history.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the history database.
// WAL keeps readers from blocking the recording writer; the single open
// connection serializes writes so SQLITE_BUSY never surfaces.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=10000&_synchronous=NORMAL", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transitions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL,
		job_name TEXT,
		user TEXT,
		old_status TEXT NOT NULL,
		new_status TEXT NOT NULL,
		observed_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transitions_job_id ON transitions(job_id);
	CREATE INDEX IF NOT EXISTS idx_transitions_observed_at ON transitions(observed_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordTransition appends one observed status change.
func (s *SQLiteStore) RecordTransition(t Transition) error {
	observed := t.ObservedAt
	if observed.IsZero() {
		observed = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO transitions (job_id, job_name, user, old_status, new_status, observed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.JobID, t.JobName, t.User, string(t.OldStatus), string(t.NewStatus), observed,
	)
	if err != nil {
		return fmt.Errorf("record transition for job %s: %w", t.JobID, err)
	}
	return nil
}

// ListTransitions returns recorded transitions, newest first.
func (s *SQLiteStore) ListTransitions(jobID string, limit int) ([]Transition, error) {
	query := `SELECT id, job_id, job_name, user, old_status, new_status, observed_at
		  FROM transitions`
	var args []interface{}
	if jobID != "" {
		query += ` WHERE job_id = ?`
		args = append(args, jobID)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var t Transition
		var oldS, newS string
		if err := rows.Scan(&t.ID, &t.JobID, &t.JobName, &t.User, &oldS, &newS, &t.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		t.OldStatus = models.JobStatus(oldS)
		t.NewStatus = models.JobStatus(newS)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
