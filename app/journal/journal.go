// Package journal keeps local records of submitted jobs in SQLite. Records allow to resume tails
// interrupted by restart and to list recently started jobs. WAL mode is enabled for concurrent
// status updates from parallel tails.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/umputun/jobtail/app/job"
)

// ErrNotFound returned when the job is not in the journal
var ErrNotFound = errors.New("job not found in journal")

// Entry is a submitted job
type Entry struct {
	ID          string
	Name        string
	Version     string
	RequestID   string
	Status      job.Status
	SubmittedAt time.Time
	FinishedAt  time.Time
}

// Request returns job request the entry was submitted with
func (e Entry) Request() job.Request {
	return job.Request{Name: e.Name, Version: e.Version}
}

// entryRow is Entry as stored, timestamps kept as unix seconds
type entryRow struct {
	ID          string     `db:"id"`
	Name        string     `db:"name"`
	Version     string     `db:"version"`
	RequestID   string     `db:"request_id"`
	Status      job.Status `db:"status"`
	SubmittedAt int64      `db:"submitted_at"`
	FinishedAt  int64      `db:"finished_at"`
}

func (r entryRow) entry() Entry {
	e := Entry{ID: r.ID, Name: r.Name, Version: r.Version, RequestID: r.RequestID, Status: r.Status}
	if r.SubmittedAt > 0 {
		e.SubmittedAt = time.Unix(r.SubmittedAt, 0)
	}
	if r.FinishedAt > 0 {
		e.FinishedAt = time.Unix(r.FinishedAt, 0)
	}
	return e
}

// SQLite implements journal with SQLite
type SQLite struct {
	db *sqlx.DB
}

// NewSQLite opens (or creates) the journal database and makes the schema
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	db.SetMaxOpenConns(1) // status updates from parallel tails serialized

	// enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to set WAL mode: %w (also failed to close db: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Printf("[DEBUG] journal opened at %s", dbPath)
	return s, nil
}

func (s *SQLite) initialize() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			version TEXT NOT NULL,
			request_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'unknown',
			submitted_at INTEGER NOT NULL DEFAULT 0,
			finished_at INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_submitted_at ON jobs(submitted_at)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Record saves submitted job, an existing record with the same id is replaced
func (s *SQLite) Record(e Entry) error {
	if e.ID == "" {
		return errors.New("can't record job without id")
	}
	if e.SubmittedAt.IsZero() {
		e.SubmittedAt = time.Now()
	}
	var finished int64
	if !e.FinishedAt.IsZero() {
		finished = e.FinishedAt.Unix()
	}

	_, err := s.db.Exec(`INSERT OR REPLACE INTO jobs (id, name, version, request_id, status, submitted_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Version, e.RequestID, e.Status, e.SubmittedAt.Unix(), finished)
	if err != nil {
		return fmt.Errorf("failed to record job %s: %w", e.ID, err)
	}
	return nil
}

// SetStatus updates job status. Zero finishedAt keeps the job unfinished.
func (s *SQLite) SetStatus(id string, status job.Status, finishedAt time.Time) error {
	var finished int64
	if !finishedAt.IsZero() {
		finished = finishedAt.Unix()
	}
	res, err := s.db.Exec(`UPDATE jobs SET status = ?, finished_at = ? WHERE id = ?`, status, finished, id)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update of job %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update job %s: %w", id, ErrNotFound)
	}
	return nil
}

// Get returns job by id
func (s *SQLite) Get(id string) (Entry, error) {
	var row entryRow
	err := s.db.Get(&row, `SELECT id, name, version, request_id, status, submitted_at, finished_at FROM jobs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("get job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	return row.entry(), nil
}

// Unfinished returns jobs without terminal status, oldest first
func (s *SQLite) Unfinished() ([]Entry, error) {
	return s.query(`SELECT id, name, version, request_id, status, submitted_at, finished_at FROM jobs
		WHERE status NOT IN (?, ?, ?) ORDER BY submitted_at ASC, rowid ASC`,
		job.StatusSuccess, job.StatusFailed, job.StatusAborted)
}

// List returns up to limit most recently submitted jobs, newest first
func (s *SQLite) List(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.query(`SELECT id, name, version, request_id, status, submitted_at, finished_at FROM jobs
		ORDER BY submitted_at DESC, rowid DESC LIMIT ?`, limit)
}

func (s *SQLite) query(q string, args ...any) ([]Entry, error) {
	var rows []entryRow
	if err := s.db.Select(&rows, q, args...); err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	res := make([]Entry, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.entry())
	}
	return res, nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}
