// Package store wraps SQLite persistence for incidents, the ingest ledger,
// and ops jobs.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"crimemap/incident"
	"crimemap/ingest"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS incidents (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            source_file TEXT NOT NULL,
            year INTEGER NOT NULL,
            month INTEGER NOT NULL,
            longitude REAL NOT NULL,
            latitude REAL NOT NULL,
            crime_type TEXT NOT NULL,
            outcome TEXT NULL,
            status TEXT NOT NULL,
            created_at TIMESTAMP
        );`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_filter ON incidents(crime_type, year, month);`,
		`CREATE TABLE IF NOT EXISTS ingested_files (
            filename TEXT PRIMARY KEY,
            rows INTEGER,
            kept INTEGER,
            dropped INTEGER,
            malformed INTEGER,
            status TEXT,
            last_error TEXT NULL,
            ingested_at TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS ops_jobs (
            id TEXT PRIMARY KEY,
            type TEXT NOT NULL,
            status TEXT NOT NULL,
            payload TEXT NULL,
            accepted INTEGER DEFAULT 0,
            created_at TIMESTAMP,
            finished_at TIMESTAMP,
            last_error TEXT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS ops_job_logs (
            job_id TEXT,
            ts TIMESTAMP,
            level TEXT,
            message TEXT
        );`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// FileRecord is one row of the ingest ledger.
type FileRecord struct {
	Filename   string    `json:"filename"`
	Rows       int       `json:"rows"`
	Kept       int       `json:"kept"`
	Dropped    int       `json:"dropped"`
	Malformed  int       `json:"malformed"`
	Status     string    `json:"status"`
	LastError  *string   `json:"last_error,omitempty"`
	IngestedAt time.Time `json:"ingested_at"`
}

// File ingest statuses.
const (
	FileStatusDone  = "done"
	FileStatusError = "error"
)

// ReplaceFileIncidents swaps in the incidents for one extract file and
// records the ledger row, atomically. Re-ingesting a file replaces its
// previous rows rather than duplicating them.
func (s *Store) ReplaceFileIncidents(ctx context.Context, filename string, incidents []incident.Incident, summary ingest.Summary, ts time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM incidents WHERE source_file = ?`, filename); err != nil {
		return err
	}
	insert, err := tx.PrepareContext(ctx, `INSERT INTO incidents(source_file, year, month, longitude, latitude, crime_type, outcome, status, created_at) VALUES(?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer insert.Close()
	for _, inc := range incidents {
		if _, err := insert.ExecContext(ctx, filename, inc.Year, inc.Month, inc.Longitude, inc.Latitude, inc.CrimeType, inc.OutcomeText, string(inc.Status), ts); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO ingested_files(filename, rows, kept, dropped, malformed, status, last_error, ingested_at)
        VALUES(?,?,?,?,?,?,NULL,?)
        ON CONFLICT(filename) DO UPDATE SET rows=excluded.rows, kept=excluded.kept, dropped=excluded.dropped, malformed=excluded.malformed, status=excluded.status, last_error=NULL, ingested_at=excluded.ingested_at`,
		filename, summary.Rows, summary.Kept, summary.Dropped, summary.Malformed, FileStatusDone, ts); err != nil {
		return err
	}
	return tx.Commit()
}

// MarkFileFailed records a failed ingest attempt in the ledger.
func (s *Store) MarkFileFailed(ctx context.Context, filename, errMsg string, ts time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO ingested_files(filename, rows, kept, dropped, malformed, status, last_error, ingested_at)
        VALUES(?,0,0,0,0,?,?,?)
        ON CONFLICT(filename) DO UPDATE SET status=excluded.status, last_error=excluded.last_error, ingested_at=excluded.ingested_at`,
		filename, FileStatusError, errMsg, ts)
	return err
}

// IngestedFiles returns ledger rows keyed by filename.
func (s *Store) IngestedFiles(ctx context.Context) (map[string]FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT filename, rows, kept, dropped, malformed, status, last_error, ingested_at FROM ingested_files`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]FileRecord)
	for rows.Next() {
		var rec FileRecord
		var lastErr sql.NullString
		if err := rows.Scan(&rec.Filename, &rec.Rows, &rec.Kept, &rec.Dropped, &rec.Malformed, &rec.Status, &lastErr, &rec.IngestedAt); err != nil {
			return nil, err
		}
		if lastErr.Valid {
			rec.LastError = &lastErr.String
		}
		out[rec.Filename] = rec
	}
	return out, rows.Err()
}

// Query restricts incident listings to one crime type, year, and inclusive
// month window.
type Query struct {
	CrimeType string
	Year      int
	MonthFrom int
	MonthTo   int
}

// ListIncidents returns matching incidents ordered by insertion.
func (s *Store) ListIncidents(ctx context.Context, q Query) ([]incident.Incident, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT year, month, longitude, latitude, crime_type, outcome, status FROM incidents
        WHERE crime_type = ? AND year = ? AND month >= ? AND month <= ? ORDER BY id`,
		q.CrimeType, q.Year, q.MonthFrom, q.MonthTo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var incidents []incident.Incident
	for rows.Next() {
		var inc incident.Incident
		var outcome sql.NullString
		var status string
		if err := rows.Scan(&inc.Year, &inc.Month, &inc.Longitude, &inc.Latitude, &inc.CrimeType, &outcome, &status); err != nil {
			return nil, err
		}
		if outcome.Valid {
			inc.OutcomeText = &outcome.String
		}
		inc.Status = incident.Status(status)
		incidents = append(incidents, inc)
	}
	return incidents, rows.Err()
}

// StatusCounts tallies matching incidents per status bucket.
func (s *Store) StatusCounts(ctx context.Context, q Query) (map[incident.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM incidents
        WHERE crime_type = ? AND year = ? AND month >= ? AND month <= ? GROUP BY status`,
		q.CrimeType, q.Year, q.MonthFrom, q.MonthTo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[incident.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[incident.Status(status)] = n
	}
	return counts, rows.Err()
}

// FilterValues summarizes what the stored data can be filtered by.
type FilterValues struct {
	CrimeTypes []string `json:"crime_types"`
	Years      []int    `json:"years"`
}

func (s *Store) ListFilterValues(ctx context.Context) (FilterValues, error) {
	var fv FilterValues
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT crime_type FROM incidents ORDER BY crime_type`)
	if err != nil {
		return fv, err
	}
	defer rows.Close()
	for rows.Next() {
		var ct string
		if err := rows.Scan(&ct); err != nil {
			return fv, err
		}
		fv.CrimeTypes = append(fv.CrimeTypes, ct)
	}
	if err := rows.Err(); err != nil {
		return fv, err
	}

	yearRows, err := s.db.QueryContext(ctx, `SELECT DISTINCT year FROM incidents ORDER BY year`)
	if err != nil {
		return fv, err
	}
	defer yearRows.Close()
	for yearRows.Next() {
		var y int
		if err := yearRows.Scan(&y); err != nil {
			return fv, err
		}
		fv.Years = append(fv.Years, y)
	}
	return fv, yearRows.Err()
}

// CountIncidents returns the total stored incident count.
func (s *Store) CountIncidents(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM incidents`).Scan(&n)
	return n, err
}

// Health returns an error when the DB is unreachable.
func (s *Store) Health(ctx context.Context) error {
	var v int
	if err := s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&v); err != nil {
		return fmt.Errorf("db health: %w", err)
	}
	return nil
}
