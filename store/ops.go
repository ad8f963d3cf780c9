package store

import (
	"context"
	"database/sql"
	"time"
)

// OpsJob tracks one operator-triggered action.
type OpsJob struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Status     string     `json:"status"`
	Payload    *string    `json:"payload,omitempty"`
	Accepted   int        `json:"accepted"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	LastError  *string    `json:"last_error,omitempty"`
}

// OpsJobLog is one log line attached to an ops job.
type OpsJobLog struct {
	Timestamp time.Time `json:"ts"`
	Level     string    `json:"level"`
	Message   string    `json:"msg"`
}

func (s *Store) RecordOpsJob(ctx context.Context, id, jobType string, payload *string, ts time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO ops_jobs(id, type, status, payload, created_at) VALUES(?,?,'running',?,?)`, id, jobType, payload, ts)
	return err
}

func (s *Store) CompleteOpsJob(ctx context.Context, id string, accepted int, errMsg string, ts time.Time) error {
	status := "succeeded"
	var lastErr *string
	if errMsg != "" {
		status = "failed"
		lastErr = &errMsg
	}
	_, err := s.db.ExecContext(ctx, `UPDATE ops_jobs SET status=?, accepted=?, last_error=?, finished_at=? WHERE id=?`, status, accepted, lastErr, ts, id)
	return err
}

func (s *Store) AppendOpsLog(ctx context.Context, jobID string, evt OpsJobLog) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO ops_job_logs(job_id, ts, level, message) VALUES(?,?,?,?)`, jobID, evt.Timestamp, evt.Level, evt.Message)
	return err
}

func (s *Store) ListOpsJobs(ctx context.Context, limit int) ([]OpsJob, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, type, status, payload, accepted, created_at, finished_at, last_error FROM ops_jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []OpsJob
	for rows.Next() {
		j, err := scanOpsJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *Store) GetOpsJob(ctx context.Context, id string) (OpsJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, type, status, payload, accepted, created_at, finished_at, last_error FROM ops_jobs WHERE id=?`, id)
	j, err := scanOpsJob(row.Scan)
	if err == sql.ErrNoRows {
		return j, ErrNotFound
	}
	return j, err
}

func (s *Store) OpsJobLogs(ctx context.Context, jobID string, limit int) ([]OpsJobLog, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ts, level, message FROM ops_job_logs WHERE job_id=? ORDER BY ts ASC LIMIT ?`, jobID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []OpsJobLog
	for rows.Next() {
		var evt OpsJobLog
		if err := rows.Scan(&evt.Timestamp, &evt.Level, &evt.Message); err != nil {
			return nil, err
		}
		logs = append(logs, evt)
	}
	return logs, rows.Err()
}

func scanOpsJob(scan func(...any) error) (OpsJob, error) {
	var j OpsJob
	var payload, lastErr sql.NullString
	var finished sql.NullTime
	if err := scan(&j.ID, &j.Type, &j.Status, &payload, &j.Accepted, &j.CreatedAt, &finished, &lastErr); err != nil {
		return j, err
	}
	if payload.Valid {
		j.Payload = &payload.String
	}
	if finished.Valid {
		j.FinishedAt = &finished.Time
	}
	if lastErr.Valid {
		j.LastError = &lastErr.String
	}
	return j, nil
}
