package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NewJob inserts a pending job for an uploaded or watched archive.
func (s *Store) NewJob(ctx context.Context, md5, originalFilename, storedPath string) (*Job, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (md5, original_filename, stored_path, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		md5,
		originalFilename,
		nullableString(storedPath),
		StatusPending,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetJob(ctx, id)
}

// GetJob fetches a job by identifier. It returns nil when no job exists.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// FindJobByMD5 returns the most recent non-duplicate job matching a content hash.
func (s *Store) FindJobByMD5(ctx context.Context, md5 string) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE md5 = ? AND is_duplicate = 0 ORDER BY id DESC LIMIT 1`,
		md5,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find job by md5: %w", err)
	}
	return job, nil
}

// UpdateJob persists changes to an existing job.
func (s *Store) UpdateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET md5 = ?, original_filename = ?, stored_path = ?, extracted_path = ?,
             status = ?, is_duplicate = ?, ai_failed = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		job.MD5,
		job.OriginalFilename,
		nullableString(job.StoredPath),
		nullableString(job.ExtractedPath),
		job.Status,
		boolToInt(job.IsDuplicate),
		boolToInt(job.AIFailed),
		nullableString(job.ErrorMessage),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// SetStatus transitions a job to a new status, clearing any stale error message
// when the status is not failed.
func (s *Store) SetStatus(ctx context.Context, job *Job, status Status) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.Status = status
	if status != StatusFailed {
		job.ErrorMessage = ""
	}
	return s.UpdateJob(ctx, job)
}

// ListJobs returns jobs ordered newest first, optionally filtered by status.
func (s *Store) ListJobs(ctx context.Context, statuses []Status, limit int) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// AppendJobLog attaches a timeline entry to a job.
func (s *Store) AppendJobLog(ctx context.Context, jobID int64, level, message string) error {
	level = strings.ToUpper(strings.TrimSpace(level))
	if level == "" {
		level = "INFO"
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO job_logs (job_id, level, message, created_at) VALUES (?, ?, ?, ?)`,
		jobID,
		level,
		message,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append job log: %w", err)
	}
	return nil
}

// JobLogs returns the timeline for a job in insertion order.
func (s *Store) JobLogs(ctx context.Context, jobID int64) ([]*JobLog, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, job_id, level, message, created_at FROM job_logs WHERE job_id = ? ORDER BY id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("job logs: %w", err)
	}
	defer rows.Close()

	var logs []*JobLog
	for rows.Next() {
		var (
			entry      JobLog
			createdRaw sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.JobID, &entry.Level, &entry.Message, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan job log: %w", err)
		}
		if created, err := parseTimeString(createdRaw.String); err == nil {
			entry.CreatedAt = created
		}
		logs = append(logs, &entry)
	}
	return logs, rows.Err()
}
