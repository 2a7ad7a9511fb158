package store

import (
	"context"
	"fmt"
	"time"
)

// Health returns aggregated job counts for status reporting.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("health query: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var (
			statusStr string
			count     int
		)
		if err := rows.Scan(&statusStr, &count); err != nil {
			return HealthSummary{}, fmt.Errorf("scan health row: %w", err)
		}
		summary.Total += count
		switch Status(statusStr) {
		case StatusPending:
			summary.Pending = count
		case StatusAnalyzing, StatusImporting:
			summary.Analyzing += count
		case StatusWaitingForUser:
			summary.WaitingForUser = count
		case StatusImported:
			summary.Imported = count
		case StatusFailed:
			summary.Failed = count
		}
	}
	return summary, rows.Err()
}

// PurgeExpired deletes terminal jobs last updated before the cutoff and
// returns the removed rows so callers can clean their files up.
func (s *Store) PurgeExpired(ctx context.Context, cutoff time.Time) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE status IN (?, ?, ?) AND updated_at < ?`,
		StatusImported,
		StatusDuplicate,
		StatusFailed,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("query expired jobs: %w", err)
	}
	defer rows.Close()

	var expired []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired job: %w", err)
		}
		expired = append(expired, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, job := range expired {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, job.ID); err != nil {
			return nil, fmt.Errorf("delete expired job %d: %w", job.ID, err)
		}
	}
	return expired, nil
}

// ReferencedPaths returns every stored and extracted path known to the
// database, used to detect orphaned files on disk.
func (s *Store) ReferencedPaths(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT stored_path, extracted_path FROM jobs`)
	if err != nil {
		return nil, fmt.Errorf("query referenced paths: %w", err)
	}
	defer rows.Close()

	paths := make(map[string]struct{})
	for rows.Next() {
		var stored, extracted *string
		if err := rows.Scan(&stored, &extracted); err != nil {
			return nil, fmt.Errorf("scan referenced paths: %w", err)
		}
		if stored != nil && *stored != "" {
			paths[*stored] = struct{}{}
		}
		if extracted != nil && *extracted != "" {
			paths[*extracted] = struct{}{}
		}
	}
	return paths, rows.Err()
}
