package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AddCandidate inserts a scanned candidate and fills in its assigned ID.
func (s *Store) AddCandidate(ctx context.Context, cand *Candidate) error {
	if cand == nil {
		return errors.New("candidate is nil")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO candidates (
            component_id, kind, path, rel_path, name, description,
            pin_count, pad_count, size_bytes, heuristic_score, ai_score, ai_reason,
            quality_score, feedback_score, combined_score, selected_count, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cand.ComponentID,
		cand.Kind,
		cand.Path,
		cand.RelPath,
		cand.Name,
		cand.Description,
		cand.PinCount,
		cand.PadCount,
		cand.SizeBytes,
		cand.HeuristicScore,
		cand.AIScore,
		nullableString(cand.AIReason),
		cand.QualityScore,
		cand.FeedbackScore,
		cand.CombinedScore,
		cand.SelectedCount,
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert candidate: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	cand.ID = id
	cand.CreatedAt = now
	return nil
}

// GetCandidate fetches a candidate by identifier. It returns nil when no
// candidate exists.
func (s *Store) GetCandidate(ctx context.Context, id int64) (*Candidate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = ?`, id)
	cand, err := scanCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get candidate: %w", err)
	}
	return cand, nil
}

// CandidatesForComponent returns a component's candidates ordered by combined
// score descending, then by insertion for stable ties.
func (s *Store) CandidatesForComponent(ctx context.Context, componentID int64) ([]*Candidate, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+candidateColumns+` FROM candidates
         WHERE component_id = ? ORDER BY combined_score DESC, id`,
		componentID,
	)
	if err != nil {
		return nil, fmt.Errorf("candidates for component: %w", err)
	}
	defer rows.Close()

	var cands []*Candidate
	for rows.Next() {
		cand, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		cands = append(cands, cand)
	}
	return cands, rows.Err()
}

// UpdateCandidateScores persists recomputed scores for a candidate.
func (s *Store) UpdateCandidateScores(ctx context.Context, cand *Candidate) error {
	if cand == nil {
		return errors.New("candidate is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE candidates
         SET heuristic_score = ?, ai_score = ?, ai_reason = ?, quality_score = ?,
             feedback_score = ?, combined_score = ?, selected_count = ?
         WHERE id = ?`,
		cand.HeuristicScore,
		cand.AIScore,
		nullableString(cand.AIReason),
		cand.QualityScore,
		cand.FeedbackScore,
		cand.CombinedScore,
		cand.SelectedCount,
		cand.ID,
	)
	if err != nil {
		return fmt.Errorf("update candidate scores: %w", err)
	}
	return nil
}

// SelectedCountByName sums how often candidates with a given name and kind
// were previously imported. The name match is case-insensitive.
func (s *Store) SelectedCountByName(ctx context.Context, kind, name string) (int, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(
		ctx,
		`SELECT SUM(selected_count) FROM candidates
         WHERE kind = ? AND name = ? COLLATE NOCASE`,
		kind,
		name,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("selected count by name: %w", err)
	}
	return int(total.Int64), nil
}
