package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kicomport/internal/scan"
)

// AddComponent inserts a component grouping candidates for one logical part.
func (s *Store) AddComponent(ctx context.Context, jobID int64, name string) (*Component, error) {
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO components (job_id, name, created_at) VALUES (?, ?, ?)`,
		jobID,
		name,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert component: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetComponent(ctx, id)
}

// GetComponent fetches a component with its candidates. It returns nil when
// no component exists.
func (s *Store) GetComponent(ctx context.Context, id int64) (*Component, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+componentColumns+` FROM components WHERE id = ?`, id)
	comp, err := scanComponent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get component: %w", err)
	}
	comp.Candidates, err = s.CandidatesForComponent(ctx, comp.ID)
	if err != nil {
		return nil, err
	}
	return comp, nil
}

// ComponentsForJob returns a job's components with candidates attached,
// ordered by insertion.
func (s *Store) ComponentsForJob(ctx context.Context, jobID int64) ([]*Component, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+componentColumns+` FROM components WHERE job_id = ? ORDER BY id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("components for job: %w", err)
	}
	defer rows.Close()

	var comps []*Component
	for rows.Next() {
		comp, err := scanComponent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan component: %w", err)
		}
		comps = append(comps, comp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, comp := range comps {
		comp.Candidates, err = s.CandidatesForComponent(ctx, comp.ID)
		if err != nil {
			return nil, err
		}
	}
	return comps, nil
}

// SetSelection records the chosen candidate for one kind on a component.
// A nil candidateID clears the selection for that kind.
func (s *Store) SetSelection(ctx context.Context, componentID int64, kind scan.Kind, candidateID *int64) error {
	var column string
	switch kind {
	case scan.KindSymbol:
		column = "selected_symbol_id"
	case scan.KindFootprint:
		column = "selected_footprint_id"
	case scan.KindModel:
		column = "selected_model_id"
	default:
		return fmt.Errorf("unknown candidate kind %q", kind)
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE components SET `+column+` = ? WHERE id = ?`,
		nullableID(candidateID),
		componentID,
	)
	if err != nil {
		return fmt.Errorf("set selection: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set selection rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("component %d not found", componentID)
	}
	return nil
}

// ResetSelections clears all candidate selections for a job's components.
func (s *Store) ResetSelections(ctx context.Context, jobID int64) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE components
         SET selected_symbol_id = NULL, selected_footprint_id = NULL, selected_model_id = NULL
         WHERE job_id = ?`,
		jobID,
	)
	if err != nil {
		return fmt.Errorf("reset selections: %w", err)
	}
	return nil
}
