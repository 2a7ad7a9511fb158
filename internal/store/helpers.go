package store

import (
	"database/sql"
	"errors"
	"time"

	"kicomport/internal/scan"
)

type rowScanner interface{ Scan(dest ...any) error }

const jobColumns = "id, md5, original_filename, stored_path, extracted_path, status, is_duplicate, ai_failed, error_message, created_at, updated_at"

func scanJob(scanner rowScanner) (*Job, error) {
	var (
		id            int64
		md5           string
		original      string
		storedPath    sql.NullString
		extractedPath sql.NullString
		statusStr     string
		isDuplicate   sql.NullInt64
		aiFailed      sql.NullInt64
		errorMessage  sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)
	if err := scanner.Scan(
		&id, &md5, &original, &storedPath, &extractedPath, &statusStr,
		&isDuplicate, &aiFailed, &errorMessage, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:               id,
		MD5:              md5,
		OriginalFilename: original,
		StoredPath:       storedPath.String,
		ExtractedPath:    extractedPath.String,
		Status:           Status(statusStr),
		ErrorMessage:     errorMessage.String,
	}
	if isDuplicate.Valid {
		job.IsDuplicate = isDuplicate.Int64 != 0
	}
	if aiFailed.Valid {
		job.AIFailed = aiFailed.Int64 != 0
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

const componentColumns = "id, job_id, name, selected_symbol_id, selected_footprint_id, selected_model_id, created_at"

func scanComponent(scanner rowScanner) (*Component, error) {
	var (
		id          int64
		jobID       int64
		name        string
		symbolID    sql.NullInt64
		footprintID sql.NullInt64
		modelID     sql.NullInt64
		createdRaw  sql.NullString
	)
	if err := scanner.Scan(&id, &jobID, &name, &symbolID, &footprintID, &modelID, &createdRaw); err != nil {
		return nil, err
	}

	comp := &Component{ID: id, JobID: jobID, Name: name}
	if symbolID.Valid {
		comp.SelectedSymbolID = &symbolID.Int64
	}
	if footprintID.Valid {
		comp.SelectedFootprintID = &footprintID.Int64
	}
	if modelID.Valid {
		comp.SelectedModelID = &modelID.Int64
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		comp.CreatedAt = created
	}
	return comp, nil
}

const candidateColumns = "id, component_id, kind, path, rel_path, name, description, pin_count, pad_count, size_bytes, heuristic_score, ai_score, ai_reason, quality_score, feedback_score, combined_score, selected_count, created_at"

func scanCandidate(scanner rowScanner) (*Candidate, error) {
	var (
		id            int64
		componentID   int64
		kind          string
		path          string
		relPath       string
		name          string
		description   string
		pinCount      int
		padCount      int
		sizeBytes     int64
		heuristic     float64
		aiScore       float64
		aiReason      sql.NullString
		quality       float64
		feedback      float64
		combined      float64
		selectedCount int
		createdRaw    sql.NullString
	)
	if err := scanner.Scan(
		&id, &componentID, &kind, &path, &relPath, &name, &description,
		&pinCount, &padCount, &sizeBytes, &heuristic, &aiScore, &aiReason,
		&quality, &feedback, &combined, &selectedCount, &createdRaw,
	); err != nil {
		return nil, err
	}

	cand := &Candidate{
		ID:             id,
		ComponentID:    componentID,
		Kind:           scan.Kind(kind),
		Path:           path,
		RelPath:        relPath,
		Name:           name,
		Description:    description,
		PinCount:       pinCount,
		PadCount:       padCount,
		SizeBytes:      sizeBytes,
		HeuristicScore: heuristic,
		AIScore:        aiScore,
		AIReason:       aiReason.String,
		QualityScore:   quality,
		FeedbackScore:  feedback,
		CombinedScore:  combined,
		SelectedCount:  selectedCount,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		cand.CreatedAt = created
	}
	return cand, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableID(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
