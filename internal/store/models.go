package store

import (
	"strings"
	"time"

	"kicomport/internal/scan"
)

// Status represents the lifecycle of an intake job.
type Status string

const (
	StatusPending        Status = "pending"
	StatusAnalyzing      Status = "analyzing"
	StatusWaitingForUser Status = "waiting_for_user"
	StatusImporting      Status = "importing"
	StatusImported       Status = "imported"
	StatusDuplicate      Status = "duplicate"
	StatusFailed         Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusAnalyzing,
	StatusWaitingForUser,
	StatusImporting,
	StatusImported,
	StatusDuplicate,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status ends the job lifecycle.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusImported, StatusDuplicate, StatusFailed:
		return true
	default:
		return false
	}
}

// Job represents one uploaded or watched archive moving through intake.
type Job struct {
	ID               int64
	MD5              string
	OriginalFilename string
	StoredPath       string
	ExtractedPath    string
	Status           Status
	IsDuplicate      bool
	AIFailed         bool
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Component groups the candidates extracted for one logical part.
type Component struct {
	ID                  int64
	JobID               int64
	Name                string
	SelectedSymbolID    *int64
	SelectedFootprintID *int64
	SelectedModelID     *int64
	CreatedAt           time.Time

	// Candidates is populated by ComponentsForJob and GetComponent.
	Candidates []*Candidate
}

// SelectedID returns the selection for a candidate kind, or nil.
func (c *Component) SelectedID(kind scan.Kind) *int64 {
	switch kind {
	case scan.KindSymbol:
		return c.SelectedSymbolID
	case scan.KindFootprint:
		return c.SelectedFootprintID
	case scan.KindModel:
		return c.SelectedModelID
	default:
		return nil
	}
}

// Candidate is one scanned asset file persisted with its scores.
type Candidate struct {
	ID             int64
	ComponentID    int64
	Kind           scan.Kind
	Path           string
	RelPath        string
	Name           string
	Description    string
	PinCount       int
	PadCount       int
	SizeBytes      int64
	HeuristicScore float64
	AIScore        float64
	AIReason       string
	QualityScore   float64
	FeedbackScore  float64
	CombinedScore  float64
	SelectedCount  int
	CreatedAt      time.Time
}

// JobLog is one timeline entry attached to a job.
type JobLog struct {
	ID        int64
	JobID     int64
	Level     string
	Message   string
	CreatedAt time.Time
}

// HealthSummary describes aggregated job counts per key lifecycle states.
type HealthSummary struct {
	Total          int
	Pending        int
	Analyzing      int
	WaitingForUser int
	Imported       int
	Failed         int
}
