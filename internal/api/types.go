package api

import (
	"time"

	"kicomport/internal/store"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// JobView describes a job in a transport-friendly format.
type JobView struct {
	ID               int64  `json:"id"`
	MD5              string `json:"md5"`
	OriginalFilename string `json:"originalFilename"`
	Status           string `json:"status"`
	IsDuplicate      bool   `json:"isDuplicate"`
	AIFailed         bool   `json:"aiFailed"`
	ErrorMessage     string `json:"errorMessage,omitempty"`
	CreatedAt        string `json:"createdAt,omitempty"`
	UpdatedAt        string `json:"updatedAt,omitempty"`
}

// JobDetailView extends JobView with components and the job timeline.
type JobDetailView struct {
	JobView
	Components []ComponentView `json:"components"`
	Logs       []JobLogView    `json:"logs"`
}

// ComponentView groups candidates for one logical part.
type ComponentView struct {
	ID                  int64           `json:"id"`
	Name                string          `json:"name"`
	SelectedSymbolID    *int64          `json:"selectedSymbolId,omitempty"`
	SelectedFootprintID *int64          `json:"selectedFootprintId,omitempty"`
	SelectedModelID     *int64          `json:"selectedModelId,omitempty"`
	Candidates          []CandidateView `json:"candidates"`
}

// CandidateView describes one scanned asset with its scores.
type CandidateView struct {
	ID             int64   `json:"id"`
	Kind           string  `json:"kind"`
	RelPath        string  `json:"relPath"`
	Name           string  `json:"name"`
	Description    string  `json:"description,omitempty"`
	PinCount       int     `json:"pinCount"`
	PadCount       int     `json:"padCount"`
	SizeBytes      int64   `json:"sizeBytes"`
	HeuristicScore float64 `json:"heuristicScore"`
	AIScore        float64 `json:"aiScore"`
	AIReason       string  `json:"aiReason,omitempty"`
	QualityScore   float64 `json:"qualityScore"`
	FeedbackScore  float64 `json:"feedbackScore"`
	CombinedScore  float64 `json:"combinedScore"`
	SelectedCount  int     `json:"selectedCount"`
}

// JobLogView is one job timeline entry.
type JobLogView struct {
	Level     string `json:"level"`
	Message   string `json:"message"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// UploadResponse reports the job created for an upload.
type UploadResponse struct {
	JobID     int64  `json:"jobId"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	RequestID string `json:"requestId,omitempty"`
}

// SelectRequest records one candidate pick for a component.
type SelectRequest struct {
	ComponentID int64  `json:"componentId"`
	Kind        string `json:"kind"`
	CandidateID *int64 `json:"candidateId"`
}

// ImportRequest triggers copying a job's selections into the library.
type ImportRequest struct {
	RenameTo string `json:"renameTo,omitempty"`
}

// ImportResponse reports per-kind import counts.
type ImportResponse struct {
	Symbols      int      `json:"symbols"`
	Footprints   int      `json:"footprints"`
	Models       int      `json:"models"`
	Destinations []string `json:"destinations"`
}

// HealthView aggregates job counts and component readiness.
type HealthView struct {
	Status         string `json:"status"`
	Total          int    `json:"total"`
	Pending        int    `json:"pending"`
	Analyzing      int    `json:"analyzing"`
	WaitingForUser int    `json:"waitingForUser"`
	Imported       int    `json:"imported"`
	Failed         int    `json:"failed"`
	AIEnabled      bool   `json:"aiEnabled"`
	AIReachable    *bool  `json:"aiReachable,omitempty"`
}

// ConfigView exposes the non-secret configuration the UI needs.
type ConfigView struct {
	LibraryIdentity string `json:"libraryIdentity"`
	SymbolDir       string `json:"symbolDir"`
	FootprintDir    string `json:"footprintDir"`
	ModelDir        string `json:"modelDir"`
	InboxDir        string `json:"inboxDir,omitempty"`
	MaxUploadBytes  int64  `json:"maxUploadBytes"`
	OllamaEnabled   bool   `json:"ollamaEnabled"`
	OllamaModel     string `json:"ollamaModel,omitempty"`
	RetentionDays   int    `json:"retentionDays"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func jobView(job *store.Job) JobView {
	return JobView{
		ID:               job.ID,
		MD5:              job.MD5,
		OriginalFilename: job.OriginalFilename,
		Status:           string(job.Status),
		IsDuplicate:      job.IsDuplicate,
		AIFailed:         job.AIFailed,
		ErrorMessage:     job.ErrorMessage,
		CreatedAt:        formatTime(job.CreatedAt),
		UpdatedAt:        formatTime(job.UpdatedAt),
	}
}

func componentView(comp *store.Component) ComponentView {
	view := ComponentView{
		ID:                  comp.ID,
		Name:                comp.Name,
		SelectedSymbolID:    comp.SelectedSymbolID,
		SelectedFootprintID: comp.SelectedFootprintID,
		SelectedModelID:     comp.SelectedModelID,
		Candidates:          make([]CandidateView, 0, len(comp.Candidates)),
	}
	for _, cand := range comp.Candidates {
		view.Candidates = append(view.Candidates, CandidateView{
			ID:             cand.ID,
			Kind:           string(cand.Kind),
			RelPath:        cand.RelPath,
			Name:           cand.Name,
			Description:    cand.Description,
			PinCount:       cand.PinCount,
			PadCount:       cand.PadCount,
			SizeBytes:      cand.SizeBytes,
			HeuristicScore: cand.HeuristicScore,
			AIScore:        cand.AIScore,
			AIReason:       cand.AIReason,
			QualityScore:   cand.QualityScore,
			FeedbackScore:  cand.FeedbackScore,
			CombinedScore:  cand.CombinedScore,
			SelectedCount:  cand.SelectedCount,
		})
	}
	return view
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
