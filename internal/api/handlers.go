package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"kicomport/internal/scan"
	"kicomport/internal/services"
	"kicomport/internal/store"
)

const (
	defaultJobLimit  = 100
	maxMultipartMem  = 4 << 20
	uploadsFormField = "file"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMem); err != nil {
		s.writeErrorStatus(w, r, http.StatusBadRequest, "request is not valid multipart form data")
		return
	}
	file, header, err := r.FormFile(uploadsFormField)
	if err != nil {
		s.writeErrorStatus(w, r, http.StatusBadRequest, fmt.Sprintf("multipart field %q is required", uploadsFormField))
		return
	}
	defer file.Close()

	job, err := s.pipeline.IngestUpload(r.Context(), file, header.Filename)
	if err != nil && job == nil {
		s.writeError(w, r, err)
		return
	}

	response := UploadResponse{
		JobID:     job.ID,
		Status:    string(job.Status),
		Duplicate: job.IsDuplicate,
	}
	if id, ok := services.RequestIDFromContext(r.Context()); ok {
		response.RequestID = id
	}
	s.writeJSON(w, http.StatusCreated, response)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	var statuses []store.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status, ok := store.ParseStatus(part)
			if !ok {
				s.writeErrorStatus(w, r, http.StatusBadRequest, fmt.Sprintf("unknown status %q", strings.TrimSpace(part)))
				return
			}
			statuses = append(statuses, status)
		}
	}

	limit := defaultJobLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeErrorStatus(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	jobs, err := s.store.ListJobs(r.Context(), statuses, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, jobView(job))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}

	components, err := s.store.ComponentsForJob(r.Context(), job.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	logs, err := s.store.JobLogs(r.Context(), job.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	detail := JobDetailView{
		JobView:    jobView(job),
		Components: make([]ComponentView, 0, len(components)),
		Logs:       make([]JobLogView, 0, len(logs)),
	}
	for _, comp := range components {
		detail.Components = append(detail.Components, componentView(comp))
	}
	for _, entry := range logs {
		detail.Logs = append(detail.Logs, JobLogView{
			Level:     entry.Level,
			Message:   entry.Message,
			CreatedAt: formatTime(entry.CreatedAt),
		})
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}

	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorStatus(w, r, http.StatusBadRequest, "request body is not valid JSON")
		return
	}
	kind, ok := parseKind(req.Kind)
	if !ok {
		s.writeErrorStatus(w, r, http.StatusBadRequest, fmt.Sprintf("unknown candidate kind %q", req.Kind))
		return
	}

	if err := s.pipeline.SelectCandidate(r.Context(), job.ID, req.ComponentID, kind, req.CandidateID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetSelections(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	if err := s.pipeline.ResetSelections(r.Context(), job.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}

	var req ImportRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeErrorStatus(w, r, http.StatusBadRequest, "request body is not valid JSON")
			return
		}
	}

	result, err := s.pipeline.Import(r.Context(), job.ID, req.RenameTo)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ImportResponse{
		Symbols:      result.Symbols,
		Footprints:   result.Footprints,
		Models:       result.Models,
		Destinations: result.Destinations,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	summary, err := s.store.Health(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	view := HealthView{
		Status:         "ok",
		Total:          summary.Total,
		Pending:        summary.Pending,
		Analyzing:      summary.Analyzing,
		WaitingForUser: summary.WaitingForUser,
		Imported:       summary.Imported,
		Failed:         summary.Failed,
		AIEnabled:      s.cfg.Ollama.Enabled,
	}
	if s.cfg.Ollama.Enabled && s.aiHealth != nil {
		reachable := s.aiHealth.Health(r.Context()) == nil
		view.AIReachable = &reachable
		if !reachable {
			view.Status = "degraded"
		}
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, ConfigView{
		LibraryIdentity: s.cfg.Library.Identity,
		SymbolDir:       s.cfg.Paths.SymbolDir,
		FootprintDir:    s.cfg.Paths.FootprintDir,
		ModelDir:        s.cfg.Paths.ModelDir,
		InboxDir:        s.cfg.Paths.InboxDir,
		MaxUploadBytes:  s.cfg.Limits.MaxUploadBytes,
		OllamaEnabled:   s.cfg.Ollama.Enabled,
		OllamaModel:     s.cfg.Ollama.Model,
		RetentionDays:   s.cfg.Retention.Days,
	})
}

// lookupJob resolves the {id} route parameter. It writes the error response
// itself and reports success through the boolean.
func (s *Server) lookupJob(w http.ResponseWriter, r *http.Request) (*store.Job, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeErrorStatus(w, r, http.StatusBadRequest, "job id must be an integer")
		return nil, false
	}
	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	if job == nil {
		s.writeErrorStatus(w, r, http.StatusNotFound, fmt.Sprintf("job %d not found", id))
		return nil, false
	}
	return job, true
}

func parseKind(value string) (scan.Kind, bool) {
	switch scan.Kind(strings.ToLower(strings.TrimSpace(value))) {
	case scan.KindSymbol:
		return scan.KindSymbol, true
	case scan.KindFootprint:
		return scan.KindFootprint, true
	case scan.KindModel:
		return scan.KindModel, true
	default:
		return "", false
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("Failed to encode response", "error", err)
	}
}

// writeError maps service error markers onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrUnsupported):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	s.writeErrorStatus(w, r, status, err.Error())
}

func (s *Server) writeErrorStatus(w http.ResponseWriter, r *http.Request, status int, message string) {
	response := errorResponse{Error: message}
	if id, ok := services.RequestIDFromContext(r.Context()); ok {
		response.RequestID = id
	}
	s.writeJSON(w, status, response)
}
