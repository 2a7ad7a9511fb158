package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"kicomport/internal/config"
	"kicomport/internal/extract"
	"kicomport/internal/importer"
	"kicomport/internal/logging"
	"kicomport/internal/ollama"
	"kicomport/internal/ranking"
	"kicomport/internal/scan"
	"kicomport/internal/services"
	"kicomport/internal/store"
	"kicomport/internal/uploads"
)

// AIScorer rates candidates out of band. *ollama.Client satisfies it.
type AIScorer interface {
	ScoreCandidates(ctx context.Context, comps []*store.Component) (map[int64]ollama.Score, error)
}

// Pipeline drives jobs from stored upload to imported library assets.
type Pipeline struct {
	store    *store.Store
	cfg      *config.Config
	logger   *slog.Logger
	importer *importer.Importer
	scorer   AIScorer
}

// New constructs the intake pipeline. The AI scorer is built from config
// when enabled; pass WithScorer to override it in tests.
func New(st *store.Store, cfg *config.Config, logger *slog.Logger, opts ...PipelineOption) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Pipeline{
		store:    st,
		cfg:      cfg,
		logger:   logger.With(logging.String("component", "intake")),
		importer: importer.New(st, cfg, logger),
	}
	if cfg.Ollama.Enabled {
		p.scorer = ollama.New(cfg.Ollama)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PipelineOption customizes pipeline construction.
type PipelineOption func(*Pipeline)

// WithScorer replaces the AI scorer.
func WithScorer(scorer AIScorer) PipelineOption {
	return func(p *Pipeline) {
		p.scorer = scorer
	}
}

// IngestUpload stores the incoming stream, creates a job, and analyzes it.
// A bundle whose hash matches an earlier job is recorded as a duplicate
// without re-analysis and its stored copy removed.
func (p *Pipeline) IngestUpload(ctx context.Context, r io.Reader, originalFilename string) (*store.Job, error) {
	if err := uploads.CheckExtension(originalFilename); err != nil {
		return nil, err
	}
	saved, err := uploads.Save(r, p.cfg.Paths.UploadsDir, originalFilename, p.cfg.Limits.MaxUploadBytes)
	if err != nil {
		return nil, err
	}
	return p.ingestSaved(ctx, saved, originalFilename)
}

// IngestFile processes a bundle already on disk, used by the inbox watcher.
// The file is hashed in place first so a duplicate never enters the uploads
// directory; otherwise it is copied there so the inbox can be cleared
// independently of job lifecycle.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (*store.Job, error) {
	name := filepath.Base(path)
	if err := uploads.CheckExtension(name); err != nil {
		return nil, err
	}
	sum, err := uploads.ComputeMD5(path)
	if err != nil {
		return nil, fmt.Errorf("hash inbox file: %w", err)
	}
	existing, err := p.store.FindJobByMD5(ctx, sum)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return p.recordDuplicate(ctx, existing, name, sum)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open inbox file: %w", err)
	}
	defer f.Close()

	saved, err := uploads.Save(f, p.cfg.Paths.UploadsDir, name, p.cfg.Limits.MaxUploadBytes)
	if err != nil {
		return nil, err
	}
	return p.ingestSaved(ctx, saved, name)
}

func (p *Pipeline) ingestSaved(ctx context.Context, saved *uploads.Saved, originalFilename string) (*store.Job, error) {
	log := logging.WithContext(ctx, p.logger)

	existing, err := p.store.FindJobByMD5(ctx, saved.MD5)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := uploads.Remove(saved.Path); err != nil {
			log.Warn("remove duplicate upload", logging.Error(err))
		}
		return p.recordDuplicate(ctx, existing, originalFilename, saved.MD5)
	}

	job, err := p.store.NewJob(ctx, saved.MD5, originalFilename, saved.Path)
	if err != nil {
		return nil, err
	}
	if err := p.Analyze(ctx, job); err != nil {
		return job, err
	}
	return job, nil
}

// recordDuplicate notes the repeat upload on the original job and records a
// terminal duplicate job pointing at it.
func (p *Pipeline) recordDuplicate(ctx context.Context, existing *store.Job, originalFilename, md5 string) (*store.Job, error) {
	if err := p.store.AppendJobLog(ctx, existing.ID, "INFO",
		fmt.Sprintf("Duplicate upload ignored for %s", originalFilename)); err != nil {
		return nil, err
	}

	dup, err := p.store.NewJob(ctx, md5, originalFilename, "")
	if err != nil {
		return nil, err
	}
	dup.IsDuplicate = true
	dup.Status = store.StatusDuplicate
	dup.ErrorMessage = fmt.Sprintf("Duplicate of job %d", existing.ID)
	if err := p.store.UpdateJob(ctx, dup); err != nil {
		return nil, err
	}
	logging.WithContext(ctx, p.logger).Info("duplicate bundle ignored",
		logging.Int64("job_id", dup.ID),
		logging.Int64("original_job_id", existing.ID))
	return dup, nil
}

// Analyze extracts and scans the job's bundle, persists ranked components,
// and leaves the job waiting for user selection. Failures mark the job
// failed with a reason a user can act on.
func (p *Pipeline) Analyze(ctx context.Context, job *store.Job) error {
	ctx = services.WithJobID(ctx, job.ID)
	log := logging.WithContext(ctx, p.logger)

	if err := p.store.SetStatus(ctx, job, store.StatusAnalyzing); err != nil {
		return err
	}

	targetDir := filepath.Join(p.cfg.Paths.TempDir, fmt.Sprintf("job_%d", job.ID))
	limits := extract.Limits{
		MaxFiles:      p.cfg.Limits.MaxExtractFiles,
		MaxTotalBytes: p.cfg.Limits.MaxExtractBytes,
		MaxFileBytes:  p.cfg.Limits.MaxExtractFileBytes,
	}
	result, err := extract.Extract(job.StoredPath, targetDir, limits, job.OriginalFilename)
	if err != nil {
		reason := "Extraction failed"
		if errors.Is(err, services.ErrValidation) || errors.Is(err, services.ErrUnsupported) {
			reason = "Extraction rejected"
		}
		return p.failJob(ctx, job, fmt.Sprintf("%s: %v", reason, err), err)
	}
	job.ExtractedPath = result.Root
	if err := p.store.UpdateJob(ctx, job); err != nil {
		return err
	}
	log.Info("bundle extracted",
		logging.Int("files", result.FileCount),
		logging.Int64("bytes", result.TotalBytes))

	candidates, err := scan.Scan(job.ExtractedPath)
	if err != nil {
		return p.failJob(ctx, job, fmt.Sprintf("Scan failed: %v", err), err)
	}
	if len(candidates) == 0 {
		detail := "No candidates detected"
		if summary := summarizeTree(job.ExtractedPath); summary != "" {
			detail += ". " + summary
		}
		return p.failJob(ctx, job, detail, services.ErrValidation)
	}

	comps, err := p.persistComponents(ctx, job, candidates)
	if err != nil {
		return p.failJob(ctx, job, fmt.Sprintf("Persisting candidates failed: %v", err), err)
	}
	log.Info("candidates persisted",
		logging.Int("components", len(comps)),
		logging.Int("candidates", len(candidates)))

	if p.scorer != nil {
		p.applyAIScores(ctx, job, comps)
	}

	if err := p.store.AppendJobLog(ctx, job.ID, "INFO", "Scan complete; awaiting selection"); err != nil {
		return err
	}
	return p.store.SetStatus(ctx, job, store.StatusWaitingForUser)
}

// persistComponents groups candidates by component name, deduplicates by
// kind and relative path, seeds quality, feedback, and combined scores, and
// applies the symbol-to-footprint consistency adjustment. The feedback bonus
// comes from how often same-named candidates of the kind were imported before.
func (p *Pipeline) persistComponents(ctx context.Context, job *store.Job, candidates []scan.Candidate) ([]*store.Component, error) {
	grouped := make(map[string][]scan.Candidate)
	var order []string
	for _, cand := range candidates {
		if _, ok := grouped[cand.Name]; !ok {
			order = append(order, cand.Name)
		}
		grouped[cand.Name] = append(grouped[cand.Name], cand)
	}

	var comps []*store.Component
	for _, name := range order {
		comp, err := p.store.AddComponent(ctx, job.ID, name)
		if err != nil {
			return nil, err
		}

		seen := make(map[string]struct{})
		for _, cand := range grouped[name] {
			key := string(cand.Kind) + "|" + cand.RelPath
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}

			row := &store.Candidate{
				ComponentID:    comp.ID,
				Kind:           cand.Kind,
				Path:           cand.Path,
				RelPath:        cand.RelPath,
				Name:           cand.Name,
				Description:    cand.Description,
				PinCount:       cand.PinCount,
				PadCount:       cand.PadCount,
				SizeBytes:      cand.SizeBytes,
				HeuristicScore: cand.Heuristic,
			}
			history, err := p.store.SelectedCountByName(ctx, string(cand.Kind), cand.Name)
			if err != nil {
				return nil, err
			}
			row.FeedbackScore = ranking.FeedbackBonus(history)
			ranking.Rescore(row)
			if err := p.store.AddCandidate(ctx, row); err != nil {
				return nil, err
			}
			comp.Candidates = append(comp.Candidates, row)
		}

		ranking.ApplyConsistency(comp)
		for _, row := range comp.Candidates {
			if err := p.store.UpdateCandidateScores(ctx, row); err != nil {
				return nil, err
			}
		}
		comps = append(comps, comp)
	}
	return comps, nil
}

// applyAIScores is best effort: a failed or empty scoring run flags the job
// and moves on.
func (p *Pipeline) applyAIScores(ctx context.Context, job *store.Job, comps []*store.Component) {
	log := logging.WithContext(ctx, p.logger)

	scores, err := p.scorer.ScoreCandidates(ctx, comps)
	if err != nil {
		job.AIFailed = true
		if updateErr := p.store.UpdateJob(ctx, job); updateErr != nil {
			log.Error("record ai failure", logging.Error(updateErr))
		}
		_ = p.store.AppendJobLog(ctx, job.ID, "ERROR", fmt.Sprintf("Ollama scoring failed: %v", err))
		log.Warn("ai scoring failed", logging.Error(err))
		return
	}
	if len(scores) == 0 {
		job.AIFailed = true
		if updateErr := p.store.UpdateJob(ctx, job); updateErr != nil {
			log.Error("record ai failure", logging.Error(updateErr))
		}
		_ = p.store.AppendJobLog(ctx, job.ID, "WARNING", "Ollama returned no scores")
		return
	}

	for _, comp := range comps {
		for _, cand := range comp.Candidates {
			score, ok := scores[cand.ID]
			if !ok {
				continue
			}
			cand.AIScore = score.Value
			cand.AIReason = score.Reason
			cand.CombinedScore = ranking.Combined(cand)
			if err := p.store.UpdateCandidateScores(ctx, cand); err != nil {
				log.Error("persist ai score", logging.Error(err))
			}
		}
	}
	_ = p.store.AppendJobLog(ctx, job.ID, "INFO", "Ollama scoring applied")
}

// SelectCandidate records a user's pick after validating it belongs to the
// job's component and matches the kind.
func (p *Pipeline) SelectCandidate(ctx context.Context, jobID, componentID int64, kind scan.Kind, candidateID *int64) error {
	comp, err := p.store.GetComponent(ctx, componentID)
	if err != nil {
		return err
	}
	if comp == nil || comp.JobID != jobID {
		return services.Wrap(services.ErrNotFound, "select", "component", "component does not belong to job", nil)
	}
	if candidateID != nil {
		var found *store.Candidate
		for _, cand := range comp.Candidates {
			if cand.ID == *candidateID {
				found = cand
				break
			}
		}
		if found == nil {
			return services.Wrap(services.ErrNotFound, "select", "candidate", "candidate does not belong to component", nil)
		}
		if found.Kind != kind {
			return services.Wrap(services.ErrValidation, "select", "candidate",
				fmt.Sprintf("candidate is a %s, not a %s", found.Kind, kind), nil)
		}
	}
	return p.store.SetSelection(ctx, componentID, kind, candidateID)
}

// ResetSelections clears every candidate pick on the job so the user can
// start over.
func (p *Pipeline) ResetSelections(ctx context.Context, jobID int64) error {
	job, err := p.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return services.Wrap(services.ErrNotFound, "select", "job", fmt.Sprintf("job %d not found", jobID), nil)
	}
	if err := p.store.ResetSelections(ctx, jobID); err != nil {
		return err
	}
	return p.store.AppendJobLog(ctx, jobID, "INFO", "Selections cleared")
}

// Import copies the job's selections into the destination library.
func (p *Pipeline) Import(ctx context.Context, jobID int64, renameTo string) (*importer.Result, error) {
	ctx = services.WithJobID(ctx, jobID)

	job, err := p.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "import", "job", fmt.Sprintf("job %d not found", jobID), nil)
	}
	if job.Status.IsTerminal() && job.Status != store.StatusImported {
		return nil, services.Wrap(services.ErrValidation, "import", "job",
			fmt.Sprintf("job is %s and cannot be imported", job.Status), nil)
	}

	result, err := p.importer.ImportSelection(ctx, job, renameTo)
	if err != nil {
		if failErr := p.failJob(ctx, job, fmt.Sprintf("Import failed: %v", err), err); failErr != nil {
			return nil, failErr
		}
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) failJob(ctx context.Context, job *store.Job, message string, cause error) error {
	log := logging.WithContext(ctx, p.logger)
	log.Error("job failed", logging.Int64("job_id", job.ID), logging.String("reason", message))

	if err := p.store.AppendJobLog(ctx, job.ID, "ERROR", message); err != nil {
		return err
	}
	job.Status = store.StatusFailed
	job.ErrorMessage = message
	if err := p.store.UpdateJob(ctx, job); err != nil {
		return err
	}
	return cause
}

// summarizeTree describes an extracted tree that produced no candidates so
// the failure message tells the user what the bundle actually contained.
func summarizeTree(root string) string {
	var (
		files   int
		exts    = make(map[string]int)
		samples []string
	)
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		files++
		ext := strings.ToLower(filepath.Ext(path))
		if ext == "" {
			ext = "(none)"
		}
		exts[ext]++
		if len(samples) < 5 {
			if rel, relErr := filepath.Rel(root, path); relErr == nil {
				samples = append(samples, rel)
			}
		}
		return nil
	})
	if files == 0 {
		return "Extracted tree is empty"
	}

	type extCount struct {
		ext   string
		count int
	}
	counts := make([]extCount, 0, len(exts))
	for ext, count := range exts {
		counts = append(counts, extCount{ext, count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].ext < counts[j].ext
	})
	if len(counts) > 3 {
		counts = counts[:3]
	}
	parts := make([]string, len(counts))
	for i, c := range counts {
		parts[i] = fmt.Sprintf("%s (%d)", c.ext, c.count)
	}
	return fmt.Sprintf("Found %d files; common extensions: %s; samples: %s",
		files, strings.Join(parts, ", "), strings.Join(samples, ", "))
}
