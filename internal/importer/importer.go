package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"kicomport/internal/config"
	"kicomport/internal/logging"
	"kicomport/internal/ranking"
	"kicomport/internal/scan"
	"kicomport/internal/services"
	"kicomport/internal/store"
)

// Importer copies selected candidates into the stable destination library.
type Importer struct {
	store  *store.Store
	cfg    *config.Config
	logger *slog.Logger
}

// New constructs an importer bound to the destination library configuration.
func New(st *store.Store, cfg *config.Config, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Importer{
		store:  st,
		cfg:    cfg,
		logger: logger.With(logging.String("component", "importer")),
	}
}

// Result summarizes one import run.
type Result struct {
	Symbols      int
	Footprints   int
	Models       int
	Destinations []string
}

// Total returns the number of files landed in the library.
func (r *Result) Total() int {
	return r.Symbols + r.Footprints + r.Models
}

// ImportSelection copies every selected candidate of the job's components
// into the destination library and transitions the job to imported. Symbols
// merge into the single accumulated .kicad_sym library; footprints and
// models copy with collision-avoiding names. renameTo optionally overrides
// the footprint and model file stems.
func (i *Importer) ImportSelection(ctx context.Context, job *store.Job, renameTo string) (*Result, error) {
	log := logging.WithContext(ctx, i.logger)

	if job.Status != store.StatusWaitingForUser && job.Status != store.StatusImporting {
		if err := i.store.AppendJobLog(ctx, job.ID, "WARNING", fmt.Sprintf("Import triggered from status %s", job.Status)); err != nil {
			return nil, err
		}
	}

	identity := SanitizeSegment(i.cfg.Library.Identity, config.DefaultLibraryIdentity)
	symbolDest := filepath.Join(i.cfg.Paths.SymbolDir, identity+".kicad_sym")
	footprintRoot := filepath.Join(i.cfg.Paths.FootprintDir, identity+".pretty")
	modelRoot := filepath.Join(i.cfg.Paths.ModelDir, identity)
	rename := SanitizeBasename(StripKnownExt(renameTo))

	comps, err := i.store.ComponentsForJob(ctx, job.ID)
	if err != nil {
		return nil, services.Wrap(services.ErrResource, "import", "load components", "querying job selections", err)
	}

	result := &Result{}
	for _, comp := range comps {
		if err := i.importSelected(ctx, job, comp, scan.KindSymbol, symbolDest, "", result); err != nil {
			return nil, err
		}
		if err := i.importSelected(ctx, job, comp, scan.KindFootprint, footprintRoot, rename, result); err != nil {
			return nil, err
		}
		if err := i.importSelected(ctx, job, comp, scan.KindModel, modelRoot, rename, result); err != nil {
			return nil, err
		}
	}

	if result.Total() == 0 {
		if err := i.store.AppendJobLog(ctx, job.ID, "WARNING", "Import skipped: no selections to copy"); err != nil {
			return nil, err
		}
		log.Warn("import skipped, nothing selected", logging.Int64("job_id", job.ID))
		return result, nil
	}

	if err := i.store.AppendJobLog(ctx, job.ID, "INFO", "Imported files: "+strings.Join(result.Destinations, ", ")); err != nil {
		return nil, err
	}
	if err := i.store.SetStatus(ctx, job, store.StatusImported); err != nil {
		return nil, err
	}
	log.Info("import completed",
		logging.Int64("job_id", job.ID),
		logging.Int("symbols", result.Symbols),
		logging.Int("footprints", result.Footprints),
		logging.Int("models", result.Models))
	return result, nil
}

func (i *Importer) importSelected(ctx context.Context, job *store.Job, comp *store.Component, kind scan.Kind, targetRoot, rename string, result *Result) error {
	selectedID := comp.SelectedID(kind)
	if selectedID == nil {
		return nil
	}

	var cand *store.Candidate
	for _, c := range comp.Candidates {
		if c.ID == *selectedID {
			cand = c
			break
		}
	}
	if cand == nil || cand.Kind != kind {
		return i.store.AppendJobLog(ctx, job.ID, "WARNING",
			fmt.Sprintf("Candidate %d missing or wrong type %s", *selectedID, kind))
	}

	// A vanished source fails that item only; the rest of the batch proceeds.
	if _, statErr := os.Stat(cand.Path); statErr != nil {
		if errors.Is(statErr, fs.ErrNotExist) {
			logging.WithContext(ctx, i.logger).Warn("selection source missing, skipped",
				logging.Int64("job_id", job.ID),
				logging.String("path", cand.Path))
			return i.store.AppendJobLog(ctx, job.ID, "WARNING",
				fmt.Sprintf("Source for %s %s missing, skipped: %s", kind, cand.Name, cand.Path))
		}
		return services.Wrap(services.ErrResource, "import", string(kind), "inspecting selection source", statErr)
	}

	var (
		dest string
		err  error
	)
	switch kind {
	case scan.KindSymbol:
		dest = targetRoot
		var added int
		err = withLock(dest+".lock", func() error {
			var mergeErr error
			added, mergeErr = mergeSymbolLib(cand.Path, dest)
			return mergeErr
		})
		if err == nil {
			result.Symbols += added
			if logErr := i.store.AppendJobLog(ctx, job.ID, "INFO",
				fmt.Sprintf("Imported symbol %s into %s", cand.Name, dest)); logErr != nil {
				return logErr
			}
		}
	default:
		dest = destinationFor(cand, targetRoot, rename)
		err = withLock(filepath.Join(targetRoot, ".kicomport.lock"), func() error {
			final, copyErr := nextAvailableCopy(dest)
			if copyErr != nil {
				return copyErr
			}
			dest = final
			return atomicCopy(cand.Path, dest)
		})
		if err == nil {
			if kind == scan.KindFootprint {
				result.Footprints++
			} else {
				result.Models++
			}
			if logErr := i.store.AppendJobLog(ctx, job.ID, "INFO",
				fmt.Sprintf("Imported %s %s to %s", kind, cand.Name, dest)); logErr != nil {
				return logErr
			}
		}
	}
	if err != nil {
		// Covers the source vanishing between the stat above and the copy.
		if errors.Is(err, fs.ErrNotExist) {
			return i.store.AppendJobLog(ctx, job.ID, "WARNING",
				fmt.Sprintf("Source for %s %s missing, skipped: %s", kind, cand.Name, cand.Path))
		}
		return services.Wrap(services.ErrResource, "import", string(kind), "copying selection into library", err)
	}

	result.Destinations = append(result.Destinations, dest)
	return i.recordFeedback(ctx, cand)
}

// recordFeedback bumps the candidate's selection history so future rankings
// favor previously imported assets.
func (i *Importer) recordFeedback(ctx context.Context, cand *store.Candidate) error {
	cand.SelectedCount++
	ranking.ApplyFeedback(cand)
	if err := i.store.UpdateCandidateScores(ctx, cand); err != nil {
		return services.Wrap(services.ErrResource, "import", "feedback", "recording selection feedback", err)
	}
	return nil
}

// destinationFor resolves where a footprint or model lands. Footprints
// flatten into the .pretty library folder; models preserve their relative
// path under the library folder so sibling files stay together.
func destinationFor(cand *store.Candidate, targetRoot, rename string) string {
	fallback := filepath.Base(cand.RelPath)
	if fallback == "." || fallback == "/" || fallback == "" {
		fallback = filepath.Base(cand.Path)
	}

	switch cand.Kind {
	case scan.KindFootprint:
		if rename != "" {
			return filepath.Join(targetRoot, rename+".kicad_mod")
		}
		if fallback == "" || fallback == "." {
			return filepath.Join(targetRoot, cand.Name+".kicad_mod")
		}
		return filepath.Join(targetRoot, fallback)
	case scan.KindModel:
		if rename != "" {
			ext := strings.ToLower(filepath.Ext(cand.Path))
			return filepath.Join(targetRoot, rename+ext)
		}
		if cand.RelPath != "" && cand.RelPath != "." {
			return filepath.Join(targetRoot, filepath.FromSlash(cand.RelPath))
		}
		return filepath.Join(targetRoot, fallback)
	default:
		return filepath.Join(targetRoot, fallback)
	}
}
