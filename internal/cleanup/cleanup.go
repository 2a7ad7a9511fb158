package cleanup

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kicomport/internal/config"
	"kicomport/internal/logging"
	"kicomport/internal/store"
)

// Sweeper removes expired jobs and files no job references anymore.
type Sweeper struct {
	store  *store.Store
	cfg    *config.Config
	logger *slog.Logger
}

// New constructs a sweeper.
func New(st *store.Store, cfg *config.Config, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Sweeper{
		store:  st,
		cfg:    cfg,
		logger: logger.With(logging.String("component", "cleanup")),
	}
}

// Report summarizes one sweep.
type Report struct {
	ExpiredJobs     int
	RemovedUploads  int
	RemovedTempDirs int
}

// Sweep purges expired terminal jobs with their files, then removes orphaned
// uploads and temp trees. Retention days <= 0 disables expiry but orphan
// cleanup still runs.
func (s *Sweeper) Sweep(ctx context.Context) (Report, error) {
	var report Report

	if days := s.cfg.Retention.Days; days > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -days)
		expired, err := s.store.PurgeExpired(ctx, cutoff)
		if err != nil {
			return report, err
		}
		for _, job := range expired {
			removePath(job.StoredPath)
			removePath(job.ExtractedPath)
		}
		report.ExpiredJobs = len(expired)
	}

	referenced, err := s.store.ReferencedPaths(ctx)
	if err != nil {
		return report, err
	}
	report.RemovedUploads = s.removeOrphans(s.cfg.Paths.UploadsDir, referenced, func(entry os.DirEntry) bool {
		return !entry.IsDir() && strings.HasPrefix(entry.Name(), "upload_")
	})
	report.RemovedTempDirs = s.removeOrphans(s.cfg.Paths.TempDir, referenced, func(entry os.DirEntry) bool {
		return entry.IsDir() && strings.HasPrefix(entry.Name(), "job_")
	})

	if report.ExpiredJobs > 0 || report.RemovedUploads > 0 || report.RemovedTempDirs > 0 {
		s.logger.Info("sweep completed",
			logging.Int("expired_jobs", report.ExpiredJobs),
			logging.Int("removed_uploads", report.RemovedUploads),
			logging.Int("removed_temp_dirs", report.RemovedTempDirs))
	}
	return report, nil
}

// Run sweeps on the configured interval until the context is canceled. An
// interval <= 0 disables the loop after one initial sweep.
func (s *Sweeper) Run(ctx context.Context) error {
	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Error("sweep failed", logging.Error(err))
	}
	interval := time.Duration(s.cfg.Retention.SweepInterval) * time.Second
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweep failed", logging.Error(err))
			}
		}
	}
}

func (s *Sweeper) removeOrphans(root string, referenced map[string]struct{}, keep func(os.DirEntry) bool) int {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0
	}
	removed := 0
	for _, entry := range entries {
		if !keep(entry) {
			continue
		}
		path := filepath.Join(root, entry.Name())
		if _, ok := referenced[path]; ok {
			continue
		}
		if removePath(path) {
			removed++
		}
	}
	return removed
}

func removePath(path string) bool {
	if path == "" {
		return false
	}
	return os.RemoveAll(path) == nil
}
