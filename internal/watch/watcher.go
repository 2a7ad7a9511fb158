package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"kicomport/internal/config"
	"kicomport/internal/logging"
	"kicomport/internal/store"
	"kicomport/internal/uploads"
)

const defaultSettleInterval = 2 * time.Second

// Ingestor turns a settled inbox file into a job. *intake.Pipeline satisfies it.
type Ingestor interface {
	IngestFile(ctx context.Context, path string) (*store.Job, error)
}

// Watcher monitors the inbox directory and enqueues archives dropped into it
// once their size stops changing.
type Watcher struct {
	inboxDir string
	ingest   Ingestor
	logger   *slog.Logger
	settle   time.Duration

	// pending tracks files awaiting a stable size between ticks.
	pending map[string]int64
}

// Option customizes the watcher.
type Option func(*Watcher)

// WithSettleInterval overrides how long a file's size must stay unchanged
// before it is ingested.
func WithSettleInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// New constructs a watcher for the configured inbox. An empty inbox
// directory disables watching; callers should check Enabled.
func New(cfg *config.Config, ingest Ingestor, logger *slog.Logger, opts ...Option) *Watcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	w := &Watcher{
		inboxDir: cfg.Paths.InboxDir,
		ingest:   ingest,
		logger:   logger.With(logging.String("component", "watcher")),
		settle:   defaultSettleInterval,
		pending:  make(map[string]int64),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Enabled reports whether an inbox directory is configured.
func (w *Watcher) Enabled() bool {
	return w.inboxDir != ""
}

// Run watches the inbox until the context is canceled. Files already present
// at startup are picked up on the first settle tick.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.Enabled() {
		return nil
	}
	if err := os.MkdirAll(w.inboxDir, 0o755); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(w.inboxDir); err != nil {
		return err
	}
	w.logger.Info("watching inbox", logging.String("dir", w.inboxDir))

	w.scanExisting()

	ticker := time.NewTicker(w.settle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.track(event.Name)
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				delete(w.pending, event.Name)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("inbox watch error", logging.Error(err))
		case <-ticker.C:
			w.settleTick(ctx)
		}
	}
}

func (w *Watcher) scanExisting() {
	entries, err := os.ReadDir(w.inboxDir)
	if err != nil {
		w.logger.Warn("scan inbox", logging.Error(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.track(filepath.Join(w.inboxDir, entry.Name()))
	}
}

func (w *Watcher) track(path string) {
	if uploads.CheckExtension(filepath.Base(path)) != nil {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	if _, ok := w.pending[path]; !ok {
		w.pending[path] = -1
	}
}

// settleTick ingests every pending file whose size matches the previous
// observation, treating it as fully written.
func (w *Watcher) settleTick(ctx context.Context) {
	for path, lastSize := range w.pending {
		info, err := os.Stat(path)
		if err != nil {
			delete(w.pending, path)
			continue
		}
		size := info.Size()
		if size != lastSize {
			w.pending[path] = size
			continue
		}
		delete(w.pending, path)

		job, err := w.ingest.IngestFile(ctx, path)
		if err != nil {
			w.logger.Error("ingest inbox file",
				logging.String("path", path),
				logging.Error(err))
			if job == nil {
				continue
			}
		}
		if job != nil {
			w.logger.Info("inbox file enqueued",
				logging.String("path", path),
				logging.Int64("job_id", job.ID),
				logging.String("status", string(job.Status)))
		}
		if err := os.Remove(path); err != nil {
			w.logger.Warn("remove ingested inbox file",
				logging.String("path", path),
				logging.Error(err))
		}
	}
}
