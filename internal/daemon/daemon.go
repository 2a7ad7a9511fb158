package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"kicomport/internal/api"
	"kicomport/internal/cleanup"
	"kicomport/internal/config"
	"kicomport/internal/intake"
	"kicomport/internal/logging"
	"kicomport/internal/store"
	"kicomport/internal/watch"
)

const shutdownTimeout = 5 * time.Second

// Daemon coordinates the HTTP API, inbox watcher, and retention sweeper,
// and enforces single-instance execution through a lock file.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	pipeline *intake.Pipeline
	handler  http.Handler
	server   *http.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	apiAddr atomic.Value // string
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status reports daemon runtime information.
type Status struct {
	Running      bool
	APIAddress   string
	DatabasePath string
	LockFilePath string
	InboxEnabled bool
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	pipeline := intake.New(st, cfg, logger)
	lockPath := filepath.Join(cfg.Paths.LogDir, "kicomportd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logger.With("component", "daemon"),
		store:    st,
		pipeline: pipeline,
		handler:  api.New(st, cfg, pipeline, logger).Handler(),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the API listener, the inbox
// watcher, and the retention sweeper.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another kicomport daemon instance is already running")
	}

	listener, err := net.Listen("tcp", d.cfg.Paths.APIBind)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("bind api address %q: %w", d.cfg.Paths.APIBind, err)
	}
	d.apiAddr.Store(listener.Addr().String())
	d.server = &http.Server{
		Handler:           d.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("API server stopped", "error", err)
		}
	}()

	watcher := watch.New(d.cfg, d.pipeline, d.logger)
	if watcher.Enabled() {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := watcher.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Error("Inbox watcher stopped", "error", err)
			}
		}()
	}

	sweeper := cleanup.New(d.store, d.cfg, d.logger)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := sweeper.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("Retention sweeper stopped", "error", err)
		}
	}()

	d.running.Store(true)
	d.logger.Info("Daemon started",
		"api", listener.Addr().String(),
		"lock", d.lockPath,
		"inbox", watcher.Enabled())
	return nil
}

// Stop shuts down background services and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.server.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn("API shutdown incomplete", "error", err)
		_ = d.server.Close()
	}
	d.wg.Wait()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("Failed to release daemon lock", "error", err)
	}
	d.apiAddr.Store("")
	d.running.Store(false)
	d.logger.Info("Daemon stopped")
}

// Close stops the daemon and closes the job store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Run starts the daemon and blocks until the context is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	d.Stop()
	return nil
}

// APIAddress returns the bound listener address, or "" before Start.
func (d *Daemon) APIAddress() string {
	addr, _ := d.apiAddr.Load().(string)
	return addr
}

// Pipeline exposes the intake pipeline for in-process callers.
func (d *Daemon) Pipeline() *intake.Pipeline {
	return d.pipeline
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		APIAddress:   d.APIAddress(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		InboxEnabled: d.cfg.Paths.InboxDir != "",
	}
}
