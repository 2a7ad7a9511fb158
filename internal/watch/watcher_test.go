package watch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"kicomport/internal/store"
	"kicomport/internal/testsupport"
	"kicomport/internal/watch"
)

type recordingIngestor struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (r *recordingIngestor) IngestFile(ctx context.Context, path string) (*store.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	if r.err != nil {
		return nil, r.err
	}
	return &store.Job{ID: int64(len(r.paths)), Status: store.StatusWaitingForUser}, nil
}

func (r *recordingIngestor) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestWatcherIngestsSettledFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ingestor := &recordingIngestor{}
	w := watch.New(cfg, ingestor, nil, watch.WithSettleInterval(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to establish the watch before dropping the file.
	time.Sleep(50 * time.Millisecond)
	path := filepath.Join(cfg.Paths.InboxDir, "drop.zip")
	testsupport.WriteFile(t, path, "zip bytes")

	waitFor(t, 2*time.Second, func() bool { return len(ingestor.seen()) == 1 })
	if got := ingestor.seen()[0]; got != path {
		t.Fatalf("ingested %q, want %q", got, path)
	}
	waitFor(t, 2*time.Second, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	})

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
}

func TestWatcherPicksUpPreexistingFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(cfg.Paths.InboxDir, "already-there.zip")
	testsupport.WriteFile(t, path, "zip bytes")

	ingestor := &recordingIngestor{}
	w := watch.New(cfg, ingestor, nil, watch.WithSettleInterval(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	waitFor(t, 2*time.Second, func() bool { return len(ingestor.seen()) == 1 })
}

func TestWatcherIgnoresUnknownExtensions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.InboxDir, "notes.txt"), "not an archive")
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.InboxDir, "real.zip"), "zip bytes")

	ingestor := &recordingIngestor{}
	w := watch.New(cfg, ingestor, nil, watch.WithSettleInterval(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	waitFor(t, 2*time.Second, func() bool { return len(ingestor.seen()) == 1 })
	if got := filepath.Base(ingestor.seen()[0]); got != "real.zip" {
		t.Fatalf("ingested %q, want real.zip", got)
	}
}

func TestWatcherKeepsFileWhenNoJobWasCreated(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(cfg.Paths.InboxDir, "bad.zip")
	testsupport.WriteFile(t, path, "zip bytes")

	ingestor := &recordingIngestor{err: errors.New("uploads dir unwritable")}
	w := watch.New(cfg, ingestor, nil, watch.WithSettleInterval(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	waitFor(t, 2*time.Second, func() bool { return len(ingestor.seen()) == 1 })
	time.Sleep(50 * time.Millisecond)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file should remain when enqueue failed: %v", err)
	}
}

func TestWatcherDisabledWithoutInbox(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.InboxDir = ""

	w := watch.New(cfg, &recordingIngestor{}, nil)
	if w.Enabled() {
		t.Fatal("watcher should be disabled without inbox dir")
	}
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run should return nil when disabled: %v", err)
	}
}
