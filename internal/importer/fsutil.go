package importer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

var knownRenameExts = []string{".kicad_mod", ".step", ".stp", ".wrl", ".obj", ".kicad_sym"}

// SanitizeSegment reduces a library identity to characters safe for a
// directory or file stem. An empty result falls back to the provided default.
func SanitizeSegment(name, fallback string) string {
	var buf strings.Builder
	for _, r := range name {
		if isAlnum(r) || strings.ContainsRune("-_~", r) {
			buf.WriteRune(r)
		}
	}
	cleaned := strings.Trim(buf.String(), "-_")
	if cleaned == "" {
		return fallback
	}
	return cleaned
}

// SanitizeBasename reduces a user-supplied rename to a safe file stem.
// Whitespace collapses to underscores; anything outside alphanumerics and
// "-_~.+" is dropped.
func SanitizeBasename(name string) string {
	var buf strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case isAlnum(r) || strings.ContainsRune("-_~.+", r):
			buf.WriteRune(r)
		case r == ' ' || r == '\t':
			buf.WriteRune('_')
		}
	}
	return strings.Trim(buf.String(), "-_")
}

// StripKnownExt removes a recognized asset extension so renames can carry
// or omit the extension interchangeably.
func StripKnownExt(name string) string {
	trimmed := strings.TrimSpace(name)
	lower := strings.ToLower(trimmed)
	for _, ext := range knownRenameExts {
		if strings.HasSuffix(lower, ext) {
			return trimmed[:len(trimmed)-len(ext)]
		}
	}
	return trimmed
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// nextAvailableCopy returns dest unchanged when free, otherwise the first
// "<stem>_copyN<ext>" sibling that does not exist yet.
func nextAvailableCopy(dest string) (string, error) {
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		return dest, nil
	}
	ext := filepath.Ext(dest)
	base := strings.TrimSuffix(filepath.Base(dest), ext)
	dir := filepath.Dir(dest)
	for i := 1; i < 10_000; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_copy%d%s", base, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no available destination for %s", dest)
}

// atomicWrite lands content at path via a temp file and rename so readers
// never observe a partial file.
func atomicWrite(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp for %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

// atomicCopy copies src to dest via a temp sibling and rename.
func atomicCopy(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", dest, err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source %s: %w", src, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", dest, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("copy into temp for %s: %w", dest, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp for %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp for %s: %w", dest, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("rename into %s: %w", dest, err)
	}
	return nil
}

// withLock runs fn while holding an exclusive advisory lock on lockPath so
// concurrent imports into the same library serialize.
func withLock(lockPath string, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return fmt.Errorf("mkdir for lock %s: %w", lockPath, err)
	}
	lock := flock.New(lockPath)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquire lock %s: %w", lockPath, err)
	}
	defer func() {
		_ = lock.Unlock()
	}()
	return fn()
}
