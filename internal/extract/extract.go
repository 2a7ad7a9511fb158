package extract

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"kicomport/internal/services"
)

// Limits bounds archive extraction. Zero values are not defaulted here; the
// caller supplies configured ceilings explicitly.
type Limits struct {
	MaxFiles      int
	MaxTotalBytes int64
	MaxFileBytes  int64
}

// Result describes a completed extraction.
type Result struct {
	Root       string
	FileCount  int
	TotalBytes int64
}

// Sentinel errors, all tagged with the shared validation/unsupported markers
// so callers can classify without string matching.
var (
	ErrUnsafePath     = fmt.Errorf("%w: unsafe path in archive", services.ErrValidation)
	ErrEmptyArchive   = fmt.Errorf("%w: archive contains no files", services.ErrValidation)
	ErrTooManyEntries = fmt.Errorf("%w: archive contains too many files", services.ErrValidation)
	ErrTotalTooLarge  = fmt.Errorf("%w: archive uncompressed size too large to extract", services.ErrValidation)
	ErrEntryTooLarge  = fmt.Errorf("%w: archive contains a file too large to extract", services.ErrValidation)
	ErrInvalidArchive = fmt.Errorf("%w: invalid archive", services.ErrValidation)
	ErrRARUnsupported = fmt.Errorf("%w: RAR archive could not be decoded", services.ErrUnsupported)
)

const copyChunkSize = 32 * 1024

// Extract unpacks the stored upload at bundlePath into targetDir. Zip and RAR
// archives are validated and extracted entry by entry; anything else is
// treated as a loose candidate file and copied, under a sanitized name, into
// targetDir so scanning always sees a directory of files.
//
// Extraction is all-or-nothing: on any failure targetDir is removed entirely.
// A pre-existing targetDir is wiped first, so retrying an analysis is
// idempotent.
func Extract(bundlePath, targetDir string, limits Limits, originalFilename string) (Result, error) {
	if err := resetTarget(targetDir); err != nil {
		return Result{}, err
	}

	result, err := extractInto(bundlePath, targetDir, limits, originalFilename)
	if err != nil {
		_ = os.RemoveAll(targetDir)
		return Result{}, err
	}
	result.Root = targetDir
	return result, nil
}

func resetTarget(targetDir string) error {
	if err := os.RemoveAll(targetDir); err != nil {
		return services.Wrap(services.ErrResource, "extract", "reset target", targetDir, err)
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return services.Wrap(services.ErrResource, "extract", "create target", targetDir, err)
	}
	return nil
}

func extractInto(bundlePath, targetDir string, limits Limits, originalFilename string) (Result, error) {
	switch strings.ToLower(filepath.Ext(bundlePath)) {
	case ".zip":
		// A declared zip that does not parse is an error, not a loose file.
		return extractZip(bundlePath, targetDir, limits)
	case ".rar":
		return extractRAR(bundlePath, targetDir, limits)
	}

	// Extension is not authoritative: sniff for a zip payload first.
	if isZip(bundlePath) {
		return extractZip(bundlePath, targetDir, limits)
	}
	return copyLooseFile(bundlePath, targetDir, originalFilename)
}

// copyLooseFile places a non-archive upload into targetDir under a sanitized
// name so the scanner can treat every intake uniformly.
func copyLooseFile(bundlePath, targetDir, originalFilename string) (Result, error) {
	name := SanitizeFilename(originalFilename)
	if originalFilename == "" {
		name = SanitizeFilename(filepath.Base(bundlePath))
	}
	dest := filepath.Join(targetDir, name)
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(name)
		dest = filepath.Join(targetDir, strings.TrimSuffix(name, ext)+"_copy"+ext)
	}

	in, err := os.Open(bundlePath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrNotFound, "extract", "open upload", bundlePath, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return Result{}, services.Wrap(services.ErrResource, "extract", "create file", dest, err)
	}
	written, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Result{}, services.Wrap(services.ErrResource, "extract", "copy file", dest, err)
	}
	return Result{FileCount: 1, TotalBytes: written}, nil
}

// SanitizeFilename strips path components and any character outside the
// conservative allowlist used for stored upload names.
func SanitizeFilename(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.' || r == ' ':
			b.WriteRune(r)
		}
	}
	cleaned := strings.TrimSpace(b.String())
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return "upload"
	}
	return cleaned
}

// safeMemberPath normalizes an archive entry name and verifies the joined
// destination stays inside targetDir. The returned path is relative.
func safeMemberPath(name, targetDir string) (string, error) {
	normalized := strings.TrimLeft(filepath.ToSlash(name), "/")
	cleaned := filepath.Clean(filepath.FromSlash(normalized))
	if cleaned == "." || cleaned == "" {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	dest := filepath.Join(targetDir, cleaned)
	rel, err := filepath.Rel(targetDir, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return cleaned, nil
}

// enforceDeclaredLimits rejects an archive based on its declared entry sizes
// before any byte is written. Declared sizes can be lied about, so the same
// ceilings are re-enforced against actual bytes during streaming.
func enforceDeclaredLimits(limits Limits, fileCount int, totalBytes, maxFileBytes int64) error {
	if limits.MaxFiles > 0 && fileCount > limits.MaxFiles {
		return fmt.Errorf("%w (%d > %d)", ErrTooManyEntries, fileCount, limits.MaxFiles)
	}
	if limits.MaxTotalBytes > 0 && totalBytes > limits.MaxTotalBytes {
		return ErrTotalTooLarge
	}
	if limits.MaxFileBytes > 0 && maxFileBytes > limits.MaxFileBytes {
		return ErrEntryTooLarge
	}
	return nil
}

// cappedWrite streams src to destPath while re-enforcing per-file and running
// total ceilings against bytes actually written.
func cappedWrite(destPath string, src io.Reader, limits Limits, writtenTotal *int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, services.Wrap(services.ErrResource, "extract", "create directory", filepath.Dir(destPath), err)
	}
	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, services.Wrap(services.ErrResource, "extract", "create file", destPath, err)
	}
	defer out.Close()

	var writtenFile int64
	buf := make([]byte, copyChunkSize)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			writtenFile += int64(n)
			*writtenTotal += int64(n)
			if limits.MaxFileBytes > 0 && writtenFile > limits.MaxFileBytes {
				return writtenFile, ErrEntryTooLarge
			}
			if limits.MaxTotalBytes > 0 && *writtenTotal > limits.MaxTotalBytes {
				return writtenFile, ErrTotalTooLarge
			}
			if _, err := out.Write(buf[:n]); err != nil {
				return writtenFile, services.Wrap(services.ErrResource, "extract", "write file", destPath, err)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return writtenFile, fmt.Errorf("%w: read entry: %v", ErrInvalidArchive, readErr)
		}
	}
	if err := out.Close(); err != nil {
		return writtenFile, services.Wrap(services.ErrResource, "extract", "close file", destPath, err)
	}
	return writtenFile, nil
}
