package uploads

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"kicomport/internal/extract"
	"kicomport/internal/services"
)

var (
	ErrTooLarge             = fmt.Errorf("%w: upload too large", services.ErrValidation)
	ErrUnsupportedExtension = fmt.Errorf("%w: unsupported file extension", services.ErrValidation)
)

var allowedExtensions = map[string]struct{}{
	".zip":       {},
	".rar":       {},
	".kicad_sym": {},
	".kicad_mod": {},
	".stp":       {},
	".step":      {},
	".wrl":       {},
	".obj":       {},
}

// CheckExtension validates that the original filename carries an accepted
// archive or asset extension.
func CheckExtension(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedExtension, ext)
	}
	return nil
}

// Saved describes a stored upload.
type Saved struct {
	Path string
	MD5  string
	Size int64
}

// Save streams the upload into destDir while hashing it, enforcing maxBytes
// when positive. The stored name combines a random token with the sanitized
// original filename so concurrent uploads never clash. The partial file is
// removed on any failure.
func Save(r io.Reader, destDir, originalFilename string, maxBytes int64) (*Saved, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure uploads dir: %w", err)
	}

	token := uuid.NewString()
	safeName := extract.SanitizeFilename(originalFilename)
	storedPath := filepath.Join(destDir, fmt.Sprintf("upload_%s_%s", token, safeName))

	out, err := os.OpenFile(storedPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}

	hash := md5.New()
	var written int64
	buf := make([]byte, 32*1024)
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			written += int64(n)
			if maxBytes > 0 && written > maxBytes {
				out.Close()
				os.Remove(storedPath)
				return nil, fmt.Errorf("%w: exceeds %d bytes", ErrTooLarge, maxBytes)
			}
			hash.Write(buf[:n])
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				out.Close()
				os.Remove(storedPath)
				return nil, fmt.Errorf("write upload: %w", writeErr)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Close()
			os.Remove(storedPath)
			return nil, fmt.Errorf("read upload: %w", readErr)
		}
	}
	if err := out.Close(); err != nil {
		os.Remove(storedPath)
		return nil, fmt.Errorf("close upload: %w", err)
	}

	return &Saved{
		Path: storedPath,
		MD5:  hex.EncodeToString(hash.Sum(nil)),
		Size: written,
	}, nil
}

// ComputeMD5 hashes an existing file on disk.
func ComputeMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for hashing: %w", err)
	}
	defer f.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// Remove deletes a stored upload, tolerating files already gone.
func Remove(path string) error {
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
