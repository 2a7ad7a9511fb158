package extract_test

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"kicomport/internal/extract"
	"kicomport/internal/services"
)

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := writer.Create(name)
		if err != nil {
			t.Fatalf("create zip entry %q: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write zip entry %q: %v", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write zip file: %v", err)
	}
}

func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			rel, _ := filepath.Rel(root, path)
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	sort.Strings(files)
	return files
}

func defaultLimits() extract.Limits {
	return extract.Limits{MaxFiles: 100, MaxTotalBytes: 1 << 20, MaxFileBytes: 1 << 19}
}

func TestExtractZip(t *testing.T) {
	base := t.TempDir()
	zipPath := filepath.Join(base, "parts.zip")
	writeZip(t, zipPath, map[string]string{
		"LM358.kicad_sym":           "(kicad_symbol_lib)",
		"Foo.pretty/foot.kicad_mod": "(footprint)",
	})

	target := filepath.Join(base, "out")
	result, err := extract.Extract(zipPath, target, defaultLimits(), "parts.zip")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if result.FileCount != 2 {
		t.Fatalf("expected 2 files, got %d", result.FileCount)
	}
	if result.TotalBytes == 0 {
		t.Fatal("expected nonzero byte count")
	}
	files := listFiles(t, target)
	want := []string{filepath.Join("Foo.pretty", "foot.kicad_mod"), "LM358.kicad_sym"}
	sort.Strings(want)
	if len(files) != 2 || files[0] != want[0] || files[1] != want[1] {
		t.Fatalf("unexpected file set: %v", files)
	}
}

func TestExtractZipSlipRejected(t *testing.T) {
	base := t.TempDir()
	zipPath := filepath.Join(base, "evil.zip")
	writeZip(t, zipPath, map[string]string{
		"../evil.kicad_sym": "(kicad_symbol_lib)",
	})

	outer := filepath.Join(base, "jobs")
	target := filepath.Join(outer, "out")
	_, err := extract.Extract(zipPath, target, defaultLimits(), "evil.zip")
	if !errors.Is(err, extract.ErrUnsafePath) {
		t.Fatalf("expected unsafe path error, got %v", err)
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation classification, got %v", err)
	}
	if _, statErr := os.Stat(target); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("expected target directory removed after failure")
	}
	if _, statErr := os.Stat(filepath.Join(outer, "evil.kicad_sym")); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("entry escaped the target directory")
	}
}

func TestExtractLeadingSeparatorStripped(t *testing.T) {
	base := t.TempDir()
	zipPath := filepath.Join(base, "abs.zip")
	writeZip(t, zipPath, map[string]string{
		"/etc/evil": "data",
		"safe.txt":  "ok",
	})

	// Leading separators are stripped, so "/etc/evil" lands inside the target
	// as etc/evil rather than escaping.
	target := filepath.Join(base, "out")
	result, err := extract.Extract(zipPath, target, defaultLimits(), "abs.zip")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if result.FileCount != 2 {
		t.Fatalf("expected 2 files, got %d", result.FileCount)
	}
	if _, statErr := os.Stat(filepath.Join(target, "etc", "evil")); statErr != nil {
		t.Fatalf("expected entry confined under target: %v", statErr)
	}
}

func TestExtractLimits(t *testing.T) {
	base := t.TempDir()
	zipPath := filepath.Join(base, "big.zip")
	writeZip(t, zipPath, map[string]string{
		"a.txt": "aaaaaaaaaa",
		"b.txt": "bbbbbbbbbb",
	})

	cases := []struct {
		name   string
		limits extract.Limits
		want   error
	}{
		{"too many entries", extract.Limits{MaxFiles: 1, MaxTotalBytes: 1 << 20, MaxFileBytes: 1 << 20}, extract.ErrTooManyEntries},
		{"total too large", extract.Limits{MaxFiles: 10, MaxTotalBytes: 5, MaxFileBytes: 1 << 20}, extract.ErrTotalTooLarge},
		{"entry too large", extract.Limits{MaxFiles: 10, MaxTotalBytes: 1 << 20, MaxFileBytes: 5}, extract.ErrEntryTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target := filepath.Join(t.TempDir(), "out")
			_, err := extract.Extract(zipPath, target, tc.limits, "big.zip")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if _, statErr := os.Stat(target); !errors.Is(statErr, os.ErrNotExist) {
				t.Fatal("expected target removed after rejection")
			}
		})
	}
}

func TestExtractEmptyArchive(t *testing.T) {
	base := t.TempDir()
	zipPath := filepath.Join(base, "empty.zip")
	writeZip(t, zipPath, map[string]string{})

	_, err := extract.Extract(zipPath, filepath.Join(base, "out"), defaultLimits(), "empty.zip")
	if !errors.Is(err, extract.ErrEmptyArchive) {
		t.Fatalf("expected empty archive error, got %v", err)
	}
}

func TestExtractDeclaredZipButGarbage(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "fake.zip")
	if err := os.WriteFile(path, []byte("not a zip at all"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, err := extract.Extract(path, filepath.Join(base, "out"), defaultLimits(), "fake.zip")
	if !errors.Is(err, extract.ErrInvalidArchive) {
		t.Fatalf("expected invalid archive error, got %v", err)
	}
}

func TestExtractInvalidRAR(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "fake.rar")
	if err := os.WriteFile(path, []byte("definitely not rar"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, err := extract.Extract(path, filepath.Join(base, "out"), defaultLimits(), "fake.rar")
	if !errors.Is(err, extract.ErrRARUnsupported) {
		t.Fatalf("expected RAR unsupported error, got %v", err)
	}
	if !errors.Is(err, services.ErrUnsupported) {
		t.Fatalf("expected unsupported classification, got %v", err)
	}
}

func TestExtractLooseFile(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "raw")
	if err := os.WriteFile(src, []byte("(kicad_symbol_lib)"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	target := filepath.Join(base, "out")
	result, err := extract.Extract(src, target, defaultLimits(), "My Part?.kicad_sym")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if result.FileCount != 1 {
		t.Fatalf("expected 1 file, got %d", result.FileCount)
	}
	files := listFiles(t, target)
	if len(files) != 1 || files[0] != "My Part.kicad_sym" {
		t.Fatalf("unexpected sanitized file set: %v", files)
	}
}

func TestExtractIdempotentRetry(t *testing.T) {
	base := t.TempDir()
	zipPath := filepath.Join(base, "parts.zip")
	writeZip(t, zipPath, map[string]string{"a/x.kicad_sym": "(lib)", "b.kicad_mod": "(fp)"})

	target := filepath.Join(base, "out")
	if _, err := extract.Extract(zipPath, target, defaultLimits(), "parts.zip"); err != nil {
		t.Fatalf("first Extract: %v", err)
	}
	// Stray file from a previous attempt must not survive the retry.
	if err := os.WriteFile(filepath.Join(target, "stale.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write stale file: %v", err)
	}
	first := listFiles(t, target)

	if _, err := extract.Extract(zipPath, target, defaultLimits(), "parts.zip"); err != nil {
		t.Fatalf("second Extract: %v", err)
	}
	second := listFiles(t, target)

	want := []string{filepath.Join("a", "x.kicad_sym"), "b.kicad_mod"}
	sort.Strings(want)
	if len(second) != len(want) || second[0] != want[0] || second[1] != want[1] {
		t.Fatalf("unexpected file set after retry: %v (first run had %v)", second, first)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"../../etc/passwd":   "passwd",
		"Pärt #1!.kicad_sym": "Prt 1.kicad_sym",
		"":                   "upload",
		"..":                 "upload",
		"ok-name_1.zip":      "ok-name_1.zip",
	}
	for input, want := range cases {
		if got := extract.SanitizeFilename(input); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", input, got, want)
		}
	}
}
