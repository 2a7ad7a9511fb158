package extract

import (
	"archive/zip"
	"fmt"
	"path/filepath"
	"strings"
)

func isZip(path string) bool {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return false
	}
	_ = reader.Close()
	return true
}

func extractZip(zipPath, targetDir string, limits Limits) (Result, error) {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	defer reader.Close()

	type member struct {
		file *zip.File
		rel  string
	}
	var (
		members   []member
		declared  int64
		maxSingle int64
	)
	for _, file := range reader.File {
		if file.FileInfo().IsDir() || strings.HasSuffix(file.Name, "/") {
			continue
		}
		rel, err := safeMemberPath(file.Name, targetDir)
		if err != nil {
			return Result{}, err
		}
		size := int64(file.UncompressedSize64)
		declared += size
		if size > maxSingle {
			maxSingle = size
		}
		members = append(members, member{file: file, rel: rel})
	}
	if len(members) == 0 {
		return Result{}, ErrEmptyArchive
	}
	if err := enforceDeclaredLimits(limits, len(members), declared, maxSingle); err != nil {
		return Result{}, err
	}

	var writtenTotal int64
	for _, m := range members {
		src, err := m.file.Open()
		if err != nil {
			return Result{}, fmt.Errorf("%w: open entry %q: %v", ErrInvalidArchive, m.file.Name, err)
		}
		_, err = cappedWrite(filepath.Join(targetDir, m.rel), src, limits, &writtenTotal)
		_ = src.Close()
		if err != nil {
			return Result{}, err
		}
	}
	return Result{FileCount: len(members), TotalBytes: writtenTotal}, nil
}
