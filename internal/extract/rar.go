package extract

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/nwaples/rardecode/v2"
)

// extractRAR unpacks a RAR archive. The format is stream-oriented, so the
// archive is walked twice: once to validate declared sizes and entry paths
// before writing any byte, then again to extract under the streaming caps.
func extractRAR(rarPath, targetDir string, limits Limits) (Result, error) {
	var (
		fileCount int
		declared  int64
		maxSingle int64
	)
	err := walkRAR(rarPath, func(header *rardecode.FileHeader, _ io.Reader) error {
		if header.IsDir {
			return nil
		}
		if _, err := safeMemberPath(header.Name, targetDir); err != nil {
			return err
		}
		fileCount++
		if header.UnPackedSize > 0 {
			declared += header.UnPackedSize
			if header.UnPackedSize > maxSingle {
				maxSingle = header.UnPackedSize
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if fileCount == 0 {
		return Result{}, ErrEmptyArchive
	}
	if err := enforceDeclaredLimits(limits, fileCount, declared, maxSingle); err != nil {
		return Result{}, err
	}

	var writtenTotal int64
	err = walkRAR(rarPath, func(header *rardecode.FileHeader, src io.Reader) error {
		if header.IsDir {
			return nil
		}
		rel, err := safeMemberPath(header.Name, targetDir)
		if err != nil {
			return err
		}
		_, err = cappedWrite(filepath.Join(targetDir, rel), src, limits, &writtenTotal)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	return Result{FileCount: fileCount, TotalBytes: writtenTotal}, nil
}

func walkRAR(rarPath string, visit func(*rardecode.FileHeader, io.Reader) error) error {
	reader, err := rardecode.OpenReader(rarPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRARUnsupported, err)
	}
	defer reader.Close()

	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRARUnsupported, err)
		}
		if err := visit(header, reader); err != nil {
			return err
		}
	}
}
