package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks inputs the caller can fix (bad archive, unsafe path,
	// oversized upload). No partial filesystem state remains behind it.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks unusable runtime configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks missing jobs, candidates, or source files.
	ErrNotFound = errors.New("not found")
	// ErrResource marks fatal environment failures such as an uncreatable
	// destination directory or a lock that cannot be acquired.
	ErrResource = errors.New("resource error")
	// ErrUnsupported marks recoverable format gaps (e.g. RAR decoder absent).
	ErrUnsupported = errors.New("format unsupported")
	// ErrTransient marks failures worth retrying.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
