package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"kicomport/internal/services"
)

// Kind classifies a candidate asset file. Immutable once assigned.
type Kind string

const (
	KindSymbol    Kind = "symbol"
	KindFootprint Kind = "footprint"
	KindModel     Kind = "model"
)

// Candidate is one classified asset file discovered under an extraction root.
type Candidate struct {
	Kind        Kind
	Path        string // absolute
	RelPath     string // relative to the scan root, used for destination naming
	Name        string // filename stem
	Description string
	PinCount    int // symbols only; 0 means unknown
	PadCount    int // footprints only; 0 means unknown
	Heuristic   float64
	SizeBytes   int64
	// Extra holds free-form provenance tags that have no fixed field.
	Extra map[string]string
}

const (
	footprintContainerSuffix = ".pretty"
	modelContainerSuffix     = ".3dshapes"
)

var (
	symbolExts    = map[string]struct{}{".kicad_sym": {}}
	footprintExts = map[string]struct{}{".kicad_mod": {}}
	modelExts     = map[string]struct{}{
		".step": {}, ".stp": {}, ".wrl": {}, ".obj": {}, ".3dshapes": {}, ".dcm": {},
	}
	containerModelExts = map[string]struct{}{".step": {}, ".stp": {}, ".wrl": {}, ".obj": {}}

	pinTokenRe    = regexp.MustCompile(`(?i)pin`)
	padTokenRe    = regexp.MustCompile(`(?i)\bpad\b`)
	descriptionRe = regexp.MustCompile(`(?i)(?:description|descr)\s+"([^"]+)"`)
)

// Scan recursively classifies every file under root into candidates.
//
// Two directory conventions apply on top of extension matching: a directory
// named *.pretty is a footprint library whose immediate .kicad_mod files are
// footprint candidates, and a *.3dshapes directory contains model candidates.
// Each file becomes at most one candidate regardless of how many rules match.
func Scan(root string) ([]Candidate, error) {
	var candidates []Candidate
	seen := map[string]struct{}{}

	add := func(c Candidate, err error) error {
		if err != nil {
			return err
		}
		if _, dup := seen[c.Path]; dup {
			return nil
		}
		seen[c.Path] = struct{}{}
		candidates = append(candidates, c)
		return nil
	}

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			switch {
			case strings.HasSuffix(entry.Name(), footprintContainerSuffix):
				return forEachContainedFile(path, func(file string) error {
					if strings.ToLower(filepath.Ext(file)) != ".kicad_mod" {
						return nil
					}
					return add(buildFootprint(file, root))
				})
			case strings.HasSuffix(entry.Name(), modelContainerSuffix):
				return forEachContainedFile(path, func(file string) error {
					if _, ok := containerModelExts[strings.ToLower(filepath.Ext(file))]; !ok {
						return nil
					}
					return add(buildModel(file, root))
				})
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		switch {
		case hasExt(symbolExts, ext):
			return add(buildSymbol(path, root))
		case hasExt(footprintExts, ext):
			return add(buildFootprint(path, root))
		case hasExt(modelExts, ext):
			return add(buildModel(path, root))
		}
		return nil
	})
	if err != nil {
		return nil, services.Wrap(services.ErrResource, "scan", "walk", root, err)
	}
	return candidates, nil
}

func hasExt(set map[string]struct{}, ext string) bool {
	_, ok := set[ext]
	return ok
}

func forEachContainedFile(dir string, visit func(string) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := visit(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func buildSymbol(path, root string) (Candidate, error) {
	text, size, err := readCandidate(path)
	if err != nil {
		return Candidate{}, err
	}
	pinCount := len(pinTokenRe.FindAllStringIndex(text, -1))
	description := firstDescription(text)
	rel := relTo(root, path)
	return Candidate{
		Kind:        KindSymbol,
		Path:        path,
		RelPath:     rel,
		Name:        stem(path),
		Description: description,
		PinCount:    pinCount,
		Heuristic:   heuristicScore(stem(path), pinCount, description, rel),
		SizeBytes:   size,
	}, nil
}

func buildFootprint(path, root string) (Candidate, error) {
	text, size, err := readCandidate(path)
	if err != nil {
		return Candidate{}, err
	}
	padCount := len(padTokenRe.FindAllStringIndex(text, -1))
	description := firstDescription(text)
	rel := relTo(root, path)
	return Candidate{
		Kind:        KindFootprint,
		Path:        path,
		RelPath:     rel,
		Name:        stem(path),
		Description: description,
		PadCount:    padCount,
		Heuristic:   heuristicScore(stem(path), padCount, description, rel),
		SizeBytes:   size,
	}, nil
}

func buildModel(path, root string) (Candidate, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Candidate{}, err
	}
	rel := relTo(root, path)
	return Candidate{
		Kind:    KindModel,
		Path:    path,
		RelPath: rel,
		Name:    stem(path),
		// Models carry no parsed description; record the format instead.
		Description: filepath.Ext(path),
		Heuristic:   modelScore(strings.ToLower(filepath.Ext(path)), info.Size(), rel),
		SizeBytes:   info.Size(),
	}, nil
}

func readCandidate(path string) (string, int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, err
	}
	return string(data), int64(len(data)), nil
}

func firstDescription(text string) string {
	match := descriptionRe.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	return match[1]
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func relTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.Base(path)
	}
	return rel
}
