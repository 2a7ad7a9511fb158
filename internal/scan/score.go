package scan

import (
	"math"
	"path/filepath"
	"regexp"
	"strings"
)

var packageFamilyTokens = []string{"qfn", "tqfp", "soic", "bga", "lqfp", "tssop", "sot", "dip"}

var descriptionKeywords = []string{"footprint", "symbol", "connector", "package", "soic", "qfn", "tqfp"}

var highTrustSegments = map[string]struct{}{
	"kicad": {}, "library": {}, "libs": {}, "official": {}, "vendor": {},
	"verified": {}, "prod": {}, "production": {},
}

var lowTrustSegments = map[string]struct{}{
	"temp": {}, "tmp": {}, "old": {}, "backup": {}, "legacy": {},
	"imported": {}, "converted": {}, "test": {},
}

var partNumberRe = regexp.MustCompile(`^[a-zA-Z]{1,5}\d{2,}[a-zA-Z0-9-]*$`)

// heuristicScore rates how plausible a symbol or footprint file looks as a
// real library asset. Baseline 0.4, clamped to [0,1], rounded to 3 decimals.
func heuristicScore(name string, pinOrPad int, description, relPath string) float64 {
	score := 0.4
	nameLower := strings.ToLower(name)

	if pinOrPad > 0 {
		score += math.Min(0.2, float64(pinOrPad)/200)
	}
	for _, token := range packageFamilyTokens {
		if strings.Contains(nameLower, token) {
			score += 0.1
			break
		}
	}
	if description != "" {
		descLower := strings.ToLower(description)
		for _, token := range descriptionKeywords {
			if strings.Contains(descLower, token) {
				score += 0.05
				break
			}
		}
	} else {
		score -= 0.1
	}
	if LooksLikePartNumber(name) {
		score += 0.1
	}
	score += PathTrustBonus(relPath)
	return round3(clamp01(score))
}

// modelScore rates a 3D model purely on existence, format, and path trust.
// STEP is the preferred format; WRL gets a smaller bonus.
func modelScore(ext string, size int64, relPath string) float64 {
	base := 0.1
	if size > 0 {
		base = 0.3
	}
	switch ext {
	case ".step", ".stp":
		base += 0.2
	case ".wrl":
		base += 0.05
	}
	base += PathTrustBonus(relPath)
	return round3(math.Min(base, 1.0))
}

// PathTrustBonus inspects every segment of the candidate's relative path:
// +0.05 when any segment is a high-trust term, -0.05 when any is low-trust.
// Both can apply.
func PathTrustBonus(relPath string) float64 {
	if relPath == "" {
		return 0
	}
	bonus := 0.0
	high, low := false, false
	for _, segment := range strings.Split(filepath.ToSlash(relPath), "/") {
		normalized := strings.ToLower(segment)
		if _, ok := highTrustSegments[normalized]; ok {
			high = true
		}
		if _, ok := lowTrustSegments[normalized]; ok {
			low = true
		}
	}
	if high {
		bonus += 0.05
	}
	if low {
		bonus -= 0.05
	}
	return bonus
}

// PreferredModelExt reports whether path carries the preferred 3D model
// format (STEP).
func PreferredModelExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".step", ".stp":
		return true
	}
	return false
}

// LooksLikePartNumber reports whether name resembles a manufacturer part
// number: 1-5 leading letters, 2+ digits, optional trailing alphanumerics.
func LooksLikePartNumber(name string) bool {
	return partNumberRe.MatchString(name)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
