package ranking

import (
	"math"

	"kicomport/internal/scan"
	"kicomport/internal/store"
)

// Score weights. Heuristic and AI contributions are weighted; quality and
// feedback are additive bonuses with their own caps.
const (
	heuristicWeight = 0.6
	aiWeight        = 0.3
	qualityCap      = 0.3
	feedbackCap     = 0.2
	feedbackStep    = 0.02
)

// QualityScore derives a structural bonus from the candidate's own shape:
// file substance, description presence, pin or pad evidence, model format,
// and path trust. The result is capped at qualityCap.
func QualityScore(cand *store.Candidate) float64 {
	score := 0.0
	if cand.SizeBytes > 0 {
		score += math.Min(0.05, float64(cand.SizeBytes)/1_000_000*0.01)
	}
	if cand.Description != "" {
		score += 0.05
	}
	switch cand.Kind {
	case scan.KindSymbol:
		if cand.PinCount > 0 {
			score += 0.05
		}
	case scan.KindFootprint:
		if cand.PadCount > 0 {
			score += 0.05
		}
	case scan.KindModel:
		if cand.SizeBytes > 0 {
			score += 0.05
		}
		if scan.PreferredModelExt(cand.Path) {
			score += 0.05
		}
	}
	score += scan.PathTrustBonus(cand.RelPath)
	return round3(clamp(score, 0, qualityCap))
}

// Combined folds the weighted heuristic and AI scores together with the
// quality and feedback bonuses, clamped to [0, 1].
func Combined(cand *store.Candidate) float64 {
	score := cand.HeuristicScore*heuristicWeight + cand.AIScore*aiWeight +
		cand.QualityScore + cand.FeedbackScore
	return round3(clamp(score, 0, 1))
}

// Rescore recomputes the quality and combined scores in place.
func Rescore(cand *store.Candidate) {
	cand.QualityScore = QualityScore(cand)
	cand.CombinedScore = Combined(cand)
}

// UpdateCombined recomputes the combined score for every candidate.
func UpdateCombined(cands []*store.Candidate) {
	for _, cand := range cands {
		cand.CombinedScore = Combined(cand)
	}
}

// ApplyConsistency nudges footprint scores based on how well their pad counts
// line up with the component's symbol pin counts. A near match earns a bonus,
// a wide mismatch a penalty. Components lacking symbols or footprints are
// left untouched.
func ApplyConsistency(comp *store.Component) {
	var symbolPins []int
	var footprints []*store.Candidate
	for _, cand := range comp.Candidates {
		switch cand.Kind {
		case scan.KindSymbol:
			if cand.PinCount > 0 {
				symbolPins = append(symbolPins, cand.PinCount)
			}
		case scan.KindFootprint:
			footprints = append(footprints, cand)
		}
	}
	if len(symbolPins) == 0 || len(footprints) == 0 {
		return
	}

	for _, fp := range footprints {
		if fp.PadCount <= 0 {
			continue
		}
		bestDiff := math.MaxInt
		for _, pins := range symbolPins {
			diff := fp.PadCount - pins
			if diff < 0 {
				diff = -diff
			}
			if diff < bestDiff {
				bestDiff = diff
			}
		}
		switch {
		case bestDiff <= 1:
			fp.CombinedScore = round3(math.Min(1.0, fp.CombinedScore+0.1))
		case bestDiff >= 4:
			fp.CombinedScore = round3(math.Max(0.0, fp.CombinedScore-0.05))
		}
	}
}

// FeedbackBonus converts a selection count into the additive feedback bonus,
// capped so history never dominates the other signals.
func FeedbackBonus(selectedCount int) float64 {
	return math.Min(feedbackCap, float64(selectedCount)*feedbackStep)
}

// ApplyFeedback recomputes the feedback bonus from the candidate's selection
// history and refreshes the combined score.
func ApplyFeedback(cand *store.Candidate) {
	cand.FeedbackScore = FeedbackBonus(cand.SelectedCount)
	cand.CombinedScore = Combined(cand)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
