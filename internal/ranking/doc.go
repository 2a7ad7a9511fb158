// Package ranking scores candidates so the best symbol, footprint, and model
// per component sort to the top.
//
// The combined score folds four signals together: the scanner's heuristic,
// an optional AI assessment, a structural quality bonus, and accumulated
// selection feedback. Cross-candidate consistency between symbol pin counts
// and footprint pad counts adjusts footprints after the fold.
package ranking
