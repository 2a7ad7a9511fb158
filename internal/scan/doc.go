// Package scan walks an extracted upload tree, classifies files into symbol,
// footprint, and 3D model candidates, extracts lightweight metadata (pin/pad
// token counts, descriptions, sizes), and assigns each candidate its heuristic
// quality score.
//
// Scanning is read-only and deterministic: candidates carry paths relative to
// the scan root so later merge steps can derive stable destination names.
package scan
