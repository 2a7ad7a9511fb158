// Package services defines shared utilities consumed by the intake pipeline
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that keep the failure
//     taxonomy (validation vs resource vs transient) uniform across stages.
package services
