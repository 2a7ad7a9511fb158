// Package ollama scores candidates with a locally hosted model.
//
// Scoring is best effort: the pipeline runs without it when the server is
// down or the model output cannot be parsed, marking the job so the UI can
// show that AI input is missing.
package ollama
