// Package extract validates and unpacks uploaded archives into per-job
// working directories.
//
// Zip archives are fully supported; RAR archives decode via a pure-Go reader
// and report a recoverable "format unsupported" error when they cannot be
// handled. Non-archive uploads are copied into their own directory so the
// scanner treats every intake uniformly.
//
// Safety properties: entry paths are normalized and confined to the target
// directory (zip-slip defense), declared sizes are checked before any byte is
// written, and the same ceilings are re-enforced against actual bytes during
// streaming (decompression-bomb defense). Extraction is all-or-nothing: a
// failed extraction leaves no trace, and re-extraction into the same target
// is idempotent.
package extract
