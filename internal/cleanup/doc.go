// Package cleanup reclaims disk space from finished and abandoned jobs.
//
// Expiry removes terminal jobs older than the retention window together
// with their stored bundle and extracted tree. Orphan cleanup removes
// uploads and temp trees that no job row references, which covers crashes
// between file writes and database updates.
package cleanup
