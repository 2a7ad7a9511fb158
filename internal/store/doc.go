// Package store persists intake jobs, components, and candidates in SQLite.
//
// The Store manages database connections, schema initialization, job lifecycle
// updates, candidate scoring persistence, selection tracking, and retention
// queries. Jobs capture the archive hash, stored and extracted paths, and a
// timeline of log entries so the pipeline, API, and CLI can coordinate without
// additional state.
//
// The database is treated as transient storage for in-flight jobs rather than
// a long-term archive. Schema changes bump the version in schema.go; users
// delete the database to adopt the new schema.
package store
