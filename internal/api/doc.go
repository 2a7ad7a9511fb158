// Package api exposes the intake pipeline over HTTP: uploads, job
// inspection, candidate selection, library import, health, and the
// non-secret configuration view. Handlers stay thin glue over the
// pipeline and store; errors are classified onto HTTP status codes via
// the service error markers.
package api
