// Package intake orchestrates jobs from stored bundle to imported assets.
//
// One pipeline instance drives every job through the same stages: safe
// extraction, candidate scanning, grouping into components, ranking,
// optional AI scoring, then a user-driven selection and import step. Each
// stage failure marks the job failed with a reason the user can act on;
// AI scoring alone degrades without failing the job.
package intake
