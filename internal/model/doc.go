// Package model defines the core data types shared across byteforge.
//
// This package contains:
//   - Target, Job, Finding and Evidence: the persisted entities
//   - JobKind and JobStatus, including the job state machine
//   - Severity and SeverityCounts
//   - ScanResult, Match and the Details variants produced by scan adapters
//
// Types in this package always hold plaintext. Encryption at rest is applied
// by the store package when entities cross the database boundary.
package model
