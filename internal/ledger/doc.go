// Package ledger executes queued jobs and records their outcome.
//
// Execute is the single entry point of every dispatcher. It claims the
// job, runs the pipeline inside a private unit of work and commits the
// terminal status together with the findings the run produced. A job
// that is not queued when Execute claims it is never run, so duplicate
// deliveries of the same job are harmless.
package ledger
