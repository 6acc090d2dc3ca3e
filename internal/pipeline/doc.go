// Package pipeline runs the phases of a job in sequence.
//
// Each job kind maps to a list of steps: a single adapter step for the
// scan kinds, recon then crawl then vulnerability-scan for composite jobs,
// and a report step for report jobs. Steps share an Execution that
// collects phase results and stages findings on the job's unit of work.
//
// The Orchestrator turns the Execution into the job's ScanResult and
// applies the failure rules: a lone failed phase fails the job while a
// failed phase inside a composite job is recorded and skipped.
//
// BatchProcessor runs direct scans over many targets with bounded
// concurrency using errgroup.
package pipeline
