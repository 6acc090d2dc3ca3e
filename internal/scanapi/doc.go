// Package scanapi exposes the scan modules as direct calls and assembles
// them into the job orchestrator.
//
// The direct calls run one module without creating a job or persisting
// anything; the CLI `scan` command uses them.
package scanapi
