// Package materializer turns adapter matches into findings and evidence
// staged on a job's unit of work.
package materializer
