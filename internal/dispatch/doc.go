// Package dispatch delivers submitted jobs to an executor.
//
// Two implementations share the Dispatcher interface. InProcess runs each
// job on its own goroutine with a bounded number executing at once. Redis
// pushes job messages onto a list that Worker processes consume, so jobs
// can be submitted by one process and executed by another.
//
// Delivery is at least once: the executor claims each job before running
// it and ignores deliveries of jobs that are no longer queued.
package dispatch
