package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/nao1215/byteforge/internal/model"
)

// InProcess runs jobs on goroutines of the current process.
type InProcess struct {
	exec   Executor
	sem    *semaphore.Weighted
	logger *slog.Logger

	// ctx is the parent of every execution; cancel aborts running jobs
	// between their steps.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// NewInProcess creates a dispatcher running at most concurrency jobs at once.
func NewInProcess(exec Executor, concurrency int, opts ...Option) *InProcess {
	if concurrency < 1 {
		concurrency = 1
	}
	o := buildOptions(opts)
	ctx, cancel := context.WithCancel(context.Background())
	return &InProcess{
		exec:   exec,
		sem:    semaphore.NewWeighted(int64(concurrency)),
		logger: o.logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Enqueue starts jobID on a new goroutine and returns immediately. The
// goroutine waits for a free slot before executing.
func (d *InProcess) Enqueue(_ context.Context, jobID int64, kind model.JobKind) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		if err := d.sem.Acquire(d.ctx, 1); err != nil {
			d.logger.Warn("job dropped on shutdown", "job_id", jobID, "kind", kind)
			return
		}
		defer d.sem.Release(1)

		execute(d.ctx, d.exec, d.logger, jobID)
	}()

	d.logger.Debug("job enqueued", "job_id", jobID, "kind", kind)
	return nil
}

// Close stops accepting jobs and waits for running ones. When ctx is done
// first, running jobs are cancelled and ctx's error is returned once they
// have returned.
func (d *InProcess) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
