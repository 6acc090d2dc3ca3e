package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/nao1215/byteforge/internal/config"
	"github.com/nao1215/byteforge/internal/ledger"
	"github.com/nao1215/byteforge/internal/model"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("dispatcher is closed")

// Executor runs a queued job. *ledger.Ledger implements it.
type Executor interface {
	Execute(ctx context.Context, jobID int64) error
}

// Dispatcher hands submitted jobs to an executor.
type Dispatcher interface {
	// Enqueue schedules jobID for execution. It does not wait for the job.
	Enqueue(ctx context.Context, jobID int64, kind model.JobKind) error

	// Close stops accepting jobs and releases resources. The in-process
	// dispatcher also waits for running jobs until ctx is done.
	Close(ctx context.Context) error
}

// JobCreator persists new jobs. *store.Store implements it.
type JobCreator interface {
	CreateJob(ctx context.Context, targetID int64, kind model.JobKind) (*model.Job, error)
}

// Submit creates a queued job and enqueues it. When enqueueing fails the
// job is returned along with the error and stays queued.
func Submit(ctx context.Context, jobs JobCreator, d Dispatcher, targetID int64, kind model.JobKind) (*model.Job, error) {
	job, err := jobs.CreateJob(ctx, targetID, kind)
	if err != nil {
		return nil, err
	}
	if err := d.Enqueue(ctx, job.ID, job.Kind); err != nil {
		return job, fmt.Errorf("enqueue job %d: %w", job.ID, err)
	}
	return job, nil
}

// New selects the dispatcher configured by cfg.Dispatcher.
func New(cfg *config.Config, exec Executor, logger *slog.Logger) (Dispatcher, error) {
	switch cfg.Dispatcher {
	case config.DispatcherInProcess, "":
		return NewInProcess(exec, cfg.Concurrency, WithLogger(logger)), nil
	case config.DispatcherRedis:
		client, err := NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return NewRedis(client, cfg.RedisQueue, WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidDispatcher, cfg.Dispatcher)
	}
}

// NewRedisClient connects to the broker at url (redis://host:port/db).
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// execute runs one job and logs the outcome.
func execute(ctx context.Context, exec Executor, logger *slog.Logger, jobID int64) {
	err := exec.Execute(ctx, jobID)
	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrJobNotFound), errors.Is(err, ledger.ErrJobNotQueued):
		logger.Debug("job delivery ignored", "job_id", jobID, "reason", err)
	default:
		logger.Error("job execution failed", "job_id", jobID, "error", err)
	}
}

// options holds settings shared by the dispatcher implementations.
type options struct {
	logger *slog.Logger
}

// Option configures a dispatcher or worker.
type Option func(*options)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}
