package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/nao1215/byteforge/internal/materializer"
	"github.com/nao1215/byteforge/internal/model"
	"github.com/nao1215/byteforge/internal/store"
)

// Runner runs the pipeline of a job. *pipeline.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, job *model.Job, target *model.Target, session materializer.Stager) (*model.ScanResult, error)
}

// Recorder receives execution metrics. *metrics.Collector implements it.
type Recorder interface {
	JobStarted()
	JobFinished(kind model.JobKind, status model.JobStatus, elapsed time.Duration)
	PhaseFinished(tool string, status model.ResultStatus)
	FindingsPersisted(findings []model.Finding)
}

// Ledger drives jobs through queued, running and a terminal status.
type Ledger struct {
	store    *store.Store
	runner   Runner
	recorder Recorder
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(l *Ledger) {
		l.recorder = r
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// WithClock sets the clock used to time executions.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// New creates a Ledger over s that runs jobs with runner.
func New(s *store.Store, runner Runner, opts ...Option) *Ledger {
	l := &Ledger{
		store:    s,
		runner:   runner,
		recorder: nopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Execute runs job jobID to completion.
//
// A job that does not exist returns ErrJobNotFound and a job that is not
// queued returns ErrJobNotQueued; neither runs anything. Otherwise the
// job's outcome is committed, and the returned error is non-nil only when
// that commit fails; the job is then marked failed without its findings.
// A pipeline error or panic marks the job failed with the error text as
// its log.
func (l *Ledger) Execute(ctx context.Context, jobID int64) error {
	job, err := l.store.GetJob(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrJobNotFound, jobID)
	}
	if err != nil {
		return err
	}

	claimed, err := l.store.ClaimJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !claimed {
		l.logger.Debug("job skipped", "job_id", jobID, "status", job.Status)
		return fmt.Errorf("%w: job %d is %s", ErrJobNotQueued, jobID, job.Status)
	}
	job.Status = model.JobStatusRunning

	start := l.now()
	l.recorder.JobStarted()

	session := l.store.NewSession(job.ID)
	result, runErr := l.run(ctx, job, session)

	status := model.JobStatusCompleted
	var logText string
	if runErr == nil {
		raw, err := json.Marshal(result)
		if err != nil {
			runErr = fmt.Errorf("encode result: %w", err)
		} else {
			logText = string(raw)
		}
	}
	if runErr != nil {
		status = model.JobStatusFailed
		logText = runErr.Error()
	}

	// The outcome is committed even when ctx was cancelled mid-run.
	commitCtx := context.WithoutCancel(ctx)
	if err := session.Commit(commitCtx, status, logText); err != nil {
		l.recorder.JobFinished(job.Kind, model.JobStatusFailed, l.now().Sub(start))
		return l.failUncommitted(commitCtx, job, fmt.Errorf("commit job %d: %w", job.ID, err))
	}

	elapsed := l.now().Sub(start)
	staged := session.Staged()
	l.recordPhases(result)
	l.recorder.FindingsPersisted(staged)
	l.recorder.JobFinished(job.Kind, status, elapsed)

	attrs := []any{
		"job_id", job.ID,
		"target_id", job.TargetID,
		"kind", job.Kind,
		"status", status,
		"findings", len(staged),
		"duration", elapsed,
	}
	if runErr != nil {
		l.logger.Warn("job finished", append(attrs, "error", runErr)...)
	} else {
		l.logger.Info("job finished", attrs...)
	}
	return nil
}

// failUncommitted marks a job whose outcome could not be committed as
// failed, with commitErr as its log. Staged findings are dropped.
func (l *Ledger) failUncommitted(ctx context.Context, job *model.Job, commitErr error) error {
	ok, err := l.store.FailJob(ctx, job.ID, commitErr.Error())
	if err != nil {
		l.logger.Error("job outcome lost", "job_id", job.ID, "error", commitErr, "fallback_error", err)
		return errors.Join(commitErr, err)
	}
	if ok {
		l.logger.Error("job finished",
			"job_id", job.ID,
			"target_id", job.TargetID,
			"kind", job.Kind,
			"status", model.JobStatusFailed,
			"error", commitErr,
		)
	}
	return commitErr
}

// run loads the target and runs the pipeline, converting a panic into an error.
func (l *Ledger) run(ctx context.Context, job *model.Job, session materializer.Stager) (result *model.ScanResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("job panicked",
				"job_id", job.ID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			result = nil
			err = fmt.Errorf("panic during %s job: %v", job.Kind, r)
		}
	}()

	target, err := l.target(ctx, job)
	if err != nil {
		return nil, err
	}
	return l.runner.Run(ctx, job, target, session)
}

// target loads the job's target. A deleted target yields an empty one
// whose descriptor is the default URL.
func (l *Ledger) target(ctx context.Context, job *model.Job) (*model.Target, error) {
	t, err := l.store.GetTarget(ctx, job.TargetID)
	if errors.Is(err, store.ErrNotFound) {
		l.logger.Warn("target not found, scanning default descriptor",
			"job_id", job.ID,
			"target_id", job.TargetID,
			"descriptor", model.DefaultTargetURL,
		)
		return &model.Target{ID: job.TargetID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load target %d: %w", job.TargetID, err)
	}
	return t, nil
}

func (l *Ledger) recordPhases(result *model.ScanResult) {
	if result == nil {
		return
	}
	if d, ok := result.Details.(*model.CompositeDetails); ok {
		for _, ph := range d.Phases {
			l.recorder.PhaseFinished(ph.Tool, ph.Status)
		}
		return
	}
	l.recorder.PhaseFinished(result.Tool, result.Status)
}

type nopRecorder struct{}

func (nopRecorder) JobStarted() {}
func (nopRecorder) JobFinished(model.JobKind, model.JobStatus, time.Duration) {}
func (nopRecorder) PhaseFinished(string, model.ResultStatus) {}
func (nopRecorder) FindingsPersisted([]model.Finding) {}
