package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/byteforge/internal/materializer"
	"github.com/nao1215/byteforge/internal/model"
)

// Step is one phase of a job. Steps are executed in sequence, each
// receiving the Execution that accumulates the results of earlier steps.
type Step interface {
	// Do executes the step. A step records adapter failures (timeout,
	// tool error) in the Execution and returns nil; a returned error
	// stops the pipeline.
	Do(ctx context.Context, exec *Execution) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Execution is the state shared by the steps of one job run.
type Execution struct {
	Job    *model.Job
	Target *model.Target

	// Descriptor is the URL or domain the scan is pointed at.
	Descriptor string

	// Session receives the findings materialized by each step.
	Session materializer.Stager

	// Results holds the adapter result of each completed phase.
	Results map[model.JobKind]*model.ScanResult

	// Phases lists the phase summaries in execution order.
	Phases []model.PhaseSummary
}

// NewExecution prepares the state for running job against target.
func NewExecution(job *model.Job, target *model.Target, session materializer.Stager) *Execution {
	return &Execution{
		Job:        job,
		Target:     target,
		Descriptor: target.Descriptor(),
		Session:    session,
		Results:    make(map[model.JobKind]*model.ScanResult),
	}
}

// record stores a phase result and its summary.
func (e *Execution) record(result *model.ScanResult, findings int) {
	e.Results[result.Kind] = result
	e.Phases = append(e.Phases, model.PhaseSummary{
		Kind:          result.Kind,
		Tool:          result.Tool,
		Status:        result.Status,
		FindingsCount: findings,
		Error:         result.Error,
	})
}

// Pipeline executes steps in order and stops at the first step error.
type Pipeline struct {
	steps []Step

	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddSteps appends steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence. Cancellation is checked between
// steps; each step bounds its own work with timeouts.
func (p *Pipeline) Execute(ctx context.Context, exec *Execution) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"job_id", exec.Job.ID,
				"reason", ctx.Err(),
			)
			return ctx.Err()
		default:
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"job_id", exec.Job.ID,
		)

		if err := step.Do(ctx, exec); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"job_id", exec.Job.ID,
				"error", err,
			)
			return err
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"job_id", exec.Job.ID,
		)
	}
	return nil
}
