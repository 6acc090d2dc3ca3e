package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nao1215/byteforge/internal/dispatch"
	"github.com/nao1215/byteforge/internal/model"
)

// Store persists schedules and creates the jobs they fire.
// *store.Store implements it.
type Store interface {
	dispatch.JobCreator
	SaveSchedule(ctx context.Context, sc *model.Schedule) error
	DeleteSchedule(ctx context.Context, id string) error
	ListSchedules(ctx context.Context) ([]model.Schedule, error)
}

// Registry maps persisted schedules onto cron entries that submit jobs.
type Registry struct {
	store      Store
	dispatcher dispatch.Dispatcher
	logger     *slog.Logger
	location   *time.Location

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
	running bool
}

// Option configures a Registry.
type Option func(*registryOptions)

type registryOptions struct {
	logger   *slog.Logger
	location *time.Location
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *registryOptions) {
		o.logger = logger
	}
}

// WithLocation sets the time zone cron expressions are evaluated in.
// The default is UTC.
func WithLocation(loc *time.Location) Option {
	return func(o *registryOptions) {
		o.location = loc
	}
}

// NewRegistry creates a Registry submitting fired jobs through d.
func NewRegistry(s Store, d dispatch.Dispatcher, opts ...Option) *Registry {
	o := registryOptions{location: time.UTC}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	return &Registry{
		store:      s,
		dispatcher: d,
		logger:     o.logger,
		location:   o.location,
		cron:       cron.New(cron.WithLocation(o.location)),
		entries:    make(map[string]cron.EntryID),
	}
}

// Add creates or replaces the schedule of kind against targetID.
func (r *Registry) Add(ctx context.Context, targetID int64, kind model.JobKind, freq model.Frequency) (*model.Schedule, error) {
	sc := model.NewSchedule(targetID, kind, freq)
	if err := r.store.SaveSchedule(ctx, sc); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.register(*sc); err != nil {
		return nil, err
	}

	r.logger.Info("schedule added", "schedule_id", sc.ID, "frequency", sc.Frequency, "cron", sc.Cron)
	return sc, nil
}

// Remove deletes schedule id.
func (r *Registry) Remove(ctx context.Context, id string) error {
	if err := r.store.DeleteSchedule(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[id]; ok {
		r.cron.Remove(entry)
		delete(r.entries, id)
	}

	r.logger.Info("schedule removed", "schedule_id", id)
	return nil
}

// List returns the persisted schedules.
func (r *Registry) List(ctx context.Context) ([]model.Schedule, error) {
	return r.store.ListSchedules(ctx)
}

// Next returns the next fire time of schedule id, or the zero time when
// it is not registered.
func (r *Registry) Next(id string) time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return time.Time{}
	}
	e := r.cron.Entry(entry)
	if e.Next.IsZero() && e.Schedule != nil {
		// Entries only get a Next time once the cron is running.
		return e.Schedule.Next(time.Now().In(r.location))
	}
	return e.Next
}

// Load registers every persisted schedule without firing them.
func (r *Registry) Load(ctx context.Context) error {
	_, err := r.load(ctx, false)
	return err
}

// Start loads every persisted schedule and starts firing them.
func (r *Registry) Start(ctx context.Context) error {
	n, err := r.load(ctx, true)
	if err != nil || n < 0 {
		return err
	}
	r.logger.Info("scheduler started", "schedules", n)
	return nil
}

// load registers the persisted schedules and optionally starts the cron.
// It returns -1 when the registry was already running.
func (r *Registry) load(ctx context.Context, start bool) (int, error) {
	schedules, err := r.store.ListSchedules(ctx)
	if err != nil {
		return 0, fmt.Errorf("load schedules: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if start && r.running {
		return -1, nil
	}
	for _, sc := range schedules {
		if err := r.register(sc); err != nil {
			return 0, err
		}
	}
	if start {
		r.cron.Start()
		r.running = true
	}
	return len(schedules), nil
}

// Stop stops firing schedules and waits for running submissions until
// ctx is done.
func (r *Registry) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	stopped := r.cron.Stop()
	r.mu.Unlock()

	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// register replaces the cron entry of sc. The caller holds r.mu.
func (r *Registry) register(sc model.Schedule) error {
	if entry, ok := r.entries[sc.ID]; ok {
		r.cron.Remove(entry)
		delete(r.entries, sc.ID)
	}

	entry, err := r.cron.AddFunc(sc.Cron, func() { r.fire(sc) })
	if err != nil {
		return fmt.Errorf("invalid cron expression %q for schedule %s: %w", sc.Cron, sc.ID, err)
	}
	r.entries[sc.ID] = entry
	return nil
}

// fire submits one job for sc.
func (r *Registry) fire(sc model.Schedule) {
	job, err := dispatch.Submit(context.Background(), r.store, r.dispatcher, sc.TargetID, sc.Kind)
	if err != nil {
		r.logger.Error("scheduled submission failed", "schedule_id", sc.ID, "error", err)
		return
	}
	r.logger.Info("scheduled job submitted", "schedule_id", sc.ID, "job_id", job.ID, "kind", job.Kind)
}
