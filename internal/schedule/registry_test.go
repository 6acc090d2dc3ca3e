package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/byteforge/internal/cipher"
	"github.com/nao1215/byteforge/internal/log"
	"github.com/nao1215/byteforge/internal/model"
	"github.com/nao1215/byteforge/internal/store"
)

// recordingDispatcher records enqueued jobs.
type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []int64
}

func (d *recordingDispatcher) Enqueue(_ context.Context, jobID int64, _ model.JobKind) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, jobID)
	return nil
}

func (d *recordingDispatcher) Close(context.Context) error { return nil }

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()

	c, err := cipher.New("schedule-test-secret")
	if err != nil {
		t.Fatalf("cipher.New: %v", err)
	}
	s, err := store.Open(t.TempDir(), c, store.DefaultOptions())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestRegistryAddRemove tests persistence and cron registration.
func TestRegistryAddRemove(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := setupTestStore(t)
	r := NewRegistry(s, &recordingDispatcher{}, WithLogger(log.Discard()))

	sc, err := r.Add(ctx, 3, model.JobKindComposite, model.FrequencyDaily)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if sc.ID != "target_3_composite" || sc.Cron != "0 0 * * *" {
		t.Errorf("unexpected schedule %+v", sc)
	}

	// Replacing keeps one entry per target and kind.
	if _, err := r.Add(ctx, 3, model.JobKindComposite, model.FrequencyMonthly); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(r.entries) != 1 {
		t.Errorf("expected 1 cron entry, got %d", len(r.entries))
	}

	list, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Frequency != model.FrequencyMonthly {
		t.Errorf("unexpected schedules %+v", list)
	}

	if err := r.Remove(ctx, sc.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(r.entries) != 0 {
		t.Errorf("cron entry not removed")
	}
	if err := r.Remove(ctx, sc.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestRegistryStartLoadsPersisted tests restoring schedules after a restart.
func TestRegistryStartLoadsPersisted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := setupTestStore(t)
	if err := s.SaveSchedule(ctx, model.NewSchedule(1, model.JobKindRecon, model.FrequencyWeekly)); err != nil {
		t.Fatalf("SaveSchedule: %v", err)
	}

	r := NewRegistry(s, &recordingDispatcher{}, WithLogger(log.Discard()))
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = r.Stop(ctx) }()

	next := r.Next(model.ScheduleID(1, model.JobKindRecon))
	if next.IsZero() {
		t.Fatal("expected a next fire time")
	}
	if next.Weekday() != 0 || next.Hour() != 0 || next.Minute() != 0 {
		t.Errorf("weekly schedule fires at %v, want Sunday midnight", next)
	}
	if err := r.Start(ctx); err != nil {
		t.Errorf("second Start: %v", err)
	}
}

// TestRegistryFire tests that a firing schedule submits a job.
func TestRegistryFire(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := setupTestStore(t)
	d := &recordingDispatcher{}
	r := NewRegistry(s, d, WithLogger(log.Discard()))

	r.fire(*model.NewSchedule(5, model.JobKindVulnerabilityScan, model.FrequencyDaily))

	if len(d.jobs) != 1 {
		t.Fatalf("expected 1 enqueued job, got %d", len(d.jobs))
	}
	job, err := s.GetJob(ctx, d.jobs[0])
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.TargetID != 5 || job.Kind != model.JobKindVulnerabilityScan || job.Status != model.JobStatusQueued {
		t.Errorf("unexpected job %+v", job)
	}
}

// TestRegistryStopIdempotent tests stopping a registry that never started.
func TestRegistryStopIdempotent(t *testing.T) {
	t.Parallel()

	r := NewRegistry(setupTestStore(t), &recordingDispatcher{}, WithLogger(log.Discard()))
	if err := r.Stop(context.Background()); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

// TestRegistryNextBeforeStart tests fire times of schedules added to a
// registry that is not running.
func TestRegistryNextBeforeStart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := NewRegistry(setupTestStore(t), &recordingDispatcher{}, WithLogger(log.Discard()))

	sc, err := r.Add(ctx, 2, model.JobKindCrawl, model.FrequencyMonthly)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	next := r.Next(sc.ID)
	if next.IsZero() {
		t.Fatal("expected a next fire time")
	}
	if next.Day() != 1 || next.Hour() != 0 || next.Location() != time.UTC {
		t.Errorf("monthly schedule fires at %v, want the 1st at midnight UTC", next)
	}
	if !r.Next("target_9_recon").IsZero() {
		t.Error("expected zero time for an unknown schedule")
	}
}

// TestRegistryLoad tests registering persisted schedules without firing.
func TestRegistryLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := setupTestStore(t)
	if err := s.SaveSchedule(ctx, model.NewSchedule(4, model.JobKindReport, model.FrequencyDaily)); err != nil {
		t.Fatalf("SaveSchedule: %v", err)
	}

	d := &recordingDispatcher{}
	r := NewRegistry(s, d, WithLogger(log.Discard()))
	if err := r.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if r.running {
		t.Error("Load must not start the registry")
	}
	if r.Next(model.ScheduleID(4, model.JobKindReport)).IsZero() {
		t.Error("expected a next fire time after Load")
	}
	if len(d.jobs) != 0 {
		t.Errorf("expected no submissions, got %v", d.jobs)
	}
}
