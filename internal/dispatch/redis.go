package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/semaphore"

	"github.com/nao1215/byteforge/internal/model"
)

// Message is the queue payload of one job delivery.
type Message struct {
	ID         string        `json:"id"`
	JobID      int64         `json:"job_id"`
	Kind       model.JobKind `json:"kind"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
}

// decodeMessage parses a queue payload.
func decodeMessage(payload string) (*Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return nil, fmt.Errorf("malformed message: %w", err)
	}
	if m.JobID <= 0 {
		return nil, fmt.Errorf("malformed message: invalid job_id %d", m.JobID)
	}
	return &m, nil
}

// Redis pushes jobs onto a Redis list.
type Redis struct {
	client *redis.Client
	queue  string
	logger *slog.Logger
	now    func() time.Time
}

// NewRedis creates a dispatcher pushing onto queue. The dispatcher owns
// client and closes it on Close.
func NewRedis(client *redis.Client, queue string, opts ...Option) *Redis {
	o := buildOptions(opts)
	return &Redis{
		client: client,
		queue:  queue,
		logger: o.logger,
		now:    time.Now,
	}
}

// Enqueue pushes a message for jobID.
func (d *Redis) Enqueue(ctx context.Context, jobID int64, kind model.JobKind) error {
	msg := Message{
		ID:         uuid.NewString(),
		JobID:      jobID,
		Kind:       kind,
		EnqueuedAt: d.now().UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := d.client.LPush(ctx, d.queue, payload).Err(); err != nil {
		return fmt.Errorf("push job %d: %w", jobID, err)
	}

	d.logger.Debug("job enqueued", "job_id", jobID, "kind", kind, "message_id", msg.ID, "queue", d.queue)
	return nil
}

// Close closes the broker connection.
func (d *Redis) Close(context.Context) error {
	return d.client.Close()
}

// DefaultPollTimeout is how long one BRPOP waits before re-checking ctx.
const DefaultPollTimeout = 5 * time.Second

// Worker consumes job messages from a Redis list.
type Worker struct {
	client      *redis.Client
	queue       string
	exec        Executor
	concurrency int
	pollTimeout time.Duration
	logger      *slog.Logger
}

// NewWorker creates a worker running at most concurrency jobs at once.
func NewWorker(client *redis.Client, queue string, exec Executor, concurrency int, opts ...Option) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	o := buildOptions(opts)
	return &Worker{
		client:      client,
		queue:       queue,
		exec:        exec,
		concurrency: concurrency,
		pollTimeout: DefaultPollTimeout,
		logger:      o.logger,
	}
}

// SetPollTimeout changes how long each BRPOP blocks.
func (w *Worker) SetPollTimeout(d time.Duration) {
	if d > 0 {
		w.pollTimeout = d
	}
}

// Run consumes messages until ctx is done, then waits for running jobs.
// A message is only popped when a slot is free. Malformed messages are
// logged and dropped.
func (w *Worker) Run(ctx context.Context) error {
	sem := semaphore.NewWeighted(int64(w.concurrency))
	w.logger.Info("worker started", "queue", w.queue, "concurrency", w.concurrency)

	for {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		res, err := w.client.BRPop(ctx, w.pollTimeout, w.queue).Result()
		if err != nil {
			sem.Release(1)
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			w.logger.Error("failed to read queue", "queue", w.queue, "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		// res is [key, value].
		msg, err := decodeMessage(res[1])
		if err != nil {
			sem.Release(1)
			w.logger.Warn("dropping message", "queue", w.queue, "error", err)
			continue
		}

		go func() {
			defer sem.Release(1)
			w.logger.Debug("job received", "job_id", msg.JobID, "kind", msg.Kind, "message_id", msg.ID)
			execute(ctx, w.exec, w.logger, msg.JobID)
		}()
	}

	// Wait for in-flight jobs.
	_ = sem.Acquire(context.Background(), int64(w.concurrency))
	w.logger.Info("worker stopped", "queue", w.queue)
	return nil
}
