package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/citysort/citysort/internal/core/domain"
	"github.com/citysort/citysort/internal/core/ports"
	"github.com/citysort/citysort/internal/observability/metrics"
)

// Handler executes one job attempt. A returned error counts the attempt as
// failed; the store decides whether the job retries.
type Handler func(ctx context.Context, payload map[string]any) (map[string]any, error)

type Options struct {
	PollInterval time.Duration
	JobTimeout   time.Duration
	Metrics      *metrics.WorkerMetrics
}

// Worker drains the durable job queue. It claims jobs in FIFO order on a
// poll tick or a wake-up signal and keeps claiming until the queue is
// empty, so one signal is enough to flush a burst of jobs.
type Worker struct {
	id       string
	store    ports.JobStore
	signal   ports.JobSignal
	handlers map[string]Handler
	log      *slog.Logger

	pollInterval time.Duration
	jobTimeout   time.Duration
	metrics      *metrics.WorkerMetrics

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func New(store ports.JobStore, signal ports.JobSignal, log *slog.Logger, opts Options) *Worker {
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	jobTimeout := opts.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = 5 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		id:           "citysort-worker-" + uuid.NewString()[:8],
		store:        store,
		signal:       signal,
		handlers:     make(map[string]Handler),
		log:          log,
		pollInterval: pollInterval,
		jobTimeout:   jobTimeout,
		metrics:      opts.Metrics,
	}
}

func (w *Worker) ID() string {
	return w.id
}

// Register binds a handler to a job type. Must be called before Start.
func (w *Worker) Register(jobType string, handler Handler) {
	w.handlers[jobType] = handler
}

// Start launches the worker loop. Calling Start on a running worker is a
// no-op.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}

	var wake <-chan string
	if w.signal != nil {
		ch, err := w.signal.Subscribe(ctx)
		if err != nil {
			w.log.Warn("job_signal_subscribe_failed", "error", err)
		} else {
			wake = ch
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.started = true

	go w.run(loopCtx, wake)
	return nil
}

// Stop cancels the loop and waits for the in-flight job to finish. Safe to
// call more than once.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	done := w.done
	w.started = false
	w.mu.Unlock()

	cancel()
	<-done
}

func (w *Worker) run(ctx context.Context, wake <-chan string) {
	defer close(w.done)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.log.Info("worker_started", "worker_id", w.id, "poll_interval", w.pollInterval.String())

	w.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker_stopped", "worker_id", w.id)
			return
		case <-ticker.C:
			w.drain(ctx)
		case _, ok := <-wake:
			if !ok {
				wake = nil
				continue
			}
			w.drain(ctx)
		}
	}
}

// drain claims and runs jobs until the queue reports empty or ctx ends.
func (w *Worker) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		job, err := w.store.Claim(ctx, w.id)
		if err != nil {
			w.log.Error("job_claim_failed", "worker_id", w.id, "error", err)
			return
		}
		if job == nil {
			return
		}

		w.execute(ctx, job)
	}
}

func (w *Worker) execute(ctx context.Context, job *domain.Job) {
	log := w.log.With("job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts+1)

	if w.metrics != nil {
		w.metrics.ObserveQueueLag(job.JobType, time.Since(job.CreatedAt))
	}

	handler, ok := w.handlers[job.JobType]
	if !ok {
		log.Error("job_type_unregistered")
		if err := w.store.FailTerminal(ctx, job.ID, fmt.Sprintf("no handler registered for job type %q", job.JobType)); err != nil {
			log.Error("job_fail_terminal_failed", "error", err)
		}
		if w.metrics != nil {
			w.metrics.FinishJob(job.JobType, "unregistered", 0)
		}
		return
	}

	if w.metrics != nil {
		w.metrics.StartJob()
	}
	start := time.Now()

	result, err := w.runHandler(ctx, handler, job.Payload)
	duration := time.Since(start)

	if err != nil {
		log.Warn("job_attempt_failed", "duration_ms", duration.Milliseconds(), "error", err)
		if failErr := w.store.Fail(ctx, job.ID, err.Error()); failErr != nil {
			log.Error("job_fail_update_failed", "error", failErr)
		}
		if w.metrics != nil {
			w.metrics.FinishJob(job.JobType, "error", duration)
		}
		return
	}

	if completeErr := w.store.Complete(ctx, job.ID, result); completeErr != nil {
		log.Error("job_complete_update_failed", "error", completeErr)
	} else {
		log.Info("job_completed", "duration_ms", duration.Milliseconds())
	}
	if w.metrics != nil {
		w.metrics.FinishJob(job.JobType, "success", duration)
	}
}

// runHandler isolates handler panics so a bad payload cannot take the loop
// down; a panic counts as a failed attempt.
func (w *Worker) runHandler(ctx context.Context, handler Handler, payload map[string]any) (result map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panic: %v\n%s", r, debug.Stack())
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	return handler(jobCtx, payload)
}
