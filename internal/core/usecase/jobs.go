package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/citysort/citysort/internal/core/domain"
	"github.com/citysort/citysort/internal/core/ports"
)

// JobServiceUseCase exposes enqueue/inspect operations over the durable job
// store. Enqueue additionally publishes a wake-up signal so an idle worker
// picks the job up without waiting out its poll interval.
type JobServiceUseCase struct {
	store       ports.JobStore
	signal      ports.JobSignal
	maxAttempts int
	log         *slog.Logger
}

func NewJobServiceUseCase(store ports.JobStore, signal ports.JobSignal, maxAttempts int, log *slog.Logger) *JobServiceUseCase {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if log == nil {
		log = slog.Default()
	}
	return &JobServiceUseCase{
		store:       store,
		signal:      signal,
		maxAttempts: maxAttempts,
		log:         log,
	}
}

func (uc *JobServiceUseCase) EnqueueDocumentProcessing(ctx context.Context, documentID, actor string) (*domain.Job, error) {
	if documentID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "enqueue document processing", fmt.Errorf("document id is empty"))
	}
	if actor == "" {
		actor = "system"
	}

	job, err := uc.store.Enqueue(ctx, domain.JobTypeProcessDocument, map[string]any{
		"document_id": documentID,
		"actor":       actor,
	}, actor, uc.maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	// Best effort: the poll loop will find the job regardless.
	if uc.signal != nil {
		if err := uc.signal.Publish(ctx, job.ID); err != nil {
			uc.log.Warn("job_signal_publish_failed", "job_id", job.ID, "error", err)
		}
	}

	return job, nil
}

func (uc *JobServiceUseCase) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	return uc.store.GetByID(ctx, id)
}

func (uc *JobServiceUseCase) ListJobs(ctx context.Context, status domain.JobStatus, limit int) ([]domain.Job, error) {
	return uc.store.List(ctx, status, limit)
}
