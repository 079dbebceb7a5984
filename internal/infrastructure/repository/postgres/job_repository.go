package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/citysort/citysort/internal/core/domain"
)

// JobRepository is the durable job queue. Claim uses FOR UPDATE SKIP LOCKED
// so concurrent workers never receive the same pending job.
type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, job_type, payload, status, result, error, actor, attempts, max_attempts, worker_id, created_at, started_at, finished_at`

func (r *JobRepository) Enqueue(ctx context.Context, jobType string, payload map[string]any, actor string, maxAttempts int) (*domain.Job, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}

	job := &domain.Job{
		ID:          uuid.NewString(),
		JobType:     jobType,
		Payload:     payload,
		Status:      domain.JobPending,
		Actor:       actor,
		MaxAttempts: maxAttempts,
		CreatedAt:   time.Now().UTC(),
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO jobs (id, job_type, payload, status, actor, attempts, max_attempts, created_at)
VALUES ($1,$2,$3,$4,$5,0,$6,$7)
`, job.ID, job.JobType, payloadJSON, string(job.Status), job.Actor, job.MaxAttempts, job.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	return job, nil
}

// Claim leases the oldest eligible pending job to workerID, or returns
// (nil, nil) when the queue has nothing runnable.
func (r *JobRepository) Claim(ctx context.Context, workerID string) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE jobs
SET status = $2, worker_id = $1, started_at = $3
WHERE id = (
	SELECT id FROM jobs
	WHERE status = $4 AND attempts < max_attempts
	ORDER BY created_at
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
RETURNING `+jobColumns+`
`, workerID, string(domain.JobInProgress), time.Now().UTC(), string(domain.JobPending))

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

func (r *JobRepository) Complete(ctx context.Context, jobID string, result map[string]any) error {
	if result == nil {
		result = map[string]any{}
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal job result: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE jobs
SET status = $2, result = $3, error = NULL, finished_at = $4
WHERE id = $1
`, jobID, string(domain.JobCompleted), resultJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return requireJobRow(res, "complete", jobID)
}

// Fail records one failed attempt. The job returns to pending while
// attempts remain, otherwise it lands in failed for good.
func (r *JobRepository) Fail(ctx context.Context, jobID, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE jobs
SET attempts = attempts + 1,
	error = $2,
	status = CASE WHEN attempts + 1 >= max_attempts THEN $3 ELSE $4 END,
	finished_at = CASE WHEN attempts + 1 >= max_attempts THEN $5 ELSE NULL END,
	worker_id = NULL,
	started_at = NULL
WHERE id = $1
`, jobID, errMessage, string(domain.JobFailed), string(domain.JobPending), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return requireJobRow(res, "fail", jobID)
}

// FailTerminal parks the job in failed immediately, without burning retry
// budget. Used for jobs no handler can ever run.
func (r *JobRepository) FailTerminal(ctx context.Context, jobID, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE jobs
SET status = $2, error = $3, finished_at = $4
WHERE id = $1
`, jobID, string(domain.JobFailed), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("fail job terminally: %w", err)
	}
	return requireJobRow(res, "fail_terminal", jobID)
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+jobColumns+`
FROM jobs
WHERE id = $1
`, id)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrJobNotFound, "job.get", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("get job by id: %w", err)
	}
	return job, nil
}

func (r *JobRepository) List(ctx context.Context, status domain.JobStatus, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, nil
}

type jobScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row jobScanner) (*domain.Job, error) {
	var job domain.Job
	var status string
	var payloadRaw []byte
	var resultRaw []byte
	var errMessage, workerID sql.NullString

	err := row.Scan(
		&job.ID, &job.JobType, &payloadRaw, &status, &resultRaw, &errMessage,
		&job.Actor, &job.Attempts, &job.MaxAttempts, &workerID,
		&job.CreatedAt, &job.StartedAt, &job.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Status = domain.JobStatus(status)
	job.Error = errMessage.String
	job.WorkerID = workerID.String

	if len(payloadRaw) > 0 {
		if err := json.Unmarshal(payloadRaw, &job.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal job payload: %w", err)
		}
	}
	if len(resultRaw) > 0 {
		if err := json.Unmarshal(resultRaw, &job.Result); err != nil {
			return nil, fmt.Errorf("unmarshal job result: %w", err)
		}
	}
	return &job, nil
}

func requireJobRow(res sql.Result, op, jobID string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("job %s rows affected: %w", op, err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrJobNotFound, "job."+op, fmt.Errorf("id=%s", jobID))
	}
	return nil
}
