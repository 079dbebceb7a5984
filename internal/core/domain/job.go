package domain

import "time"

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// JobTypeProcessDocument is the handler discriminator for pipeline jobs.
const JobTypeProcessDocument = "process_document"

// Job is one unit of durable asynchronous work. Jobs are retained after they
// finish; nothing in this layer deletes them.
type Job struct {
	ID          string         `json:"id"`
	JobType     string         `json:"job_type"`
	Payload     map[string]any `json:"payload"`
	Status      JobStatus      `json:"status"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	Actor       string         `json:"actor"`
	Attempts    int            `json:"attempts"`
	MaxAttempts int            `json:"max_attempts"`
	WorkerID    string         `json:"worker_id,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
}
