package ports

import (
	"context"
	"io"
	"time"

	"github.com/citysort/citysort/internal/core/domain"
)

// DocumentRepository persists and reads document state. ApplyResult writes
// the complete fact set from one pipeline run in a single update so a
// concurrent human review never observes a half-applied decision.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ApplyResult(ctx context.Context, id string, status domain.DocumentStatus, result *domain.PipelineResult, slaDays *int, dueDate *time.Time) error
	MarkFailed(ctx context.Context, id string) error
}

// ObjectStorage stores source document bytes. Save returns the absolute path
// of the stored object so the pipeline can read it back directly.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Copy(ctx context.Context, sourcePath, destKey string) error
}

// RuleProvider supplies the active document-type rules. Loaded fresh per
// pipeline invocation so operator edits take effect on the next document.
type RuleProvider interface {
	ActiveRules() (*domain.RuleSet, string)
}

// TextExtractor turns a stored file into plain text with an extraction
// method tag and a confidence score. Expected failure modes (unparseable
// PDF, corrupt archive) degrade to low-confidence empty results; only an
// unreadable source file is an error.
type TextExtractor interface {
	Extract(ctx context.Context, path, contentType string) (domain.Extraction, error)
}

// OCRProvider delegates extraction to a remote OCR service. A nil result
// means the provider is unconfigured or produced nothing; callers fall back
// to local extraction. Errors are treated the same way.
type OCRProvider interface {
	Extract(ctx context.Context, path, contentType string) (*domain.Extraction, error)
}

// ExternalClassifier asks a remote model to classify extracted text. A nil
// result (or an error) sends the orchestrator to the local keyword
// classifier.
type ExternalClassifier interface {
	Classify(ctx context.Context, text string, fields map[string]string, rules *domain.RuleSet) (*domain.ExternalClassification, error)
}

// FieldEnricher asks a remote model for required fields the extractors
// missed, constrained to values literally present in the text. A nil result
// means nothing usable was recovered.
type FieldEnricher interface {
	Enrich(ctx context.Context, text, docType string, requiredFields []string, known map[string]string) (*domain.Enrichment, error)
}

// JobStore is the durable, leaseable work queue. Claim must hand a given
// pending job to at most one worker under concurrent claim attempts.
type JobStore interface {
	Enqueue(ctx context.Context, jobType string, payload map[string]any, actor string, maxAttempts int) (*domain.Job, error)
	Claim(ctx context.Context, workerID string) (*domain.Job, error)
	Complete(ctx context.Context, jobID string, result map[string]any) error
	Fail(ctx context.Context, jobID, errMessage string) error
	FailTerminal(ctx context.Context, jobID, errMessage string) error
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	List(ctx context.Context, status domain.JobStatus, limit int) ([]domain.Job, error)
}

// JobSignal propagates "work arrived" hints between enqueuers and workers so
// an idle worker does not wait out its full poll interval. It is advisory:
// the durable store remains the source of truth.
type JobSignal interface {
	Publish(ctx context.Context, jobID string) error
	Subscribe(ctx context.Context) (<-chan string, error)
}

// AuditSink records document lifecycle events. Failures are logged and
// otherwise ignored by callers.
type AuditSink interface {
	Record(ctx context.Context, documentID, action, actor, details string) error
}
