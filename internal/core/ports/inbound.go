package ports

import (
	"context"
	"io"

	"github.com/citysort/citysort/internal/core/domain"
)

// Pipeline is the inbound contract for synchronous document processing.
type Pipeline interface {
	Process(ctx context.Context, filePath, contentType string) (*domain.PipelineResult, error)
}

// DocumentProcessor loads a document, runs the pipeline and persists the
// outcome. This is the target of the process_document job handler.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID, actor string) (map[string]any, error)
}

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, contentType string, body io.Reader, actor string) (*domain.Document, error)
}

// JobService is the inbound contract for asynchronous processing control.
type JobService interface {
	EnqueueDocumentProcessing(ctx context.Context, documentID, actor string) (*domain.Job, error)
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	ListJobs(ctx context.Context, status domain.JobStatus, limit int) ([]domain.Job, error)
}
