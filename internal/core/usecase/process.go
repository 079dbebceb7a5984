package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/citysort/citysort/internal/core/domain"
	"github.com/citysort/citysort/internal/core/ports"
)

// ProcessDocumentUseCase drives the pipeline for a stored document: load
// metadata, run the pipeline, persist the full decision atomically and
// record audit provenance. This is what the process_document job handler
// invokes.
type ProcessDocumentUseCase struct {
	repo     ports.DocumentRepository
	rules    ports.RuleProvider
	pipeline ports.Pipeline
	storage  ports.ObjectStorage
	audit    ports.AuditSink
	log      *slog.Logger
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	rules ports.RuleProvider,
	pipeline ports.Pipeline,
	storage ports.ObjectStorage,
	audit ports.AuditSink,
	log *slog.Logger,
) *ProcessDocumentUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &ProcessDocumentUseCase{
		repo:     repo,
		rules:    rules,
		pipeline: pipeline,
		storage:  storage,
		audit:    audit,
		log:      log,
	}
}

// ProcessByID returns the job result payload. A missing document is a no-op
// success: the document was deleted between enqueue and claim, and retrying
// cannot bring it back.
func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID, actor string) (map[string]any, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			uc.log.Warn("document_missing_at_process", "document_id", documentID)
			return map[string]any{"document_id": documentID, "processed": false}, nil
		}
		return nil, fmt.Errorf("load document: %w", err)
	}

	result, err := uc.pipeline.Process(ctx, doc.StoragePath, doc.ContentType)
	if err != nil {
		uc.markFailed(ctx, documentID, actor, err)
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	status := domain.StatusRouted
	if result.RequiresReview {
		status = domain.StatusNeedsReview
	}

	slaDays, dueDate := uc.slaWindow(result.DocType, doc.CreatedAt)
	if err := uc.repo.ApplyResult(ctx, documentID, status, result, slaDays, dueDate); err != nil {
		uc.markFailed(ctx, documentID, actor, err)
		return nil, fmt.Errorf("apply pipeline result: %w", err)
	}

	uc.copyProcessed(ctx, doc)

	uc.recordAudit(ctx, documentID, "pipeline_processed", actor, fmt.Sprintf(
		"doc_type=%s confidence=%.4f requires_review=%t",
		result.DocType, result.Confidence, result.RequiresReview,
	))

	return map[string]any{
		"document_id":     documentID,
		"actor":           actor,
		"processed":       true,
		"doc_type":        result.DocType,
		"confidence":      result.Confidence,
		"requires_review": result.RequiresReview,
	}, nil
}

// slaWindow derives the due date from the matched rule's SLA, when it has one.
func (uc *ProcessDocumentUseCase) slaWindow(docType string, createdAt time.Time) (*int, *time.Time) {
	rules, _ := uc.rules.ActiveRules()
	rule := rules.Resolve(docType)
	if rule.SLADays <= 0 {
		return nil, nil
	}
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	days := rule.SLADays
	due := createdAt.Add(time.Duration(days) * 24 * time.Hour)
	return &days, &due
}

// copyProcessed mirrors the source file under a processed/ prefix keyed by
// the original name, so a retried job overwrites instead of duplicating.
func (uc *ProcessDocumentUseCase) copyProcessed(ctx context.Context, doc *domain.Document) {
	destKey := filepath.Join("processed", filepath.Base(doc.StoragePath))
	if err := uc.storage.Copy(ctx, doc.StoragePath, destKey); err != nil {
		uc.log.Warn("processed_copy_failed", "document_id", doc.ID, "error", err)
	}
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID, actor string, cause error) {
	if err := uc.repo.MarkFailed(ctx, documentID); err != nil {
		uc.log.Error("mark_document_failed", "document_id", documentID, "error", err)
	}
	uc.recordAudit(ctx, documentID, "pipeline_failed", actor, cause.Error())
}

func (uc *ProcessDocumentUseCase) recordAudit(ctx context.Context, documentID, action, actor, details string) {
	if uc.audit == nil {
		return
	}
	if err := uc.audit.Record(ctx, documentID, action, actor, details); err != nil {
		uc.log.Warn("audit_record_failed", "document_id", documentID, "action", action, "error", err)
	}
}
