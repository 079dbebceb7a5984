package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/citysort/citysort/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	fieldsJSON, err := json.Marshal(orEmptyMap(doc.ExtractedFields))
	if err != nil {
		return fmt.Errorf("marshal extracted fields: %w", err)
	}
	missingJSON, err := json.Marshal(orEmptyList(doc.MissingFields))
	if err != nil {
		return fmt.Errorf("marshal missing fields: %w", err)
	}
	errorsJSON, err := json.Marshal(orEmptyList(doc.ValidationErrors))
	if err != nil {
		return fmt.Errorf("marshal validation errors: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, filename, content_type, storage_path, status, doc_type, department, urgency,
	confidence, requires_review, extracted_text, extracted_fields, missing_fields,
	validation_errors, sla_days, due_date, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
`,
		doc.ID, doc.Filename, doc.ContentType, doc.StoragePath, string(doc.Status),
		doc.DocType, doc.Department, doc.Urgency, doc.Confidence, doc.RequiresReview,
		doc.ExtractedText, fieldsJSON, missingJSON, errorsJSON,
		doc.SLADays, doc.DueDate, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, filename, content_type, storage_path, status, doc_type, department, urgency,
	confidence, requires_review, extracted_text, extracted_fields, missing_fields,
	validation_errors, sla_days, due_date, created_at, updated_at
FROM documents
WHERE id = $1
`, id)

	var doc domain.Document
	var status string
	var docType, department, urgency, extractedText sql.NullString
	var fieldsRaw, missingRaw, errorsRaw []byte

	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.ContentType, &doc.StoragePath, &status,
		&docType, &department, &urgency, &doc.Confidence, &doc.RequiresReview,
		&extractedText, &fieldsRaw, &missingRaw, &errorsRaw,
		&doc.SLADays, &doc.DueDate, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "document.get", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	doc.Status = domain.DocumentStatus(status)
	doc.DocType = docType.String
	doc.Department = department.String
	doc.Urgency = urgency.String
	doc.ExtractedText = extractedText.String

	if err := json.Unmarshal(fieldsRaw, &doc.ExtractedFields); err != nil {
		return nil, fmt.Errorf("unmarshal extracted fields: %w", err)
	}
	if err := json.Unmarshal(missingRaw, &doc.MissingFields); err != nil {
		return nil, fmt.Errorf("unmarshal missing fields: %w", err)
	}
	if err := json.Unmarshal(errorsRaw, &doc.ValidationErrors); err != nil {
		return nil, fmt.Errorf("unmarshal validation errors: %w", err)
	}
	return &doc, nil
}

// ApplyResult persists the whole pipeline outcome in one update.
func (r *DocumentRepository) ApplyResult(ctx context.Context, id string, status domain.DocumentStatus, result *domain.PipelineResult, slaDays *int, dueDate *time.Time) error {
	fieldsJSON, err := json.Marshal(orEmptyMap(result.ExtractedFields))
	if err != nil {
		return fmt.Errorf("marshal extracted fields: %w", err)
	}
	missingJSON, err := json.Marshal(orEmptyList(result.MissingFields))
	if err != nil {
		return fmt.Errorf("marshal missing fields: %w", err)
	}
	errorsJSON, err := json.Marshal(orEmptyList(result.ValidationErrors))
	if err != nil {
		return fmt.Errorf("marshal validation errors: %w", err)
	}
	metaJSON, err := json.Marshal(result.Meta)
	if err != nil {
		return fmt.Errorf("marshal pipeline meta: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, doc_type = $3, department = $4, urgency = $5, confidence = $6,
	requires_review = $7, extracted_text = $8, extracted_fields = $9,
	missing_fields = $10, validation_errors = $11, pipeline_meta = $12,
	sla_days = $13, due_date = $14, updated_at = $15
WHERE id = $1
`,
		id, string(status), result.DocType, result.Department, result.Urgency,
		result.Confidence, result.RequiresReview, result.ExtractedText, fieldsJSON,
		missingJSON, errorsJSON, metaJSON, slaDays, dueDate, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("apply pipeline result: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply pipeline result rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "document.apply_result", fmt.Errorf("id=%s", id))
	}
	return nil
}

func (r *DocumentRepository) MarkFailed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, requires_review = TRUE, updated_at = $3
WHERE id = $1
`, id, string(domain.StatusFailed), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark document failed: %w", err)
	}
	return nil
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func orEmptyList(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
