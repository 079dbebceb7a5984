package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AuditRepository appends document lifecycle events. Rows are append-only.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Record(ctx context.Context, documentID, action, actor, details string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO audit_events (document_id, action, actor, details, created_at)
VALUES ($1,$2,$3,$4,$5)
`, documentID, action, actor, details, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}
	return nil
}
