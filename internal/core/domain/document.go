package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded    DocumentStatus = "uploaded"
	StatusProcessing  DocumentStatus = "processing"
	StatusRouted      DocumentStatus = "routed"
	StatusNeedsReview DocumentStatus = "needs_review"
	StatusFailed      DocumentStatus = "failed"
)

const (
	UrgencyHigh   = "high"
	UrgencyNormal = "normal"
)

type Document struct {
	ID               string            `json:"id"`
	Filename         string            `json:"filename"`
	ContentType      string            `json:"content_type"`
	StoragePath      string            `json:"storage_path"`
	Status           DocumentStatus    `json:"status"`
	DocType          string            `json:"doc_type,omitempty"`
	Department       string            `json:"department,omitempty"`
	Urgency          string            `json:"urgency,omitempty"`
	Confidence       float64           `json:"confidence"`
	RequiresReview   bool              `json:"requires_review"`
	ExtractedText    string            `json:"extracted_text,omitempty"`
	ExtractedFields  map[string]string `json:"extracted_fields,omitempty"`
	MissingFields    []string          `json:"missing_fields,omitempty"`
	ValidationErrors []string          `json:"validation_errors,omitempty"`
	SLADays          *int              `json:"sla_days,omitempty"`
	DueDate          *time.Time        `json:"due_date,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// Extraction is the outcome of turning stored bytes into plain text.
type Extraction struct {
	Text       string  `json:"text"`
	Method     string  `json:"method"`
	Confidence float64 `json:"confidence"`
}

// ExternalClassification is the normalized shape every remote classification
// provider is reduced to before the orchestrator consumes it.
type ExternalClassification struct {
	Provider        string   `json:"provider"`
	DocType         string   `json:"doc_type"`
	Department      string   `json:"department"`
	Urgency         string   `json:"urgency"`
	Confidence      float64  `json:"confidence"`
	MatchedKeywords []string `json:"matched_keywords"`
	Rationale       string   `json:"rationale,omitempty"`
}

// Enrichment carries fields a remote provider recovered for a document whose
// required fields were still missing after classification.
type Enrichment struct {
	Provider   string            `json:"provider"`
	Fields     map[string]string `json:"fields"`
	Confidence float64           `json:"confidence"`
	Notes      string            `json:"notes,omitempty"`
}

type ClassificationMeta struct {
	Provider        string   `json:"provider"`
	MatchedKeywords []string `json:"matched_keywords"`
	Rationale       string   `json:"rationale,omitempty"`
}

type EnrichmentMeta struct {
	Provider     string   `json:"provider"`
	Confidence   float64  `json:"confidence"`
	FilledFields []string `json:"filled_fields"`
	Notes        string   `json:"notes,omitempty"`
}

type PipelineMeta struct {
	ExtractionMethod     string             `json:"extraction_method"`
	ExtractionConfidence float64            `json:"extraction_confidence"`
	Classification       ClassificationMeta `json:"classification_meta"`
	FieldEnrichment      *EnrichmentMeta    `json:"field_enrichment,omitempty"`
}

// PipelineResult is the full decision payload of one pipeline run. It is not
// persisted directly; callers project it onto Document fields.
type PipelineResult struct {
	DocType          string            `json:"doc_type"`
	Department       string            `json:"department"`
	Urgency          string            `json:"urgency"`
	Confidence       float64           `json:"confidence"`
	RequiresReview   bool              `json:"requires_review"`
	ExtractedText    string            `json:"extracted_text"`
	ExtractedFields  map[string]string `json:"extracted_fields"`
	MissingFields    []string          `json:"missing_fields"`
	ValidationErrors []string          `json:"validation_errors"`
	Meta             PipelineMeta      `json:"pipeline_meta"`
}
