package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/citysort/citysort/internal/core/domain"
	"github.com/citysort/citysort/internal/core/ports"
)

// PipelineConfig is the decision policy read once at construction.
type PipelineConfig struct {
	// ConfidenceThreshold below which a document always requires review.
	ConfidenceThreshold float64
	// ForceReviewDocTypes always require review regardless of confidence.
	// Entries are matched against the lower-cased resolved doc type.
	ForceReviewDocTypes map[string]struct{}
}

// ProcessPipelineUseCase sequences extraction, classification, validation,
// enrichment and routing into one decision per document. Stage failures
// degrade (lower confidence, fall back to the next engine) instead of
// propagating; only an unreadable source file errors out.
type ProcessPipelineUseCase struct {
	rules      ports.RuleProvider
	ocr        ports.OCRProvider
	extractor  ports.TextExtractor
	classifier ports.ExternalClassifier
	enricher   ports.FieldEnricher
	cfg        PipelineConfig
	log        *slog.Logger
}

func NewProcessPipelineUseCase(
	rules ports.RuleProvider,
	ocr ports.OCRProvider,
	extractor ports.TextExtractor,
	classifier ports.ExternalClassifier,
	enricher ports.FieldEnricher,
	cfg PipelineConfig,
	log *slog.Logger,
) *ProcessPipelineUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &ProcessPipelineUseCase{
		rules:      rules,
		ocr:        ocr,
		extractor:  extractor,
		classifier: classifier,
		enricher:   enricher,
		cfg:        cfg,
		log:        log,
	}
}

func (uc *ProcessPipelineUseCase) Process(ctx context.Context, filePath, contentType string) (*domain.PipelineResult, error) {
	rules, rulesSource := uc.rules.ActiveRules()

	extraction, err := uc.extractText(ctx, filePath, contentType)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	fields := ExtractFields(extraction.Text)

	docType, classificationConfidence, urgency, department, classificationMeta :=
		uc.classify(ctx, extraction.Text, fields, rules)

	missing, validationErrors := Validate(docType, fields, rules)

	var enrichmentMeta *domain.EnrichmentMeta
	if len(missing) > 0 && uc.enricher != nil {
		enrichmentMeta = uc.enrich(ctx, extraction.Text, docType, fields, rules)
		if enrichmentMeta != nil {
			missing, validationErrors = Validate(docType, fields, rules)
		}
	}

	validationPenalty := math.Min(float64(len(validationErrors))*0.08, 0.35)
	effectiveConfidence := math.Max(
		math.Min(classificationConfidence, extraction.Confidence)-validationPenalty,
		0.0,
	)

	requiresReview := effectiveConfidence < uc.cfg.ConfidenceThreshold || len(validationErrors) > 0
	if _, forced := uc.cfg.ForceReviewDocTypes[strings.ToLower(docType)]; forced {
		requiresReview = true
	}

	uc.log.Debug("pipeline_decision",
		"doc_type", docType,
		"confidence", round4(effectiveConfidence),
		"requires_review", requiresReview,
		"rules_source", rulesSource,
		"extraction_method", extraction.Method,
	)

	return &domain.PipelineResult{
		DocType:          docType,
		Department:       department,
		Urgency:          urgency,
		Confidence:       round4(effectiveConfidence),
		RequiresReview:   requiresReview,
		ExtractedText:    extraction.Text,
		ExtractedFields:  fields,
		MissingFields:    missing,
		ValidationErrors: validationErrors,
		Meta: domain.PipelineMeta{
			ExtractionMethod:     extraction.Method,
			ExtractionConfidence: extraction.Confidence,
			Classification:       classificationMeta,
			FieldEnrichment:      enrichmentMeta,
		},
	}, nil
}

// extractText tries the external OCR provider first and falls back to local
// format-specific extraction on any provider failure.
func (uc *ProcessPipelineUseCase) extractText(ctx context.Context, filePath, contentType string) (domain.Extraction, error) {
	if uc.ocr != nil {
		result, err := uc.ocr.Extract(ctx, filePath, contentType)
		if err != nil {
			uc.log.Warn("ocr_provider_unavailable", "path", filePath, "error", err)
		} else if result != nil {
			return *result, nil
		}
	}
	return uc.extractor.Extract(ctx, filePath, contentType)
}

func (uc *ProcessPipelineUseCase) classify(
	ctx context.Context,
	text string,
	fields map[string]string,
	rules *domain.RuleSet,
) (docType string, confidence float64, urgency, department string, meta domain.ClassificationMeta) {
	if uc.classifier != nil {
		external, err := uc.classifier.Classify(ctx, text, fields, rules)
		if err != nil {
			uc.log.Warn("external_classifier_unavailable", "error", err)
		} else if external != nil {
			return external.DocType, external.Confidence, external.Urgency, external.Department, domain.ClassificationMeta{
				Provider:        external.Provider,
				MatchedKeywords: external.MatchedKeywords,
				Rationale:       external.Rationale,
			}
		}
	}

	docType, confidence, matched := Classify(text, rules)
	return docType, confidence, DetectUrgency(text), Route(docType, rules), domain.ClassificationMeta{
		Provider:        "local",
		MatchedKeywords: matched,
	}
}

// enrich merges genuinely new field values into fields (mutating it) and
// returns provenance, or nil when the provider added nothing.
func (uc *ProcessPipelineUseCase) enrich(
	ctx context.Context,
	text, docType string,
	fields map[string]string,
	rules *domain.RuleSet,
) *domain.EnrichmentMeta {
	required := requiredFieldsFor(docType, rules)
	if len(required) == 0 {
		return nil
	}

	enrichment, err := uc.enricher.Enrich(ctx, text, docType, required, fields)
	if err != nil {
		uc.log.Warn("field_enrichment_unavailable", "doc_type", docType, "error", err)
		return nil
	}
	if enrichment == nil {
		return nil
	}

	filled := make([]string, 0, len(enrichment.Fields))
	for key, value := range enrichment.Fields {
		if fields[key] != "" || value == "" {
			continue
		}
		fields[key] = value
		filled = append(filled, key)
	}
	if len(filled) == 0 {
		return nil
	}
	sort.Strings(filled)

	return &domain.EnrichmentMeta{
		Provider:     enrichment.Provider,
		Confidence:   enrichment.Confidence,
		FilledFields: filled,
		Notes:        enrichment.Notes,
	}
}

func requiredFieldsFor(docType string, rules *domain.RuleSet) []string {
	rule := rules.Resolve(docType)
	out := make([]string, 0, len(rule.RequiredFields))
	for _, field := range rule.RequiredFields {
		field = strings.TrimSpace(field)
		if field != "" {
			out = append(out, field)
		}
	}
	return out
}
