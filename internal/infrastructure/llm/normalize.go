package llm

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/citysort/citysort/internal/core/domain"
)

const (
	maxMatchedKeywords = 20
	maxFieldValueLen   = 240
)

// Values a model returns when it has nothing; these never become fields.
var placeholderValues = map[string]struct{}{
	"": {}, "n/a": {}, "na": {}, "none": {}, "null": {},
	"unknown": {}, "not provided": {}, "missing": {},
}

// normalizeClassification forces a raw provider payload into the allowed
// value space: known doc type (else "other"), clamped confidence, valid
// urgency, capped keyword list.
func normalizeClassification(payload map[string]any, rules *domain.RuleSet) *domain.ExternalClassification {
	docType := strings.ToLower(strings.TrimSpace(asString(payload["doc_type"])))
	if docType == "" || !rules.Has(docType) {
		docType = domain.FallbackDocType
	}

	confidence := math.Max(0.0, math.Min(asFloat(payload["confidence"]), 0.99))

	department := strings.TrimSpace(asString(payload["department"]))
	if department == "" {
		department = rules.Resolve(docType).Department
	}

	urgency := strings.ToLower(strings.TrimSpace(asString(payload["urgency"])))
	if urgency != domain.UrgencyHigh && urgency != domain.UrgencyNormal {
		urgency = domain.UrgencyNormal
	}

	matched := make([]string, 0)
	if items, ok := payload["matched_keywords"].([]any); ok {
		for _, item := range items {
			if len(matched) == maxMatchedKeywords {
				break
			}
			matched = append(matched, asString(item))
		}
	}

	return &domain.ExternalClassification{
		DocType:         docType,
		Department:      department,
		Urgency:         urgency,
		Confidence:      math.Round(confidence*10000) / 10000,
		MatchedKeywords: matched,
		Rationale:       asString(payload["rationale"]),
	}
}

// normalizeEnrichedFields filters a raw enrichment payload down to allowed
// fields with non-placeholder values, truncated to a sane length.
func normalizeEnrichedFields(payload map[string]any, allowed map[string]struct{}) map[string]string {
	rawFields, ok := payload["fields"].(map[string]any)
	if !ok {
		rawFields = payload
	}

	normalized := make(map[string]string)
	for key, value := range rawFields {
		fieldName := strings.TrimSpace(key)
		if fieldName == "" {
			continue
		}
		if _, ok := allowed[fieldName]; !ok {
			continue
		}
		text := strings.TrimSpace(asString(value))
		if _, placeholder := placeholderValues[strings.ToLower(text)]; placeholder {
			continue
		}
		if len(text) > maxFieldValueLen {
			text = strings.TrimSpace(text[:maxFieldValueLen])
		}
		if text == "" {
			continue
		}
		normalized[fieldName] = text
	}
	return normalized
}

func asString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func asFloat(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
