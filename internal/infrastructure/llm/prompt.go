package llm

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/citysort/citysort/internal/core/domain"
)

const maxPromptText = 12000

func classificationPrompt(text string, fields map[string]string, rules *domain.RuleSet) string {
	types := rules.Types()
	sort.Strings(types)

	departments := make(map[string]string, len(types))
	for _, docType := range types {
		rule, _ := rules.Get(docType)
		departments[docType] = rule.Department
	}
	departmentJSON, _ := json.Marshal(departments)
	fieldsJSON, _ := json.Marshal(fields)

	return fmt.Sprintf(
		"Classify this local-government intake document. "+
			"Return JSON only with keys: doc_type, department, urgency, confidence, matched_keywords, rationale. "+
			"Allowed doc_type values: %s. "+
			"Preferred departments by type: %s. "+
			"urgency must be either high or normal. "+
			"confidence must be numeric from 0.0 to 0.99.\n\n"+
			"Extracted fields (best-effort OCR): %s\n\n"+
			"Document text:\n%s",
		strings.Join(types, ", "), departmentJSON, fieldsJSON, snippet(text),
	)
}

func enrichmentPrompt(text, docType string, requiredFields []string, fields map[string]string) string {
	fieldsJSON, _ := json.Marshal(fields)

	return fmt.Sprintf(
		"Extract missing fields from this local-government intake document. "+
			"Return strict JSON only with shape: "+
			`{"fields": {"field_name": "value"}, "confidence": 0.0-0.99, "notes": "short reason"}.`+"\n"+
			"Document type: %s\n"+
			"Target fields: %s\n"+
			"Existing extracted fields: %s\n"+
			"Rules:\n"+
			"- Use only values explicitly present in the provided text.\n"+
			"- If a value is not present, omit it from fields.\n"+
			"- Do not invent names, addresses, dates, or IDs.\n"+
			"- Keep values concise and literal.\n\n"+
			"Document text:\n%s",
		docType, strings.Join(requiredFields, ", "), fieldsJSON, snippet(text),
	)
}

func snippet(text string) string {
	if len(text) > maxPromptText {
		return text[:maxPromptText]
	}
	return text
}
