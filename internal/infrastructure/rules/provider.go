package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/citysort/citysort/internal/core/domain"
)

// DefaultRules returns the built-in city government rule set. The order
// matters: the classifier breaks score ties by listing order.
func DefaultRules() *domain.RuleSet {
	set := domain.NewRuleSet()
	set.Put("building_permit", domain.Rule{
		Keywords:       []string{"building permit", "construction", "parcel", "zoning", "site plan", "inspection"},
		Department:     "Building Department",
		RequiredFields: []string{"applicant_name", "address", "parcel_number", "date"},
	})
	set.Put("business_license", domain.Rule{
		Keywords:       []string{"business license", "license renewal", "tax id", "llc", "business owner"},
		Department:     "Finance & Licensing",
		RequiredFields: []string{"applicant_name", "address", "date"},
	})
	set.Put("foi_request", domain.Rule{
		Keywords:       []string{"freedom of information", "foia", "public records", "open records", "records request"},
		Department:     "City Clerk",
		RequiredFields: []string{"applicant_name", "date"},
	})
	set.Put("zoning_variance", domain.Rule{
		Keywords:       []string{"zoning variance", "variance", "land use", "planning commission", "setback"},
		Department:     "Planning & Zoning",
		RequiredFields: []string{"applicant_name", "address", "parcel_number", "date"},
	})
	set.Put("complaint", domain.Rule{
		Keywords:       []string{"complaint", "code violation", "noise", "nuisance", "unsafe", "report"},
		Department:     "Code Enforcement",
		RequiredFields: []string{"applicant_name", "address", "date"},
	})
	set.Put("benefits_application", domain.Rule{
		Keywords:       []string{"benefits", "assistance", "eligibility", "application", "income", "household"},
		Department:     "Human Services",
		RequiredFields: []string{"applicant_name", "address", "date"},
	})
	set.Put("court_filing", domain.Rule{
		Keywords:       []string{"court", "filing", "case", "petition", "respondent", "docket"},
		Department:     "Municipal Court",
		RequiredFields: []string{"applicant_name", "case_number", "date"},
	})
	set.Put(domain.FallbackDocType, domain.Rule{
		Keywords:       []string{},
		Department:     "General Intake",
		RequiredFields: []string{"applicant_name", "date"},
	})
	return set
}

// Provider serves the active rule set, preferring an operator-supplied
// override file and falling back to the defaults on any problem.
type Provider struct {
	path string
	log  *slog.Logger
}

func NewProvider(path string, log *slog.Logger) *Provider {
	return &Provider{path: path, log: log}
}

// ActiveRules reports the rule set and its source label, "custom" for a
// valid override file and "default" otherwise.
func (p *Provider) ActiveRules() (*domain.RuleSet, string) {
	if p.path == "" {
		return DefaultRules(), "default"
	}

	raw, err := os.ReadFile(p.path)
	if err != nil {
		if !os.IsNotExist(err) && p.log != nil {
			p.log.Warn("rules_file_unreadable", "path", p.path, "error", err)
		}
		return DefaultRules(), "default"
	}

	set, err := Parse(raw, filepath.Ext(p.path))
	if err != nil {
		if p.log != nil {
			p.log.Warn("rules_file_invalid", "path", p.path, "error", err)
		}
		return DefaultRules(), "default"
	}
	return set, "custom"
}

type rawRule struct {
	Keywords       []any  `json:"keywords" yaml:"keywords"`
	Department     string `json:"department" yaml:"department"`
	RequiredFields []any  `json:"required_fields" yaml:"required_fields"`
	SLADays        *int   `json:"sla_days" yaml:"sla_days"`
}

// Parse decodes a rule override document while preserving the document
// type order the file declares. ext selects YAML for .yaml/.yml, JSON
// otherwise.
func Parse(raw []byte, ext string) (*domain.RuleSet, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return parseYAML(raw)
	default:
		return parseJSON(raw)
	}
}

func parseJSON(raw []byte) (*domain.RuleSet, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("rules: document must be a JSON object")
	}

	set := domain.NewRuleSet()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("rules: %w", err)
		}
		key := strings.TrimSpace(keyTok.(string))

		// A {"rules": {...}} wrapper is accepted at the top level.
		if key == "rules" && set.Len() == 0 {
			var inner json.RawMessage
			if err := dec.Decode(&inner); err != nil {
				return nil, fmt.Errorf("rules: %w", err)
			}
			trimmed := bytes.TrimSpace(inner)
			if len(trimmed) > 0 && trimmed[0] == '{' {
				return parseJSON(inner)
			}
			return nil, fmt.Errorf("rules: wrapper 'rules' must be an object")
		}

		var rule rawRule
		if err := dec.Decode(&rule); err != nil {
			return nil, fmt.Errorf("rules: rule for %q: %w", key, err)
		}
		normalized, err := normalizeRule(key, rule)
		if err != nil {
			return nil, err
		}
		set.Put(key, normalized)
	}

	return finishSet(set)
}

func parseYAML(raw []byte) (*domain.RuleSet, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("rules: document must be a mapping")
	}

	root := doc.Content[0]
	if len(root.Content) == 2 && root.Content[0].Value == "rules" && root.Content[1].Kind == yaml.MappingNode {
		root = root.Content[1]
	}

	set := domain.NewRuleSet()
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := strings.TrimSpace(root.Content[i].Value)
		var rule rawRule
		if err := root.Content[i+1].Decode(&rule); err != nil {
			return nil, fmt.Errorf("rules: rule for %q: %w", key, err)
		}
		normalized, err := normalizeRule(key, rule)
		if err != nil {
			return nil, err
		}
		set.Put(key, normalized)
	}

	return finishSet(set)
}

func normalizeRule(docType string, raw rawRule) (domain.Rule, error) {
	if docType == "" {
		return domain.Rule{}, fmt.Errorf("rules: document type keys cannot be empty")
	}

	keywords := dedupe(stringItems(raw.Keywords, true))
	fields := dedupe(stringItems(raw.RequiredFields, false))

	department := strings.TrimSpace(raw.Department)
	if department == "" {
		department = "General Intake"
	}

	slaDays := 0
	if raw.SLADays != nil && *raw.SLADays > 0 {
		slaDays = *raw.SLADays
	}

	return domain.Rule{
		Keywords:       keywords,
		Department:     department,
		RequiredFields: fields,
		SLADays:        slaDays,
	}, nil
}

func finishSet(set *domain.RuleSet) (*domain.RuleSet, error) {
	if set.Len() == 0 {
		return nil, fmt.Errorf("rules: document must declare at least one type")
	}
	if !set.Has(domain.FallbackDocType) {
		set.Put(domain.FallbackDocType, domain.Rule{
			Keywords:       []string{},
			Department:     "General Intake",
			RequiredFields: []string{"applicant_name", "date"},
		})
	}
	return set, nil
}

func stringItems(items []any, lower bool) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		text := strings.TrimSpace(fmt.Sprintf("%v", item))
		if text == "" {
			continue
		}
		if lower {
			text = strings.ToLower(text)
		}
		out = append(out, text)
	}
	return out
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
