package domain

// FallbackDocType is the document type every rule set must resolve when
// nothing else matches.
const FallbackDocType = "other"

// Rule describes one document type: the keywords that identify it, the
// destination department, the fields a valid document must carry and an
// optional SLA window in days (0 means no SLA).
type Rule struct {
	Keywords       []string
	Department     string
	RequiredFields []string
	SLADays        int
}

// RuleSet is an ordered mapping from document type to Rule. Insertion order
// is preserved because the keyword classifier breaks hit-count ties in favor
// of the earlier rule; reordering a rule file changes tie outcomes.
type RuleSet struct {
	order []string
	rules map[string]Rule
}

func NewRuleSet() *RuleSet {
	return &RuleSet{rules: make(map[string]Rule)}
}

// Put inserts or replaces a rule. A replaced rule keeps its original position.
func (rs *RuleSet) Put(docType string, rule Rule) {
	if _, ok := rs.rules[docType]; !ok {
		rs.order = append(rs.order, docType)
	}
	rs.rules[docType] = rule
}

func (rs *RuleSet) Get(docType string) (Rule, bool) {
	rule, ok := rs.rules[docType]
	return rule, ok
}

// Resolve returns the rule for docType, falling back to the "other" rule and
// finally to a minimal intake rule when even that is absent.
func (rs *RuleSet) Resolve(docType string) Rule {
	if rule, ok := rs.rules[docType]; ok {
		return rule
	}
	if rule, ok := rs.rules[FallbackDocType]; ok {
		return rule
	}
	return Rule{
		Department:     "General Intake",
		RequiredFields: []string{"applicant_name", "date"},
	}
}

// Types returns document types in insertion order.
func (rs *RuleSet) Types() []string {
	out := make([]string, len(rs.order))
	copy(out, rs.order)
	return out
}

func (rs *RuleSet) Has(docType string) bool {
	_, ok := rs.rules[docType]
	return ok
}

func (rs *RuleSet) Len() int {
	return len(rs.order)
}
