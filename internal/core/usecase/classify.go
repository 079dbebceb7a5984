package usecase

import (
	"math"
	"strings"

	"github.com/citysort/citysort/internal/core/domain"
)

var highUrgencyKeywords = []string{
	"urgent", "immediate", "emergency", "deadline", "hearing date", "time sensitive",
}

var normalUrgencyKeywords = []string{
	"standard", "routine", "non-urgent",
}

// Classify scores document types by keyword substring hits against the
// lower-cased text. Ties on hit count keep the earlier rule in rule-set
// order. Zero hits anywhere yields the "other" fallback at 0.45.
func Classify(text string, rules *domain.RuleSet) (string, float64, []string) {
	normalized := strings.ToLower(text)
	bestDocType := domain.FallbackDocType
	bestHits := 0
	bestKeywordCount := 1

	for _, docType := range rules.Types() {
		rule, _ := rules.Get(docType)
		if len(rule.Keywords) == 0 {
			continue
		}
		hits := 0
		for _, keyword := range rule.Keywords {
			if strings.Contains(normalized, keyword) {
				hits++
			}
		}
		if hits > bestHits {
			bestDocType = docType
			bestHits = hits
			bestKeywordCount = len(rule.Keywords)
		}
	}

	if bestHits == 0 {
		return domain.FallbackDocType, 0.45, []string{}
	}

	// The curve jumps at 1, 2 and 3+ hits rather than scaling linearly;
	// the breakpoints are a tuned policy, kept stable for compatibility.
	ratio := float64(bestHits) / float64(bestKeywordCount)
	var confidence float64
	switch {
	case bestHits == 1:
		confidence = 0.65 + ratio*0.08
	case bestHits == 2:
		confidence = 0.78 + ratio*0.08
	default:
		confidence = 0.86 + math.Min(float64(bestHits-3)*0.03, 0.10)
	}
	confidence = math.Min(confidence, 0.99)

	bestRule, _ := rules.Get(bestDocType)
	matched := make([]string, 0, bestHits)
	for _, keyword := range bestRule.Keywords {
		if strings.Contains(normalized, keyword) {
			matched = append(matched, keyword)
		}
	}

	return bestDocType, round4(confidence), matched
}

// DetectUrgency flags text containing any high-urgency keyword, otherwise
// checks the normal list, otherwise defaults to normal. First match wins.
func DetectUrgency(text string) string {
	normalized := strings.ToLower(text)
	for _, keyword := range highUrgencyKeywords {
		if strings.Contains(normalized, keyword) {
			return domain.UrgencyHigh
		}
	}
	for _, keyword := range normalUrgencyKeywords {
		if strings.Contains(normalized, keyword) {
			return domain.UrgencyNormal
		}
	}
	return domain.UrgencyNormal
}

func round4(value float64) float64 {
	return math.Round(value*10000) / 10000
}
