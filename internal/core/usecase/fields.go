package usecase

import (
	"regexp"
	"strings"
)

type fieldPattern struct {
	name    string
	pattern *regexp.Regexp
}

// One first-match pattern per target field. Each pattern captures the value
// after a labeled prefix; the email pattern matches bare addresses anywhere.
var fieldPatterns = []fieldPattern{
	{"applicant_name", regexp.MustCompile(`(?i)(?:applicant|name|owner)\s*[:\-]\s*([A-Za-z][A-Za-z ,.'-]{2,80})`)},
	{"address", regexp.MustCompile(`(?i)(?:address|property address)\s*[:\-]\s*([0-9A-Za-z .,'#-]{5,120})`)},
	{"date", regexp.MustCompile(`(?i)(?:date|submitted|filed)\s*[:\-]\s*([0-9]{1,2}[/-][0-9]{1,2}[/-][0-9]{2,4}|[0-9]{4}[/-][0-9]{1,2}[/-][0-9]{1,2}|[A-Za-z]{3,9}\s+\d{1,2},?\s+\d{4})`)},
	{"parcel_number", regexp.MustCompile(`(?i)(?:parcel(?:\s*(?:id|number|no))?)\s*[:\-]\s*([A-Za-z0-9-]{4,30})`)},
	{"case_number", regexp.MustCompile(`(?i)(?:case(?:\s*(?:id|number|no))?)\s*[:\-]\s*([A-Za-z0-9-]{4,30})`)},
	{"amount", regexp.MustCompile(`(?i)(?:amount|fee|total)\s*[:\-]?\s*\$?\s*([0-9]+(?:,[0-9]{3})*(?:\.[0-9]{2})?)`)},
	{"email", regexp.MustCompile(`([A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,})`)},
}

// ExtractFields applies the labeled-value patterns over the full text and
// keeps the first capture for each field. Fields without a match are absent
// from the result, not empty.
func ExtractFields(text string) map[string]string {
	extracted := make(map[string]string)
	for _, fp := range fieldPatterns {
		match := fp.pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		value := strings.TrimSpace(match[1])
		if value != "" {
			extracted[fp.name] = value
		}
	}
	return extracted
}
