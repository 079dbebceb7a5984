package usecase

import (
	"fmt"
	"regexp"

	"github.com/citysort/citysort/internal/core/domain"
)

var parcelNumberPattern = regexp.MustCompile(`^[A-Za-z0-9-]{4,30}$`)

// Validate reports the required fields of the resolved document type that
// are absent or empty, one human-readable error per missing field, plus
// structural checks on parcel number and date when those are present.
func Validate(docType string, fields map[string]string, rules *domain.RuleSet) ([]string, []string) {
	rule := rules.Resolve(docType)

	missing := make([]string, 0)
	validationErrors := make([]string, 0)
	for _, field := range rule.RequiredFields {
		if fields[field] == "" {
			missing = append(missing, field)
			validationErrors = append(validationErrors, fmt.Sprintf("Missing required field: %s", field))
		}
	}

	if parcel := fields["parcel_number"]; parcel != "" && !parcelNumberPattern.MatchString(parcel) {
		validationErrors = append(validationErrors, "Parcel number format looks invalid")
	}
	if date := fields["date"]; date != "" && len(date) < 6 {
		validationErrors = append(validationErrors, "Date format looks invalid")
	}

	return missing, validationErrors
}

// Route maps a document type to its destination department, falling back to
// the "other" rule for unknown types.
func Route(docType string, rules *domain.RuleSet) string {
	return rules.Resolve(docType).Department
}
