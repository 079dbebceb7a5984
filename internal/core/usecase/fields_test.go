package usecase

import "testing"

func TestExtractFieldsLabeledValues(t *testing.T) {
	text := `
	Building Permit Application
	Applicant: Jane Smith
	Address: 100 Main St
	Parcel Number: P-100-22
	Case No: CV-2026-0042
	Date: 02/03/2026
	Fee: $1,250.00
	Contact jane.smith@example.org for questions.
	`
	fields := ExtractFields(text)

	want := map[string]string{
		"applicant_name": "Jane Smith",
		"address":        "100 Main St",
		"parcel_number":  "P-100-22",
		"case_number":    "CV-2026-0042",
		"date":           "02/03/2026",
		"amount":         "1,250.00",
		"email":          "jane.smith@example.org",
	}
	for key, value := range want {
		if fields[key] != value {
			t.Errorf("fields[%q] = %q, want %q", key, fields[key], value)
		}
	}
}

func TestExtractFieldsAbsentWhenNoMatch(t *testing.T) {
	fields := ExtractFields("no structured data in this text at all")
	if len(fields) != 0 {
		t.Fatalf("fields = %v, want empty map", fields)
	}
	if _, ok := fields["applicant_name"]; ok {
		t.Fatalf("applicant_name should be absent, not empty")
	}
}

func TestExtractFieldsFirstMatchWins(t *testing.T) {
	text := "Applicant: First Person\nOwner: Second Person"
	fields := ExtractFields(text)
	if fields["applicant_name"] != "First Person" {
		t.Fatalf("applicant_name = %q, want first match", fields["applicant_name"])
	}
}

func TestExtractFieldsWrittenDate(t *testing.T) {
	fields := ExtractFields("Filed: February 3, 2026")
	if fields["date"] != "February 3, 2026" {
		t.Fatalf("date = %q, want written month form", fields["date"])
	}
}
