package domain

import "testing"

func TestRuleSetPreservesInsertionOrder(t *testing.T) {
	set := NewRuleSet()
	set.Put("zoning_variance", Rule{Department: "Planning & Zoning"})
	set.Put("building_permit", Rule{Department: "Building Department"})
	set.Put("zoning_variance", Rule{Department: "Planning & Zoning", SLADays: 30})

	types := set.Types()
	if len(types) != 2 {
		t.Fatalf("Types() = %v", types)
	}
	if types[0] != "zoning_variance" || types[1] != "building_permit" {
		t.Fatalf("order = %v, want re-put to keep original position", types)
	}
	rule, ok := set.Get("zoning_variance")
	if !ok || rule.SLADays != 30 {
		t.Fatalf("Get() = %+v, %v, want updated rule", rule, ok)
	}
}

func TestResolveFallsBackToOther(t *testing.T) {
	set := NewRuleSet()
	set.Put("other", Rule{Department: "General Intake", RequiredFields: []string{"applicant_name", "date"}})

	rule := set.Resolve("benefits_application")
	if rule.Department != "General Intake" {
		t.Fatalf("Resolve() = %+v, want fallback rule", rule)
	}
}

func TestResolveWithoutFallbackRule(t *testing.T) {
	set := NewRuleSet()

	rule := set.Resolve("anything")
	if rule.Department != "General Intake" {
		t.Fatalf("Department = %q", rule.Department)
	}
	if len(rule.RequiredFields) != 2 {
		t.Fatalf("RequiredFields = %v", rule.RequiredFields)
	}
}
