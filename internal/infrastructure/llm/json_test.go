package llm

import "testing"

func TestExtractJSONObjectDirect(t *testing.T) {
	parsed, ok := ExtractJSONObject(`{"doc_type": "complaint", "confidence": 0.9}`)
	if !ok {
		t.Fatalf("expected ok")
	}
	if parsed["doc_type"] != "complaint" {
		t.Fatalf("doc_type = %v", parsed["doc_type"])
	}
}

func TestExtractJSONObjectFenced(t *testing.T) {
	raw := "```json\n{\"doc_type\": \"foi_request\"}\n```"
	parsed, ok := ExtractJSONObject(raw)
	if !ok {
		t.Fatalf("expected ok for fenced reply")
	}
	if parsed["doc_type"] != "foi_request" {
		t.Fatalf("doc_type = %v", parsed["doc_type"])
	}
}

func TestExtractJSONObjectEmbeddedInProse(t *testing.T) {
	raw := `Here is my answer: {"doc_type": "complaint"} hope that helps!`
	parsed, ok := ExtractJSONObject(raw)
	if !ok {
		t.Fatalf("expected ok for embedded object")
	}
	if parsed["doc_type"] != "complaint" {
		t.Fatalf("doc_type = %v", parsed["doc_type"])
	}
}

func TestExtractJSONObjectGarbage(t *testing.T) {
	for _, raw := range []string{"", "no json here", "{broken", "[1,2,3]"} {
		if _, ok := ExtractJSONObject(raw); ok {
			t.Fatalf("expected failure for %q", raw)
		}
	}
}
