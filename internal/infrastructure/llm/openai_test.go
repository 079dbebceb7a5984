package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/citysort/citysort/internal/infrastructure/rules"
)

func chatReply(t *testing.T, content string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if payload["temperature"] != float64(0) {
			t.Errorf("temperature = %v, want 0", payload["temperature"])
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		})
	}
}

func TestOpenAIClassify(t *testing.T) {
	server := httptest.NewServer(chatReply(t, `{"doc_type": "complaint", "department": "Code Enforcement", "urgency": "high", "confidence": 0.93, "matched_keywords": ["complaint"]}`))
	defer server.Close()

	classifier := NewOpenAIClassifier("test-key", "gpt-4o-mini", ClientOptions{BaseURL: server.URL})
	result, err := classifier.Classify(context.Background(), "complaint text", nil, rules.DefaultRules())
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	if result.Provider != "openai" {
		t.Fatalf("Provider = %q", result.Provider)
	}
	if result.DocType != "complaint" || result.Confidence != 0.93 {
		t.Fatalf("result = %+v", result)
	}
}

func TestOpenAIClassifyFencedReply(t *testing.T) {
	server := httptest.NewServer(chatReply(t, "```json\n{\"doc_type\": \"foi_request\", \"confidence\": 0.8}\n```"))
	defer server.Close()

	classifier := NewOpenAIClassifier("test-key", "gpt-4o-mini", ClientOptions{BaseURL: server.URL})
	result, err := classifier.Classify(context.Background(), "records request", nil, rules.DefaultRules())
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if result.DocType != "foi_request" {
		t.Fatalf("DocType = %q", result.DocType)
	}
}

func TestOpenAIClassifyServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	classifier := NewOpenAIClassifier("test-key", "gpt-4o-mini", ClientOptions{BaseURL: server.URL})
	_, err := classifier.Classify(context.Background(), "text", nil, rules.DefaultRules())
	if err == nil {
		t.Fatalf("expected error")
	}

	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("error = %v, want HTTPStatusError 500", err)
	}
}

func TestOpenAIClassifyNonJSONReply(t *testing.T) {
	server := httptest.NewServer(chatReply(t, "I cannot classify this document."))
	defer server.Close()

	classifier := NewOpenAIClassifier("test-key", "gpt-4o-mini", ClientOptions{BaseURL: server.URL})
	if _, err := classifier.Classify(context.Background(), "text", nil, rules.DefaultRules()); err == nil {
		t.Fatalf("expected error for non-JSON reply")
	}
}

func TestNewOpenAIClassifierWithoutKey(t *testing.T) {
	if classifier := NewOpenAIClassifier("", "gpt-4o-mini", ClientOptions{}); classifier != nil {
		t.Fatalf("expected nil classifier without API key")
	}
}

func TestClassifierFactoryReturnsNilInterface(t *testing.T) {
	for _, provider := range []string{"", "rules", "openai", "anthropic"} {
		classifier := NewClassifier(FactoryConfig{Provider: provider})
		if classifier != nil {
			t.Fatalf("provider %q without credentials: classifier = %v, want nil interface", provider, classifier)
		}
	}
}

func TestClassifyProviderError(t *testing.T) {
	cases := []struct {
		name          string
		err           error
		wantRetryable bool
	}{
		{"canceled", context.Canceled, false},
		{"retryable status", &HTTPStatusError{StatusCode: 503}, true},
		{"rate limited", &HTTPStatusError{StatusCode: 429}, true},
		{"bad request", &HTTPStatusError{StatusCode: 400}, false},
		{"unauthorized", &HTTPStatusError{StatusCode: 401}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			class := classifyProviderError(tc.err)
			if class.Retryable != tc.wantRetryable {
				t.Fatalf("Retryable = %v, want %v", class.Retryable, tc.wantRetryable)
			}
		})
	}
}
