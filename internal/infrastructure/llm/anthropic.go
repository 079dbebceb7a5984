package llm

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/citysort/citysort/internal/core/domain"
	"github.com/citysort/citysort/internal/infrastructure/resilience"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicAPIVersion     = "2023-06-01"
)

// Email aliases the enricher accepts in addition to the required fields,
// since models name the sender address inconsistently.
var emailAliasFields = []string{"email", "applicant_email", "contact_email", "sender_email"}

type anthropicClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

func newAnthropicClient(apiKey, model string, opts ClientOptions) *anthropicClient {
	if apiKey == "" {
		return nil
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}
	return &anthropicClient{
		apiKey:     apiKey,
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: opts.timeout()},
		limiter:    opts.Limiter,
		executor:   opts.Executor,
	}
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (c *anthropicClient) message(ctx context.Context, operation, system, prompt string, maxTokens int) (string, error) {
	payload := map[string]any{
		"model":       c.model,
		"max_tokens":  maxTokens,
		"temperature": 0,
		"system":      system,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	var response anthropicResponse
	call := func(callCtx context.Context) error {
		return postJSON(callCtx, c.httpClient, c.baseURL+"/v1/messages", map[string]string{
			"x-api-key":         c.apiKey,
			"anthropic-version": anthropicAPIVersion,
		}, payload, &response, operation)
	}
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, operation, call, classifyProviderError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", err
	}

	var blocks []string
	for _, block := range response.Content {
		if block.Type == "text" && block.Text != "" {
			blocks = append(blocks, block.Text)
		}
	}
	if len(blocks) == 0 {
		return "", fmt.Errorf("%s: empty completion", operation)
	}
	return strings.Join(blocks, "\n"), nil
}

type AnthropicClassifier struct {
	client *anthropicClient
}

// NewAnthropicClassifier returns nil when no API key is configured.
func NewAnthropicClassifier(apiKey, model string, opts ClientOptions) *AnthropicClassifier {
	client := newAnthropicClient(apiKey, model, opts)
	if client == nil {
		return nil
	}
	return &AnthropicClassifier{client: client}
}

func (c *AnthropicClassifier) Classify(ctx context.Context, text string, fields map[string]string, rules *domain.RuleSet) (*domain.ExternalClassification, error) {
	reply, err := c.client.message(ctx, "anthropic.classify",
		"You classify city government documents and return strict JSON only.",
		classificationPrompt(text, fields, rules), 800)
	if err != nil {
		return nil, err
	}

	parsed, ok := ExtractJSONObject(reply)
	if !ok {
		return nil, fmt.Errorf("anthropic classify: no JSON object in reply")
	}

	normalized := normalizeClassification(parsed, rules)
	normalized.Provider = "anthropic"
	return normalized, nil
}

type AnthropicEnricher struct {
	client *anthropicClient
}

// NewAnthropicEnricher returns nil when no API key is configured.
func NewAnthropicEnricher(apiKey, model string, opts ClientOptions) *AnthropicEnricher {
	client := newAnthropicClient(apiKey, model, opts)
	if client == nil {
		return nil
	}
	return &AnthropicEnricher{client: client}
}

// Enrich asks for the still-missing required fields, then filters the reply
// down to allowed, non-placeholder values. A nil result means nothing
// usable survived.
func (e *AnthropicEnricher) Enrich(ctx context.Context, text, docType string, requiredFields []string, known map[string]string) (*domain.Enrichment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	targets := make([]string, 0, len(requiredFields))
	for _, field := range requiredFields {
		if trimmed := strings.TrimSpace(field); trimmed != "" {
			targets = append(targets, trimmed)
		}
	}
	if len(targets) == 0 {
		return nil, nil
	}

	reply, err := e.client.message(ctx, "anthropic.enrich",
		"You extract explicit fields from documents and return strict JSON only.",
		enrichmentPrompt(text, docType, targets, known), 900)
	if err != nil {
		return nil, err
	}

	parsed, ok := ExtractJSONObject(reply)
	if !ok {
		return nil, fmt.Errorf("anthropic enrich: no JSON object in reply")
	}

	allowed := make(map[string]struct{}, len(targets)+len(emailAliasFields))
	for _, field := range targets {
		allowed[field] = struct{}{}
	}
	for _, field := range emailAliasFields {
		allowed[field] = struct{}{}
	}

	fields := normalizeEnrichedFields(parsed, allowed)
	if len(fields) == 0 {
		return nil, nil
	}

	confidence := math.Max(0.0, math.Min(asFloat(parsed["confidence"]), 0.99))

	return &domain.Enrichment{
		Provider:   "anthropic",
		Fields:     fields,
		Confidence: math.Round(confidence*10000) / 10000,
		Notes:      strings.TrimSpace(asString(parsed["notes"])),
	}, nil
}
