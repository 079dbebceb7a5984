package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/citysort/citysort/internal/core/domain"
	"github.com/citysort/citysort/internal/infrastructure/resilience"
)

const openAIDefaultBaseURL = "https://api.openai.com"

// ClientOptions tune a provider adapter; zero values pick sane defaults.
type ClientOptions struct {
	BaseURL  string
	Timeout  time.Duration
	Limiter  *rate.Limiter
	Executor *resilience.Executor
}

func (o ClientOptions) timeout() time.Duration {
	if o.Timeout <= 0 {
		return 60 * time.Second
	}
	return o.Timeout
}

type OpenAIClassifier struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

// NewOpenAIClassifier returns nil when no API key is configured.
func NewOpenAIClassifier(apiKey, model string, opts ClientOptions) *OpenAIClassifier {
	if apiKey == "" {
		return nil
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}
	return &OpenAIClassifier{
		apiKey:     apiKey,
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: opts.timeout()},
		limiter:    opts.Limiter,
		executor:   opts.Executor,
	}
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *OpenAIClassifier) Classify(ctx context.Context, text string, fields map[string]string, rules *domain.RuleSet) (*domain.ExternalClassification, error) {
	payload := map[string]any{
		"model":           c.model,
		"temperature":     0,
		"response_format": map[string]string{"type": "json_object"},
		"messages": []map[string]string{
			{"role": "system", "content": "You classify city government documents. Return strict JSON only."},
			{"role": "user", "content": classificationPrompt(text, fields, rules)},
		},
	}

	var response openAIChatResponse
	if err := c.post(ctx, "openai.classify", payload, &response); err != nil {
		return nil, err
	}

	if len(response.Choices) == 0 || response.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("openai classify: empty completion")
	}

	parsed, ok := ExtractJSONObject(response.Choices[0].Message.Content)
	if !ok {
		return nil, fmt.Errorf("openai classify: no JSON object in reply")
	}

	normalized := normalizeClassification(parsed, rules)
	normalized.Provider = "openai"
	return normalized, nil
}

func (c *OpenAIClassifier) post(ctx context.Context, operation string, payload, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	call := func(callCtx context.Context) error {
		return postJSON(callCtx, c.httpClient, c.baseURL+"/v1/chat/completions", map[string]string{
			"Authorization": "Bearer " + c.apiKey,
		}, payload, out, operation)
	}
	if c.executor != nil {
		return c.executor.Execute(ctx, operation, call, classifyProviderError)
	}
	return call(ctx)
}
