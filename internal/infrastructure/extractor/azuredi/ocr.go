// Package azuredi adapts the Azure Document Intelligence analyze API as an
// external OCR provider. Any failure along the submit/poll path yields a
// nil result so the pipeline falls back to local extraction.
package azuredi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/citysort/citysort/internal/core/domain"
)

const Method = "azure_di"

type Config struct {
	Endpoint   string
	APIKey     string
	Model      string
	APIVersion string

	RequestTimeout time.Duration
	PollInterval   time.Duration
	MaxPolls       int
}

type Provider struct {
	cfg        Config
	httpClient *http.Client
}

// New returns nil when the endpoint or key is missing: an unconfigured
// provider reports "not available" rather than erroring at call time.
func New(cfg Config) *Provider {
	if cfg.Endpoint == "" || cfg.APIKey == "" {
		return nil
	}
	if cfg.Model == "" {
		cfg.Model = "prebuilt-layout"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-11-30"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 30
	}
	return &Provider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

type analyzeResult struct {
	Status        string `json:"status"`
	AnalyzeResult struct {
		Content string `json:"content"`
		Pages   []struct {
			Lines []struct {
				Content string `json:"content"`
			} `json:"lines"`
		} `json:"pages"`
		Documents []struct {
			Confidence float64 `json:"confidence"`
		} `json:"documents"`
	} `json:"analyzeResult"`
}

func (p *Provider) Extract(ctx context.Context, path, contentType string) (*domain.Extraction, error) {
	fileBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source file: %w", err)
	}

	operationURL, err := p.submit(ctx, fileBytes, guessMime(path, contentType))
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < p.cfg.MaxPolls; attempt++ {
		result, err := p.poll(ctx, operationURL)
		if err != nil {
			return nil, err
		}

		switch strings.ToLower(result.Status) {
		case "succeeded":
			return normalize(result), nil
		case "failed", "canceled", "cancelled":
			return nil, fmt.Errorf("azure di analyze status: %s", result.Status)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.cfg.PollInterval):
		}
	}

	return nil, fmt.Errorf("azure di analyze did not finish after %d polls", p.cfg.MaxPolls)
}

func (p *Provider) submit(ctx context.Context, fileBytes []byte, mimeType string) (string, error) {
	analyzeURL := fmt.Sprintf(
		"%s/documentintelligence/documentModels/%s:analyze?api-version=%s&outputContentFormat=text",
		strings.TrimRight(p.cfg.Endpoint, "/"), p.cfg.Model, p.cfg.APIVersion,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, analyzeURL, bytes.NewReader(fileBytes))
	if err != nil {
		return "", fmt.Errorf("create analyze request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.cfg.APIKey)
	req.Header.Set("Content-Type", mimeType)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("azure di analyze request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("azure di analyze status: %s", resp.Status)
	}

	operationURL := resp.Header.Get("Operation-Location")
	if operationURL == "" {
		return "", fmt.Errorf("azure di analyze response missing Operation-Location")
	}
	return operationURL, nil
}

func (p *Provider) poll(ctx context.Context, operationURL string) (*analyzeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, operationURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create poll request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.cfg.APIKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("azure di poll request: %w", err)
	}
	defer resp.Body.Close()

	var result analyzeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode poll response: %w", err)
	}
	return &result, nil
}

func normalize(result *analyzeResult) *domain.Extraction {
	content := strings.TrimSpace(result.AnalyzeResult.Content)
	if content == "" {
		var lines []string
		for _, page := range result.AnalyzeResult.Pages {
			for _, line := range page.Lines {
				if line.Content != "" {
					lines = append(lines, line.Content)
				}
			}
		}
		content = strings.Join(lines, "\n")
	}
	if content == "" {
		return nil
	}

	confidence := 0.92
	if docs := result.AnalyzeResult.Documents; len(docs) > 0 {
		sum := 0.0
		for _, doc := range docs {
			sum += doc.Confidence
		}
		confidence = sum / float64(len(docs))
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 0.99 {
		confidence = 0.99
	}

	return &domain.Extraction{
		Text:       content,
		Method:     Method,
		Confidence: math.Round(confidence*10000) / 10000,
	}
}

func guessMime(path, contentType string) string {
	if contentType != "" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".tif", ".tiff":
		return "image/tiff"
	}
	return "application/octet-stream"
}
