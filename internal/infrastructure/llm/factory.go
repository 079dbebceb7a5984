package llm

import (
	"github.com/citysort/citysort/internal/core/ports"
)

// FactoryConfig carries the provider selection and credentials for the
// external classifier and enricher adapters.
type FactoryConfig struct {
	Provider string

	OpenAIAPIKey string
	OpenAIModel  string

	AnthropicAPIKey string
	AnthropicModel  string

	Options ClientOptions
}

// NewClassifier builds the classifier for the configured provider. It
// returns a plain nil interface when the provider is unset, set to the
// built-in rules engine, or missing credentials, so callers can test
// against nil directly.
func NewClassifier(cfg FactoryConfig) ports.ExternalClassifier {
	switch cfg.Provider {
	case "openai":
		if classifier := NewOpenAIClassifier(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.Options); classifier != nil {
			return classifier
		}
	case "anthropic":
		if classifier := NewAnthropicClassifier(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.Options); classifier != nil {
			return classifier
		}
	}
	return nil
}

// NewEnricher builds the field enricher for the configured provider, or
// returns nil when enrichment is not available.
func NewEnricher(cfg FactoryConfig) ports.FieldEnricher {
	switch cfg.Provider {
	case "anthropic":
		if enricher := NewAnthropicEnricher(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.Options); enricher != nil {
			return enricher
		}
	}
	return nil
}
