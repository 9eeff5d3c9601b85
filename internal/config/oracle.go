package config

import (
	"fmt"

	"github.com/OFFIS-RIT/wikigraph/pkg/ai"
	oai "github.com/OFFIS-RIT/wikigraph/pkg/ai/ollama"
	gai "github.com/OFFIS-RIT/wikigraph/pkg/ai/openai"
)

// NewOracle builds the oracle for the configured adapter. It returns nil
// when no adapter is configured.
func (o OracleConfig) NewOracle() (*ai.Oracle, error) {
	var gen ai.Generator
	switch o.Adapter {
	case "", AdapterNone:
		return nil, nil
	case AdapterOllama:
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			Model:                 o.Model,
			BaseURL:               o.URL,
			ApiKey:                o.Key,
			MaxConcurrentRequests: o.MaxConcurrent,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create ollama client: %w", err)
		}
		gen = client
	case AdapterOpenAI:
		gen = gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			Model:      o.Model,
			ChatURL:    o.URL,
			ChatKey:    o.Key,
			MaxRetries: -1,
		})
	default:
		return nil, fmt.Errorf("unknown AI adapter %q", o.Adapter)
	}

	return ai.NewOracle(ai.NewOracleParams{
		Generator:  gen,
		Timeout:    o.Timeout,
		MaxRetries: o.MaxRetries,
	}), nil
}

// ClassificationOracle is NewOracle as the interface the pipeline consumes,
// nil when disabled.
func (o OracleConfig) ClassificationOracle() (ai.ClassificationOracle, *ai.Oracle, error) {
	oracle, err := o.NewOracle()
	if err != nil || oracle == nil {
		return nil, nil, err
	}
	return oracle, oracle, nil
}
