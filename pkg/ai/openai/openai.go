package openai

import (
	"github.com/OFFIS-RIT/wikigraph/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// GraphOpenAIClient implements ai.Generator against any OpenAI compatible
// chat completions endpoint.
//
// A GraphOpenAIClient should be created using NewGraphOpenAIClient.
type GraphOpenAIClient struct {
	model string

	metrics ai.MetricsRecorder

	ChatClient *openai.Client
}

// NewGraphOpenAIClientParams defines the configuration parameters for
// creating a new GraphOpenAIClient. MaxRetries of -1 disables the SDK's
// own retries.
type NewGraphOpenAIClientParams struct {
	Model      string
	ChatURL    string
	ChatKey    string
	MaxRetries int
}

// NewGraphOpenAIClient creates a client for the configured endpoint.
//
// Example:
//
//	client := openai.NewGraphOpenAIClient(openai.NewGraphOpenAIClientParams{
//		Model:   "gpt-4o-mini",
//		ChatURL: "https://api.openai.com/v1",
//		ChatKey: os.Getenv("OPENAI_API_KEY"),
//	})
func NewGraphOpenAIClient(
	params NewGraphOpenAIClientParams,
) *GraphOpenAIClient {
	options := []option.RequestOption{
		option.WithAPIKey(params.ChatKey),
	}
	if params.ChatURL != "" {
		options = append(options, option.WithBaseURL(params.ChatURL))
	}
	if params.MaxRetries < 0 {
		options = append(options, option.WithMaxRetries(0))
	} else if params.MaxRetries > 0 {
		options = append(options, option.WithMaxRetries(params.MaxRetries))
	}

	client := openai.NewClient(options...)

	return &GraphOpenAIClient{
		model:      params.Model,
		ChatClient: &client,
	}
}

// GetMetrics returns the token usage recorded since the last reset.
func (c *GraphOpenAIClient) GetMetrics() ai.ModelMetrics {
	return c.metrics.Snapshot()
}

// ResetMetrics is called by the oracle between crawl jobs.
func (c *GraphOpenAIClient) ResetMetrics() {
	c.metrics.Reset()
}
