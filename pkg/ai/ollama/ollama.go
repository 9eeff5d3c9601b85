package ollama

import (
	"net/http"
	"net/url"

	"github.com/OFFIS-RIT/wikigraph/pkg/ai"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

// GraphOllamaClient implements ai.Generator using the /api/generate
// endpoint of an Ollama server.
type GraphOllamaClient struct {
	model string

	reqLock *semaphore.Weighted

	metrics ai.MetricsRecorder

	baseURL *url.URL

	Client *api.Client
}

// NewGraphOllamaClientParams contains configuration options for creating a new GraphOllamaClient.
type NewGraphOllamaClientParams struct {
	Model string

	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int64
	HTTPClient            *http.Client
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		// don't overwrite if already set
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewGraphOllamaClient connects to the Ollama server at BaseURL (or the
// library default when empty). An ApiKey is sent as bearer token for
// hosted deployments behind a proxy.
func NewGraphOllamaClient(
	params NewGraphOllamaClientParams,
) (*GraphOllamaClient, error) {
	var (
		u   *url.URL
		err error
	)

	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	rt := http.DefaultTransport
	if params.HTTPClient != nil && params.HTTPClient.Transport != nil {
		rt = params.HTTPClient.Transport
	}
	headers := map[string]string{}
	if params.ApiKey != "" {
		headers["Authorization"] = "Bearer " + params.ApiKey
	}
	httpClient := &http.Client{
		Transport: &headerTransport{
			headers: headers,
			rt:      rt,
		},
	}

	maxConcurrent := params.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	return &GraphOllamaClient{
		model:   params.Model,
		reqLock: semaphore.NewWeighted(maxConcurrent),
		baseURL: u,
		Client:  api.NewClient(u, httpClient),
	}, nil
}

// GetMetrics returns the token usage recorded since the last reset.
func (c *GraphOllamaClient) GetMetrics() ai.ModelMetrics {
	return c.metrics.Snapshot()
}

// ResetMetrics is called by the oracle between crawl jobs.
func (c *GraphOllamaClient) ResetMetrics() {
	c.metrics.Reset()
}
