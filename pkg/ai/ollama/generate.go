package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/OFFIS-RIT/wikigraph/pkg/ai"

	"github.com/ollama/ollama/api"
)

const defaultContextTokens = 4096

// GenerateCompletion sends a single prompt to /api/generate and returns the
// response text.
func (c *GraphOllamaClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.GenerateOptions{
		Model:       c.model,
		Temperature: 0.3,
	}
	for _, o := range opts {
		o(&options)
	}

	return c.generate(ctx, prompt, nil, options)
}

// GenerateCompletionWithFormat constrains the answer to the JSON schema of
// out and unmarshals it.
func (c *GraphOllamaClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	if out == nil {
		return errors.New("out must be a non-nil pointer")
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New("out must be a non-nil pointer")
	}

	formatBytes, err := json.Marshal(ai.GenerateSchema(out))
	if err != nil {
		return err
	}

	options := ai.GenerateOptions{
		Model:       c.model,
		Temperature: 0.1,
	}
	for _, o := range opts {
		o(&options)
	}

	content, err := c.generate(ctx, prompt, json.RawMessage(formatBytes), options)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return ai.UnmarshalFlexible(content, out)
}

func (c *GraphOllamaClient) generate(
	ctx context.Context,
	prompt string,
	format json.RawMessage,
	options ai.GenerateOptions,
) (string, error) {
	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.reqLock.Release(1)

	stream := false
	req := &api.GenerateRequest{
		Model:   options.Model,
		Prompt:  prompt,
		System:  strings.Join(options.SystemPrompts, "\n\n"),
		Stream:  &stream,
		Format:  format,
		Options: map[string]any{"temperature": options.Temperature},
	}
	if options.TopP > 0 {
		req.Options["top_p"] = options.TopP
	}
	if options.MaxTokens > 0 {
		req.Options["num_predict"] = options.MaxTokens
	}
	if tokens := promptTokens(prompt); tokens > defaultContextTokens {
		req.Options["num_ctx"] = tokens
	}

	var final api.GenerateResponse
	if err := c.Client.Generate(ctx, req, func(gr api.GenerateResponse) error {
		final.Response += gr.Response
		if gr.Done {
			final.Done = true
			final.Metrics = gr.Metrics
		}
		return nil
	}); err != nil {
		return "", err
	}

	c.metrics.Record(ai.ModelMetrics{
		InputTokens:  final.Metrics.PromptEvalCount,
		OutputTokens: final.Metrics.EvalCount,
		TotalTokens:  final.Metrics.PromptEvalCount + final.Metrics.EvalCount,
		DurationMs:   final.Metrics.TotalDuration.Milliseconds(),
	})

	return final.Response, nil
}

// promptTokens sizes the context window: 200 tokens of headroom plus the
// prompt itself.
func promptTokens(prompt string) int {
	if utf8.RuneCountInString(prompt)+200 <= defaultContextTokens {
		return 0
	}
	return 200 + ai.CountTokens(prompt)
}
