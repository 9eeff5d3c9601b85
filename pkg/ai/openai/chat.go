package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/wikigraph/pkg/ai"

	"github.com/openai/openai-go/v3"
)

// GenerateCompletion sends a single-turn prompt to the chat model and
// returns the generated completion as plain text.
func (c *GraphOpenAIClient) GenerateCompletion(
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

	return c.complete(ctx, c.newParams(prompt, options))
}

// GenerateCompletionWithFormat sends a prompt to the chat model and
// unmarshals the answer into out, using a strict JSON schema to enforce
// its structure.
func (c *GraphOpenAIClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	options := ai.GenerateOptions{
		Model:       c.model,
		Temperature: 0.1,
	}
	for _, o := range opts {
		o(&options)
	}

	body := c.newParams(prompt, options)
	body.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
			JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:        name,
				Description: openai.String(description),
				Schema:      ai.GenerateSchema(out),
				Strict:      openai.Bool(true),
			},
		},
	}

	message, err := c.complete(ctx, body)
	if err != nil {
		return err
	}
	return ai.UnmarshalFlexible(message, out)
}

func (c *GraphOpenAIClient) newParams(prompt string, options ai.GenerateOptions) openai.ChatCompletionNewParams {
	msgs := []openai.ChatCompletionMessageParamUnion{}
	for _, sp := range options.SystemPrompts {
		msgs = append(msgs, openai.SystemMessage(sp))
	}
	msgs = append(msgs, openai.UserMessage(prompt))

	body := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(options.Model),
		Messages:    msgs,
		Temperature: openai.Float(options.Temperature),
	}
	if options.TopP > 0 {
		body.TopP = openai.Float(options.TopP)
	}
	if options.MaxTokens > 0 {
		body.MaxCompletionTokens = openai.Int(int64(options.MaxTokens))
	}
	return body
}

func (c *GraphOpenAIClient) complete(ctx context.Context, body openai.ChatCompletionNewParams) (string, error) {
	start := time.Now()
	response, err := c.ChatClient.Chat.Completions.New(ctx, body)
	if err != nil {
		return "", err
	}
	duration := time.Since(start).Milliseconds()

	c.metrics.Record(ai.ModelMetrics{
		InputTokens:  int(response.Usage.PromptTokens),
		OutputTokens: int(response.Usage.CompletionTokens),
		TotalTokens:  int(response.Usage.TotalTokens),
		DurationMs:   duration,
	})

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in response from model")
	}
	message := response.Choices[0].Message.Content
	if message == "" {
		return "", fmt.Errorf("empty response from model (finish_reason: %s)", response.Choices[0].FinishReason)
	}
	return message, nil
}
