package ai

import (
	"context"
	"errors"
)

// ErrOracle marks every failure of the language model backend. Callers
// never surface it; they log it and fall back to a neutral answer.
var ErrOracle = errors.New("oracle unavailable")

// GenerateOptions holds configuration for AI generation requests.
type GenerateOptions struct {
	Model         string   // Model identifier to use for generation
	SystemPrompts []string // System prompts prepended to the request
	Temperature   float64  // Sampling temperature (0.0-2.0)
	TopP          float64  // Nucleus sampling, 0 leaves the backend default
	MaxTokens     int      // Upper bound of generated tokens, 0 for no limit
}

// ModelMetrics contains performance metrics from AI model operations.
type ModelMetrics struct {
	Requests       int     `json:"requests"`
	InputTokens    int     `json:"input_tokens"`
	OutputTokens   int     `json:"output_tokens"`
	TotalTokens    int     `json:"total_tokens"`
	DurationMs     int64   `json:"duration_ms"`
	TokenPerSecond float32 `json:"tokens_per_second"`
}

// GenerateOption is a functional option for configuring AI generation requests.
type GenerateOption func(*GenerateOptions)

// WithModel returns a GenerateOption that sets the model to use for generation.
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

// WithSystemPrompts returns a GenerateOption that sets the system prompts
// to prepend to the generation request.
func WithSystemPrompts(prompts ...string) GenerateOption {
	return func(o *GenerateOptions) {
		o.SystemPrompts = prompts
	}
}

// WithTemperature returns a GenerateOption that sets the sampling temperature.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}

func WithTopP(p float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.TopP = p
	}
}

// WithMaxTokens caps the length of the generated answer.
func WithMaxTokens(n int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = n
	}
}

// Generator is a language model backend able to answer a single prompt,
// either with free text or with JSON matching the schema of out.
type Generator interface {
	GenerateCompletion(
		ctx context.Context,
		prompt string,
		opts ...GenerateOption,
	) (string, error)
	GenerateCompletionWithFormat(
		ctx context.Context,
		name string,
		description string,
		prompt string,
		out any,
		opts ...GenerateOption,
	) error

	ResetMetrics()
	GetMetrics() ModelMetrics
}

// TypeJudgment is the oracle's answer to "what kind of entity is this page".
type TypeJudgment struct {
	Type       string  `json:"type" jsonschema:"description=One of the allowed entity types"`
	Confidence float64 `json:"confidence" jsonschema:"minimum=0,maximum=1"`
}

// MatchJudgment is the oracle's answer to "is this page the entity I mean".
type MatchJudgment struct {
	IsMatch    bool    `json:"is_match"`
	Confidence float64 `json:"confidence" jsonschema:"minimum=0,maximum=1"`
	Reason     string  `json:"reason"`
}

// ContextJudgment is the oracle's guess of which campaign a page belongs to.
type ContextJudgment struct {
	LikelyCampaign int     `json:"likely_campaign" jsonschema:"description=Campaign number or 0 when unclear"`
	Confidence     float64 `json:"confidence" jsonschema:"minimum=0,maximum=1"`
	Evidence       string  `json:"evidence"`
}

type TypeRequest struct {
	Title   string
	Infobox string
	Opening string
	Allowed []string
}

type RelationshipRequest struct {
	Source string
	Target string
	Text   string
}

type MatchRequest struct {
	Identity      string
	ExpectedType  string
	Candidate     string
	Summary       string
	TargetContext int
}

type ContextRequest struct {
	Title         string
	Summary       string
	TargetContext int
}

// ClassificationOracle is the advisory language model used by the pipeline.
// Implementations never fail: an unreachable or confused model yields the
// neutral answer (unknown type, associated_with, ok == false).
type ClassificationOracle interface {
	ClassifyType(ctx context.Context, req TypeRequest) TypeJudgment
	ClassifyRelationship(ctx context.Context, req RelationshipRequest) []string
	JudgeMatch(ctx context.Context, req MatchRequest) (MatchJudgment, bool)
	JudgeContext(ctx context.Context, req ContextRequest) (ContextJudgment, bool)
}
