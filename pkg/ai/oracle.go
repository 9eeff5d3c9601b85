package ai

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OFFIS-RIT/wikigraph/internal/util"
	"github.com/OFFIS-RIT/wikigraph/pkg/common"
	"github.com/OFFIS-RIT/wikigraph/pkg/logger"
)

const (
	DefaultOracleTimeout = 120 * time.Second
	relationshipTimeout  = 30 * time.Second

	relationshipTextLimit = 1500
	relationshipKeyLimit  = 100
	summaryTokenLimit     = 1500
)

// OracleStats reports how often the oracle was asked and how often it failed.
type OracleStats struct {
	Calls     int64        `json:"calls"`
	Failures  int64        `json:"failures"`
	CacheHits int64        `json:"cache_hits"`
	Model     ModelMetrics `json:"model"`
}

// Oracle implements ClassificationOracle on top of a Generator. Relationship
// classifications are memoized for the lifetime of the oracle.
type Oracle struct {
	gen      Generator
	timeout  time.Duration
	retries  int
	allowed  []string
	cacheMu  sync.Mutex
	relCache map[string][]string

	calls     atomic.Int64
	failures  atomic.Int64
	cacheHits atomic.Int64
}

// NewOracleParams configures an Oracle. AllowedTypes is the list offered to
// the model for type classification.
type NewOracleParams struct {
	Generator    Generator
	Timeout      time.Duration
	MaxRetries   int
	AllowedTypes []string
}

func NewOracle(params NewOracleParams) *Oracle {
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = DefaultOracleTimeout
	}
	retries := params.MaxRetries
	if retries <= 0 {
		retries = 1
	}
	allowed := params.AllowedTypes
	if len(allowed) == 0 {
		allowed = []string{
			string(common.EntityTypeCharacter),
			string(common.EntityTypeNPC),
			string(common.EntityTypeLocation),
			string(common.EntityTypeFaction),
			string(common.EntityTypeObject),
			string(common.EntityTypeEvent),
			string(common.EntityTypeEpisode),
			string(common.EntityTypeUnknown),
		}
	}
	return &Oracle{
		gen:      params.Generator,
		timeout:  timeout,
		retries:  retries,
		allowed:  allowed,
		relCache: make(map[string][]string),
	}
}

func (o *Oracle) Stats() OracleStats {
	return OracleStats{
		Calls:     o.calls.Load(),
		Failures:  o.failures.Load(),
		CacheHits: o.cacheHits.Load(),
		Model:     o.gen.GetMetrics(),
	}
}

// Reset clears the counters, the relationship cache and the model metrics
// between jobs.
func (o *Oracle) Reset() {
	o.cacheMu.Lock()
	o.relCache = make(map[string][]string)
	o.cacheMu.Unlock()
	o.calls.Store(0)
	o.failures.Store(0)
	o.cacheHits.Store(0)
	o.gen.ResetMetrics()
}

func (o *Oracle) fail(op string, err error) {
	o.failures.Add(1)
	logger.Warn("[Oracle] Falling back to neutral answer", "op", op, "err", fmt.Errorf("%w: %w", ErrOracle, err))
}

// ClassifyRelationship labels free relationship text with taxonomy labels.
func (o *Oracle) ClassifyRelationship(ctx context.Context, req RelationshipRequest) []string {
	key := req.Source + ":" + req.Target + ":" + util.Truncate(req.Text, relationshipKeyLimit)
	o.cacheMu.Lock()
	if cached, ok := o.relCache[key]; ok {
		o.cacheMu.Unlock()
		o.cacheHits.Add(1)
		return cached
	}
	o.cacheMu.Unlock()

	text := req.Text
	if len([]rune(text)) > relationshipTextLimit {
		text = util.Truncate(text, relationshipTextLimit) + "..."
	}
	prompt := fmt.Sprintf(RelationshipPrompt, req.Source, req.Target, text)

	o.calls.Add(1)
	timeout := min(o.timeout, relationshipTimeout)
	answer, err := util.RetryWithContext(ctx, o.retries, func(ctx context.Context) (string, error) {
		rCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return o.gen.GenerateCompletion(rCtx, prompt,
			WithTemperature(0.1),
			WithTopP(0.9),
			WithMaxTokens(50),
		)
	})
	if err != nil {
		o.fail("relationship", err)
		return []string{common.LabelAssociatedWith}
	}

	labels := ParseRelationshipLabels(answer, common.RelationshipTaxonomy, common.LabelAssociatedWith)
	logger.Debug("[Oracle] Classified relationship", "source", req.Source, "target", req.Target, "labels", strings.Join(labels, ","))

	o.cacheMu.Lock()
	o.relCache[key] = labels
	o.cacheMu.Unlock()
	return labels
}

// ClassifyType asks for the entity type of a page.
func (o *Oracle) ClassifyType(ctx context.Context, req TypeRequest) TypeJudgment {
	allowed := req.Allowed
	if len(allowed) == 0 {
		allowed = o.allowed
	}
	prompt := fmt.Sprintf(TypePrompt,
		req.Title,
		orNotPresent(TruncateTokens(req.Infobox, summaryTokenLimit/2)),
		orNotPresent(TruncateTokens(req.Opening, summaryTokenLimit)),
		strings.Join(allowed, ", "),
	)

	var out TypeJudgment
	if err := o.structured(ctx, "entity_type", "Entity type of a wiki page", prompt, &out); err != nil {
		o.fail("type", err)
		return TypeJudgment{Type: string(common.EntityTypeUnknown), Confidence: 0}
	}

	t := common.ParseEntityType(out.Type)
	if t == common.EntityTypeUnknown || !contains(allowed, string(t)) {
		return TypeJudgment{Type: string(common.EntityTypeUnknown), Confidence: 0}
	}
	return TypeJudgment{Type: string(t), Confidence: clamp01(out.Confidence)}
}

// JudgeMatch asks whether a candidate page is the entity being resolved.
func (o *Oracle) JudgeMatch(ctx context.Context, req MatchRequest) (MatchJudgment, bool) {
	campaign := "any"
	if req.TargetContext > 0 {
		campaign = strconv.Itoa(req.TargetContext)
	}
	prompt := fmt.Sprintf(MatchPrompt,
		req.Identity,
		req.ExpectedType,
		campaign,
		req.Candidate,
		orNotPresent(TruncateTokens(req.Summary, summaryTokenLimit)),
	)

	var out MatchJudgment
	if err := o.structured(ctx, "match_judgment", "Whether a page matches an entity", prompt, &out); err != nil {
		o.fail("match", err)
		return MatchJudgment{}, false
	}
	out.Confidence = clamp01(out.Confidence)
	return out, true
}

// JudgeContext asks which campaign a page belongs to.
func (o *Oracle) JudgeContext(ctx context.Context, req ContextRequest) (ContextJudgment, bool) {
	prompt := fmt.Sprintf(ContextPrompt,
		req.Title,
		req.TargetContext,
		orNotPresent(TruncateTokens(req.Summary, summaryTokenLimit)),
	)

	var out ContextJudgment
	if err := o.structured(ctx, "context_judgment", "Campaign a page belongs to", prompt, &out); err != nil {
		o.fail("context", err)
		return ContextJudgment{}, false
	}
	out.Confidence = clamp01(out.Confidence)
	return out, true
}

func (o *Oracle) structured(ctx context.Context, name, description, prompt string, out any) error {
	o.calls.Add(1)
	return util.RetryErrWithContext(ctx, o.retries, func(ctx context.Context) error {
		rCtx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()
		return o.gen.GenerateCompletionWithFormat(rCtx, name, description, prompt, out, WithTemperature(0.1))
	})
}

// NeutralOracle always returns the neutral answer. It stands in when no
// model is configured.
type NeutralOracle struct{}

func (NeutralOracle) ClassifyType(context.Context, TypeRequest) TypeJudgment {
	return TypeJudgment{Type: string(common.EntityTypeUnknown)}
}

func (NeutralOracle) ClassifyRelationship(context.Context, RelationshipRequest) []string {
	return []string{common.LabelAssociatedWith}
}

func (NeutralOracle) JudgeMatch(context.Context, MatchRequest) (MatchJudgment, bool) {
	return MatchJudgment{}, false
}

func (NeutralOracle) JudgeContext(context.Context, ContextRequest) (ContextJudgment, bool) {
	return ContextJudgment{}, false
}

func orNotPresent(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Not present"
	}
	return s
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
