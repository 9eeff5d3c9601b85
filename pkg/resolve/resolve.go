package resolve

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/OFFIS-RIT/wikigraph/pkg/ai"
	"github.com/OFFIS-RIT/wikigraph/pkg/common"
	"github.com/OFFIS-RIT/wikigraph/pkg/logger"
	"github.com/OFFIS-RIT/wikigraph/pkg/wiki"
)

// Where a resolution came from.
const (
	SourceAlias    = "alias"
	SourceOverride = "override"
	SourceSearch   = "search"
)

// PageSource is the part of the wiki client the resolver needs.
type PageSource interface {
	Fetch(ctx context.Context, title string) (*wiki.Page, error)
	Search(ctx context.Context, query string, limit int) ([]wiki.SearchResult, error)
	Aliases() *wiki.AliasTable
}

// Thresholds are the tunable cut-offs of the resolution pipeline.
type Thresholds struct {
	// Accept is the final confidence a search candidate needs.
	Accept float64
	// Override is the relaxed threshold for manual overrides.
	Override float64
	// Floor rejects a candidate outright, before the oracle is asked.
	Floor float64
	// EarlyStop ends candidate evaluation; VariantStop ends query variants.
	EarlyStop   float64
	VariantStop float64
	// The oracle is asked for combined scores within [OracleLow, OracleHigh]
	// or when the page carries no context at all.
	OracleLow  float64
	OracleHigh float64
	// Weight of the oracle answer when the heuristic score is below
	// WeakHeuristic, and otherwise.
	WeakHeuristic      float64
	OracleWeakWeight   float64
	OracleStrongWeight float64
	// MinSearchScore gates which search hits are fetched at all.
	MinSearchScore float64
	SearchLimit    int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Accept:             0.4,
		Override:           0.35,
		Floor:              0.2,
		EarlyStop:          0.85,
		VariantStop:        0.7,
		OracleLow:          0.3,
		OracleHigh:         0.6,
		WeakHeuristic:      0.5,
		OracleWeakWeight:   0.6,
		OracleStrongWeight: 0.4,
		MinSearchScore:     20,
		SearchLimit:        5,
	}
}

// Resolution is a successfully resolved identity.
type Resolution struct {
	Identity   string   `json:"identity"`
	Canonical  string   `json:"canonical"`
	Confidence float64  `json:"confidence"`
	Source     string   `json:"source"`
	URL        string   `json:"url,omitempty"`
	ImageURL   string   `json:"image_url,omitempty"`
	Reasons    []string `json:"reasons,omitempty"`
}

// Stats summarizes resolver activity.
type Stats struct {
	Lookups       int64
	CacheHits     int64
	Resolved      int64
	Unresolved    int64
	ConfidenceSum float64
}

func (s Stats) HitRate() float64 {
	if s.Lookups == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(s.Lookups)
}

func (s Stats) AverageConfidence() float64 {
	if s.Resolved == 0 {
		return 0
	}
	return s.ConfidenceSum / float64(s.Resolved)
}

type resolutionKey struct {
	identity string
	expected common.EntityType
}

type resolutionEntry struct {
	resolution Resolution
	ok         bool
}

// Resolver maps raw identities onto canonical page ids. Every outcome is
// cached per (identity, expected type), so the network is consulted at most
// once for each pair.
type Resolver struct {
	pages       PageSource
	aliases     *wiki.AliasTable
	oracle      ai.ClassificationOracle
	overrides   map[string]string
	honorifics  []string
	target      int
	thresholds  Thresholds
	validations *ValidationCache

	mu          sync.Mutex
	resolutions map[resolutionKey]resolutionEntry
	stats       Stats
}

// NewResolverParams configures a Resolver. A nil Overrides uses
// DefaultOverrides; pass an empty map to disable them. TargetContext is the
// campaign candidates must belong to, 0 for any. Oracle is optional.
type NewResolverParams struct {
	Pages         PageSource
	Oracle        ai.ClassificationOracle
	Overrides     map[string]string
	Honorifics    []string
	TargetContext int
	Thresholds    *Thresholds
	Validations   *ValidationCache
}

func NewResolver(params NewResolverParams) *Resolver {
	overrides := params.Overrides
	if overrides == nil {
		overrides = DefaultOverrides
	}
	normalized := make(map[string]string, len(overrides))
	for k, v := range overrides {
		normalized[overrideKey(k)] = v
	}

	honorifics := params.Honorifics
	if len(honorifics) == 0 {
		honorifics = DefaultHonorifics
	}
	thresholds := DefaultThresholds()
	if params.Thresholds != nil {
		thresholds = *params.Thresholds
	}
	validations := params.Validations
	if validations == nil {
		validations = NewValidationCache()
	}

	return &Resolver{
		pages:       params.Pages,
		aliases:     params.Pages.Aliases(),
		oracle:      params.Oracle,
		overrides:   normalized,
		honorifics:  honorifics,
		target:      params.TargetContext,
		thresholds:  thresholds,
		validations: validations,
		resolutions: make(map[resolutionKey]resolutionEntry),
	}
}

func overrideKey(identity string) string {
	return strings.ToLower(wiki.NormalizeTitle(identity))
}

func (r *Resolver) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Validations exposes the validation cache shared by this resolver.
func (r *Resolver) Validations() *ValidationCache {
	return r.validations
}

// Resolve returns the canonical entity identity refers to. The bool is false
// when no candidate cleared the acceptance threshold.
func (r *Resolver) Resolve(ctx context.Context, identity string, expected common.EntityType) (Resolution, bool) {
	normalized := wiki.NormalizeTitle(identity)
	if normalized == "" {
		return Resolution{}, false
	}
	key := resolutionKey{normalized, expected}

	r.mu.Lock()
	r.stats.Lookups++
	if entry, ok := r.resolutions[key]; ok {
		r.stats.CacheHits++
		r.mu.Unlock()
		return entry.resolution, entry.ok
	}
	r.mu.Unlock()

	res, ok := r.resolve(ctx, identity, normalized, expected)
	if ok {
		r.aliases.Set(normalized, res.Canonical)
		logger.Debug("[Resolve] Resolved", "identity", identity, "canonical", res.Canonical, "source", res.Source, "confidence", res.Confidence)
	} else {
		logger.Debug("[Resolve] Unresolved", "identity", identity, "type", expected)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, exists := r.resolutions[key]; exists {
		return entry.resolution, entry.ok
	}
	r.resolutions[key] = resolutionEntry{res, ok}
	if ok {
		r.stats.Resolved++
		r.stats.ConfidenceSum += res.Confidence
	} else {
		r.stats.Unresolved++
	}
	return res, ok
}

func (r *Resolver) resolve(ctx context.Context, identity, normalized string, expected common.EntityType) (Resolution, bool) {
	if canonical, ok := r.aliases.Lookup(normalized); ok {
		return Resolution{Identity: identity, Canonical: canonical, Confidence: 1.0, Source: SourceAlias}, true
	}

	if target, ok := r.overrides[overrideKey(identity)]; ok {
		res := r.evaluate(ctx, identity, target, expected)
		if res.Canonical != "" && res.Confidence > r.thresholds.Override {
			res.Source = SourceOverride
			return res, true
		}
		logger.Debug("[Resolve] Manual override rejected", "identity", identity, "target", target, "confidence", res.Confidence)
	}

	var best Resolution
	for _, query := range QueryVariants(identity, r.honorifics) {
		results, err := r.pages.Search(ctx, query, r.thresholds.SearchLimit)
		if err != nil {
			logger.Warn("[Resolve] Search failed", "query", query, "err", err)
			continue
		}
		if len(results) > r.thresholds.SearchLimit {
			results = results[:r.thresholds.SearchLimit]
		}

		for _, result := range results {
			score := ScoreCandidate(query, result)
			if score <= r.thresholds.MinSearchScore {
				continue
			}
			res := r.evaluate(ctx, identity, result.Title, expected)
			if res.Canonical != "" && res.Confidence > best.Confidence {
				best = res
				if best.Confidence > r.thresholds.EarlyStop {
					break
				}
			}
		}
		if best.Confidence > r.thresholds.VariantStop {
			break
		}
	}

	if best.Canonical == "" || best.Confidence < r.thresholds.Accept {
		return Resolution{}, false
	}
	best.Source = SourceSearch
	return best, true
}

// evaluate combines the cached page validation of candidate with the
// identity-specific weighting and the optional oracle judgment.
func (r *Resolver) evaluate(ctx context.Context, identity, candidate string, expected common.EntityType) Resolution {
	v := r.validate(ctx, candidate, expected)
	if v.Err != nil || v.Vetoed {
		return Resolution{}
	}

	reasons := append([]string(nil), v.Reasons...)
	var combined float64
	if strings.EqualFold(wiki.NormalizeTitle(candidate), wiki.NormalizeTitle(identity)) {
		combined = v.TypeConfidence*0.5 + v.ContextConfidence*0.5
	} else {
		combined = v.TypeConfidence*0.7 + v.ContextConfidence*0.3
	}
	if combined < r.thresholds.Floor {
		return Resolution{Identity: identity, Canonical: v.Canonical, Confidence: combined, Reasons: reasons}
	}

	ambiguous := combined >= r.thresholds.OracleLow && combined <= r.thresholds.OracleHigh
	if r.oracle != nil && (ambiguous || v.ContextAbsent) {
		judgment, ok := r.oracle.JudgeMatch(ctx, ai.MatchRequest{
			Identity:      wiki.DisplayTitle(identity),
			ExpectedType:  string(expected),
			Candidate:     wiki.DisplayTitle(v.Canonical),
			Summary:       v.summary,
			TargetContext: r.target,
		})
		if ok {
			score := 0.0
			if judgment.IsMatch {
				score = judgment.Confidence
			}
			weight := r.thresholds.OracleStrongWeight
			if combined < r.thresholds.WeakHeuristic {
				weight = r.thresholds.OracleWeakWeight
			}
			combined = weight*score + (1-weight)*combined
			reasons = append(reasons, fmt.Sprintf("Oracle match=%t (%.2f): %s", judgment.IsMatch, judgment.Confidence, judgment.Reason))
		}
	}

	return Resolution{
		Identity:   identity,
		Canonical:  v.Canonical,
		Confidence: combined,
		URL:        v.URL,
		ImageURL:   v.ImageURL,
		Reasons:    reasons,
	}
}
