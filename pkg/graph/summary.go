package graph

import (
	"sort"

	"github.com/OFFIS-RIT/wikigraph/pkg/ai"
	"github.com/OFFIS-RIT/wikigraph/pkg/logger"
	"github.com/OFFIS-RIT/wikigraph/pkg/wiki"
)

// Summary is logged at the end of every crawl.
type Summary struct {
	Session           string         `json:"session"`
	PagesProcessed    int            `json:"pages_processed"`
	PagesFailed       int            `json:"pages_failed"`
	Entities          int            `json:"entities"`
	EntitiesByType    map[string]int `json:"entities_by_type"`
	EdgesAccepted     int            `json:"edges_accepted"`
	EdgesByKind       map[string]int `json:"edges_by_kind"`
	EdgesDropped      int            `json:"edges_dropped"`
	DroppedByReason   map[string]int `json:"dropped_by_reason,omitempty"`
	Aliases           int            `json:"aliases"`
	Lookups           int64          `json:"resolution_lookups"`
	CacheHitRate      float64        `json:"resolution_cache_hit_rate"`
	AverageConfidence float64        `json:"average_confidence"`
	Validations       int            `json:"validations"`

	Fetch  *wiki.Stats     `json:"fetch,omitempty"`
	Oracle *ai.OracleStats `json:"oracle,omitempty"`
}

func (s *Session) summarize(report *Report) Summary {
	stats := s.resolver.Stats()
	summary := Summary{
		Session:           s.ID,
		PagesProcessed:    len(report.Crawl.Processed),
		PagesFailed:       len(report.Crawl.Failed),
		Entities:          len(report.Graph.Entities),
		EntitiesByType:    make(map[string]int),
		EdgesAccepted:     len(report.Graph.Edges),
		EdgesByKind:       make(map[string]int),
		EdgesDropped:      len(report.Dropped),
		DroppedByReason:   make(map[string]int),
		Aliases:           s.aliases.Len(),
		Lookups:           stats.Lookups,
		CacheHitRate:      stats.HitRate(),
		AverageConfidence: stats.AverageConfidence(),
		Validations:       s.resolver.Validations().Len(),
	}
	for _, e := range report.Graph.Entities {
		summary.EntitiesByType[e.Type.Label()]++
	}
	for _, e := range report.Graph.Edges {
		summary.EdgesByKind[string(e.Kind)]++
	}
	for _, d := range report.Dropped {
		summary.DroppedByReason[d.Reason]++
	}

	if f, ok := s.pages.(interface{ Stats() wiki.Stats }); ok {
		fs := f.Stats()
		summary.Fetch = &fs
	}
	if o, ok := s.oracle.(interface{ Stats() ai.OracleStats }); ok {
		os := o.Stats()
		summary.Oracle = &os
	}
	return summary
}

// Log writes the summary through the logger facade.
func (s Summary) Log() {
	logger.Info("[Crawl] Crawl complete",
		"session", s.Session,
		"pages", s.PagesProcessed,
		"failed", s.PagesFailed,
		"entities", s.Entities,
		"edges", s.EdgesAccepted,
		"dropped", s.EdgesDropped,
		"aliases", s.Aliases,
		"cache_hit_rate", s.CacheHitRate,
		"avg_confidence", s.AverageConfidence,
	)
	for _, k := range sortedKeys(s.EntitiesByType) {
		logger.Info("[Crawl] Entities", "type", k, "count", s.EntitiesByType[k])
	}
	for _, k := range sortedKeys(s.EdgesByKind) {
		logger.Info("[Crawl] Edges", "kind", k, "count", s.EdgesByKind[k])
	}
	for _, k := range sortedKeys(s.DroppedByReason) {
		logger.Info("[Crawl] Dropped", "reason", k, "count", s.DroppedByReason[k])
	}
	if s.Fetch != nil {
		logger.Info("[Crawl] Fetch stats", "pages", s.Fetch.PageRequests, "searches", s.Fetch.SearchRequests, "cache_hits", s.Fetch.CacheHits)
	}
	if s.Oracle != nil {
		logger.Info("[Crawl] Oracle stats", "calls", s.Oracle.Calls, "failures", s.Oracle.Failures, "cache_hits", s.Oracle.CacheHits)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
