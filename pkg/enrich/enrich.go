package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/wikigraph/pkg/common"
	"github.com/OFFIS-RIT/wikigraph/pkg/export"
	"github.com/OFFIS-RIT/wikigraph/pkg/logger"
	"github.com/OFFIS-RIT/wikigraph/pkg/resolve"
)

// episodeLabels maps the free-form labels of hand-made episode graphs onto
// relationship kinds for styling.
var episodeLabels = map[string]common.RelationshipKind{
	"brother":            common.KindFamily,
	"sister":             common.KindFamily,
	"father":             common.KindFamily,
	"mother":             common.KindFamily,
	"daughter":           common.KindFamily,
	"son":                common.KindFamily,
	"husband":            common.KindRomanticPartner,
	"wife":               common.KindRomanticPartner,
	"estranged_husband":  common.KindRomanticPartner,
	"friend":             common.KindAlly,
	"saved":              common.KindAlly,
	"executed":           common.KindEnemy,
	"hates":              common.KindEnemy,
	"captured_and_hates": common.KindEnemy,
	"conspirator":        common.KindComplicated,
	"attended":           common.KindAssociatedWith,
	"witnessed":          common.KindAssociatedWith,
}

var dashedLabels = map[string]bool{"estranged_husband": true}

// sequencedTypes receive chronological level hints.
var sequencedTypes = map[common.EntityType]bool{
	common.EntityTypeEvent:           true,
	common.EntityTypeHistoricalEvent: true,
	common.EntityTypeEpisode:         true,
}

// Stats reports the outcome of an enrichment run.
type Stats struct {
	Nodes             int     `json:"nodes"`
	Matched           int     `json:"matched"`
	Images            int     `json:"images"`
	AverageConfidence float64 `json:"average_confidence"`
}

// Enricher resolves the nodes of an existing graph against the wiki and
// decorates them with page links, portraits and styling.
type Enricher struct {
	resolver  *resolve.Resolver
	sequenced bool
}

type NewEnricherParams struct {
	Resolver *resolve.Resolver
	// Sequenced adds level hints for a chronological layout.
	Sequenced bool
}

func NewEnricher(params NewEnricherParams) *Enricher {
	return &Enricher{resolver: params.Resolver, sequenced: params.Sequenced}
}

// Enrich updates doc in place. Nodes that do not resolve keep their data and
// only receive styling.
func (e *Enricher) Enrich(ctx context.Context, doc *export.Document) (Stats, error) {
	stats := Stats{Nodes: len(doc.Nodes)}
	var confidenceSum float64
	level := 0

	for i := range doc.Nodes {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("enrichment interrupted: %w", err)
		}
		node := &doc.Nodes[i]
		typ := common.ParseEntityType(node.Type)
		style := export.StyleFor(common.Entity{Type: typ})
		node.SetAttr("color", style.Color)
		node.SetAttr("size", style.Size)

		title := []string{"<b>" + node.Label + "</b>"}
		if node.Type != "" {
			title = append(title, "Type: "+typ.Label())
		}

		res, ok := e.resolver.Resolve(ctx, node.Label, typ)
		if ok {
			stats.Matched++
			confidenceSum += res.Confidence
			node.SetAttr(common.AttrMatchConfidence, fmt.Sprintf("%.2f", res.Confidence))
			title = append(title, fmt.Sprintf("Match Confidence: %.0f%%", res.Confidence*100))
			if res.URL != "" {
				node.SetAttr("url", res.URL)
			}
			if res.ImageURL != "" {
				stats.Images++
				node.SetAttr("image", res.ImageURL)
				node.SetAttr("shape", "circularImage")
				node.SetAttr("size", style.Size*2)
			}
			logger.Debug("[Enrich] Node matched", "label", node.Label, "canonical", res.Canonical, "confidence", res.Confidence)
		} else {
			logger.Debug("[Enrich] Node unmatched", "label", node.Label, "type", typ)
		}
		if node.Attr("url") != "" {
			title = append(title, "<i>Click to open wiki page</i>")
		}
		node.SetAttr("title", strings.Join(title, "<br>"))

		if e.sequenced && sequencedTypes[typ] {
			level++
			node.SetAttr(common.AttrLevel, level)
		}
	}

	for i := range doc.Edges {
		styleEdge(&doc.Edges[i])
	}

	if stats.Matched > 0 {
		stats.AverageConfidence = confidenceSum / float64(stats.Matched)
	}
	logger.Info("[Enrich] Enrichment complete", "nodes", stats.Nodes, "matched", stats.Matched, "images", stats.Images, "avg_confidence", stats.AverageConfidence)
	return stats, nil
}

func styleEdge(edge *export.Edge) {
	label := strings.ToLower(strings.TrimSpace(edge.Relationship))
	kind, ok := episodeLabels[label]
	if !ok {
		kind = export.KindOf(edge.Relationship)
	}
	style := export.EdgeStyleFor(kind)
	if edge.Attrs == nil {
		edge.Attrs = make(map[string]any)
	}
	edge.Attrs["color"] = style.Color
	edge.Attrs["width"] = style.Width
	if dashedLabels[label] {
		edge.Attrs["dashes"] = true
	}
	if edge.Relationship != "" {
		edge.Attrs["title"] = edge.Relationship
	}
}
