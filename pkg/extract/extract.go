package extract

import (
	"context"
	"strings"

	"github.com/OFFIS-RIT/wikigraph/internal/util"
	"github.com/OFFIS-RIT/wikigraph/pkg/ai"
	"github.com/OFFIS-RIT/wikigraph/pkg/common"
	"github.com/OFFIS-RIT/wikigraph/pkg/logger"
	"github.com/OFFIS-RIT/wikigraph/pkg/wiki"
)

const (
	DefaultAffiliationParagraphs = 10

	evidenceLimit    = 500
	biographyLimit   = 200
	affiliationLimit = 150
	contextWindow    = 100
)

// DefaultOrganizationKeywords mark paragraphs and links that talk about
// organizations.
var DefaultOrganizationKeywords = []string{
	"House", "Creed", "Guard", "Council", "Order", "Sisters",
	"Revolutionary", "Sundered", "Candescent", "Sylandri",
}

// Extractor turns a parsed page into raw relationships. It runs three
// independent passes and concatenates their output; duplicates between the
// passes are left for consolidation.
type Extractor struct {
	oracle                ai.ClassificationOracle
	affiliationParagraphs int
	orgKeywords           []string
}

// NewExtractorParams configures an Extractor. Without an Oracle the
// structured pass classifies text by keyword heuristics.
type NewExtractorParams struct {
	Oracle                ai.ClassificationOracle
	AffiliationParagraphs int
	OrganizationKeywords  []string
}

func NewExtractor(params NewExtractorParams) *Extractor {
	paragraphs := params.AffiliationParagraphs
	if paragraphs <= 0 {
		paragraphs = DefaultAffiliationParagraphs
	}
	keywords := params.OrganizationKeywords
	if len(keywords) == 0 {
		keywords = DefaultOrganizationKeywords
	}
	lower := make([]string, len(keywords))
	for i, k := range keywords {
		lower[i] = strings.ToLower(k)
	}
	return &Extractor{
		oracle:                params.Oracle,
		affiliationParagraphs: paragraphs,
		orgKeywords:           lower,
	}
}

// Extract returns the raw relationships of page. sourceID is the canonical
// id of the page, sourceName its display name for oracle prompts.
func (e *Extractor) Extract(ctx context.Context, page *wiki.Page, sourceID, sourceName string) []common.RawRelationship {
	if page == nil {
		return nil
	}
	var out []common.RawRelationship
	out = append(out, e.Structured(ctx, page, sourceID, sourceName)...)
	out = append(out, e.Biography(page, sourceID)...)
	out = append(out, e.Affiliations(page, sourceID)...)
	logger.Debug("[Extract] Extracted relationships", "source", sourceID, "count", len(out))
	return out
}

// Structured reads the "Relationships" section: every h3 below it that links
// to an article names a target, and the paragraphs up to the next heading
// describe the relationship.
func (e *Extractor) Structured(ctx context.Context, page *wiki.Page, sourceID, sourceName string) []common.RawRelationship {
	start := -1
	for i, s := range page.Sections {
		if strings.Contains(strings.ToLower(s.Heading), "relationship") {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}

	var out []common.RawRelationship
	for _, s := range page.Sections[start+1:] {
		if s.Level <= 2 {
			break
		}
		if len(s.Links) == 0 {
			continue
		}
		target := s.Links[0]

		var parts []string
		for _, b := range s.Blocks {
			if b.Tag == "p" && b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		text := strings.Join(parts, " ")
		if text == "" {
			continue
		}

		var labels []string
		if e.oracle != nil {
			labels = e.oracle.ClassifyRelationship(ctx, ai.RelationshipRequest{
				Source: sourceName,
				Target: target.Text,
				Text:   text,
			})
		} else {
			labels = ClassifyText(text)
		}

		out = append(out, common.RawRelationship{
			Source:   sourceID,
			Target:   target.Target,
			Labels:   labels,
			Evidence: util.Truncate(text, evidenceLimit),
			Pass:     common.PassStructured,
		})
	}
	return out
}

// Biography treats every link of the first "Biography" or "Background"
// section as a weak signal, typed by the words around the link.
func (e *Extractor) Biography(page *wiki.Page, sourceID string) []common.RawRelationship {
	var section *wiki.Section
	for i := range page.Sections {
		heading := strings.ToLower(page.Sections[i].Heading)
		if strings.Contains(heading, "biography") || strings.Contains(heading, "background") {
			section = &page.Sections[i]
			break
		}
	}
	if section == nil {
		return nil
	}

	var out []common.RawRelationship
	for _, b := range section.Blocks {
		for _, link := range b.Links {
			out = append(out, common.RawRelationship{
				Source:   sourceID,
				Target:   link.Target,
				Labels:   []string{contextLabel(around(b.Text, link.Text, contextWindow))},
				Evidence: util.Truncate(b.Text, biographyLimit),
				Pass:     common.PassBiography,
			})
		}
	}
	return out
}

// Affiliations scans the opening paragraphs for organization mentions and
// links the source to every organization-looking link in them.
func (e *Extractor) Affiliations(page *wiki.Page, sourceID string) []common.RawRelationship {
	var out []common.RawRelationship
	for i, p := range page.Paragraphs {
		if i >= e.affiliationParagraphs {
			break
		}
		text := strings.ToLower(p.Text)
		if !e.mentionsOrganization(text) {
			continue
		}
		for _, link := range p.Links {
			if !e.mentionsOrganization(strings.ToLower(link.Text)) {
				continue
			}
			out = append(out, common.RawRelationship{
				Source:   sourceID,
				Target:   link.Target,
				Labels:   []string{affiliationLabel(text)},
				Evidence: util.Truncate(p.Text, affiliationLimit),
				Pass:     common.PassAffiliation,
			})
		}
	}
	return out
}

func (e *Extractor) mentionsOrganization(lower string) bool {
	for _, k := range e.orgKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// around returns up to window runes on each side of the first occurrence of
// needle in text, or the whole text when needle does not occur.
func around(text, needle string, window int) string {
	if needle == "" {
		return text
	}
	i := strings.Index(text, needle)
	if i < 0 {
		return text
	}
	runes := []rune(text)
	start := len([]rune(text[:i]))
	end := start + len([]rune(needle))
	from := max(0, start-window)
	to := min(len(runes), end+window)
	return string(runes[from:to])
}
