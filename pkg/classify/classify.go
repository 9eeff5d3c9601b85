package classify

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/OFFIS-RIT/wikigraph/pkg/ai"
	"github.com/OFFIS-RIT/wikigraph/pkg/common"
	"github.com/OFFIS-RIT/wikigraph/pkg/logger"
	"github.com/OFFIS-RIT/wikigraph/pkg/wiki"
)

// DefaultSeeds is the main cast roster the crawl starts from.
var DefaultSeeds = []string{
	"Thimble",
	"Azune_Nayar",
	"Kattigan_Vale",
	"Thaisha_Lloy",
	"Bolaire_Lathalia",
	"Vaelus",
	"Julien_Davinos",
	"Tyranny",
	"Halandil_Fang",
	"Murray_Mag'Nesson",
	"Wicander_Halovar",
	"Occtis_Tachonis",
	"Teor_Pridesire",
}

// Where a classification came from.
const (
	SourceSeed     = "seed"
	SourceEpisode  = "episode_pattern"
	SourceCategory = "category"
	SourceInfobox  = "infobox"
	SourceTitle    = "title"
	SourceOracle   = "oracle"
	SourceNone     = "none"
)

const (
	categoryHitWeight = 0.4
	infoboxConfidence = 0.6
)

var episodePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^The\s+\w+\s+of\s+`),
	regexp.MustCompile(`(?i)^A\s+\w+\s+of\s+`),
	regexp.MustCompile(`(?i)^\w+\s+\d+x\d+`),
	regexp.MustCompile(`(?i)^\(?\d+x\d+\)?$`),
}

// IsEpisodeTitle reports whether a title looks like an episode name.
func IsEpisodeTitle(title string) bool {
	title = strings.TrimSpace(wiki.DisplayTitle(title))
	for _, p := range episodePatterns {
		if p.MatchString(title) {
			return true
		}
	}
	return false
}

// Classification is the type assigned to a page.
type Classification struct {
	Type       common.EntityType
	Confidence float64
	Source     string
}

type family struct {
	entityType common.EntityType
	phrases    []string
}

// Families are listed in tie-break order: on equal hit counts the earlier
// family wins, so the specific character kinds beat plain "character".
var categoryFamilies = []family{
	{common.EntityTypePlayerCharacter, []string{"player character", "pc"}},
	{common.EntityTypeNPC, []string{"non-player character", "npc"}},
	{common.EntityTypeCastMember, []string{"cast member", "cast", "crew"}},
	{common.EntityTypeFaction, []string{"faction", "organization", "group", "guild", "noble house"}},
	{common.EntityTypeLocation, []string{"location", "city", "cities", "town", "region", "place"}},
	{common.EntityTypeObject, []string{"item", "object", "artifact", "weapon", "equipment"}},
	{common.EntityTypeEvent, []string{"event", "battle", "war"}},
	{common.EntityTypeEpisode, []string{"episode", "transcript"}},
	{common.EntityTypeCharacter, []string{"character"}},
}

var organizationTitleWords = []string{"house", "council", "guard", "creed", "rebellion"}

type keyRule struct {
	keys       []string
	entityType common.EntityType
}

var infoboxKeyRules = []keyRule{
	{[]string{"Race", "Class", "Actor", "Portrayed by", "Pronouns"}, common.EntityTypeNPC},
	{[]string{"Population", "Government", "Region"}, common.EntityTypeLocation},
	{[]string{"Leader", "Headquarters", "Members"}, common.EntityTypeFaction},
	{[]string{"Rarity", "Attunement", "Owner"}, common.EntityTypeObject},
}

// Classifier assigns entity types to crawled pages.
type Classifier struct {
	seeds    map[string]common.EntityType
	oracle   ai.ClassificationOracle
	fallback common.EntityType
}

// NewClassifierParams configures a Classifier. Seeds are authoritative:
// a seed title is always SeedType, whatever its page says. Oracle is
// optional and only consulted when no heuristic applies.
type NewClassifierParams struct {
	Seeds    []string
	SeedType common.EntityType
	Oracle   ai.ClassificationOracle
}

func NewClassifier(params NewClassifierParams) *Classifier {
	seedType := params.SeedType
	if seedType == "" {
		seedType = common.EntityTypeMainCharacter
	}
	seeds := make(map[string]common.EntityType, len(params.Seeds))
	for _, s := range params.Seeds {
		seeds[wiki.NormalizeTitle(s)] = seedType
	}
	return &Classifier{
		seeds:    seeds,
		oracle:   params.Oracle,
		fallback: common.EntityTypeUnknown,
	}
}

// IsSeed reports whether title belongs to the seed roster.
func (c *Classifier) IsSeed(title string) bool {
	_, ok := c.seeds[wiki.NormalizeTitle(title)]
	return ok
}

// Classify determines the entity type of page. Seed membership wins over
// everything, then the episode title short-circuit, then category
// keywords, infobox hints and finally the oracle.
func (c *Classifier) Classify(ctx context.Context, page *wiki.Page, title string) Classification {
	if t, ok := c.seeds[wiki.NormalizeTitle(title)]; ok {
		return Classification{Type: t, Confidence: 1.0, Source: SourceSeed}
	}
	if IsEpisodeTitle(title) {
		return Classification{Type: common.EntityTypeEpisode, Confidence: 1.0, Source: SourceEpisode}
	}
	if page == nil {
		return Classification{Type: c.fallback, Source: SourceNone}
	}

	if t, hits := categoryType(page.Categories); hits > 0 {
		return Classification{Type: t, Confidence: min(1.0, float64(hits)*categoryHitWeight), Source: SourceCategory}
	}

	if t, ok := infoboxTypeField(page); ok {
		return Classification{Type: t, Confidence: infoboxConfidence, Source: SourceInfobox}
	}

	lowerTitle := strings.ToLower(wiki.DisplayTitle(title))
	for _, w := range organizationTitleWords {
		if containsWord(lowerTitle, w) {
			return Classification{Type: common.EntityTypeFaction, Confidence: infoboxConfidence, Source: SourceTitle}
		}
	}

	if page.Infobox != nil {
		for _, rule := range infoboxKeyRules {
			for _, key := range rule.keys {
				if _, ok := page.Infobox.Get(key); ok {
					return Classification{Type: rule.entityType, Confidence: infoboxConfidence, Source: SourceInfobox}
				}
			}
		}
	}

	if c.oracle != nil {
		judgment := c.oracle.ClassifyType(ctx, ai.TypeRequest{
			Title:   wiki.DisplayTitle(title),
			Infobox: infoboxSummary(page),
			Opening: openingText(page),
		})
		t := common.ParseEntityType(judgment.Type)
		if t != common.EntityTypeUnknown {
			logger.Debug("[Classify] Oracle assigned type", "title", title, "type", t, "confidence", judgment.Confidence)
			return Classification{Type: t, Confidence: judgment.Confidence, Source: SourceOracle}
		}
	}

	return Classification{Type: c.fallback, Source: SourceNone}
}

func categoryType(categories []string) (common.EntityType, int) {
	var words []string
	for _, cat := range categories {
		words = append(words, tokenize(cat)...)
		words = append(words, "")
	}

	best := common.EntityTypeUnknown
	bestHits := 0
	for _, f := range categoryFamilies {
		hits := 0
		for _, phrase := range f.phrases {
			if hasPhrase(words, strings.Fields(phrase)) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = f.entityType, hits
		}
	}
	return best, bestHits
}

func infoboxTypeField(page *wiki.Page) (common.EntityType, bool) {
	value, ok := page.Infobox.Get("Type")
	if !ok {
		return "", false
	}
	value = strings.ToLower(value)
	switch {
	case strings.Contains(value, "city"), strings.Contains(value, "town"), strings.Contains(value, "region"):
		return common.EntityTypeLocation, true
	case strings.Contains(value, "organization"), strings.Contains(value, "faction"):
		return common.EntityTypeFaction, true
	}
	return "", false
}

func infoboxSummary(page *wiki.Page) string {
	if page.Infobox == nil {
		return ""
	}
	var b strings.Builder
	for _, f := range page.Infobox.Fields {
		b.WriteString(f.Label)
		b.WriteString(": ")
		b.WriteString(f.Value)
		b.WriteByte('\n')
	}
	return b.String()
}

func openingText(page *wiki.Page) string {
	var parts []string
	for i, p := range page.Paragraphs {
		if i >= 3 {
			break
		}
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	if len(parts) == 0 {
		return page.Summary
	}
	return strings.Join(parts, "\n")
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}

// hasPhrase matches phrase as consecutive words; the last word may carry a
// plural "s".
func hasPhrase(words, phrase []string) bool {
	if len(phrase) == 0 {
		return false
	}
	last := len(phrase) - 1
	for i := 0; i+last < len(words); i++ {
		ok := true
		for j, p := range phrase {
			w := words[i+j]
			if w == p || (j == last && w == p+"s") {
				continue
			}
			ok = false
			break
		}
		if ok {
			return true
		}
	}
	return false
}

func containsWord(text, word string) bool {
	for _, w := range tokenize(text) {
		if w == word {
			return true
		}
	}
	return false
}
