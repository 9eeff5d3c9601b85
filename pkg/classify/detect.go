package classify

import (
	"strings"

	"github.com/OFFIS-RIT/wikigraph/pkg/common"
	"github.com/OFFIS-RIT/wikigraph/pkg/wiki"
)

type indicator struct {
	entityType common.EntityType
	categories []string
}

// Coarse page families used when validating search candidates. Order
// decides ties.
var pageTypeIndicators = []indicator{
	{common.EntityTypeCharacter, []string{"characters", "npcs", "pcs", "player characters", "non-player characters"}},
	{common.EntityTypeLocation, []string{"locations", "cities", "towns", "regions", "places"}},
	{common.EntityTypeFaction, []string{"factions", "organizations", "groups"}},
	{common.EntityTypeObject, []string{"items", "objects", "artifacts", "weapons", "equipment"}},
	{common.EntityTypeEvent, []string{"events", "battles", "wars"}},
	{common.EntityTypeEpisode, []string{"episodes", "transcripts"}},
}

var pageInfoboxIndicators = []struct {
	entityType common.EntityType
	keys       []string
}{
	{common.EntityTypeCharacter, []string{"race", "class", "level", "player"}},
	{common.EntityTypeLocation, []string{"region", "population", "government"}},
	{common.EntityTypeFaction, []string{"leader", "headquarters", "members"}},
	{common.EntityTypeObject, []string{"rarity", "attunement", "owner"}},
}

// DetectPageType infers the coarse type of a page (character, location,
// faction, object, event or episode) without seeds or the oracle. It
// returns unknown with zero confidence when nothing matches.
func DetectPageType(page *wiki.Page, title string) (common.EntityType, float64) {
	if IsEpisodeTitle(title) {
		return common.EntityTypeEpisode, 1.0
	}
	if page == nil {
		return common.EntityTypeUnknown, 0
	}

	categoryText := page.CategoryText()
	best := common.EntityTypeUnknown
	bestHits := 0
	for _, ind := range pageTypeIndicators {
		hits := countContained(categoryText, ind.categories)
		if hits > bestHits {
			best, bestHits = ind.entityType, hits
		}
	}
	if bestHits > 0 {
		return best, min(1.0, float64(bestHits)*categoryHitWeight)
	}

	if page.HasInfobox() {
		infoboxText := page.InfoboxText()
		for _, ind := range pageInfoboxIndicators {
			if countContained(infoboxText, ind.keys) > 0 {
				return ind.entityType, infoboxConfidence
			}
		}
	}
	return common.EntityTypeUnknown, 0
}

// CoarseType folds the fine character kinds onto character so they can be
// compared with DetectPageType.
func CoarseType(t common.EntityType) common.EntityType {
	if t.IsCharacter() {
		return common.EntityTypeCharacter
	}
	return t
}

func countContained(text string, needles []string) int {
	n := 0
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			n++
		}
	}
	return n
}
