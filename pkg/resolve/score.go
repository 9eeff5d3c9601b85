package resolve

import (
	"regexp"
	"strings"

	"github.com/OFFIS-RIT/wikigraph/pkg/classify"
	"github.com/OFFIS-RIT/wikigraph/pkg/wiki"
)

// DefaultHonorifics are leading titles dropped for the honorific query
// variant.
var DefaultHonorifics = []string{
	"sir", "lady", "lord", "king", "queen", "prince", "princess",
	"duke", "duchess", "baron", "baroness", "count", "countess",
	"master", "mistress", "captain", "general", "admiral",
}

// DefaultOverrides maps identities whose page title differs from the name
// used elsewhere on the wiki.
var DefaultOverrides = map[string]string{
	"Shadia Fang":            "Shadia",
	"Alogar Lloy":            "Alogar",
	"Bolaire Lloy":           "Bolaire Lathalia",
	"Sir Julien Davinos":     "Julien Davinos",
	"Halandil Fang":          "Halandil Fang",
	"Hal":                    "Halandil Fang",
	"Torn Banner (Artifact)": "Torn Banner",
	"Penteveral":             "Penteveral",
}

var reParenthetical = regexp.MustCompile(`\s*\([^)]*\)\s*$`)

// StripParenthetical removes a trailing "(...)" qualifier.
func StripParenthetical(name string) string {
	return strings.TrimSpace(reParenthetical.ReplaceAllString(name, ""))
}

// StripHonorific drops the first word when it is one of honorifics.
func StripHonorific(name string, honorifics []string) string {
	words := strings.Fields(name)
	if len(words) < 2 {
		return name
	}
	first := strings.ToLower(strings.TrimSuffix(words[0], "."))
	for _, h := range honorifics {
		if first == h {
			return strings.Join(words[1:], " ")
		}
	}
	return name
}

// QueryVariants returns the search queries tried for identity, in order and
// without duplicates: the identity itself, without a parenthetical suffix
// and without a leading honorific.
func QueryVariants(identity string, honorifics []string) []string {
	raw := strings.TrimSpace(wiki.DisplayTitle(identity))
	if raw == "" {
		return nil
	}
	variants := []string{raw}
	add := func(v string) {
		if v == "" {
			return
		}
		for _, existing := range variants {
			if strings.EqualFold(existing, v) {
				return
			}
		}
		variants = append(variants, v)
	}
	stripped := StripParenthetical(raw)
	add(stripped)
	add(StripHonorific(stripped, honorifics))
	return variants
}

// ScoreCandidate rates a search hit for query before any page is fetched.
func ScoreCandidate(query string, result wiki.SearchResult) float64 {
	var score float64
	title := strings.ToLower(result.Title)
	q := strings.ToLower(query)

	if title == q {
		score = 100
	} else {
		queryWords := wordSet(q)
		titleWords := wordSet(title)
		overlap := 0
		for w := range queryWords {
			if _, ok := titleWords[w]; ok {
				overlap++
			}
		}
		if len(queryWords) > 0 {
			score = float64(overlap) / float64(len(queryWords)) * 50
			if overlap == len(queryWords) {
				score += 20
			}
		}
	}

	if classify.IsEpisodeTitle(result.Title) {
		score -= 50
	}
	switch {
	case result.Size < 100:
		score -= 20
	case result.Size > 1000:
		score += 10
	}
	return score
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}
