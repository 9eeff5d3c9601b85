package resolve

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/OFFIS-RIT/wikigraph/pkg/ai"
	"github.com/OFFIS-RIT/wikigraph/pkg/classify"
	"github.com/OFFIS-RIT/wikigraph/pkg/common"
	"github.com/OFFIS-RIT/wikigraph/pkg/wiki"
)

// Validation is the page-level verdict on a search candidate for one
// expected type. It does not depend on the identity being resolved, so it is
// shared between all identities that reach the same candidate.
type Validation struct {
	Candidate         string
	Canonical         string
	URL               string
	ImageURL          string
	TypeConfidence    float64
	ContextConfidence float64
	ContextAbsent     bool
	Vetoed            bool
	Reasons           []string
	Err               error

	summary string
}

type validationKey struct {
	candidate string
	expected  common.EntityType
}

// ValidationCache memoizes validations per (candidate title, expected type)
// for the lifetime of a session. Entries are never replaced.
type ValidationCache struct {
	mu      sync.RWMutex
	entries map[validationKey]Validation
}

func NewValidationCache() *ValidationCache {
	return &ValidationCache{entries: make(map[validationKey]Validation)}
}

func (c *ValidationCache) Get(candidate string, expected common.EntityType) (Validation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[validationKey{wiki.NormalizeTitle(candidate), expected}]
	return v, ok
}

// Put stores v unless an entry exists already and returns the stored value.
func (c *ValidationCache) Put(candidate string, expected common.EntityType, v Validation) Validation {
	key := validationKey{wiki.NormalizeTitle(candidate), expected}
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		return existing
	}
	c.entries[key] = v
	return v
}

func (c *ValidationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

type typeProfile struct {
	positive    []string
	negative    []string
	keywords    []string
	infoboxKeys []string
}

var typeProfiles = map[common.EntityType]typeProfile{
	common.EntityTypeCharacter: {
		positive:    []string{"characters", "npcs", "pcs", "player characters", "non-player characters"},
		negative:    []string{"episodes", "transcripts", "events", "battles"},
		keywords:    []string{"race:", "class:", "played by", "portrayed by", "character in"},
		infoboxKeys: []string{"race", "class", "level", "alignment", "player"},
	},
	common.EntityTypeLocation: {
		positive:    []string{"locations", "cities", "towns", "regions", "places"},
		negative:    []string{"episodes", "characters", "events"},
		keywords:    []string{"located in", "city", "town", "region", "area", "population:"},
		infoboxKeys: []string{"region", "population", "government", "type"},
	},
	common.EntityTypeFaction: {
		positive:    []string{"factions", "organizations", "groups"},
		negative:    []string{"episodes", "characters"},
		keywords:    []string{"organization", "faction", "group", "members", "founded"},
		infoboxKeys: []string{"type", "leader", "headquarters", "members"},
	},
	common.EntityTypeObject: {
		positive:    []string{"items", "objects", "artifacts", "weapons", "equipment"},
		negative:    []string{"episodes", "characters", "events"},
		keywords:    []string{"item", "artifact", "weapon", "wielded by", "owned by"},
		infoboxKeys: []string{"type", "rarity", "attunement", "owner"},
	},
	common.EntityTypeEvent: {
		positive:    []string{"events", "battles", "wars"},
		negative:    []string{"episodes", "characters", "items"},
		keywords:    []string{"event", "battle", "war", "occurred", "took place"},
		infoboxKeys: []string{"date", "location", "result"},
	},
	common.EntityTypeHistoricalEvent: {
		positive:    []string{"events", "battles", "wars", "history"},
		negative:    []string{"episodes", "characters"},
		keywords:    []string{"historical", "event", "battle", "occurred", "took place"},
		infoboxKeys: []string{"date", "location", "result"},
	},
}

// compatibleTypes pairs an expected type with a detected type that counts as
// a weaker match.
var compatibleTypes = map[common.EntityType]common.EntityType{
	common.EntityTypeArtifact:        common.EntityTypeObject,
	common.EntityTypeHistoricalEvent: common.EntityTypeEvent,
	common.EntityTypeCastMember:      common.EntityTypeCharacter,
}

var reTranscriptSpeaker = regexp.MustCompile(`\b[A-Z]+:\s`)

// profileType maps an expected type onto the profile used to score it.
func profileType(expected common.EntityType) common.EntityType {
	if expected == common.EntityTypeArtifact {
		return common.EntityTypeObject
	}
	return classify.CoarseType(expected)
}

// TypeMatch scores how well page fits expected. The bool is false when the
// page was detected as an episode although something else was expected.
func TypeMatch(page *wiki.Page, candidate string, expected common.EntityType) (float64, bool, []string) {
	if expected == "" || expected == common.EntityTypeUnknown {
		return 0.6, true, []string{"Type unconstrained (0.6)"}
	}

	var confidence float64
	var reasons []string

	want := classify.CoarseType(expected)
	detected, detection := classify.DetectPageType(page, candidate)
	if detected != common.EntityTypeUnknown {
		reasons = append(reasons, fmt.Sprintf("Detected as %s (%.2f)", detected, detection))
		switch {
		case detected == want:
			confidence += 0.6
			reasons = append(reasons, fmt.Sprintf("Type matches %s (+0.6)", expected))
		case compatibleTypes[expected] == detected:
			confidence += 0.3
			reasons = append(reasons, fmt.Sprintf("Type %s compatible with %s (+0.3)", detected, expected))
		case detected == common.EntityTypeEpisode:
			reasons = append(reasons, fmt.Sprintf("Episode page, expected %s", expected))
			return 0, false, reasons
		default:
			confidence -= 0.7
			reasons = append(reasons, fmt.Sprintf("Type mismatch: expected %s, found %s (-0.7)", expected, detected))
		}
	}

	pageText := strings.ToLower(page.Text)
	header := strings.ToLower(page.Title)
	if strings.Contains(header, "transcript") || strings.Contains(header, "episode") {
		confidence -= 0.8
		reasons = append(reasons, "Header indicates episode page (-0.8)")
	}
	if reTranscriptSpeaker.MatchString(prefix(page.Text, 5000)) && strings.Count(prefix(pageText, 2000), "transcript") > 2 {
		confidence -= 0.7
		reasons = append(reasons, "Contains transcript formatting (-0.7)")
	}

	profile, hasProfile := typeProfiles[profileType(expected)]
	if hasProfile {
		categoryText := page.CategoryText()
		if n := countIn(categoryText, profile.positive); n > 0 {
			boost := min(0.5, float64(n)*0.25)
			confidence += boost
			reasons = append(reasons, fmt.Sprintf("%d positive categories (+%.2f)", n, boost))
		}
		if n := countIn(categoryText, profile.negative); n > 0 {
			penalty := min(0.5, float64(n)*0.25)
			confidence -= penalty
			reasons = append(reasons, fmt.Sprintf("%d negative categories (-%.2f)", n, penalty))
		}
		if n := countIn(pageText, profile.keywords); n > 0 {
			boost := min(0.3, float64(n)*0.1)
			confidence += boost
			reasons = append(reasons, fmt.Sprintf("%d type keywords (+%.2f)", n, boost))
		}
	}

	if page.HasInfobox() {
		confidence += 0.15
		reasons = append(reasons, "Has infobox (+0.15)")
		if hasProfile {
			if n := countIn(page.InfoboxText(), profile.infoboxKeys); n > 0 {
				boost := min(0.4, float64(n)*0.15)
				confidence += boost
				reasons = append(reasons, fmt.Sprintf("%d infobox indicators (+%.2f)", n, boost))
			}
		}
	} else {
		switch want {
		case common.EntityTypeCharacter, common.EntityTypeLocation, common.EntityTypeFaction:
			confidence -= 0.1
			reasons = append(reasons, "Missing infobox (-0.1)")
		}
	}

	return max(0, min(1, confidence)), true, reasons
}

func countIn(text string, needles []string) int {
	n := 0
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			n++
		}
	}
	return n
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// validate fetches candidate and scores it against expected. Results,
// including fetch failures, are cached.
func (r *Resolver) validate(ctx context.Context, candidate string, expected common.EntityType) Validation {
	if v, ok := r.validations.Get(candidate, expected); ok {
		return v
	}

	v := Validation{Candidate: candidate}
	page, err := r.pages.Fetch(ctx, candidate)
	if err != nil {
		v.Err = err
		v.Reasons = []string{fmt.Sprintf("Fetch failed: %v", err)}
		return r.validations.Put(candidate, expected, v)
	}

	v.Canonical = page.Canonical
	v.URL = page.URL
	if page.Infobox != nil {
		v.ImageURL = page.Infobox.ImageURL
	}
	v.summary = page.Summary
	if v.summary == "" && len(page.Paragraphs) > 0 {
		v.summary = page.Paragraphs[0].Text
	}

	ctxMatch := MatchContext(page, r.target)
	if ctxMatch.Vetoed {
		v.Vetoed = true
		v.Reasons = []string{"Context veto: " + ctxMatch.Reason}
		return r.validations.Put(candidate, expected, v)
	}

	typeConf, ok, reasons := TypeMatch(page, candidate, expected)
	v.Reasons = reasons
	if !ok {
		v.Vetoed = true
		return r.validations.Put(candidate, expected, v)
	}
	v.TypeConfidence = typeConf

	v.ContextConfidence = ctxMatch.Confidence
	v.ContextAbsent = ctxMatch.Absent
	v.Reasons = append(v.Reasons, ctxMatch.Reason)

	if ctxMatch.Absent && r.oracle != nil {
		judgment, ok := r.oracle.JudgeContext(ctx, ai.ContextRequest{
			Title:         wiki.DisplayTitle(v.Canonical),
			Summary:       v.summary,
			TargetContext: r.target,
		})
		if ok && judgment.LikelyCampaign > 0 && judgment.Confidence >= 0.5 {
			if judgment.LikelyCampaign == r.target {
				v.ContextConfidence = 0.7
			} else {
				v.ContextConfidence = 0.15
			}
			v.Reasons = append(v.Reasons, fmt.Sprintf("Oracle places page in Campaign %d (%.2f)", judgment.LikelyCampaign, judgment.Confidence))
		}
	}

	return r.validations.Put(candidate, expected, v)
}
