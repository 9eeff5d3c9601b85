package resolve

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/wikigraph/pkg/wiki"
)

var (
	reEpisodeRef   = regexp.MustCompile(`\((\d+)x\d+\)`)
	reCampaign     = regexp.MustCompile(`campaign\s*(\d+)`)
	reCampaignAbbr = regexp.MustCompile(`\bc(\d+)\b`)
	reNumber       = regexp.MustCompile(`\d+`)
)

// Campaigns lists the campaign numbers a page declares. Infobox mentions are
// authoritative; All includes them plus body text and categories.
type Campaigns struct {
	Infobox []int
	All     []int
}

// ExtractCampaigns collects campaign numbers from episode references like
// "(4x01)", "Campaign 4", "C4" and campaign categories.
func ExtractCampaigns(page *wiki.Page) Campaigns {
	infobox := make(map[int]struct{})
	all := make(map[int]struct{})

	if page.HasInfobox() {
		collectCampaigns(page.InfoboxText(), infobox)
	}
	for c := range infobox {
		all[c] = struct{}{}
	}
	collectCampaigns(strings.ToLower(page.Text), all)
	for _, cat := range page.Categories {
		lower := strings.ToLower(cat)
		if !strings.Contains(lower, "campaign") {
			continue
		}
		for _, n := range reNumber.FindAllString(lower, -1) {
			if v, err := strconv.Atoi(n); err == nil {
				all[v] = struct{}{}
			}
		}
	}

	return Campaigns{Infobox: sortedKeys(infobox), All: sortedKeys(all)}
}

func collectCampaigns(lower string, into map[int]struct{}) {
	for _, re := range []*regexp.Regexp{reEpisodeRef, reCampaign, reCampaignAbbr} {
		for _, m := range re.FindAllStringSubmatch(lower, -1) {
			if v, err := strconv.Atoi(m[1]); err == nil {
				into[v] = struct{}{}
			}
		}
	}
}

func sortedKeys(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// ContextMatch is the outcome of comparing a page's campaigns with the
// target campaign.
type ContextMatch struct {
	Confidence float64
	Vetoed     bool
	Absent     bool
	Reason     string
}

// MatchContext scores how well page fits target. An infobox that names only
// other campaigns is a veto. A page without any campaign mention gets the
// lenient middle score; target 0 disables the check.
func MatchContext(page *wiki.Page, target int) ContextMatch {
	if target <= 0 {
		return ContextMatch{Confidence: 0.6, Reason: "No target campaign"}
	}

	campaigns := ExtractCampaigns(page)
	if len(campaigns.All) == 0 {
		return ContextMatch{Confidence: 0.6, Absent: true, Reason: "No specific campaign mentioned"}
	}

	if len(campaigns.Infobox) > 0 {
		if slices.Contains(campaigns.Infobox, target) {
			if len(campaigns.Infobox) == 1 {
				return ContextMatch{Confidence: 1.0, Reason: fmt.Sprintf("Infobox shows only Campaign %d", target)}
			}
			return ContextMatch{Confidence: 0.9, Reason: fmt.Sprintf("Infobox shows Campaign %d (also: %s)", target, joinInts(campaigns.Infobox, target))}
		}
		return ContextMatch{
			Confidence: 0.1,
			Vetoed:     true,
			Reason:     fmt.Sprintf("Infobox shows Campaign(s) %s, not %d", joinInts(campaigns.Infobox, 0), target),
		}
	}

	if slices.Contains(campaigns.All, target) {
		if len(campaigns.All) == 1 {
			return ContextMatch{Confidence: 0.85, Reason: fmt.Sprintf("Only mentions Campaign %d", target)}
		}
		return ContextMatch{Confidence: 0.7, Reason: fmt.Sprintf("Mentions Campaign %d (among %d campaigns)", target, len(campaigns.All))}
	}
	return ContextMatch{Confidence: 0.15, Reason: fmt.Sprintf("Only mentions Campaign(s) %s, not %d", joinInts(campaigns.All, 0), target)}
}

func joinInts(values []int, skip int) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v == skip {
			continue
		}
		parts = append(parts, strconv.Itoa(v))
	}
	return strings.Join(parts, ", ")
}
