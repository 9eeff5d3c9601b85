package extract

import (
	"regexp"
	"strings"

	"github.com/OFFIS-RIT/wikigraph/pkg/common"
)

func wordPattern(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

type labelPattern struct {
	label   string
	pattern *regexp.Regexp
}

// taxonomyPatterns are listed in taxonomy order so heuristic labels come out
// in the same order an oracle answer would.
var taxonomyPatterns = []labelPattern{
	{common.LabelFamily, wordPattern(
		"family", "brother", "brothers", "sister", "sisters", "mother", "father", "parent", "parents",
		"son", "daughter", "child", "children", "sibling", "siblings", "twin", "cousin", "aunt", "uncle",
		"grandmother", "grandfather", "niece", "nephew",
	)},
	{common.LabelRomanticPartner, wordPattern(
		"lover", "lovers", "romance", "romantic", "romantically", "married", "marry", "wife", "husband",
		"spouse", "betrothed", "kissed", "courting",
	)},
	{common.LabelCloseFriend, wordPattern(
		"friend", "friends", "best friend", "close friend", "closest friend", "friendship",
	)},
	{common.LabelAlly, wordPattern(
		"ally", "allies", "allied", "alliance", "companion", "companions",
	)},
	{common.LabelServedTogether, wordPattern(
		"served with", "served together", "fought alongside", "comrade", "comrades", "squad",
	)},
	{common.LabelMentorStudent, wordPattern(
		"mentor", "mentored", "teacher", "student", "apprentice", "taught", "trained",
	)},
	{common.LabelEnemy, wordPattern(
		"enemy", "enemies", "nemesis", "foe", "foes", "opponent", "hates", "hatred", "killed", "murdered",
	)},
	{common.LabelRival, wordPattern(
		"rival", "rivals", "rivalry",
	)},
	{common.LabelComplicated, wordPattern(
		"complicated", "strained", "tense", "distrust", "mistrust", "conflicted", "resentment",
	)},
	{common.LabelMemberOf, wordPattern(
		"member of", "part of", "joined", "belongs to",
	)},
	{common.LabelLeads, wordPattern(
		"leader of", "leads", "led", "commands", "commander of", "captain of", "head of",
	)},
}

// ClassifyText labels relationship text with the taxonomy labels whose
// keywords it contains. Text without any keyword is associated_with.
func ClassifyText(text string) []string {
	var labels []string
	for _, lp := range taxonomyPatterns {
		if lp.pattern.MatchString(text) {
			labels = append(labels, lp.label)
		}
	}
	if len(labels) == 0 {
		return []string{common.LabelAssociatedWith}
	}
	return labels
}

var (
	contextFamily     = taxonomyPatterns[0].pattern
	contextAlly       = wordPattern("friend", "friends", "ally", "allies", "companion", "companions", "fought alongside")
	contextEnemy      = wordPattern("enemy", "enemies", "opponent", "foe", "foes", "nemesis", "against")
	contextEmployment = wordPattern("works for", "worked for", "employed by", "employer", "serves", "served", "hired")
)

// contextLabel picks the biography label for a link from the words around
// it.
func contextLabel(context string) string {
	switch {
	case contextFamily.MatchString(context):
		return common.LabelFamily
	case contextEnemy.MatchString(context):
		return common.LabelEnemy
	case contextAlly.MatchString(context):
		return common.LabelAlly
	case contextEmployment.MatchString(context):
		return common.LabelWorksFor
	}
	return common.LabelAssociatedWith
}

// affiliationLabel picks the organization label from a paragraph.
func affiliationLabel(lowerText string) string {
	switch {
	case strings.Contains(lowerText, "aspirant"):
		return common.LabelAspirantOf
	case strings.Contains(lowerText, "founded"), strings.Contains(lowerText, "created"):
		return common.LabelFounded
	case strings.Contains(lowerText, "serves"), strings.Contains(lowerText, "marshal"):
		return common.LabelServesIn
	}
	return common.LabelMemberOf
}
