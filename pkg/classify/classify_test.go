package classify

import (
	"context"
	"testing"

	"github.com/OFFIS-RIT/wikigraph/pkg/ai"
	"github.com/OFFIS-RIT/wikigraph/pkg/common"
	"github.com/OFFIS-RIT/wikigraph/pkg/wiki"
)

type typeOracle struct {
	ai.NeutralOracle
	judgment ai.TypeJudgment
	calls    int
}

func (o *typeOracle) ClassifyType(context.Context, ai.TypeRequest) ai.TypeJudgment {
	o.calls++
	return o.judgment
}

func infobox(fields ...string) *wiki.Infobox {
	box := &wiki.Infobox{}
	for i := 0; i+1 < len(fields); i += 2 {
		box.Fields = append(box.Fields, wiki.InfoboxField{Label: fields[i], Value: fields[i+1]})
		box.Text += fields[i] + " " + fields[i+1] + " "
	}
	return box
}

func TestIsEpisodeTitle(t *testing.T) {
	tests := []struct {
		title string
		want  bool
	}{
		{"The_Fall_of_Thjazi_Fang", true},
		{"A Night of Stars", true},
		{"Episode 4x01", true},
		{"4x01", true},
		{"(3x12)", true},
		{"Thimble", false},
		{"Sisters_of_Sylandri", false},
		{"Julien Davinos", false},
	}
	for _, tt := range tests {
		if got := IsEpisodeTitle(tt.title); got != tt.want {
			t.Fatalf("unexpected result for %q: got %v, want %v", tt.title, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	classifier := NewClassifier(NewClassifierParams{Seeds: []string{"Thimble", "The_Night_of_Stars"}})

	tests := []struct {
		name       string
		title      string
		page       *wiki.Page
		wantType   common.EntityType
		wantConf   float64
		wantSource string
	}{
		{
			name:       "seed",
			title:      "Thimble",
			page:       &wiki.Page{Categories: []string{"Locations"}},
			wantType:   common.EntityTypeMainCharacter,
			wantConf:   1.0,
			wantSource: SourceSeed,
		},
		{
			name:       "seed wins over episode pattern",
			title:      "The Night of Stars",
			page:       &wiki.Page{},
			wantType:   common.EntityTypeMainCharacter,
			wantConf:   1.0,
			wantSource: SourceSeed,
		},
		{
			name:  "episode short-circuit ignores categories and infobox",
			title: "The_Fall_of_Thjazi_Fang",
			page: &wiki.Page{
				Categories: []string{"Characters", "Non-player characters"},
				Infobox:    infobox("Race", "Human", "Class", "Fighter"),
			},
			wantType:   common.EntityTypeEpisode,
			wantConf:   1.0,
			wantSource: SourceEpisode,
		},
		{
			name:       "non-player characters",
			title:      "Shadia",
			page:       &wiki.Page{Categories: []string{"Non-player characters", "Campaign 4 characters"}},
			wantType:   common.EntityTypeNPC,
			wantConf:   0.4,
			wantSource: SourceCategory,
		},
		{
			name:       "player characters",
			title:      "Vaelus",
			page:       &wiki.Page{Categories: []string{"Player Characters", "PCs"}},
			wantType:   common.EntityTypePlayerCharacter,
			wantConf:   0.8,
			wantSource: SourceCategory,
		},
		{
			name:       "locations",
			title:      "Dol-Makjar",
			page:       &wiki.Page{Categories: []string{"Locations", "Cities"}},
			wantType:   common.EntityTypeLocation,
			wantConf:   0.8,
			wantSource: SourceCategory,
		},
		{
			name:       "infobox type field",
			title:      "Hallis",
			page:       &wiki.Page{Infobox: infobox("Type", "City")},
			wantType:   common.EntityTypeLocation,
			wantConf:   0.6,
			wantSource: SourceInfobox,
		},
		{
			name:       "organization title word",
			title:      "House_Davinos",
			page:       &wiki.Page{},
			wantType:   common.EntityTypeFaction,
			wantConf:   0.6,
			wantSource: SourceTitle,
		},
		{
			name:       "infobox keys",
			title:      "Aranel",
			page:       &wiki.Page{Infobox: infobox("Pronouns", "she/her")},
			wantType:   common.EntityTypeNPC,
			wantConf:   0.6,
			wantSource: SourceInfobox,
		},
		{
			name:       "nothing known",
			title:      "Somewhere",
			page:       &wiki.Page{},
			wantType:   common.EntityTypeUnknown,
			wantConf:   0,
			wantSource: SourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifier.Classify(context.Background(), tt.page, tt.title)
			if got.Type != tt.wantType || got.Source != tt.wantSource {
				t.Fatalf("unexpected classification: got %+v, want %s from %s", got, tt.wantType, tt.wantSource)
			}
			if diff := got.Confidence - tt.wantConf; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("unexpected confidence: got %v, want %v", got.Confidence, tt.wantConf)
			}
		})
	}
}

func TestClassifyOracle(t *testing.T) {
	oracle := &typeOracle{judgment: ai.TypeJudgment{Type: "location", Confidence: 0.7}}
	classifier := NewClassifier(NewClassifierParams{Oracle: oracle})

	got := classifier.Classify(context.Background(), &wiki.Page{}, "Somewhere")
	if got.Type != common.EntityTypeLocation || got.Source != SourceOracle || got.Confidence != 0.7 {
		t.Fatalf("unexpected classification: %+v", got)
	}

	oracle.judgment = ai.TypeJudgment{Type: "gibberish", Confidence: 0.9}
	got = classifier.Classify(context.Background(), &wiki.Page{}, "Elsewhere")
	if got.Type != common.EntityTypeUnknown || got.Confidence != 0 {
		t.Fatalf("unparseable oracle type should be unknown: %+v", got)
	}

	// Heuristics answer first.
	calls := oracle.calls
	classifier.Classify(context.Background(), &wiki.Page{Categories: []string{"Locations"}}, "Jrusar")
	if oracle.calls != calls {
		t.Fatalf("oracle consulted although categories matched")
	}
}

func TestDetectPageType(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		page     *wiki.Page
		wantType common.EntityType
		wantConf float64
	}{
		{"episode title", "4x01", &wiki.Page{Categories: []string{"Characters"}}, common.EntityTypeEpisode, 1.0},
		{"character categories", "Shadia", &wiki.Page{Categories: []string{"Non-player characters", "Characters"}}, common.EntityTypeCharacter, 1.0},
		{"episode categories", "Broken Wing", &wiki.Page{Categories: []string{"Episodes"}}, common.EntityTypeEpisode, 0.4},
		{"infobox fallback", "Shadia", &wiki.Page{Infobox: infobox("Race", "Human")}, common.EntityTypeCharacter, 0.6},
		{"unknown", "Shadia", &wiki.Page{}, common.EntityTypeUnknown, 0},
		{"nil page", "Shadia", nil, common.EntityTypeUnknown, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotConf := DetectPageType(tt.page, tt.title)
			if gotType != tt.wantType {
				t.Fatalf("unexpected type: got %s, want %s", gotType, tt.wantType)
			}
			if diff := gotConf - tt.wantConf; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("unexpected confidence: got %v, want %v", gotConf, tt.wantConf)
			}
		})
	}
}
