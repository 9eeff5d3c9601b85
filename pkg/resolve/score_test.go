package resolve

import (
	"reflect"
	"testing"

	"github.com/OFFIS-RIT/wikigraph/pkg/wiki"
)

func TestQueryVariants(t *testing.T) {
	tests := []struct {
		identity string
		want     []string
	}{
		{"Sir_Julien_Davinos", []string{"Sir Julien Davinos", "Julien Davinos"}},
		{"Torn Banner (Artifact)", []string{"Torn Banner (Artifact)", "Torn Banner"}},
		{"Lady Vex (Campaign 2)", []string{"Lady Vex (Campaign 2)", "Lady Vex", "Vex"}},
		{"Thimble", []string{"Thimble"}},
		{"Sir", []string{"Sir"}},
		{"", nil},
	}
	for _, tt := range tests {
		if got := QueryVariants(tt.identity, DefaultHonorifics); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("unexpected variants for %q: got %v, want %v", tt.identity, got, tt.want)
		}
	}
}

func TestScoreCandidate(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		result wiki.SearchResult
		want   float64
	}{
		{"exact large", "Julien Davinos", wiki.SearchResult{Title: "Julien Davinos", Size: 5000}, 110},
		{"exact tiny", "Julien Davinos", wiki.SearchResult{Title: "julien davinos", Size: 50}, 80},
		{"full coverage", "Shadia", wiki.SearchResult{Title: "Shadia Fang", Size: 500}, 70},
		{"partial coverage", "Shadia Fang", wiki.SearchResult{Title: "Shadia", Size: 3000}, 35},
		{"episode penalty", "Thjazi Fang", wiki.SearchResult{Title: "The Fall of Thjazi Fang", Size: 5000}, 30},
		{"no overlap", "Ghost", wiki.SearchResult{Title: "Missing Page", Size: 5000}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreCandidate(tt.query, tt.result)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("unexpected score: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchContext(t *testing.T) {
	withInfobox := func(infobox, text string, categories ...string) *wiki.Page {
		p := &wiki.Page{Text: infobox + " " + text, Categories: categories}
		if infobox != "" {
			p.Infobox = &wiki.Infobox{Text: infobox}
		}
		return p
	}

	tests := []struct {
		name   string
		page   *wiki.Page
		target int
		want   float64
		vetoed bool
		absent bool
	}{
		{"no target", withInfobox("First seen (3x05)", ""), 0, 0.6, false, false},
		{"nothing mentioned", withInfobox("", "A quiet village."), 4, 0.6, false, true},
		{"infobox only target", withInfobox("First seen (4x01)", ""), 4, 1.0, false, false},
		{"infobox with others", withInfobox("Appears in Campaign 3 and C4", ""), 4, 0.9, false, false},
		{"infobox other campaign", withInfobox("First seen (3x05)", "Mentioned in (4x02)."), 4, 0.1, true, false},
		{"body only target", withInfobox("", "Met the party in (4x03)."), 4, 0.85, false, false},
		{"body among others", withInfobox("", "Seen in (4x03) and (2x10)."), 4, 0.7, false, false},
		{"body other campaign", withInfobox("", "Seen in (2x10)."), 4, 0.15, false, false},
		{"category", withInfobox("", "", "Campaign 4 characters"), 4, 0.85, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchContext(tt.page, tt.target)
			if got.Confidence != tt.want || got.Vetoed != tt.vetoed || got.Absent != tt.absent {
				t.Fatalf("unexpected match: got %+v, want %v vetoed=%v absent=%v", got, tt.want, tt.vetoed, tt.absent)
			}
		})
	}
}
