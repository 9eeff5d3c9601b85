package graph

import (
	"reflect"
	"testing"

	"github.com/OFFIS-RIT/wikigraph/pkg/common"
)

var kindLabel = map[common.RelationshipKind]string{
	common.KindEnemy:           common.LabelEnemy,
	common.KindFamily:          common.LabelFamily,
	common.KindRomanticPartner: common.LabelRomanticPartner,
	common.KindAlly:            common.LabelAlly,
	common.KindComplicated:     common.LabelComplicated,
	common.KindMemberOf:        common.LabelMemberOf,
	common.KindAssociatedWith:  common.LabelAssociatedWith,
}

func TestStrongestPairwisePrecedence(t *testing.T) {
	for i, stronger := range Precedence {
		for _, weaker := range Precedence[i+1:] {
			labels := []string{kindLabel[weaker], kindLabel[stronger]}
			if got := Strongest(labels); got != stronger {
				t.Fatalf("unexpected kind for %v: got %s, want %s", labels, got, stronger)
			}
		}
	}
}

func TestStrongest(t *testing.T) {
	tests := []struct {
		labels []string
		want   common.RelationshipKind
	}{
		{[]string{"close_friend", "served_together"}, common.KindAlly},
		{[]string{"works_for"}, common.KindMemberOf},
		{[]string{"aspirant_of", "associated_with"}, common.KindMemberOf},
		{[]string{"rival", "family"}, common.KindEnemy},
		{[]string{"something_else"}, common.KindAssociatedWith},
		{nil, common.KindAssociatedWith},
		{[]string{"race"}, common.KindRace},
		{[]string{"class", "ally"}, common.KindAlly},
	}
	for _, tt := range tests {
		if got := Strongest(tt.labels); got != tt.want {
			t.Fatalf("unexpected kind for %v: got %s, want %s", tt.labels, got, tt.want)
		}
	}
}

func newTestAccumulator(ids ...string) *Accumulator {
	acc := NewAccumulator()
	for _, id := range ids {
		acc.AddEntity(common.Entity{ID: id, Name: id, Type: common.EntityTypeNPC})
	}
	return acc
}

func TestIngestConsolidatesPairs(t *testing.T) {
	acc := newTestAccumulator("Thimble", "Azune_Nayar", "Tyranny")
	raw := map[string][]common.RawRelationship{
		"Thimble": {
			{Source: "Thimble", Target: "Azune_Nayar", Labels: []string{"close_friend", "ally"}, Evidence: "friends", Pass: common.PassStructured},
			{Source: "Thimble", Target: "Azune Nayar", Labels: []string{"enemy"}, Evidence: "fought once", Pass: common.PassBiography},
			{Source: "Thimble", Target: "Azune_Nayar#Past", Labels: []string{"ally"}, Evidence: "friends", Pass: common.PassBiography},
			{Source: "Thimble", Target: "Tyranny", Labels: []string{"family"}, Pass: common.PassBiography},
		},
		"Azune_Nayar": {
			{Source: "Azune_Nayar", Target: "Thimble", Labels: []string{"ally"}, Pass: common.PassStructured},
		},
	}

	first := acc.Ingest(raw, nil)
	if len(first.Edges) != 3 {
		t.Fatalf("unexpected edge count: got %d, want 3", len(first.Edges))
	}
	if len(first.Dropped) != 0 {
		t.Fatalf("unexpected drops: got %v, want none", first.Dropped)
	}

	edge := first.Edges[1]
	if edge.Source != "Thimble" || edge.Target != "Azune_Nayar" {
		t.Fatalf("unexpected edge order: got %s -> %s, want Thimble -> Azune_Nayar", edge.Source, edge.Target)
	}
	if edge.Kind != common.KindEnemy {
		t.Fatalf("unexpected kind: got %s, want %s", edge.Kind, common.KindEnemy)
	}
	if want := []string{"ally", "close_friend", "enemy"}; !reflect.DeepEqual(edge.Labels, want) {
		t.Fatalf("unexpected labels: got %v, want %v", edge.Labels, want)
	}
	if want := []string{"friends", "fought once"}; !reflect.DeepEqual(edge.Evidence, want) {
		t.Fatalf("unexpected evidence: got %v, want %v", edge.Evidence, want)
	}
	if first.Edges[0].Source != "Azune_Nayar" || first.Edges[0].Kind != common.KindAlly {
		t.Fatalf("unexpected reverse edge: got %+v", first.Edges[0])
	}

	second := acc.Ingest(raw, nil)
	if !reflect.DeepEqual(first.Edges, second.Edges) {
		t.Fatalf("re-ingest changed edges: got %v, want %v", second.Edges, first.Edges)
	}
}

func TestIngestDropsDanglingEdges(t *testing.T) {
	acc := newTestAccumulator("Thimble", "Julien_Davinos")
	raw := map[string][]common.RawRelationship{
		"Thimble": {
			{Source: "Thimble", Target: "Ghost", Labels: []string{"ally"}},
			{Source: "Thimble", Target: "Sir_Julien", Labels: []string{"enemy"}},
			{Source: "Thimble", Target: "Nowhere", Labels: []string{"ally"}},
			{Source: "Thimble", Target: "Thimble", Labels: []string{"family"}},
		},
		"Stranger": {
			{Source: "Stranger", Target: "Thimble", Labels: []string{"ally"}},
		},
	}
	resolver := func(identity string, _ common.EntityType) (string, bool) {
		switch identity {
		case "Sir_Julien":
			return "Julien_Davinos", true
		case "Nowhere":
			return "Nowhere_Land", true
		}
		return "", false
	}

	set := acc.Ingest(raw, resolver)
	if len(set.Edges) != 1 {
		t.Fatalf("unexpected edge count: got %d, want 1", len(set.Edges))
	}
	if got := set.Edges[0]; got.Target != "Julien_Davinos" || got.Kind != common.KindEnemy {
		t.Fatalf("unexpected edge: got %+v", got)
	}

	reasons := make(map[string]string)
	for _, d := range set.Dropped {
		reasons[d.Target] = d.Reason
	}
	want := map[string]string{
		"Thimble": DropSelfLoop,
		"Ghost":   DropUnresolved,
		"Nowhere": DropNotStored,
	}
	for target, reason := range want {
		if reasons[target] != reason {
			t.Fatalf("unexpected drop reason for %s: got %q, want %q", target, reasons[target], reason)
		}
	}
	if len(set.Dropped) != 4 {
		t.Fatalf("unexpected drop count: got %d, want 4", len(set.Dropped))
	}

	if !acc.HasEntity("Thimble") {
		t.Fatalf("source entity removed")
	}
	for _, e := range acc.Graph("g").Edges {
		if !acc.HasEntity(e.Source) || !acc.HasEntity(e.Target) {
			t.Fatalf("edge with missing endpoint: %+v", e)
		}
	}
}

func TestExpectedTargetType(t *testing.T) {
	tests := []struct {
		pass   common.ExtractionPass
		labels []string
		want   common.EntityType
	}{
		{common.PassAffiliation, []string{common.LabelLeads}, common.EntityTypeFaction},
		{common.PassStructured, []string{common.LabelAlly, common.LabelMemberOf}, common.EntityTypeFaction},
		{common.PassBiography, []string{common.LabelWorksFor}, common.EntityTypeFaction},
		{common.PassStructured, []string{common.LabelCloseFriend}, common.EntityTypeCharacter},
		{common.PassBiography, []string{common.LabelEnemy}, common.EntityTypeCharacter},
		{common.PassStructured, []string{common.LabelAssociatedWith}, common.EntityTypeUnknown},
		{common.PassMetadata, []string{common.LabelAlly}, common.EntityTypeUnknown},
	}
	for _, tt := range tests {
		r := common.RawRelationship{Source: "Thimble", Target: "X", Labels: tt.labels, Pass: tt.pass}
		if got := ExpectedTargetType(r); got != tt.want {
			t.Fatalf("unexpected type for %s %v: got %s, want %s", tt.pass, tt.labels, got, tt.want)
		}
	}
}

func TestIngestPassesExpectedType(t *testing.T) {
	acc := newTestAccumulator("Thimble", "Halandil_Fang", "Fang_Council")
	raw := map[string][]common.RawRelationship{
		"Thimble": {
			{Source: "Thimble", Target: "Hal", Labels: []string{"ally"}, Pass: common.PassStructured},
			{Source: "Thimble", Target: "The_Fangs", Labels: []string{"member_of"}, Pass: common.PassAffiliation},
		},
	}
	got := make(map[string]common.EntityType)
	resolver := func(identity string, expected common.EntityType) (string, bool) {
		got[identity] = expected
		if expected == common.EntityTypeFaction {
			return "Fang_Council", true
		}
		return "Halandil_Fang", true
	}

	set := acc.Ingest(raw, resolver)
	want := map[string]common.EntityType{
		"Hal":       common.EntityTypeCharacter,
		"The_Fangs": common.EntityTypeFaction,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected expected types: got %v, want %v", got, want)
	}
	if len(set.Edges) != 2 {
		t.Fatalf("unexpected edge count: got %d, want 2", len(set.Edges))
	}
}

func TestAddEntityKeepsFirstType(t *testing.T) {
	acc := NewAccumulator()
	if !acc.AddEntity(common.Entity{ID: "Thimble", Type: common.EntityTypeMainCharacter}) {
		t.Fatalf("expected first add to succeed")
	}
	if acc.AddEntity(common.Entity{ID: "Thimble", Type: common.EntityTypeNPC}) {
		t.Fatalf("expected second add to be rejected")
	}
	acc.MergeAttributes("Thimble", map[string]string{common.AttrURL: "https://example.org/wiki/Thimble"})

	e, _ := acc.Entity("Thimble")
	if e.Type != common.EntityTypeMainCharacter {
		t.Fatalf("unexpected type: got %s, want %s", e.Type, common.EntityTypeMainCharacter)
	}
	if e.Attr(common.AttrURL) == "" {
		t.Fatalf("expected merged url attribute")
	}
}

func TestTargetsDiscoveryOrder(t *testing.T) {
	acc := NewAccumulator()
	acc.Buffer("B", []common.RawRelationship{{Target: "Zed"}, {Target: "Amy#Early_life"}})
	acc.Buffer("A", []common.RawRelationship{{Target: "Amy"}, {Target: "Cole"}})

	want := []string{"Zed", "Amy", "Cole"}
	if got := acc.Targets(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected targets: got %v, want %v", got, want)
	}
}
