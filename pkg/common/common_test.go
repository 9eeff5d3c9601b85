package common

import "testing"

func TestParseEntityType(t *testing.T) {
	tests := []struct {
		input string
		want  EntityType
	}{
		{input: "Player Character", want: EntityTypePlayerCharacter},
		{input: "organization", want: EntityTypeFaction},
		{input: "NPC", want: EntityTypeNPC},
		{input: " Cast Member ", want: EntityTypeCastMember},
		{input: "historical_event", want: EntityTypeHistoricalEvent},
		{input: "spaceship", want: EntityTypeUnknown},
		{input: "", want: EntityTypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseEntityType(tt.input); got != tt.want {
				t.Fatalf("unexpected type: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEntityTypeLabel(t *testing.T) {
	if got := EntityTypeFaction.Label(); got != "Organization" {
		t.Fatalf("expected Organization, got %q", got)
	}
	if got := EntityTypeLocation.Label(); got != "Location" {
		t.Fatalf("expected Location, got %q", got)
	}
}

func TestEntityAttributes(t *testing.T) {
	var e Entity
	e.SetAttr(AttrRace, "")
	if e.Attributes != nil {
		t.Fatalf("empty value must not allocate attributes")
	}
	e.SetAttr(AttrRace, "Pixie")
	if got := e.Attr(AttrRace); got != "Pixie" {
		t.Fatalf("expected Pixie, got %q", got)
	}
}

func TestSortGraph(t *testing.T) {
	g := Graph{
		Entities: []Entity{{ID: "b"}, {ID: "a"}},
		Edges:    []Edge{{Source: "b", Target: "a"}, {Source: "a", Target: "c"}, {Source: "a", Target: "b"}},
	}
	SortGraph(&g)
	if g.Entities[0].ID != "a" {
		t.Fatalf("entities not sorted: %v", g.Entities)
	}
	if g.Edges[0].Target != "b" || g.Edges[1].Target != "c" || g.Edges[2].Source != "b" {
		t.Fatalf("edges not sorted: %v", g.Edges)
	}
}
