package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/wikigraph/pkg/common"
)

const nodeDocument = `{
  "nodes": [
    {"id": "Thimble", "label": "Thimble", "type": "player_character", "race": "Pixie"},
    {"id": "Aramán", "label": "Aramán [City]", "type": "location"},
    {"id": "Creed", "label": "Creed of the Sisters", "type": "faction"}
  ],
  "edges": [
    {"source": "Thimble", "target": "Aramán", "relationship": "lives_in"},
    {"source": "Thimble", "target": "Creed", "relationship": "Member Of", "weight": 2}
  ]
}`

func TestGMLRoundTrip(t *testing.T) {
	doc, err := Decode([]byte(nodeDocument))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteGML(&buf, doc, GMLOptions{Comment: "Campaign 4 Episode 1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.ContainsAny(buf.String(), "á;|") {
		t.Fatalf("gml output not sanitized:\n%s", buf.String())
	}

	parsed, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, buf.String())
	}

	type labelType struct{ label, typ string }
	var nodes []labelType
	for _, n := range parsed.Nodes {
		nodes = append(nodes, labelType{n.Label, n.Type})
	}
	wantNodes := []labelType{
		{"Thimble", "player_character"},
		{"Araman (City)", "location"},
		{"Creed of the Sisters", "faction"},
	}
	if !reflect.DeepEqual(nodes, wantNodes) {
		t.Fatalf("unexpected nodes: got %v, want %v", nodes, wantNodes)
	}

	type triple struct{ source, target, label string }
	var edges []triple
	for _, e := range parsed.Edges {
		edges = append(edges, triple{e.Source, e.Target, e.Relationship})
	}
	wantEdges := []triple{
		{"Thimble", "Araman", "lives_in"},
		{"Thimble", "Creed", "Member Of"},
	}
	if !reflect.DeepEqual(edges, wantEdges) {
		t.Fatalf("unexpected edges: got %v, want %v", edges, wantEdges)
	}
	if got := parsed.Edges[1].Attrs["weight"]; got != 2.0 {
		t.Fatalf("unexpected weight: got %v, want 2", got)
	}
	if got := parsed.Nodes[0].Attr("race"); got != "Pixie" {
		t.Fatalf("unexpected race: got %q, want Pixie", got)
	}
}

func TestDecodeEntityDocument(t *testing.T) {
	input := `{
	  "entities": {
	    "Thimble": {"name": "Thimble", "type": "Player Character", "data": {"Race": "Pixie"}},
	    "Azune_Nayar": {"name": "Azune Nayar", "type": "NPC"}
	  },
	  "relationships": [
	    {"source": "Thimble", "target": "Azune_Nayar", "type": "Ally"},
	    {"source": "Thimble", "target": "Ghost", "type": "Enemy"}
	  ]
	}`
	doc, err := Decode([]byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Nodes) != 2 || doc.Nodes[1].Type != string(common.EntityTypePlayerCharacter) {
		t.Fatalf("unexpected nodes: got %+v", doc.Nodes)
	}
	if len(doc.Edges) != 1 {
		t.Fatalf("dangling edge kept: got %+v", doc.Edges)
	}

	g := doc.Graph("g")
	if g.Edges[0].Kind != common.KindAlly {
		t.Fatalf("unexpected kind: got %s, want %s", g.Edges[0].Kind, common.KindAlly)
	}
}

func TestDecodeMalformed(t *testing.T) {
	inputs := []string{
		"",
		`{"vertices": []}`,
		`{"nodes": [}`,
		`graph [ node [ id 1 label "unterminated ]`,
		`<html></html>`,
	}
	for _, in := range inputs {
		if _, err := Decode([]byte(in)); !errors.Is(err, ErrMalformedInput) {
			t.Fatalf("expected ErrMalformedInput for %q, got %v", in, err)
		}
	}
}

func TestFromGraphStyles(t *testing.T) {
	g := &common.Graph{
		ID: "g",
		Entities: []common.Entity{
			{ID: "Thimble", Name: "Thimble", Type: common.EntityTypeMainCharacter, Attributes: map[string]string{
				common.AttrImageURL: "https://static.example.org/Thimble.png",
			}},
			{ID: "race_Pixie", Name: "Pixie", Type: common.EntityTypeMetadata, Attributes: map[string]string{"category": "race"}},
			{ID: "Hallis", Name: "Hallis", Type: common.EntityTypeLocation},
		},
		Edges: []common.Edge{
			{Source: "Thimble", Target: "race_Pixie", Kind: common.KindRace},
			{Source: "Thimble", Target: "Hallis", Kind: common.KindAssociatedWith, Labels: []string{"associated_with"}},
		},
	}
	doc := FromGraph(g)

	thimble := doc.Nodes[0]
	if thimble.Attrs["shape"] != shapeImage || thimble.Attrs["size"] != 80 || thimble.Attrs["color"] != "#FF0000" {
		t.Fatalf("unexpected main character style: got %v", thimble.Attrs)
	}
	race := doc.Nodes[1]
	if race.Attrs["shape"] != shapeBox || race.Attrs["color"] != "#00CED1" {
		t.Fatalf("unexpected race style: got %v", race.Attrs)
	}
	if doc.Nodes[2].Attrs["size"] != 20 {
		t.Fatalf("unexpected location size: got %v", doc.Nodes[2].Attrs["size"])
	}
	if doc.Edges[1].Attrs["label"] != "" || doc.Edges[1].Attrs["color"] != "#999999" {
		t.Fatalf("unexpected associated style: got %v", doc.Edges[1].Attrs)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, g, FormatNodes); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var raw map[string][]map[string]any
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw["nodes"][0]["id"] != "Thimble" || raw["edges"][0]["relationship"] != "Race" {
		t.Fatalf("unexpected json: %s", buf.String())
	}
}

func TestSanitizeASCII(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Aramán", "Araman"},
		{"Jo \"Fang\" | Kin; [x]", "Jo 'Fang' / Kin, (x)"},
		{"line\nbreak", "line break"},
		{"Ōkami—Shrine", "Okami-Shrine"},
		{"雪", "?"},
	}
	for _, tt := range tests {
		if got := SanitizeASCII(tt.in); got != tt.want {
			t.Fatalf("unexpected sanitize of %q: got %q, want %q", tt.in, got, tt.want)
		}
	}
}
