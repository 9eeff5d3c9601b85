package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/wikigraph/pkg/common"
	"github.com/OFFIS-RIT/wikigraph/pkg/graph"
	"github.com/OFFIS-RIT/wikigraph/pkg/wiki"
)

// Node is one entry of the node/edge document. Attrs holds every key other
// than id, label and type and is flattened into the node object on the wire.
type Node struct {
	ID    string
	Label string
	Type  string
	Attrs map[string]any
}

func (n Node) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(n.Attrs)+3)
	for k, v := range n.Attrs {
		m[k] = v
	}
	m["id"] = n.ID
	m["label"] = n.Label
	m["type"] = n.Type
	return json.Marshal(m)
}

func (n *Node) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	n.ID = scalarString(m["id"])
	n.Label = scalarString(m["label"])
	n.Type = scalarString(m["type"])
	if n.ID == "" {
		n.ID = n.Label
	}
	if n.Label == "" {
		n.Label = n.ID
	}
	delete(m, "id")
	delete(m, "label")
	delete(m, "type")
	n.Attrs = m
	return nil
}

// Attr returns the attribute as a string, or "" when absent.
func (n Node) Attr(key string) string {
	return scalarString(n.Attrs[key])
}

func (n *Node) SetAttr(key string, value any) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]any)
	}
	n.Attrs[key] = value
}

// Edge is one entry of the node/edge document.
type Edge struct {
	Source       string
	Target       string
	Relationship string
	Attrs        map[string]any
}

func (e Edge) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Attrs)+3)
	for k, v := range e.Attrs {
		m[k] = v
	}
	m["source"] = e.Source
	m["target"] = e.Target
	m["relationship"] = e.Relationship
	return json.Marshal(m)
}

func (e *Edge) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	e.Source = scalarString(m["source"])
	e.Target = scalarString(m["target"])
	e.Relationship = scalarString(m["relationship"])
	if e.Relationship == "" {
		e.Relationship = scalarString(m["label"])
		delete(m, "label")
	}
	delete(m, "source")
	delete(m, "target")
	delete(m, "relationship")
	e.Attrs = m
	return nil
}

// Document is the node/edge interchange format consumed by the visualizer.
type Document struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// EntityRecord and RelationshipRecord form the entity/relationship format.
type EntityRecord struct {
	Name string            `json:"name"`
	Type string            `json:"type"`
	Data map[string]string `json:"data,omitempty"`
}

type RelationshipRecord struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Type   string   `json:"type"`
	Labels []string `json:"labels,omitempty"`
}

type EntityDocument struct {
	Entities      map[string]EntityRecord `json:"entities"`
	Relationships []RelationshipRecord    `json:"relationships"`
}

// FromGraph renders g as a node/edge document with styling hints.
func FromGraph(g *common.Graph) *Document {
	doc := &Document{
		Nodes: make([]Node, 0, len(g.Entities)),
		Edges: make([]Edge, 0, len(g.Edges)),
	}
	for _, e := range g.Entities {
		doc.Nodes = append(doc.Nodes, nodeOf(e))
	}
	for _, e := range g.Edges {
		style := EdgeStyleFor(e.Kind)
		edge := Edge{
			Source:       e.Source,
			Target:       e.Target,
			Relationship: string(e.Kind),
			Attrs: map[string]any{
				"label": style.Label,
				"title": string(e.Kind),
				"color": style.Color,
				"width": style.Width,
			},
		}
		if len(e.Labels) > 0 {
			edge.Attrs["labels"] = strings.Join(e.Labels, ", ")
		}
		doc.Edges = append(doc.Edges, edge)
	}
	return doc
}

func nodeOf(e common.Entity) Node {
	name := e.Name
	if name == "" {
		name = wiki.DisplayTitle(e.ID)
	}
	style := StyleFor(e)
	n := Node{ID: e.ID, Label: name, Type: string(e.Type)}
	for k, v := range e.Attributes {
		n.SetAttr(k, v)
	}
	n.SetAttr("color", style.Color)
	n.SetAttr("size", style.Size)
	n.SetAttr("title", hoverTitle(e, name))
	if e.Confidence > 0 {
		n.SetAttr("confidence", e.Confidence)
	}
	if e.Type == common.EntityTypeMetadata {
		n.SetAttr("shape", shapeBox)
	}
	if img := e.Attr(common.AttrImageURL); img != "" {
		n.SetAttr("shape", shapeImage)
		n.SetAttr("image", img)
		n.SetAttr("size", imageSize(e.Type))
	}
	return n
}

func hoverTitle(e common.Entity, name string) string {
	parts := []string{"<b>" + name + "</b>", "Type: " + e.Type.Label()}
	for _, key := range []string{common.AttrRace, common.AttrClass, common.AttrActor} {
		if v := e.Attr(key); v != "" {
			parts = append(parts, key+": "+v)
		}
	}
	if v := e.Attr(common.AttrMatchConfidence); v != "" {
		parts = append(parts, "Match Confidence: "+v)
	}
	if e.Attr(common.AttrURL) != "" {
		parts = append(parts, "<i>Click to open wiki page</i>")
	}
	return strings.Join(parts, "<br>")
}

// EntitiesFromGraph renders g as an entity/relationship document.
func EntitiesFromGraph(g *common.Graph) *EntityDocument {
	doc := &EntityDocument{
		Entities:      make(map[string]EntityRecord, len(g.Entities)),
		Relationships: make([]RelationshipRecord, 0, len(g.Edges)),
	}
	for _, e := range g.Entities {
		doc.Entities[e.ID] = EntityRecord{Name: e.Name, Type: e.Type.Label(), Data: e.Attributes}
	}
	for _, e := range g.Edges {
		doc.Relationships = append(doc.Relationships, RelationshipRecord{
			Source: e.Source,
			Target: e.Target,
			Type:   string(e.Kind),
			Labels: e.Labels,
		})
	}
	return doc
}

// Document converts the entity/relationship form into the node/edge form.
// Entities are ordered by id.
func (d *EntityDocument) Document() *Document {
	ids := make([]string, 0, len(d.Entities))
	for id := range d.Entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	doc := &Document{}
	for _, id := range ids {
		rec := d.Entities[id]
		label := rec.Name
		if label == "" {
			label = wiki.DisplayTitle(id)
		}
		n := Node{ID: id, Label: label, Type: string(common.ParseEntityType(rec.Type))}
		for k, v := range rec.Data {
			n.SetAttr(k, v)
		}
		doc.Nodes = append(doc.Nodes, n)
	}
	for _, r := range d.Relationships {
		doc.Edges = append(doc.Edges, Edge{Source: r.Source, Target: r.Target, Relationship: r.Type})
	}
	return doc
}

// Graph converts the document back into the data model. Node attributes are
// kept as strings; style keys are dropped.
func (d *Document) Graph(id string) *common.Graph {
	g := &common.Graph{ID: id}
	for _, n := range d.Nodes {
		e := common.Entity{ID: n.ID, Name: n.Label, Type: common.ParseEntityType(n.Type)}
		for k, v := range n.Attrs {
			if _, ok := styleKeys[k]; ok {
				continue
			}
			if k == "confidence" {
				e.Confidence, _ = strconv.ParseFloat(scalarString(v), 64)
				continue
			}
			e.SetAttr(k, scalarString(v))
		}
		g.Entities = append(g.Entities, e)
	}
	for _, e := range d.Edges {
		kind := KindOf(e.Relationship)
		g.Edges = append(g.Edges, common.Edge{
			Source: e.Source,
			Target: e.Target,
			Kind:   kind,
			Labels: []string{e.Relationship},
		})
	}
	common.SortGraph(g)
	return g
}

var styleKeys = map[string]struct{}{
	"color": {}, "size": {}, "shape": {}, "title": {}, "image": {}, "borderWidth": {}, "borderWidthSelected": {},
}

// KindOf maps a document relationship onto a kind. Kind names match
// case-insensitively, anything else goes through the raw label map.
func KindOf(relationship string) common.RelationshipKind {
	for kind := range RelationshipStyles {
		if strings.EqualFold(string(kind), relationship) {
			return kind
		}
	}
	label := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(relationship), " ", "_"))
	return graph.KindOf(label)
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, scalarString(p))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}
