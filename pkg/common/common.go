package common

import (
	"sort"
	"strings"
)

// EntityType is the fixed classification of a canonical entity.
// It is assigned once when the entity is created and never changes.
type EntityType string

const (
	EntityTypeMainCharacter   EntityType = "main_character"
	EntityTypePlayerCharacter EntityType = "player_character"
	EntityTypeNPC             EntityType = "npc"
	EntityTypeCharacter       EntityType = "character"
	EntityTypeLocation        EntityType = "location"
	EntityTypeFaction         EntityType = "faction"
	EntityTypeCastMember      EntityType = "cast_member"
	EntityTypeEpisode         EntityType = "episode"
	EntityTypeEvent           EntityType = "event"
	EntityTypeHistoricalEvent EntityType = "historical_event"
	EntityTypeObject          EntityType = "object"
	EntityTypeArtifact        EntityType = "artifact"
	EntityTypeMystery         EntityType = "mystery"
	// EntityTypeMetadata marks race and class nodes hung off main characters.
	EntityTypeMetadata EntityType = "metadata"
	EntityTypeUnknown  EntityType = "unknown"
)

var entityTypeAliases = map[string]EntityType{
	"main_character":       EntityTypeMainCharacter,
	"player_character":     EntityTypePlayerCharacter,
	"pc":                   EntityTypePlayerCharacter,
	"npc":                  EntityTypeNPC,
	"non-player_character": EntityTypeNPC,
	"character":            EntityTypeCharacter,
	"location":             EntityTypeLocation,
	"faction":              EntityTypeFaction,
	"organization":         EntityTypeFaction,
	"cast_member":          EntityTypeCastMember,
	"episode":              EntityTypeEpisode,
	"event":                EntityTypeEvent,
	"historical_event":     EntityTypeHistoricalEvent,
	"object":               EntityTypeObject,
	"item":                 EntityTypeObject,
	"artifact":             EntityTypeArtifact,
	"mystery":              EntityTypeMystery,
	"metadata":             EntityTypeMetadata,
	"unknown":              EntityTypeUnknown,
}

// ParseEntityType maps free-form type names ("Player Character",
// "organization", "NPC") onto the fixed set. Unrecognized values are unknown.
func ParseEntityType(value string) EntityType {
	key := strings.ToLower(strings.TrimSpace(value))
	key = strings.ReplaceAll(key, " ", "_")
	if t, ok := entityTypeAliases[key]; ok {
		return t
	}
	return EntityTypeUnknown
}

// IsCharacter reports whether the type denotes a person of any kind.
func (t EntityType) IsCharacter() bool {
	switch t {
	case EntityTypeMainCharacter, EntityTypePlayerCharacter, EntityTypeNPC, EntityTypeCharacter:
		return true
	}
	return false
}

// Label is the human readable name used in legends and summaries.
func (t EntityType) Label() string {
	switch t {
	case EntityTypeMainCharacter:
		return "Main Character"
	case EntityTypePlayerCharacter:
		return "Player Character"
	case EntityTypeNPC:
		return "NPC"
	case EntityTypeFaction:
		return "Organization"
	case EntityTypeCastMember:
		return "Cast Member"
	case EntityTypeHistoricalEvent:
		return "Historical Event"
	case "":
		return "Unknown"
	}
	s := string(t)
	return strings.ToUpper(s[:1]) + s[1:]
}

// Well known attribute keys. The attribute bag is open; these are the keys
// the pipeline itself reads or writes.
const (
	AttrImageURL        = "image_url"
	AttrURL             = "url"
	AttrRace            = "Race"
	AttrClass           = "Class"
	AttrActor           = "Actor"
	AttrMatchConfidence = "match_confidence"
	AttrLevel           = "level"
)

// Entity is the canonical, deduplicated node of the graph.
type Entity struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Type       EntityType        `json:"type"`
	Confidence float64           `json:"confidence"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Attr returns the attribute value for key or an empty string.
func (e *Entity) Attr(key string) string {
	if e.Attributes == nil {
		return ""
	}
	return e.Attributes[key]
}

// SetAttr adds or replaces an attribute. Empty values are ignored.
func (e *Entity) SetAttr(key, value string) {
	if value == "" {
		return
	}
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
}

// Raw relationship labels produced by the extractor.
const (
	LabelFamily          = "family"
	LabelRomanticPartner = "romantic_partner"
	LabelCloseFriend     = "close_friend"
	LabelAlly            = "ally"
	LabelServedTogether  = "served_together"
	LabelMentorStudent   = "mentor_student"
	LabelEnemy           = "enemy"
	LabelRival           = "rival"
	LabelComplicated     = "complicated"
	LabelMemberOf        = "member_of"
	LabelLeads           = "leads"
	LabelAspirantOf      = "aspirant_of"
	LabelServesIn        = "serves_in"
	LabelFounded         = "founded"
	LabelWorksFor        = "works_for"
	LabelAssociatedWith  = "associated_with"

	// Metadata labels link characters to race, class and actor nodes.
	LabelRace  = "race"
	LabelClass = "class"
	LabelPlays = "plays"
)

// RelationshipTaxonomy is the closed set of labels a relationship text may be
// classified into. Anything else collapses to associated_with.
var RelationshipTaxonomy = []string{
	LabelFamily,
	LabelRomanticPartner,
	LabelCloseFriend,
	LabelAlly,
	LabelServedTogether,
	LabelMentorStudent,
	LabelEnemy,
	LabelRival,
	LabelComplicated,
	LabelMemberOf,
	LabelLeads,
}

// RelationshipKind is the single displayed category of a consolidated edge.
type RelationshipKind string

const (
	KindEnemy           RelationshipKind = "Enemy"
	KindFamily          RelationshipKind = "Family"
	KindRomanticPartner RelationshipKind = "Romantic Partner"
	KindAlly            RelationshipKind = "Ally"
	KindComplicated     RelationshipKind = "Complicated"
	KindMemberOf        RelationshipKind = "Member Of"
	KindAssociatedWith  RelationshipKind = "Associated With"

	// Metadata kinds connect characters to their race, class and actor nodes.
	// They never compete with the social kinds above.
	KindRace  RelationshipKind = "Race"
	KindClass RelationshipKind = "Class"
	KindPlays RelationshipKind = "Plays"
)

// IsMetadata reports whether the kind is one of the metadata kinds.
func (k RelationshipKind) IsMetadata() bool {
	return k == KindRace || k == KindClass || k == KindPlays
}

// ExtractionPass names the extractor pass that produced a raw relationship.
type ExtractionPass string

const (
	PassStructured  ExtractionPass = "structured"
	PassBiography   ExtractionPass = "biography"
	PassAffiliation ExtractionPass = "affiliation"
	PassMetadata    ExtractionPass = "metadata"
)

// RawRelationship is an unresolved discovery made while crawling. Target is
// the raw page identity as linked, not yet a canonical id.
type RawRelationship struct {
	Source   string         `json:"source"`
	Target   string         `json:"target"`
	Labels   []string       `json:"labels"`
	Evidence string         `json:"evidence,omitempty"`
	Pass     ExtractionPass `json:"pass"`
}

// Edge is the consolidated relationship between two canonical entities.
// At most one edge exists per ordered (Source, Target) pair.
type Edge struct {
	Source   string           `json:"source"`
	Target   string           `json:"target"`
	Kind     RelationshipKind `json:"kind"`
	Labels   []string         `json:"labels"`
	Evidence []string         `json:"evidence,omitempty"`
}

// Key returns the ordered pair identifying the edge.
func (e Edge) Key() EdgeKey {
	return EdgeKey{Source: e.Source, Target: e.Target}
}

// EdgeKey identifies an ordered pair of canonical ids.
type EdgeKey struct {
	Source string
	Target string
}

// Graph is a finished knowledge graph, ready for export or storage.
type Graph struct {
	ID       string   `json:"id"`
	Entities []Entity `json:"entities"`
	Edges    []Edge   `json:"edges"`
}

// SortGraph orders entities by id and edges by (source, target) so exports
// are stable between runs.
func SortGraph(g *Graph) {
	sort.Slice(g.Entities, func(i, j int) bool {
		return g.Entities[i].ID < g.Entities[j].ID
	})
	sort.Slice(g.Edges, func(i, j int) bool {
		if g.Edges[i].Source != g.Edges[j].Source {
			return g.Edges[i].Source < g.Edges[j].Source
		}
		return g.Edges[i].Target < g.Edges[j].Target
	})
}
