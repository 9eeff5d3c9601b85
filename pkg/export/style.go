package export

import "github.com/OFFIS-RIT/wikigraph/pkg/common"

// NodeStyle is the visual hint attached to exported nodes.
type NodeStyle struct {
	Color string
	Size  int
}

// EdgeStyle is the visual hint attached to exported edges. An empty Label
// hides the edge caption.
type EdgeStyle struct {
	Color string
	Width int
	Label string
}

const (
	shapeImage = "circularImage"
	shapeBox   = "box"

	unknownColor = "#999999"
)

var EntityStyles = map[common.EntityType]NodeStyle{
	common.EntityTypeMainCharacter:   {"#FF0000", 30},
	common.EntityTypePlayerCharacter: {"#FF0000", 25},
	common.EntityTypeNPC:             {"#00BFFF", 20},
	common.EntityTypeCharacter:       {"#4ECDC4", 20},
	common.EntityTypeLocation:        {"#00FF00", 20},
	common.EntityTypeFaction:         {"#FFD700", 25},
	common.EntityTypeCastMember:      {"#9370DB", 20},
	common.EntityTypeEvent:           {"#FF1493", 20},
	common.EntityTypeHistoricalEvent: {"#FCBAD3", 25},
	common.EntityTypeEpisode:         {"#F38181", 20},
	common.EntityTypeObject:          {"#F38181", 20},
	common.EntityTypeArtifact:        {"#F38181", 20},
	common.EntityTypeMystery:         {"#A8D8EA", 25},
	common.EntityTypeUnknown:         {unknownColor, 15},
}

// Metadata nodes are styled by their category attribute.
var metadataStyles = map[string]NodeStyle{
	"race":  {"#00CED1", 15},
	"class": {"#9370DB", 15},
}

var RelationshipStyles = map[common.RelationshipKind]EdgeStyle{
	common.KindFamily:          {"#00BFFF", 3, "Family"},
	common.KindRomanticPartner: {"#FF1493", 3, "Romantic Partner"},
	common.KindAlly:            {"#00FF00", 2, "Ally"},
	common.KindEnemy:           {"#FF0000", 2, "Enemy"},
	common.KindComplicated:     {"#8A2BE2", 2, "Complicated"},
	common.KindMemberOf:        {"#FFD700", 3, "Member Of"},
	common.KindAssociatedWith:  {unknownColor, 1, ""},
	common.KindRace:            {"#16A085", 2, "Race"},
	common.KindClass:           {"#8E44AD", 2, "Class"},
	common.KindPlays:           {"#FF1493", 2, "Plays"},
}

// StyleFor returns the node style of e.
func StyleFor(e common.Entity) NodeStyle {
	if e.Type == common.EntityTypeMetadata {
		if s, ok := metadataStyles[e.Attr("category")]; ok {
			return s
		}
	}
	if s, ok := EntityStyles[e.Type]; ok {
		return s
	}
	return EntityStyles[common.EntityTypeUnknown]
}

// imageSize is used for nodes rendered with a portrait.
func imageSize(t common.EntityType) int {
	if t == common.EntityTypeMainCharacter || t == common.EntityTypePlayerCharacter {
		return 80
	}
	return 40
}

func EdgeStyleFor(kind common.RelationshipKind) EdgeStyle {
	if s, ok := RelationshipStyles[kind]; ok {
		return s
	}
	return RelationshipStyles[common.KindAssociatedWith]
}
