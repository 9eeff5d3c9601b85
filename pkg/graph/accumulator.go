package graph

import (
	"slices"
	"sort"
	"sync"

	"github.com/OFFIS-RIT/wikigraph/pkg/common"
	"github.com/OFFIS-RIT/wikigraph/pkg/logger"
	"github.com/OFFIS-RIT/wikigraph/pkg/wiki"
)

// RelationshipMap maps raw labels onto displayed kinds. Labels missing here
// are Associated With.
var RelationshipMap = map[string]common.RelationshipKind{
	common.LabelFamily:          common.KindFamily,
	common.LabelRomanticPartner: common.KindRomanticPartner,
	common.LabelCloseFriend:     common.KindAlly,
	common.LabelAlly:            common.KindAlly,
	common.LabelServedTogether:  common.KindAlly,
	common.LabelMentorStudent:   common.KindAlly,
	common.LabelEnemy:           common.KindEnemy,
	common.LabelRival:           common.KindEnemy,
	common.LabelComplicated:     common.KindComplicated,
	common.LabelMemberOf:        common.KindMemberOf,
	common.LabelLeads:           common.KindMemberOf,
	common.LabelAspirantOf:      common.KindMemberOf,
	common.LabelServesIn:        common.KindMemberOf,
	common.LabelFounded:         common.KindMemberOf,
	common.LabelWorksFor:        common.KindMemberOf,
	common.LabelAssociatedWith:  common.KindAssociatedWith,
	common.LabelRace:            common.KindRace,
	common.LabelClass:           common.KindClass,
	common.LabelPlays:           common.KindPlays,
}

// Precedence decides the displayed kind of an edge: the first entry present
// among the mapped kinds wins.
var Precedence = []common.RelationshipKind{
	common.KindEnemy,
	common.KindFamily,
	common.KindRomanticPartner,
	common.KindAlly,
	common.KindComplicated,
	common.KindMemberOf,
	common.KindAssociatedWith,
}

var metadataPrecedence = []common.RelationshipKind{
	common.KindPlays,
	common.KindRace,
	common.KindClass,
}

// KindOf maps a single raw label.
func KindOf(label string) common.RelationshipKind {
	if kind, ok := RelationshipMap[label]; ok {
		return kind
	}
	return common.KindAssociatedWith
}

// Strongest returns the displayed kind for a set of raw labels.
func Strongest(labels []string) common.RelationshipKind {
	kinds := make(map[common.RelationshipKind]struct{}, len(labels))
	for _, l := range labels {
		kinds[KindOf(l)] = struct{}{}
	}
	for _, k := range Precedence {
		if _, ok := kinds[k]; ok {
			return k
		}
	}
	for _, k := range metadataPrecedence {
		if _, ok := kinds[k]; ok {
			return k
		}
	}
	return common.KindAssociatedWith
}

// EndpointResolver maps a raw relationship target onto a canonical id.
// expected is the type the relationship implies for the target.
type EndpointResolver func(identity string, expected common.EntityType) (string, bool)

var factionLabels = map[string]struct{}{
	common.LabelMemberOf:   {},
	common.LabelAspirantOf: {},
	common.LabelServesIn:   {},
	common.LabelFounded:    {},
	common.LabelWorksFor:   {},
}

var socialLabels = map[string]struct{}{
	common.LabelFamily:          {},
	common.LabelRomanticPartner: {},
	common.LabelCloseFriend:     {},
	common.LabelAlly:            {},
	common.LabelServedTogether:  {},
	common.LabelMentorStudent:   {},
	common.LabelEnemy:           {},
	common.LabelRival:           {},
	common.LabelComplicated:     {},
}

// ExpectedTargetType infers what kind of page the target of r should be.
// Organization labels and the affiliation pass point at a faction, social
// labels from the structured and biography passes point at a character.
// Anything else is left unconstrained.
func ExpectedTargetType(r common.RawRelationship) common.EntityType {
	if r.Pass == common.PassAffiliation {
		return common.EntityTypeFaction
	}
	for _, l := range r.Labels {
		if _, ok := factionLabels[l]; ok {
			return common.EntityTypeFaction
		}
	}
	if r.Pass != common.PassStructured && r.Pass != common.PassBiography {
		return common.EntityTypeUnknown
	}
	for _, l := range r.Labels {
		if _, ok := socialLabels[l]; ok {
			return common.EntityTypeCharacter
		}
	}
	return common.EntityTypeUnknown
}

// Reasons a raw relationship does not become an edge.
const (
	DropUnknownSource = "unknown_source"
	DropUnresolved    = "unresolved_target"
	DropNotStored     = "target_not_stored"
	DropSelfLoop      = "self_loop"
)

// DroppedRelationship records a raw relationship that produced no edge.
type DroppedRelationship struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// EdgeSet is the consolidated edge list after an ingest.
type EdgeSet struct {
	Edges   []common.Edge
	Dropped []DroppedRelationship
}

type edgeState struct {
	labels   map[string]struct{}
	evidence []string
}

// Accumulator owns the entity store, the raw relationship buffer and the
// consolidated edges. Edges are keyed by the ordered pair of canonical ids
// and only exist between stored entities.
type Accumulator struct {
	mu       sync.RWMutex
	entities map[string]*common.Entity
	buffer   map[string][]common.RawRelationship
	sources  []string
	edges    map[common.EdgeKey]*edgeState
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		entities: make(map[string]*common.Entity),
		buffer:   make(map[string][]common.RawRelationship),
		edges:    make(map[common.EdgeKey]*edgeState),
	}
}

// AddEntity stores e under its id. An existing entity keeps its type; the
// call then only reports false.
func (a *Accumulator) AddEntity(e common.Entity) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.entities[e.ID]; ok {
		return false
	}
	stored := e
	stored.Attributes = make(map[string]string, len(e.Attributes))
	for k, v := range e.Attributes {
		stored.Attributes[k] = v
	}
	a.entities[e.ID] = &stored
	return true
}

// MergeAttributes adds attributes to a stored entity. Existing keys are
// overwritten, the type is never touched.
func (a *Accumulator) MergeAttributes(id string, attrs map[string]string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entities[id]
	if !ok {
		return false
	}
	for k, v := range attrs {
		e.SetAttr(k, v)
	}
	return true
}

func (a *Accumulator) Entity(id string) (common.Entity, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.entities[id]
	if !ok {
		return common.Entity{}, false
	}
	return *e, true
}

func (a *Accumulator) HasEntity(id string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.entities[id]
	return ok
}

// Entities returns all stored entities ordered by id.
func (a *Accumulator) Entities() []common.Entity {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]common.Entity, 0, len(a.entities))
	for _, e := range a.entities {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Buffer appends raw relationships discovered on source.
func (a *Accumulator) Buffer(source string, rels []common.RawRelationship) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.buffer[source]; !ok {
		a.sources = append(a.sources, source)
	}
	a.buffer[source] = append(a.buffer[source], rels...)
}

// Buffered returns a copy of the raw buffer.
func (a *Accumulator) Buffered() map[string][]common.RawRelationship {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string][]common.RawRelationship, len(a.buffer))
	for k, v := range a.buffer {
		out[k] = slices.Clone(v)
	}
	return out
}

// Targets lists every distinct normalized target in the buffer, in
// discovery order.
func (a *Accumulator) Targets() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, source := range a.sources {
		for _, r := range a.buffer[source] {
			t := wiki.NormalizeTitle(r.Target)
			if t == "" {
				continue
			}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// Ingest consolidates raw relationships into edges. A target is first
// looked up in the entity store, then passed to resolve. Relationships whose
// endpoints are not both stored are dropped and reported. Ingesting the same
// relationships again changes nothing.
func (a *Accumulator) Ingest(raw map[string][]common.RawRelationship, resolve EndpointResolver) EdgeSet {
	sources := make([]string, 0, len(raw))
	for s := range raw {
		sources = append(sources, s)
	}
	sort.Strings(sources)

	var dropped []DroppedRelationship
	drop := func(source, target, reason string) {
		dropped = append(dropped, DroppedRelationship{Source: source, Target: target, Reason: reason})
		logger.Debug("[Graph] Dropped relationship", "source", source, "target", target, "reason", reason)
	}

	for _, key := range sources {
		for _, r := range raw[key] {
			source := r.Source
			if source == "" {
				source = key
			}
			if !a.HasEntity(source) {
				drop(source, r.Target, DropUnknownSource)
				continue
			}

			target := wiki.NormalizeTitle(r.Target)
			if !a.HasEntity(target) {
				if resolve == nil {
					drop(source, r.Target, DropUnresolved)
					continue
				}
				canonical, ok := resolve(r.Target, ExpectedTargetType(r))
				if !ok {
					drop(source, r.Target, DropUnresolved)
					continue
				}
				target = canonical
			}
			if !a.HasEntity(target) {
				drop(source, r.Target, DropNotStored)
				continue
			}
			if source == target {
				drop(source, r.Target, DropSelfLoop)
				continue
			}

			a.addEdge(source, target, r.Labels, r.Evidence)
		}
	}

	if len(dropped) > 0 {
		logger.Info("[Graph] Relationships dropped during consolidation", "count", len(dropped))
	}
	return EdgeSet{Edges: a.Edges(), Dropped: dropped}
}

func (a *Accumulator) addEdge(source, target string, labels []string, evidence string) {
	if len(labels) == 0 {
		labels = []string{common.LabelAssociatedWith}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	key := common.EdgeKey{Source: source, Target: target}
	state, ok := a.edges[key]
	if !ok {
		state = &edgeState{labels: make(map[string]struct{})}
		a.edges[key] = state
	}
	for _, l := range labels {
		state.labels[l] = struct{}{}
	}
	if evidence != "" && !slices.Contains(state.evidence, evidence) {
		state.evidence = append(state.evidence, evidence)
	}
}

// Edges returns the consolidated edges ordered by (source, target).
func (a *Accumulator) Edges() []common.Edge {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]common.Edge, 0, len(a.edges))
	for key, state := range a.edges {
		labels := make([]string, 0, len(state.labels))
		for l := range state.labels {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		out = append(out, common.Edge{
			Source:   key.Source,
			Target:   key.Target,
			Kind:     Strongest(labels),
			Labels:   labels,
			Evidence: slices.Clone(state.evidence),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out
}

// Graph snapshots the store as a finished graph.
func (a *Accumulator) Graph(id string) *common.Graph {
	g := &common.Graph{
		ID:       id,
		Entities: a.Entities(),
		Edges:    a.Edges(),
	}
	common.SortGraph(g)
	return g
}
