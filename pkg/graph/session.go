package graph

import (
	"context"
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/OFFIS-RIT/wikigraph/internal/util"
	"github.com/OFFIS-RIT/wikigraph/pkg/ai"
	"github.com/OFFIS-RIT/wikigraph/pkg/classify"
	"github.com/OFFIS-RIT/wikigraph/pkg/common"
	"github.com/OFFIS-RIT/wikigraph/pkg/extract"
	"github.com/OFFIS-RIT/wikigraph/pkg/logger"
	"github.com/OFFIS-RIT/wikigraph/pkg/resolve"
	"github.com/OFFIS-RIT/wikigraph/pkg/wiki"
)

const DefaultBudget = 200

// Session is one crawl run. It owns every cache of the run: the page cache
// and alias table of the fetcher, the resolver caches and the accumulator.
// Nothing is shared between sessions unless passed in explicitly.
type Session struct {
	ID string

	pages      resolve.PageSource
	aliases    *wiki.AliasTable
	classifier *classify.Classifier
	extractor  *extract.Extractor
	resolver   *resolve.Resolver
	oracle     ai.ClassificationOracle
	acc        *Accumulator

	seeds           []string
	budget          int
	admitDiscovered bool
	skipMetadata    bool
}

// NewSessionParams configures a Session. Pages is required; Classifier,
// Extractor and Resolver are built from Seeds, Oracle and TargetContext when
// left nil.
type NewSessionParams struct {
	ID         string
	Pages      resolve.PageSource
	Classifier *classify.Classifier
	Extractor  *extract.Extractor
	Resolver   *resolve.Resolver
	Oracle     ai.ClassificationOracle

	Seeds         []string
	Budget        int
	TargetContext int
	// AdmitDiscovered stores pages fetched during the resolve phase as
	// entities when they classify to a known type.
	AdmitDiscovered bool
	// SkipMetadata disables race, class and actor nodes.
	SkipMetadata bool
}

func NewSession(params NewSessionParams) (*Session, error) {
	if params.Pages == nil {
		return nil, fmt.Errorf("session requires a page source")
	}

	id := params.ID
	if id == "" {
		var err error
		id, err = gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("failed to generate session id: %w", err)
		}
	}

	seeds := params.Seeds
	if len(seeds) == 0 {
		seeds = classify.DefaultSeeds
	}
	budget := params.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}

	classifier := params.Classifier
	if classifier == nil {
		classifier = classify.NewClassifier(classify.NewClassifierParams{
			Seeds:  seeds,
			Oracle: params.Oracle,
		})
	}
	extractor := params.Extractor
	if extractor == nil {
		extractor = extract.NewExtractor(extract.NewExtractorParams{Oracle: params.Oracle})
	}
	resolver := params.Resolver
	if resolver == nil {
		resolver = resolve.NewResolver(resolve.NewResolverParams{
			Pages:         params.Pages,
			Oracle:        params.Oracle,
			TargetContext: params.TargetContext,
		})
	}

	return &Session{
		ID:              id,
		pages:           params.Pages,
		aliases:         params.Pages.Aliases(),
		classifier:      classifier,
		extractor:       extractor,
		resolver:        resolver,
		oracle:          params.Oracle,
		acc:             NewAccumulator(),
		seeds:           seeds,
		budget:          budget,
		admitDiscovered: params.AdmitDiscovered,
		skipMetadata:    params.SkipMetadata,
	}, nil
}

func (s *Session) Accumulator() *Accumulator {
	return s.acc
}

func (s *Session) Resolver() *resolve.Resolver {
	return s.resolver
}

// Report is the outcome of a crawl.
type Report struct {
	Graph   *common.Graph         `json:"graph"`
	Crawl   CrawlResult           `json:"crawl"`
	Dropped []DroppedRelationship `json:"dropped,omitempty"`
	Summary Summary               `json:"summary"`
}

// Run crawls from the seeds, fetches every discovered target so the alias
// table is complete and finally consolidates the buffered relationships.
// On cancellation the partial graph is still returned together with the
// context error.
func (s *Session) Run(ctx context.Context) (*Report, error) {
	logger.Info("[Crawl] Starting crawl", "session", s.ID, "seeds", len(s.seeds), "budget", s.budget)

	scheduler := NewScheduler(NewSchedulerParams{
		Processor: s,
		Seeds:     s.seeds,
		Budget:    s.budget,
	})
	crawl := scheduler.Run(ctx)
	logger.Info("[Crawl] Discovery finished", "processed", len(crawl.Processed), "failed", len(crawl.Failed), "remaining", crawl.Remaining)

	if !crawl.Cancelled {
		s.fetchTargets(ctx)
	}
	edges := s.consolidate(ctx)

	report := &Report{
		Graph:   s.acc.Graph(s.ID),
		Crawl:   crawl,
		Dropped: edges.Dropped,
	}
	report.Summary = s.summarize(report)
	report.Summary.Log()

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("crawl %s interrupted: %w", s.ID, err)
	}
	return report, nil
}

// Canonical implements Processor.
func (s *Session) Canonical(title string) string {
	return s.aliases.Canonical(title)
}

// Process implements Processor. A page whose canonical id is already stored
// contributes nothing new and reports ErrAlreadyProcessed.
func (s *Session) Process(ctx context.Context, title string) (string, []string, error) {
	if canonical, ok := s.aliases.Lookup(title); ok && s.acc.HasEntity(canonical) {
		return canonical, nil, ErrAlreadyProcessed
	}

	page, err := s.pages.Fetch(ctx, title)
	if err != nil {
		return "", nil, err
	}
	canonical := page.Canonical
	if s.acc.HasEntity(canonical) {
		return canonical, nil, ErrAlreadyProcessed
	}

	classifyAs := canonical
	if s.classifier.IsSeed(title) {
		classifyAs = title
	}
	class := s.classifier.Classify(ctx, page, classifyAs)

	entity := common.Entity{
		ID:         canonical,
		Name:       entityName(page, canonical),
		Type:       class.Type,
		Confidence: class.Confidence,
		Attributes: page.Attributes(),
	}
	entity.SetAttr(common.AttrURL, page.URL)
	s.acc.AddEntity(entity)
	logger.Debug("[Crawl] Stored entity", "id", canonical, "type", class.Type, "source", class.Source)

	rels := s.extractor.Extract(ctx, page, canonical, entity.Name)
	s.acc.Buffer(canonical, rels)

	if !s.skipMetadata && (class.Type == common.EntityTypeMainCharacter || class.Type == common.EntityTypePlayerCharacter) {
		s.addMetadata(ctx, page, entity)
	}

	targets := make([]string, 0, len(rels))
	for _, r := range rels {
		targets = append(targets, r.Target)
	}
	return canonical, targets, nil
}

// fetchTargets fetches every buffered target that is not stored yet so its
// redirect lands in the alias table before consolidation.
func (s *Session) fetchTargets(ctx context.Context) {
	targets := s.acc.Targets()
	var pending []string
	for _, t := range targets {
		if !s.acc.HasEntity(s.aliases.Canonical(t)) {
			pending = append(pending, t)
		}
	}
	logger.Info("[Crawl] Fetching unresolved targets", "count", len(pending))

	for _, t := range pending {
		if ctx.Err() != nil {
			return
		}
		if s.acc.HasEntity(s.aliases.Canonical(t)) {
			continue
		}
		page, err := s.pages.Fetch(ctx, t)
		if err != nil {
			logger.Debug("[Crawl] Target fetch failed", "target", t, "err", err)
			continue
		}
		if !s.admitDiscovered || s.acc.HasEntity(page.Canonical) {
			continue
		}
		class := s.classifier.Classify(ctx, page, page.Canonical)
		if class.Type == common.EntityTypeUnknown || class.Type == common.EntityTypeEpisode {
			continue
		}
		entity := common.Entity{
			ID:         page.Canonical,
			Name:       entityName(page, page.Canonical),
			Type:       class.Type,
			Confidence: class.Confidence,
			Attributes: page.Attributes(),
		}
		entity.SetAttr(common.AttrURL, page.URL)
		if s.acc.AddEntity(entity) {
			logger.Debug("[Crawl] Admitted discovered entity", "id", entity.ID, "type", entity.Type)
		}
	}
}

// consolidate turns the buffer into edges. Targets are looked up in the
// alias table first and handed to the resolver only when that fails, typed
// by what the relationship implies about them.
func (s *Session) consolidate(ctx context.Context) EdgeSet {
	resolveEndpoint := func(identity string, expected common.EntityType) (string, bool) {
		if canonical, ok := s.aliases.Lookup(identity); ok && s.acc.HasEntity(canonical) {
			return canonical, true
		}
		if ctx.Err() != nil {
			return "", false
		}
		res, ok := s.resolver.Resolve(ctx, identity, expected)
		if !ok {
			return "", false
		}
		return res.Canonical, true
	}

	edges := s.acc.Ingest(s.acc.Buffered(), resolveEndpoint)
	logger.Info("[Crawl] Consolidated relationships", "edges", len(edges.Edges), "dropped", len(edges.Dropped))
	return edges
}

// addMetadata hangs race, class and actor nodes off a main character.
func (s *Session) addMetadata(ctx context.Context, page *wiki.Page, character common.Entity) {
	var rels []common.RawRelationship

	if race := strings.TrimSpace(character.Attr(common.AttrRace)); race != "" {
		id := metadataID("race", race)
		node := common.Entity{ID: id, Name: race, Type: common.EntityTypeMetadata, Confidence: 1.0}
		node.SetAttr("category", "race")
		s.acc.AddEntity(node)
		rels = append(rels, common.RawRelationship{
			Source: character.ID, Target: id, Labels: []string{common.LabelRace}, Pass: common.PassMetadata,
		})
	}

	if classes := strings.TrimSpace(character.Attr(common.AttrClass)); classes != "" {
		for _, class := range strings.Split(classes, "/") {
			class = strings.TrimSpace(class)
			if class == "" {
				continue
			}
			id := metadataID("class", class)
			node := common.Entity{ID: id, Name: class, Type: common.EntityTypeMetadata, Confidence: 1.0}
			node.SetAttr("category", "class")
			s.acc.AddEntity(node)
			rels = append(rels, common.RawRelationship{
				Source: character.ID, Target: id, Labels: []string{common.LabelClass}, Pass: common.PassMetadata,
			})
		}
	}
	s.acc.Buffer(character.ID, rels)

	actorID, ok := s.addActor(ctx, page)
	if ok {
		s.acc.Buffer(actorID, []common.RawRelationship{{
			Source: actorID, Target: character.ID, Labels: []string{common.LabelPlays}, Pass: common.PassMetadata,
		}})
	}
}

// addActor stores the cast member named in the infobox. The page is fetched
// for its portrait; when that fails the node is kept without one.
func (s *Session) addActor(ctx context.Context, page *wiki.Page) (string, bool) {
	field, ok := page.Infobox.Field(common.AttrActor)
	if !ok || strings.TrimSpace(field.Value) == "" {
		return "", false
	}
	title := wiki.NormalizeTitle(util.CleanDisplayText(field.Value))
	if len(field.Links) > 0 {
		title = field.Links[0].Target
	}
	if canonical, ok := s.aliases.Lookup(title); ok && s.acc.HasEntity(canonical) {
		return canonical, true
	}

	actor := common.Entity{
		ID:         title,
		Name:       util.CleanDisplayText(field.Value),
		Type:       common.EntityTypeCastMember,
		Confidence: 1.0,
	}
	actorPage, err := s.pages.Fetch(ctx, title)
	if err != nil {
		logger.Debug("[Crawl] Actor page unavailable", "actor", field.Value, "err", err)
	} else {
		actor.ID = actorPage.Canonical
		actor.Attributes = actorPage.Attributes()
		if name := actor.Attr("name"); name != "" {
			actor.Name = name
		}
		actor.SetAttr(common.AttrURL, actorPage.URL)
	}
	if s.acc.HasEntity(actor.ID) {
		return actor.ID, true
	}
	s.acc.AddEntity(actor)
	logger.Debug("[Crawl] Stored cast member", "id", actor.ID)
	return actor.ID, true
}

func metadataID(kind, value string) string {
	value = strings.NewReplacer("(", "", ")", "").Replace(value)
	return kind + "_" + wiki.NormalizeTitle(value)
}

func entityName(page *wiki.Page, canonical string) string {
	if page.Infobox != nil {
		if name := util.CleanDisplayText(page.Infobox.Name); name != "" {
			return name
		}
	}
	title := page.Title
	if i := strings.Index(title, " | "); i > 0 {
		title = title[:i]
	}
	if title = util.CleanDisplayText(title); title != "" {
		return title
	}
	return wiki.DisplayTitle(canonical)
}
