package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/OFFIS-RIT/wikigraph/internal/config"
	"github.com/OFFIS-RIT/wikigraph/internal/storage"
	"github.com/OFFIS-RIT/wikigraph/pkg/ai"
	"github.com/OFFIS-RIT/wikigraph/pkg/graph"
	"github.com/OFFIS-RIT/wikigraph/pkg/leaselock"
	"github.com/OFFIS-RIT/wikigraph/pkg/logger"
	"github.com/OFFIS-RIT/wikigraph/pkg/store"
	"github.com/OFFIS-RIT/wikigraph/pkg/wiki"
)

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusDeleted   = "deleted"
)

// Processor runs crawl and delete jobs. Every crawl gets a fresh wiki
// client and session so no cache outlives its job.
type Processor struct {
	wiki       config.WikiConfig
	defaults   config.CrawlConfig
	oracle     ai.ClassificationOracle
	storage    store.GraphStorage
	publisher  *storage.Publisher
	locker     *leaselock.Locker
	events     Channel
	httpClient *http.Client
}

type NewProcessorParams struct {
	Wiki     config.WikiConfig
	Defaults config.CrawlConfig
	Oracle   ai.ClassificationOracle
	Storage  store.GraphStorage

	// Optional collaborators.
	Publisher  *storage.Publisher
	Locker     *leaselock.Locker
	Events     Channel
	HTTPClient *http.Client
}

func NewProcessor(params NewProcessorParams) (*Processor, error) {
	if params.Storage == nil {
		return nil, fmt.Errorf("processor requires graph storage")
	}
	return &Processor{
		wiki:       params.Wiki,
		defaults:   params.Defaults,
		oracle:     params.Oracle,
		storage:    params.Storage,
		publisher:  params.Publisher,
		locker:     params.Locker,
		events:     params.Events,
		httpClient: params.HTTPClient,
	}, nil
}

// ProcessCrawlMessage handles one message of the crawl queue.
func (p *Processor) ProcessCrawlMessage(ctx context.Context, body []byte) error {
	job, err := decode[CrawlJob](body)
	if err != nil {
		return err
	}
	_, err = p.RunCrawl(ctx, *job)
	return err
}

// ProcessDeleteMessage handles one message of the delete queue.
func (p *Processor) ProcessDeleteMessage(ctx context.Context, body []byte) error {
	job, err := decode[DeleteJob](body)
	if err != nil {
		return err
	}
	return p.DeleteGraph(ctx, job.GraphID)
}

// RunCrawl crawls the wiki for job, stores the graph and publishes its
// artifacts. Interrupted crawls are not stored.
func (p *Processor) RunCrawl(ctx context.Context, job CrawlJob) (*graph.Report, error) {
	var report *graph.Report
	run := func(ctx context.Context) error {
		var err error
		report, err = p.crawl(ctx, job)
		return err
	}

	var err error
	if p.locker != nil {
		err = p.locker.WithCrawlLock(ctx, job.GraphID, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		p.announce(GraphEvent{GraphID: job.GraphID, Status: StatusFailed, Error: err.Error()})
		return report, err
	}
	p.announce(GraphEvent{
		GraphID:  job.GraphID,
		Status:   StatusCompleted,
		Entities: len(report.Graph.Entities),
		Edges:    len(report.Graph.Edges),
	})
	return report, nil
}

func (p *Processor) crawl(ctx context.Context, job CrawlJob) (*graph.Report, error) {
	seeds := job.Seeds
	if len(seeds) == 0 {
		seeds = p.defaults.Seeds
	}
	budget := job.Budget
	if budget <= 0 {
		budget = p.defaults.Budget
	}
	campaign := job.Campaign
	if campaign <= 0 {
		campaign = p.defaults.Campaign
	}

	client, err := wiki.NewClient(wiki.NewClientParams{
		BaseURL:    p.wiki.BaseURL,
		UserAgent:  p.wiki.UserAgent,
		Delay:      p.wiki.Delay,
		Timeout:    p.wiki.Timeout,
		HTTPClient: p.httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create wiki client: %w", err)
	}

	session, err := graph.NewSession(graph.NewSessionParams{
		ID:              job.GraphID,
		Pages:           client,
		Oracle:          p.oracle,
		Seeds:           seeds,
		Budget:          budget,
		TargetContext:   campaign,
		AdmitDiscovered: job.AdmitDiscovered || p.defaults.AdmitDiscovered,
		SkipMetadata:    job.SkipMetadata || p.defaults.SkipMetadata,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("[Queue] Crawl started", "graph", job.GraphID, "seeds", len(seeds), "budget", budget, "campaign", campaign)
	report, err := session.Run(ctx)
	if err != nil {
		return report, fmt.Errorf("crawl of %s interrupted: %w", job.GraphID, err)
	}

	summary, err := json.Marshal(report.Summary)
	if err != nil {
		return report, fmt.Errorf("failed to encode crawl summary: %w", err)
	}
	err = p.storage.SaveGraph(ctx, store.StoredGraph{
		Graph:   report.Graph,
		Seeds:   seeds,
		Aliases: client.Aliases().Snapshot(),
		Summary: summary,
	})
	if err != nil {
		return report, fmt.Errorf("failed to store graph %s: %w", job.GraphID, err)
	}

	if p.publisher != nil {
		if _, err := p.publisher.PublishGraph(ctx, report.Graph); err != nil {
			return report, fmt.Errorf("failed to publish artifacts of %s: %w", job.GraphID, err)
		}
	}
	return report, nil
}

// DeleteGraph removes the stored graph and its artifacts. Deleting a graph
// that does not exist is not an error so redelivered jobs settle.
func (p *Processor) DeleteGraph(ctx context.Context, graphID string) error {
	run := func(ctx context.Context) error {
		if err := p.storage.DeleteGraph(ctx, graphID); err != nil && !errors.Is(err, store.ErrGraphNotFound) {
			return err
		}
		if p.publisher != nil {
			return p.publisher.DeleteArtifacts(ctx, graphID)
		}
		return nil
	}

	var err error
	if p.locker != nil {
		err = p.locker.WithCrawlLock(ctx, graphID, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to delete graph %s: %w", graphID, err)
	}
	p.announce(GraphEvent{GraphID: graphID, Status: StatusDeleted})
	return nil
}

func (p *Processor) announce(event GraphEvent) {
	if p.events == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := PublishTopic(p.events, "graph."+event.Status, data); err != nil {
		logger.Warn("[Queue] Failed to publish graph event", "graph", event.GraphID, "status", event.Status, "err", err)
	}
}
