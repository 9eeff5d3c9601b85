package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/OFFIS-RIT/wikigraph/internal/queue"
	"github.com/OFFIS-RIT/wikigraph/internal/timing"
	"github.com/OFFIS-RIT/wikigraph/pkg/common"
	"github.com/OFFIS-RIT/wikigraph/pkg/export"
	"github.com/OFFIS-RIT/wikigraph/pkg/graph"
	"github.com/OFFIS-RIT/wikigraph/pkg/logger"
	"github.com/OFFIS-RIT/wikigraph/pkg/store"
	pgxstore "github.com/OFFIS-RIT/wikigraph/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/spf13/cobra"
)

const defaultCrawlOutput = "graph.json"

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg := configFrom(cmd)
	ctx := cmd.Context()
	flags := cmd.Flags()

	if seeds, _ := flags.GetStringSlice("seeds"); len(seeds) > 0 {
		cfg.Crawl.Seeds = seeds
	}
	if budget, _ := flags.GetInt("budget"); budget > 0 {
		cfg.Crawl.Budget = budget
	}
	if v, _ := flags.GetBool("admit-discovered"); v {
		cfg.Crawl.AdmitDiscovered = true
	}
	if v, _ := flags.GetBool("skip-metadata"); v {
		cfg.Crawl.SkipMetadata = true
	}

	output := defaultCrawlOutput
	if len(args) > 0 {
		output = args[0]
	}
	format, err := outputFormat(cmd, output)
	if err != nil {
		return err
	}

	id, _ := flags.GetString("id")
	if id == "" {
		if id, err = gonanoid.New(); err != nil {
			return fmt.Errorf("failed to generate graph id: %w", err)
		}
	}

	var storage store.GraphStorage = store.NewMemoryStorage()
	if persist, _ := flags.GetBool("store"); persist {
		if cfg.DatabaseURL == "" {
			return errors.New("--store needs DATABASE_URL")
		}
		if err := pgxstore.Migrate(cfg.DatabaseURL); err != nil {
			return err
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("unable to connect to database: %w", err)
		}
		defer pool.Close()
		storage, err = pgxstore.NewGraphDBStorageWithConnection(ctx, pool)
		if err != nil {
			return err
		}
	}

	classifier, oracle, err := cfg.Oracle.ClassificationOracle()
	if err != nil {
		return err
	}

	processor, err := queue.NewProcessor(queue.NewProcessorParams{
		Wiki:     cfg.Wiki,
		Defaults: cfg.Crawl,
		Oracle:   classifier,
		Storage:  storage,
	})
	if err != nil {
		return err
	}

	watch := timing.Start()
	report, crawlErr := processor.RunCrawl(ctx, queue.CrawlJob{GraphID: id})
	if report == nil {
		return crawlErr
	}
	if crawlErr != nil {
		logger.Warn("[Crawl] Crawl interrupted, writing partial graph", "err", crawlErr)
	}

	if err := writeGraph(output, report.Graph, format); err != nil {
		return err
	}
	logSummary(report.Summary)
	if oracle != nil {
		stats := oracle.Stats()
		logger.Info("[Crawl] Oracle", "calls", stats.Calls, "failures", stats.Failures, "cache_hits", stats.CacheHits,
			"tokens", stats.Model.TotalTokens)
	}
	logger.Info("[Crawl] Graph written", "graph", id, "output", output, "format", format, "duration", watch.String())
	return crawlErr
}

func writeGraph(path string, g *common.Graph, format export.Format) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := export.Encode(f, g, format); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func logSummary(s graph.Summary) {
	logger.Info("[Crawl] Summary",
		"pages", s.PagesProcessed,
		"failed", s.PagesFailed,
		"entities", s.Entities,
		"edges", s.EdgesAccepted,
		"dropped", s.EdgesDropped,
		"aliases", s.Aliases,
		"cache_hit_rate", fmt.Sprintf("%.2f", s.CacheHitRate),
		"avg_confidence", fmt.Sprintf("%.2f", s.AverageConfidence),
	)
	for typ, n := range s.EntitiesByType {
		logger.Debug("[Crawl] Entities", "type", typ, "count", n)
	}
	for kind, n := range s.EdgesByKind {
		logger.Debug("[Crawl] Edges", "kind", kind, "count", n)
	}
	for reason, n := range s.DroppedByReason {
		logger.Debug("[Crawl] Dropped", "reason", reason, "count", n)
	}
}

// outputFormat honours --format and falls back to the file extension.
func outputFormat(cmd *cobra.Command, path string) (export.Format, error) {
	v, _ := cmd.Flags().GetString("format")
	if v == "" {
		return export.FormatFromPath(path), nil
	}
	switch f := export.Format(v); f {
	case export.FormatNodes, export.FormatEntities, export.FormatGML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q", v)
	}
}
