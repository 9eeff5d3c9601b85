package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/OFFIS-RIT/wikigraph/internal/timing"
	"github.com/OFFIS-RIT/wikigraph/pkg/enrich"
	"github.com/OFFIS-RIT/wikigraph/pkg/export"
	"github.com/OFFIS-RIT/wikigraph/pkg/logger"
	"github.com/OFFIS-RIT/wikigraph/pkg/resolve"
	"github.com/OFFIS-RIT/wikigraph/pkg/wiki"

	"github.com/spf13/cobra"
)

func runEnrich(cmd *cobra.Command, args []string) error {
	cfg := configFrom(cmd)
	ctx := cmd.Context()

	input := args[0]
	output := siblingPath(input, "_enriched.json")
	if len(args) > 1 {
		output = args[1]
	}
	format, err := outputFormat(cmd, output)
	if err != nil {
		return err
	}

	doc, err := readDocument(input)
	if err != nil {
		return err
	}

	client, err := wiki.NewClient(wiki.NewClientParams{
		BaseURL:   cfg.Wiki.BaseURL,
		UserAgent: cfg.Wiki.UserAgent,
		Delay:     cfg.Wiki.Delay,
		Timeout:   cfg.Wiki.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create wiki client: %w", err)
	}
	oracle, _, err := cfg.Oracle.ClassificationOracle()
	if err != nil {
		return err
	}

	sequenced, _ := cmd.Flags().GetBool("sequenced")
	enricher := enrich.NewEnricher(enrich.NewEnricherParams{
		Resolver: resolve.NewResolver(resolve.NewResolverParams{
			Pages:         client,
			Oracle:        oracle,
			TargetContext: cfg.Crawl.Campaign,
		}),
		Sequenced: sequenced,
	})

	watch := timing.Start()
	stats, err := enricher.Enrich(ctx, doc)
	if err != nil {
		return err
	}
	if err := writeDocument(output, doc, format); err != nil {
		return err
	}
	logger.Info("[Enrich] Graph written",
		"output", output,
		"nodes", stats.Nodes,
		"matched", stats.Matched,
		"images", stats.Images,
		"avg_confidence", fmt.Sprintf("%.2f", stats.AverageConfidence),
		"duration", watch.String(),
	)
	return nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := siblingPath(input, ".gml")
	if len(args) > 1 {
		output = args[1]
	}
	format, err := outputFormat(cmd, output)
	if err != nil {
		return err
	}

	doc, err := readDocument(input)
	if err != nil {
		return err
	}
	if err := writeDocument(output, doc, format); err != nil {
		return err
	}
	logger.Info("[Convert] Graph written", "output", output, "format", format, "nodes", len(doc.Nodes), "edges", len(doc.Edges))
	return nil
}

func readDocument(path string) (*export.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	doc, err := export.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func writeDocument(path string, doc *export.Document, format export.Format) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := export.EncodeDocument(f, doc, format); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// siblingPath replaces the extension of path with suffix.
func siblingPath(path, suffix string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + suffix
}
