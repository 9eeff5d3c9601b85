package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/OFFIS-RIT/wikigraph/internal/config"
	"github.com/OFFIS-RIT/wikigraph/internal/util"
	"github.com/OFFIS-RIT/wikigraph/pkg/logger"
	"github.com/OFFIS-RIT/wikigraph/pkg/logger/console"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wikigraph",
		Short: "Build relationship graphs from a fan wiki",
		Long: `wikigraph crawls a MediaWiki fan wiki from a set of seed pages, resolves
every mention to a canonical page and writes the resulting relationship
graph as node/edge JSON, entity JSON or GML.

Configuration is read from .env and the environment; flags override it.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("wiki-url", "", "Base url of the wiki (default from WIKI_URL)")
	rootCmd.PersistentFlags().Int("campaign", 0, "Target campaign used to disambiguate pages (default from TARGET_CAMPAIGN)")

	crawlCmd := &cobra.Command{
		Use:   "crawl [output]",
		Short: "Crawl the wiki from the seed pages and write the graph",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCrawl,
	}
	crawlCmd.Flags().StringSlice("seeds", nil, "Seed page titles (default from CRAWL_SEEDS)")
	crawlCmd.Flags().Int("budget", 0, "Maximum number of pages to process (default from CRAWL_BUDGET)")
	crawlCmd.Flags().Bool("admit-discovered", false, "Also crawl characters found through relationships")
	crawlCmd.Flags().Bool("skip-metadata", false, "Do not add race, class and actor nodes")
	crawlCmd.Flags().String("format", "", "Output format: nodes|entities|gml (default from the output extension)")
	crawlCmd.Flags().String("id", "", "Graph id (default: generated)")
	crawlCmd.Flags().Bool("store", false, "Also save the graph to DATABASE_URL")

	enrichCmd := &cobra.Command{
		Use:   "enrich <input> [output]",
		Short: "Link the nodes of an existing graph to wiki pages and style it",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runEnrich,
	}
	enrichCmd.Flags().Bool("sequenced", false, "Add chronological level hints to events and episodes")
	enrichCmd.Flags().String("format", "", "Output format: nodes|entities|gml (default from the output extension)")

	convertCmd := &cobra.Command{
		Use:   "convert <input> [output]",
		Short: "Convert a graph between node JSON, entity JSON and GML",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runConvert,
	}
	convertCmd.Flags().String("format", "", "Output format: nodes|entities|gml (default from the output extension)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored graphs and accept crawl jobs over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().String("port", "", "Port to listen on (default from PORT)")
	serveCmd.Flags().Bool("queue", false, "Hand jobs to the RabbitMQ worker instead of running them in process")

	rootCmd.AddCommand(crawlCmd, enrichCmd, convertCmd, serveCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error("Command failed", "err", err)
		stop()
		os.Exit(1)
	}
}

type cfgKey struct{}

// setup loads the configuration, applies the global flags and initializes
// the logger. The result is stored in the command context.
func setup(cmd *cobra.Command, _ []string) error {
	util.LoadEnv()
	cfg := config.FromEnv()

	flags := cmd.Flags()
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}
	if v, _ := flags.GetString("wiki-url"); v != "" {
		cfg.Wiki.BaseURL = v
	}
	if v, _ := flags.GetInt("campaign"); v > 0 {
		cfg.Crawl.Campaign = v
	}

	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: cfg.Debug,
	}))

	if err := cfg.Validate(); err != nil {
		return err
	}
	cmd.SetContext(context.WithValue(cmd.Context(), cfgKey{}, cfg))
	return nil
}

func configFrom(cmd *cobra.Command) *config.Config {
	cfg, ok := cmd.Context().Value(cfgKey{}).(*config.Config)
	if !ok {
		panic(fmt.Sprintf("%s: configuration not loaded", cmd.Name()))
	}
	return cfg
}
