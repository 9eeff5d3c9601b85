package main

import (
	"fmt"

	"github.com/OFFIS-RIT/wikigraph/internal/config"
	"github.com/OFFIS-RIT/wikigraph/internal/queue"
	"github.com/OFFIS-RIT/wikigraph/internal/server"
	mid "github.com/OFFIS-RIT/wikigraph/internal/server/middleware"
	"github.com/OFFIS-RIT/wikigraph/internal/storage"
	"github.com/OFFIS-RIT/wikigraph/pkg/leaselock"
	"github.com/OFFIS-RIT/wikigraph/pkg/logger"
	"github.com/OFFIS-RIT/wikigraph/pkg/store"
	pgxstore "github.com/OFFIS-RIT/wikigraph/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := configFrom(cmd)
	ctx := cmd.Context()
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	app := &mid.App{APIKey: cfg.APIKey, Background: ctx}
	var locker *leaselock.Locker

	if cfg.DatabaseURL != "" {
		if err := pgxstore.Migrate(cfg.DatabaseURL); err != nil {
			return err
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("unable to connect to database: %w", err)
		}
		defer pool.Close()
		app.Storage, err = pgxstore.NewGraphDBStorageWithConnection(ctx, pool)
		if err != nil {
			return err
		}
		locker = leaselock.NewLocker(leaselock.NewLockerParams{DB: pool, Owner: "server"})
	} else {
		logger.Warn("[Server] DATABASE_URL not set, graphs are kept in memory")
		app.Storage = store.NewMemoryStorage()
	}

	if cfg.S3.Enabled() {
		client, err := storage.NewS3Client(ctx, cfg.S3)
		if err != nil {
			return err
		}
		app.Publisher = storage.NewPublisher(storage.NewPublisherParams{
			Client:         client,
			Bucket:         cfg.S3.Bucket,
			PublicEndpoint: cfg.S3.PublicEndpoint,
		})
	}

	if useQueue, _ := cmd.Flags().GetBool("queue"); useQueue {
		conn, err := queue.Dial(cfg.Rabbit.URL())
		if err != nil {
			return err
		}
		defer conn.Close()
		ch, err := conn.Channel()
		if err != nil {
			return fmt.Errorf("failed to open channel: %w", err)
		}
		defer ch.Close()
		if err := queue.SetupQueues(ch, queue.Queues); err != nil {
			return err
		}
		app.Queue = ch
	} else {
		processor, err := newProcessor(cfg, app.Storage, app.Publisher, locker, nil)
		if err != nil {
			return err
		}
		app.Processor = processor
	}

	return server.Run(ctx, app, cfg.Port)
}

func newProcessor(
	cfg *config.Config,
	graphs store.GraphStorage,
	publisher *storage.Publisher,
	locker *leaselock.Locker,
	events queue.Channel,
) (*queue.Processor, error) {
	oracle, _, err := cfg.Oracle.ClassificationOracle()
	if err != nil {
		return nil, err
	}
	return queue.NewProcessor(queue.NewProcessorParams{
		Wiki:      cfg.Wiki,
		Defaults:  cfg.Crawl,
		Oracle:    oracle,
		Storage:   graphs,
		Publisher: publisher,
		Locker:    locker,
		Events:    events,
	})
}
