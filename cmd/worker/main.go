package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/wikigraph/internal/config"
	"github.com/OFFIS-RIT/wikigraph/internal/queue"
	"github.com/OFFIS-RIT/wikigraph/internal/storage"
	"github.com/OFFIS-RIT/wikigraph/internal/timing"
	"github.com/OFFIS-RIT/wikigraph/pkg/leaselock"
	"github.com/OFFIS-RIT/wikigraph/pkg/logger"
	"github.com/OFFIS-RIT/wikigraph/pkg/logger/console"
	pgxstore "github.com/OFFIS-RIT/wikigraph/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	amqp "github.com/rabbitmq/amqp091-go"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()

	// logger
	debug := cfg != nil && cfg.Debug
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  debug,
		Prefix: "worker",
	})
	logger.Init(consoleLogger)

	if err != nil {
		logger.Fatal("Invalid configuration", "err", err)
	}
	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required for the worker")
	}

	// Oracle
	classifier, oracle, err := cfg.Oracle.ClassificationOracle()
	if err != nil {
		logger.Fatal("Could not create oracle", "err", err)
	}

	// Init pgx client
	if err := pgxstore.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("Unable to migrate database", "err", err)
	}
	pgConn, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	graphs, err := pgxstore.NewGraphDBStorageWithConnection(ctx, pgConn)
	if err != nil {
		logger.Fatal("Unable to create graph storage", "err", err)
	}

	hostname, _ := os.Hostname()
	locker := leaselock.NewLocker(leaselock.NewLockerParams{
		DB:    pgConn,
		Wait:  true,
		Owner: "worker-" + hostname,
	})

	// Init s3 client
	var publisher *storage.Publisher
	if cfg.S3.Enabled() {
		client, err := storage.NewS3Client(ctx, cfg.S3)
		if err != nil {
			logger.Fatal("Could not create S3 client", "err", err)
		}
		publisher = storage.NewPublisher(storage.NewPublisherParams{
			Client:         client,
			Bucket:         cfg.S3.Bucket,
			PublicEndpoint: cfg.S3.PublicEndpoint,
		})
	}

	// Init rabbitmq
	conn, err := queue.Dial(cfg.Rabbit.URL())
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}
	defer conn.Close()

	// Init rabbitmq queues if not exist
	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	processor, err := queue.NewProcessor(queue.NewProcessorParams{
		Wiki:      cfg.Wiki,
		Defaults:  cfg.Crawl,
		Oracle:    classifier,
		Storage:   graphs,
		Publisher: publisher,
		Locker:    locker,
		Events:    ch,
	})
	if err != nil {
		logger.Fatal("Could not create processor", "err", err)
	}

	logger.Info("Listening for messages")

	// Create a single consumer channel with prefetch=1
	// This ensures only ONE message is delivered at a time across all queues
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	err = consumerCh.Qos(1, 0, true)
	if err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	type queuedMessage struct {
		msg       amqp.Delivery
		queueName string
	}

	messageChan := make(chan queuedMessage)

	for _, queueName := range queue.Queues {
		go func(qName string) {
			consumerTag := fmt.Sprintf("%s_consumer", qName)
			msgs, err := consumerCh.Consume(
				qName,
				consumerTag,
				false, // autoAck
				false, // exclusive
				false, // noLocal
				false, // noWait
				nil,   // args
			)
			if err != nil {
				logger.Fatal("Failed to start consuming", "queue", qName, "err", err)
			}

			for {
				select {
				case <-ctx.Done():
					logger.Info("Stopping consumer", "queue", qName)
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("Message channel closed", "queue", qName)
						return
					}
					messageChan <- queuedMessage{msg: msg, queueName: qName}
				}
			}
		}(queueName)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case qm := <-messageChan:
				watch := timing.Start()
				logger.Info("Received message", "queue", qm.queueName)

				var processingErr error
				switch qm.queueName {
				case queue.CrawlQueue:
					processingErr = processor.ProcessCrawlMessage(ctx, qm.msg.Body)
				case queue.DeleteQueue:
					processingErr = processor.ProcessDeleteMessage(ctx, qm.msg.Body)
				}

				// If there was an error send to retry or dead-letter, otherwise ack the message
				if processingErr != nil {
					logger.Error("Error processing message", "queue", qm.queueName, "err", processingErr)
					queue.HandleProcessingError(consumerCh, &qm.msg, qm.msg.Body, qm.msg.Headers, qm.queueName)
				} else {
					if err := qm.msg.Ack(false); err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", qm.queueName)
				}

				if oracle != nil {
					stats := oracle.Stats()
					logger.Info(
						"Oracle Metrics",
						"calls", stats.Calls,
						"failures", stats.Failures,
						"input_tokens", stats.Model.InputTokens,
						"output_tokens", stats.Model.OutputTokens,
						"total_tokens", stats.Model.TotalTokens,
						"duration", timing.Format(time.Duration(stats.Model.DurationMs)*time.Millisecond),
					)
					oracle.Reset()
				}
				logger.Info("Processing time", "duration", watch.String())
				logger.Info("Waiting for next message")
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}
