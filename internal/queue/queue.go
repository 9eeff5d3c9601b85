package queue

import (
	"fmt"
	"time"

	"github.com/OFFIS-RIT/wikigraph/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const (
	CrawlQueue  = "crawl_queue"
	DeleteQueue = "delete_queue"

	eventsExchange = "wikigraph_events"

	// maxRetries is how often a failed message goes through the retry
	// queue before it is parked in the dead letter queue.
	maxRetries = 5
	retryDelay = 30 * time.Second
)

// Queues lists every work queue the worker consumes.
var Queues = []string{CrawlQueue, DeleteQueue}

// Channel is the part of an amqp channel used for publishing.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
}

func Dial(url string) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// SetupQueues declares each queue together with its dead letter queue and a
// retry queue that dead-letters back into the main queue after retryDelay.
func SetupQueues(ch *amqp091.Channel, queueNames []string) error {
	if err := ch.ExchangeDeclare(eventsExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", eventsExchange, err)
	}

	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", name, err)
		}

		dlqName := name + "_dlq"
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", dlqName, err)
		}

		retryName := name + "_retry"
		if _, err := ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(retryDelay.Milliseconds()),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", retryName, err)
		}
	}
	logger.Debug("[Queue] Queues declared", "queues", queueNames)
	return nil
}

// PublishFIFO publishes a persistent message straight to queueName.
func PublishFIFO(ch Channel, queueName string, data []byte) error {
	return ch.Publish(
		"",
		queueName,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         data,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		},
	)
}

// PublishTopic announces an event on the events exchange.
func PublishTopic(ch Channel, topic string, data []byte) error {
	if err := ch.ExchangeDeclare(eventsExchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	return ch.Publish(
		eventsExchange,
		topic,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         data,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		},
	)
}

// Delivery is the part of an amqp delivery the retry logic touches.
type Delivery interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// HandleProcessingError sends a failed message to the retry queue, or to the
// dead letter queue once it has been retried maxRetries times.
func HandleProcessingError(ch Channel, msg Delivery, body []byte, headers amqp091.Table, queueName string) {
	retries := retryCount(headers)

	target := queueName + "_retry"
	if retries >= maxRetries {
		target = queueName + "_dlq"
		logger.Warn("[Queue] Sending message to DLQ", "dlq", target, "retries", retries)
	}

	next := amqp091.Table{}
	for k, v := range headers {
		next[k] = v
	}
	next["x-retries"] = int32(retries + 1)

	err := ch.Publish("", target, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		Headers:      next,
		DeliveryMode: amqp091.Persistent,
	})
	if err != nil {
		logger.Error("[Queue] Failed to republish message", "queue", target, "err", err)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

func retryCount(headers amqp091.Table) int {
	switch v := headers["x-retries"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}
