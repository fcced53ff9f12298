package kafka_client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

var producer *kafka.Producer

func InitProducer(cfg KafkaConfig) error {
	slog.Info("[KafkaClient] Initializing Kafka Producer...",
		slog.String("broker", cfg.Broker))

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":                     cfg.Broker,
		"security.protocol":                     "PLAINTEXT",
		"api.version.request":                   "true",
		"enable.idempotence":                    true,
		"acks":                                  "all",
		"max.in.flight.requests.per.connection": 1,
	})
	if err != nil {
		return fmt.Errorf("[KafkaClient] Failed to create producer: %w", err)
	}

	producer = p
	slog.Info("[KafkaClient] Kafka Producer initialized successfully")
	return nil
}

func CloseProducer() {
	if producer == nil {
		return
	}
	slog.Info("[KafkaClient] Flushing Kafka producer before shutdown...")
	if remaining := producer.Flush(5000); remaining > 0 {
		slog.Warn("[KafkaClient] Not all messages were delivered before shutdown",
			slog.Int("remaining", remaining))
	}
	producer.Close()
	slog.Info("[KafkaClient] Kafka producer shut down")
}

// PublishToKafka serializes value and produces it to topic, waiting for
// the broker's delivery report. The wait is bounded by ctx so an edge
// invocation never outlives its own timeout; on ctx expiry the publish is
// reported as failed even if the broker later accepts it, which is safe
// because the processor is idempotent on the message key.
func PublishToKafka(ctx context.Context, topic string, key string, value any) error {
	if producer == nil {
		return fmt.Errorf("[KafkaClient] producer has not been initialized")
	}

	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("[KafkaClient] failed to serialize message: %w", err)
	}

	deliveryChan := make(chan kafka.Event, 1)
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          jsonData,
	}

	if err := producer.Produce(msg, deliveryChan); err != nil {
		return fmt.Errorf("[KafkaClient] failed to produce message: %w", err)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("[KafkaClient] publish to %s timed out: %w", topic, ctx.Err())
	case e := <-deliveryChan:
		report, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("[KafkaClient] unexpected delivery event: %v", e)
		}
		if report.TopicPartition.Error != nil {
			return fmt.Errorf("[KafkaClient] delivery to %s failed: %w", topic, report.TopicPartition.Error)
		}
	}

	slog.Debug("[KafkaClient] Published message",
		slog.String("topic", topic),
		slog.String("key", key))
	return nil
}
