package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"commentflow/config"
	"commentflow/internal/clients/kafka_client"
	"commentflow/internal/logging"
	"commentflow/internal/streams"
)

// init runs once per Lambda cold start.
func init() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	logging.InitLogger()

	if err := kafka_client.InitProducer(kafka_client.GetKafkaConfig()); err != nil {
		slog.Error("[StreamHandler] Kafka producer init failed",
			slog.String("error", err.Error()))
		panic(err)
	}
}

// HandleRequest relays moderation status transitions from the item table's
// stream onto the moderation-events topic. Returning an error fails the
// batch, so Lambda's own retry gives the relay at-least-once semantics;
// downstream consumers have to dedup on (item_id, new_status) themselves.
func HandleRequest(ctx context.Context, event events.DynamoDBEvent) error {
	slog.Info("[StreamHandler] Received stream event",
		slog.Int("record_count", len(event.Records)))

	for _, record := range event.Records {
		modEvent, err := streams.ProcessModerationRecord(record)
		if err != nil {
			// Unparseable records will not parse on retry either; skip.
			slog.Warn("[StreamHandler] Skipping unreadable record",
				slog.String("event_id", record.EventID),
				slog.String("error", err.Error()))
			continue
		}
		if modEvent == nil {
			continue
		}

		err = kafka_client.PublishToKafka(ctx, kafka_client.KAFKA_TOPIC_MODERATION_EVENTS,
			modEvent.ItemID, modEvent)
		if err != nil {
			slog.Error("[StreamHandler] Failed to publish moderation event, failing batch",
				slog.String("event_id", record.EventID),
				slog.String("error", err.Error()))
			return err
		}
	}

	return nil
}

func main() {
	lambda.Start(HandleRequest)
}
