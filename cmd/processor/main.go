package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"commentflow/config"
	"commentflow/internal/clients"
	"commentflow/internal/clients/kafka_client"
	"commentflow/internal/consumers"
	"commentflow/internal/db"
	"commentflow/internal/logging"
	"commentflow/internal/processing"
)

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	logging.InitLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store := db.NewItemStore()

	var cache processing.DedupCache
	if os.Getenv("VALKEY_INIT_ADDRESS") != "" {
		cache = clients.InitValkey()
		defer clients.CloseValkey()
	}

	processor := processing.NewProcessor(store, cache)

	cfg := kafka_client.GetKafkaConfig()
	kafka_client.RegisterConsumer(kafka_client.KAFKA_TOPIC_SUBMISSIONS,
		consumers.NewSubmissionConsumer(processor))

	if err := kafka_client.StartConsumer(ctx, cfg); err != nil {
		slog.Error("[Main] Failed to start consumer",
			slog.String("error", err.Error()))
		os.Exit(1)
	}
}
