package main

import (
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"commentflow/config"
	"commentflow/internal/capture"
	"commentflow/internal/clients/kafka_client"
	"commentflow/internal/logging"
)

// SubmitPath is the reserved edge path; everything else on the site is
// static content served upstream of this process.
const SubmitPath = "/submit"

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	logging.InitLogger()

	cfg := kafka_client.GetKafkaConfig()
	for {
		err := kafka_client.InitProducer(cfg)
		if err == nil {
			break
		}

		slog.Warn("Kafka init failed, retrying...", slog.String("error", err.Error()))
		time.Sleep(5 * time.Second)
	}
	defer kafka_client.CloseProducer()

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(limiter.New(limiter.Config{
		Max:        envInt("RATE_LIMIT_MAX", 30),
		Expiration: time.Duration(envInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	handler := capture.NewSubmissionHandler(kafka_client.PublishToKafka)
	app.Get(SubmitPath, handler)
	app.Post(SubmitPath, handler)

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stopChan
		slog.Info("Shutting down edge gracefully...")
		if err := app.Shutdown(); err != nil {
			slog.Error("Edge shutdown failed", slog.String("error", err.Error()))
		}
	}()

	port := config.GetEnv("PORT", "8080")
	slog.Info("[Edge] Listening for submissions", slog.String("port", port))
	if err := app.Listen(":" + port); err != nil {
		slog.Error("[Edge] Server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
