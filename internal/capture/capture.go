package capture

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"commentflow/internal/clients/kafka_client"
	"commentflow/internal/models"
)

// RequestIDParam is the query parameter a caller may use to supply its own
// idempotency key. When absent one is generated, so nothing the edge
// publishes ever carries an empty request_id.
const RequestIDParam = "request_id"

// publishTimeout bounds the only wait on the edge path, the bus delivery
// acknowledgment. Kept well under any sane edge invocation timeout.
const publishTimeout = 5 * time.Second

// Publisher publishes one envelope to the bus. Satisfied by
// kafka_client.PublishToKafka.
type Publisher func(ctx context.Context, topic string, key string, value any) error

// NewSubmissionHandler returns the edge handler for the reserved
// submission path. It reads nothing but the query string, publishes
// exactly once, and answers independent of what the processor later does
// with the envelope: 204 means accepted for processing, not stored.
func NewSubmissionHandler(publish Publisher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		submission := SubmissionFromQuery(c.Queries())
		envelope := models.Envelope{
			Submission:  submission,
			Topic:       kafka_client.KAFKA_TOPIC_SUBMISSIONS,
			PublishedAt: time.Now().UTC(),
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), publishTimeout)
		defer cancel()

		if err := publish(ctx, envelope.Topic, submission.RequestID, envelope); err != nil {
			slog.Error("[Capture] Failed to publish submission",
				slog.String("request_id", submission.RequestID),
				slog.String("error", err.Error()))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "unable to accept submission",
			})
		}

		slog.Info("[Capture] Accepted submission",
			slog.String("request_id", submission.RequestID),
			slog.Int("fields", len(submission.Fields)))
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// SubmissionFromQuery builds a submission from raw query parameters. No
// required fields are enforced here; validation is the processor's job so
// the edge path stays minimal.
func SubmissionFromQuery(params map[string]string) models.Submission {
	fields := make(map[string]string, len(params))
	for k, v := range params {
		fields[k] = v
	}

	requestID := fields[RequestIDParam]
	if requestID == "" {
		requestID = uuid.NewString()
	}
	delete(fields, RequestIDParam)

	return models.Submission{
		RequestID:  requestID,
		Fields:     fields,
		ReceivedAt: time.Now().UTC(),
	}
}
