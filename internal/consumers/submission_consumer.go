package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"commentflow/internal/clients/kafka_client"
	"commentflow/internal/models"
	"commentflow/internal/processing"
)

// seekTimeoutMs bounds the blocking Seek call used to rewind a partition
// after a transient failure.
const seekTimeoutMs = 5000

// transientRetryDelay is a var so tests can drop the wait between
// in-place retries.
var transientRetryDelay = kafka_client.RETRY_DELAY

// offsetCommitter is the slice of the commit handler the loop uses.
type offsetCommitter interface {
	Commit(msg *kafka.Message) error
}

// offsetSeeker is the slice of the Kafka consumer used to rewind a
// partition back to a failed offset.
type offsetSeeker interface {
	Seek(partition kafka.TopicPartition, timeoutMs int) error
}

// NewSubmissionConsumer builds the consumer loop for the submissions
// topic. Offsets are committed only once an envelope reached a terminal
// outcome (stored, duplicate, or invalid). A transient failure must not
// be read past: the fetch position has already advanced beyond the failed
// message, so the loop seeks the partition back to it before reading
// again — committing any later offset first would drop the envelope for
// good.
func NewSubmissionConsumer(processor *processing.Processor) func(context.Context, *kafka.Consumer) {
	return func(ctx context.Context, consumer *kafka.Consumer) {
		iterator := kafka_client.NewKafkaMessageIterator(ctx, consumer)
		committer := kafka_client.NewCommitHandler(ctx, consumer)

		slog.Info("[SubmissionConsumer] Listening for messages...")

		for {
			select {
			case <-ctx.Done():
				slog.Warn("[SubmissionConsumer] Stopping consumer...")
				return
			default:
				msg, err := iterator.Next()
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return
					}
					slog.Error("[SubmissionConsumer] Kafka consumer error",
						slog.String("error", err.Error()))
					continue
				}

				var env models.Envelope
				if err := json.Unmarshal(msg.Value, &env); err != nil {
					// An envelope that does not even parse can never be
					// processed; redelivering it would loop forever.
					slog.Warn("[SubmissionConsumer] Dropping malformed envelope",
						slog.String("error", err.Error()))
					commit(committer, msg)
					continue
				}

				if handleEnvelope(ctx, processor, committer, msg, env) {
					continue
				}

				// Transient failure: rewind so the next read returns the
				// same envelope. If even the seek fails, stop consuming;
				// a restart resumes from the committed offset.
				if !rewind(consumer, msg) {
					slog.Error("[SubmissionConsumer] Could not rewind to failed offset, stopping consumer")
					return
				}
				time.Sleep(transientRetryDelay)
			}
		}
	}
}

// handleEnvelope drives one envelope to an outcome. It reports true when
// the outcome is terminal and the offset was committed; false means a
// transient failure exhausted its retries and the offset must not move.
func handleEnvelope(ctx context.Context, processor *processing.Processor, committer offsetCommitter, msg *kafka.Message, env models.Envelope) bool {
	var err error
	for attempt := 0; attempt < kafka_client.MAX_RETRIES; attempt++ {
		if ctx.Err() != nil {
			return false
		}

		err = processor.ProcessEnvelope(ctx, env)
		if err == nil || processing.IsPermanent(err) {
			break
		}

		slog.Warn("[SubmissionConsumer] Transient failure, retrying...",
			slog.Int("attempt", attempt+1),
			slog.String("request_id", env.Submission.RequestID),
			slog.String("error", err.Error()))
		time.Sleep(transientRetryDelay)
	}

	if err != nil {
		if processing.IsPermanent(err) {
			slog.Warn("[SubmissionConsumer] Dropping invalid submission",
				slog.String("request_id", env.Submission.RequestID),
				slog.String("error", err.Error()))
			commit(committer, msg)
			return true
		}

		slog.Error("[SubmissionConsumer] Exhausted retries, rewinding for redelivery",
			slog.String("request_id", env.Submission.RequestID),
			slog.String("error", err.Error()))
		return false
	}

	commit(committer, msg)
	return true
}

// rewind moves the partition's fetch position back to msg so it is read
// again. Seeking to the message's own offset re-reads that exact message.
func rewind(consumer offsetSeeker, msg *kafka.Message) bool {
	if err := consumer.Seek(msg.TopicPartition, seekTimeoutMs); err != nil {
		slog.Error("[SubmissionConsumer] Failed to seek partition",
			slog.Int("partition", int(msg.TopicPartition.Partition)),
			slog.String("offset", msg.TopicPartition.Offset.String()),
			slog.String("error", err.Error()))
		return false
	}

	slog.Info("[SubmissionConsumer] Rewound partition to failed offset",
		slog.Int("partition", int(msg.TopicPartition.Partition)),
		slog.String("offset", msg.TopicPartition.Offset.String()))
	return true
}

func commit(committer offsetCommitter, msg *kafka.Message) {
	if err := committer.Commit(msg); err != nil {
		slog.Warn("[SubmissionConsumer] Failed to commit offset",
			slog.String("error", err.Error()))
	}
}
