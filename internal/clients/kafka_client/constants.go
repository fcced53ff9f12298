package kafka_client

import "time"

const (
	KAFKA_TOPIC_SUBMISSIONS       = "comment-submissions" // envelopes captured at the edge
	KAFKA_TOPIC_MODERATION_EVENTS = "moderation-events"   // status transitions observed on the item table stream
)

const (
	MAX_RETRIES = 5
	RETRY_DELAY = 2 * time.Second
)
