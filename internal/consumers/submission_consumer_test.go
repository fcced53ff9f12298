package consumers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commentflow/internal/clients/kafka_client"
	"commentflow/internal/db"
	"commentflow/internal/models"
	"commentflow/internal/processing"
)

// stubStore implements processing.ItemStore with a scriptable error
// sequence: failuresLeft errors are returned before writes succeed.
type stubStore struct {
	err          error
	failuresLeft int
	creates      int
	attempts     int
}

func (s *stubStore) CreateItem(_ context.Context, _ models.StoredItem) error {
	s.attempts++
	if s.err != nil && (s.failuresLeft == 0 || s.attempts <= s.failuresLeft) {
		return s.err
	}
	s.creates++
	return nil
}

type fakeCommitter struct {
	commits []*kafka.Message
	err     error
}

func (c *fakeCommitter) Commit(msg *kafka.Message) error {
	if c.err != nil {
		return c.err
	}
	c.commits = append(c.commits, msg)
	return nil
}

type fakeSeeker struct {
	seeks []kafka.TopicPartition
	err   error
}

func (s *fakeSeeker) Seek(partition kafka.TopicPartition, _ int) error {
	if s.err != nil {
		return s.err
	}
	s.seeks = append(s.seeks, partition)
	return nil
}

func testMessage(offset int64) *kafka.Message {
	topic := kafka_client.KAFKA_TOPIC_SUBMISSIONS
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: 0,
			Offset:    kafka.Offset(offset),
		},
	}
}

func testEnvelope(requestID string) models.Envelope {
	return models.Envelope{
		Submission: models.Submission{
			RequestID:  requestID,
			Fields:     map[string]string{"author": "alice", "body": "hi"},
			ReceivedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		Topic: kafka_client.KAFKA_TOPIC_SUBMISSIONS,
	}
}

func noRetryDelay(t *testing.T) {
	t.Helper()
	prev := transientRetryDelay
	transientRetryDelay = 0
	t.Cleanup(func() { transientRetryDelay = prev })
}

func TestHandleEnvelopeCommitsOnSuccess(t *testing.T) {
	store := &stubStore{}
	committer := &fakeCommitter{}
	processor := processing.NewProcessor(store, nil)
	msg := testMessage(4)

	terminal := handleEnvelope(context.Background(), processor, committer, msg, testEnvelope("r1"))

	assert.True(t, terminal)
	assert.Equal(t, 1, store.creates)
	require.Len(t, committer.commits, 1)
	assert.Equal(t, msg, committer.commits[0])
}

func TestHandleEnvelopeCommitsOnInvalidSubmission(t *testing.T) {
	store := &stubStore{}
	committer := &fakeCommitter{}
	processor := processing.NewProcessor(store, nil)

	terminal := handleEnvelope(context.Background(), processor, committer, testMessage(4), testEnvelope(""))

	assert.True(t, terminal, "permanent failures are dropped, not redelivered")
	assert.Zero(t, store.attempts, "invalid submissions never reach the store")
	assert.Len(t, committer.commits, 1)
}

func TestHandleEnvelopeCommitsOnDuplicate(t *testing.T) {
	store := &stubStore{err: db.ErrItemExists}
	committer := &fakeCommitter{}
	processor := processing.NewProcessor(store, nil)

	terminal := handleEnvelope(context.Background(), processor, committer, testMessage(4), testEnvelope("r1"))

	assert.True(t, terminal, "a duplicate delivery is a successful no-op")
	assert.Len(t, committer.commits, 1)
}

func TestHandleEnvelopeLeavesOffsetOnExhaustedTransientFailure(t *testing.T) {
	noRetryDelay(t)

	store := &stubStore{err: errors.New("service unavailable")}
	committer := &fakeCommitter{}
	processor := processing.NewProcessor(store, nil)

	terminal := handleEnvelope(context.Background(), processor, committer, testMessage(4), testEnvelope("r1"))

	assert.False(t, terminal, "transient failures must signal redelivery")
	assert.Empty(t, committer.commits, "the offset must not move past the failed envelope")
	assert.Equal(t, kafka_client.MAX_RETRIES, store.attempts)
}

func TestHandleEnvelopeRecoversWithinRetryBudget(t *testing.T) {
	noRetryDelay(t)

	store := &stubStore{err: errors.New("throttled"), failuresLeft: 2}
	committer := &fakeCommitter{}
	processor := processing.NewProcessor(store, nil)

	terminal := handleEnvelope(context.Background(), processor, committer, testMessage(4), testEnvelope("r1"))

	assert.True(t, terminal)
	assert.Equal(t, 1, store.creates)
	assert.Len(t, committer.commits, 1)
}

func TestHandleEnvelopeStopsRetryingOnCancel(t *testing.T) {
	noRetryDelay(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &stubStore{}
	committer := &fakeCommitter{}
	processor := processing.NewProcessor(store, nil)

	terminal := handleEnvelope(ctx, processor, committer, testMessage(4), testEnvelope("r1"))

	assert.False(t, terminal, "shutdown mid-envelope leaves the offset for redelivery")
	assert.Empty(t, committer.commits)
}

func TestRewindSeeksBackToFailedMessage(t *testing.T) {
	seeker := &fakeSeeker{}
	msg := testMessage(4)

	require.True(t, rewind(seeker, msg))
	require.Len(t, seeker.seeks, 1)
	assert.Equal(t, msg.TopicPartition, seeker.seeks[0])
	assert.Equal(t, kafka.Offset(4), seeker.seeks[0].Offset)
}

func TestRewindReportsSeekFailure(t *testing.T) {
	seeker := &fakeSeeker{err: errors.New("partition not assigned")}

	assert.False(t, rewind(seeker, testMessage(4)))
	assert.Empty(t, seeker.seeks)
}
