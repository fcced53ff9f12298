package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commentflow/internal/models"
)

// fakeDynamo implements DynamoAPI with an in-memory item map and honors
// the two condition expressions the store uses.
type fakeDynamo struct {
	items map[string]map[string]types.AttributeValue

	putErr    error
	updateErr error

	lastPut    *dynamodb.PutItemInput
	lastUpdate *dynamodb.UpdateItemInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func keyOf(item map[string]types.AttributeValue) string {
	itemType := item["item_type"].(*types.AttributeValueMemberS).Value
	itemID := item["item_id"].(*types.AttributeValueMemberS).Value
	return itemType + "/" + itemID
}

func (f *fakeDynamo) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPut = params
	if f.putErr != nil {
		return nil, f.putErr
	}

	key := keyOf(params.Item)
	if params.ConditionExpression != nil {
		if _, exists := f.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	f.items[key] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	item, ok := f.items[keyOf(params.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, params *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.lastUpdate = params
	if f.updateErr != nil {
		return nil, f.updateErr
	}

	item, ok := f.items[keyOf(params.Key)]
	if !ok {
		// No item under the key: nothing to return as the old image.
		return nil, &types.ConditionalCheckFailedException{}
	}
	status := item["status"].(*types.AttributeValueMemberS).Value
	if status != models.StatusPending {
		failed := &types.ConditionalCheckFailedException{}
		if params.ReturnValuesOnConditionCheckFailure == types.ReturnValuesOnConditionCheckFailureAllOld {
			failed.Item = item
		}
		return nil, failed
	}
	item["status"] = params.ExpressionAttributeValues[":status"]
	return &dynamodb.UpdateItemOutput{}, nil
}

func testItem(id string) models.StoredItem {
	return models.StoredItem{
		ItemType:  models.ItemTypeComment,
		ItemID:    id,
		Payload:   map[string]string{"author": "alice", "body": "hi"},
		Status:    models.StatusPending,
		CreatedAt: time.Unix(1700000000, 0).UTC(),
	}
}

func TestCreateItemFirstWriteWins(t *testing.T) {
	fake := newFakeDynamo()
	store := NewItemStoreWithClient(fake, "CommentItems")

	require.NoError(t, store.CreateItem(context.Background(), testItem("r1")))

	require.NotNil(t, fake.lastPut)
	require.NotNil(t, fake.lastPut.ConditionExpression)
	assert.Contains(t, *fake.lastPut.ConditionExpression, "attribute_not_exists")

	err := store.CreateItem(context.Background(), testItem("r1"))
	assert.ErrorIs(t, err, ErrItemExists)
}

func TestCreateItemDuplicateKeepsOriginalPayload(t *testing.T) {
	fake := newFakeDynamo()
	store := NewItemStoreWithClient(fake, "CommentItems")

	first := testItem("r1")
	require.NoError(t, store.CreateItem(context.Background(), first))

	second := testItem("r1")
	second.Payload = map[string]string{"body": "overwrite attempt"}
	require.ErrorIs(t, store.CreateItem(context.Background(), second), ErrItemExists)

	got, err := store.GetItem(context.Background(), models.ItemTypeComment, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.Payload, got.Payload)
}

func TestCreateItemTransientFailure(t *testing.T) {
	fake := newFakeDynamo()
	fake.putErr = errors.New("service unavailable")
	store := NewItemStoreWithClient(fake, "CommentItems")

	err := store.CreateItem(context.Background(), testItem("r1"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrItemExists)

	got, getErr := store.GetItem(context.Background(), models.ItemTypeComment, "r1")
	require.NoError(t, getErr)
	assert.Nil(t, got, "a failed put must leave no partial item")
}

func TestGetItemRoundTrip(t *testing.T) {
	fake := newFakeDynamo()
	store := NewItemStoreWithClient(fake, "CommentItems")

	want := testItem("r1")
	require.NoError(t, store.CreateItem(context.Background(), want))

	got, err := store.GetItem(context.Background(), models.ItemTypeComment, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.ItemType, got.ItemType)
	assert.Equal(t, want.ItemID, got.ItemID)
	assert.Equal(t, want.Payload, got.Payload)
	assert.Equal(t, want.Status, got.Status)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
}

func TestGetItemMissing(t *testing.T) {
	store := NewItemStoreWithClient(newFakeDynamo(), "CommentItems")

	got, err := store.GetItem(context.Background(), models.ItemTypeComment, "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateStatusFromPending(t *testing.T) {
	fake := newFakeDynamo()
	store := NewItemStoreWithClient(fake, "CommentItems")

	require.NoError(t, store.CreateItem(context.Background(), testItem("r1")))
	require.NoError(t, store.UpdateStatus(context.Background(), models.ItemTypeComment, "r1", models.StatusApproved))

	got, err := store.GetItem(context.Background(), models.ItemTypeComment, "r1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
}

func TestUpdateStatusNeverOverwritesDecision(t *testing.T) {
	fake := newFakeDynamo()
	store := NewItemStoreWithClient(fake, "CommentItems")

	require.NoError(t, store.CreateItem(context.Background(), testItem("r1")))
	require.NoError(t, store.UpdateStatus(context.Background(), models.ItemTypeComment, "r1", models.StatusRejected))

	err := store.UpdateStatus(context.Background(), models.ItemTypeComment, "r1", models.StatusApproved)
	assert.ErrorIs(t, err, ErrStatusFinal)

	got, _ := store.GetItem(context.Background(), models.ItemTypeComment, "r1")
	assert.Equal(t, models.StatusRejected, got.Status)
}

func TestUpdateStatusMissingItem(t *testing.T) {
	store := NewItemStoreWithClient(newFakeDynamo(), "CommentItems")

	err := store.UpdateStatus(context.Background(), models.ItemTypeComment, "nope", models.StatusApproved)
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.NotErrorIs(t, err, ErrStatusFinal)
}

func TestUpdateStatusRejectsInvalidTarget(t *testing.T) {
	store := NewItemStoreWithClient(newFakeDynamo(), "CommentItems")

	err := store.UpdateStatus(context.Background(), models.ItemTypeComment, "r1", models.StatusPending)
	assert.Error(t, err)
}

func TestStoredItemAttributeNames(t *testing.T) {
	av, err := attributevalue.MarshalMap(testItem("r1"))
	require.NoError(t, err)

	for _, attr := range []string{"item_type", "item_id", "payload", "status", "created_at"} {
		assert.Contains(t, av, attr)
	}
}
