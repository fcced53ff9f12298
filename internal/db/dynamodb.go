package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"commentflow/internal/clients"
	"commentflow/internal/models"
)

const ITEMS_TABLE_NAME = "CommentItems"

var (
	// ErrItemExists is returned by CreateItem when the key already holds an
	// item. Expected under at-least-once delivery; callers treat it as a
	// successful no-op.
	ErrItemExists = errors.New("[DynamoDB] item already exists")

	// ErrStatusFinal is returned by UpdateStatus when the item has already
	// left pending. Moderation decisions are not overwritten.
	ErrStatusFinal = errors.New("[DynamoDB] item status is no longer pending")

	// ErrItemNotFound is returned by UpdateStatus when no item exists
	// under the key.
	ErrItemNotFound = errors.New("[DynamoDB] item not found")
)

// DynamoAPI is the slice of the DynamoDB client the store uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// ItemStore is the keyed store for submitted items, one table keyed by
// (item_type, item_id). All access is single-item by full primary key.
type ItemStore struct {
	client DynamoAPI
	table  string
}

func NewItemStore() *ItemStore {
	table := os.Getenv("DYNAMODB_TABLE")
	if table == "" {
		table = ITEMS_TABLE_NAME
	}
	return &ItemStore{
		client: clients.GetDynamoDBClient(),
		table:  table,
	}
}

// NewItemStoreWithClient wires an explicit client, used by tests.
func NewItemStoreWithClient(client DynamoAPI, table string) *ItemStore {
	return &ItemStore{client: client, table: table}
}

// CreateItem writes item only if no item with the same (item_type, item_id)
// exists. The condition makes redelivery safe: the first write wins and
// every later duplicate surfaces as ErrItemExists without touching payload
// or status.
func (s *ItemStore) CreateItem(ctx context.Context, item models.StoredItem) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("[DynamoDB] failed to marshal item %s/%s: %w", item.ItemType, item.ItemID, err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(item_type) AND attribute_not_exists(item_id)"),
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return ErrItemExists
		}
		return fmt.Errorf("[DynamoDB] failed to put item %s/%s: %w", item.ItemType, item.ItemID, err)
	}

	slog.Info("[DynamoDB] Stored new item",
		slog.String("item_type", item.ItemType),
		slog.String("item_id", item.ItemID))
	return nil
}

// GetItem fetches one item by its full primary key. Returns nil when the
// key holds nothing.
func (s *ItemStore) GetItem(ctx context.Context, itemType, itemID string) (*models.StoredItem, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       itemKey(itemType, itemID),
	})
	if err != nil {
		return nil, fmt.Errorf("[DynamoDB] failed to get item %s/%s: %w", itemType, itemID, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var item models.StoredItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("[DynamoDB] failed to unmarshal item %s/%s: %w", itemType, itemID, err)
	}
	return &item, nil
}

// UpdateStatus applies a moderation decision. Transitions are only allowed
// out of pending, so a decision already taken is never overwritten and the
// ingestion path can never be raced into downgrading one.
func (s *ItemStore) UpdateStatus(ctx context.Context, itemType, itemID, status string) error {
	if status != models.StatusApproved && status != models.StatusRejected {
		return fmt.Errorf("[DynamoDB] invalid target status %q", status)
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.table),
		Key:                 itemKey(itemType, itemID),
		UpdateExpression:    aws.String("SET #status = :status"),
		ConditionExpression: aws.String("attribute_exists(item_id) AND #status = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":  &types.AttributeValueMemberS{Value: status},
			":pending": &types.AttributeValueMemberS{Value: models.StatusPending},
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			// The condition fails both for a missing item and for one
			// whose status already left pending; the returned old item
			// tells the two apart.
			if len(condFailed.Item) == 0 {
				return ErrItemNotFound
			}
			return ErrStatusFinal
		}
		return fmt.Errorf("[DynamoDB] failed to update status for %s/%s: %w", itemType, itemID, err)
	}

	slog.Info("[DynamoDB] Updated item status",
		slog.String("item_type", itemType),
		slog.String("item_id", itemID),
		slog.String("status", status))
	return nil
}

func itemKey(itemType, itemID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"item_type": &types.AttributeValueMemberS{Value: itemType},
		"item_id":   &types.AttributeValueMemberS{Value: itemID},
	}
}
