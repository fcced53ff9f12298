package models

import "time"

// Item types partition the store. Low cardinality by design: the partition
// key only works while item counts per type stay small.
const (
	ItemTypeComment      = "comment"
	ItemTypeSubscription = "subscription"
)

// Moderation states. Ingestion only ever writes StatusPending; the other
// two are applied by an external moderator action and must never be
// overwritten by the ingestion path.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// StoredItem is the persisted record, keyed by (item_type, item_id).
// item_id is the submission's request_id. Only Status is mutable after
// creation.
type StoredItem struct {
	ItemType  string            `json:"item_type" dynamodbav:"item_type"`
	ItemID    string            `json:"item_id" dynamodbav:"item_id"`
	Payload   map[string]string `json:"payload" dynamodbav:"payload"`
	Status    string            `json:"status" dynamodbav:"status"`
	CreatedAt time.Time         `json:"created_at" dynamodbav:"created_at,unixtime"`
}
