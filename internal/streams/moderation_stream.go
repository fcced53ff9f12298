package streams

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"commentflow/internal/models"
)

// ProcessModerationRecord extracts a status transition from one stream
// record of the item table. Returns nil for records that are not
// transitions: inserts, removals, and modifications that left status
// untouched.
func ProcessModerationRecord(record events.DynamoDBEventRecord) (*models.ModerationEvent, error) {
	if record.EventName != "MODIFY" {
		slog.Debug("[ModerationStream] Skipping non-MODIFY record",
			slog.String("event_id", record.EventID),
			slog.String("event_name", record.EventName))
		return nil, nil
	}

	var oldItem, newItem models.StoredItem
	if err := UnmarshalStreamImage(record.Change.OldImage, &oldItem); err != nil {
		return nil, fmt.Errorf("[ModerationStream] failed to unmarshal old image: %w", err)
	}
	if err := UnmarshalStreamImage(record.Change.NewImage, &newItem); err != nil {
		return nil, fmt.Errorf("[ModerationStream] failed to unmarshal new image: %w", err)
	}

	if oldItem.Status == newItem.Status {
		return nil, nil
	}

	slog.Info("[ModerationStream] Observed status transition",
		slog.String("item_type", newItem.ItemType),
		slog.String("item_id", newItem.ItemID),
		slog.String("old_status", oldItem.Status),
		slog.String("new_status", newItem.Status))

	return &models.ModerationEvent{
		ItemType:   newItem.ItemType,
		ItemID:     newItem.ItemID,
		OldStatus:  oldItem.Status,
		NewStatus:  newItem.Status,
		ObservedAt: time.Now().UTC(),
	}, nil
}
