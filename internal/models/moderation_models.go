package models

import "time"

// ModerationEvent describes a single status transition observed on the
// item table's stream. Republished to the moderation-events topic for
// downstream consumers (notification delivery is future work).
type ModerationEvent struct {
	ItemType   string    `json:"item_type"`
	ItemID     string    `json:"item_id"`
	OldStatus  string    `json:"old_status"`
	NewStatus  string    `json:"new_status"`
	ObservedAt time.Time `json:"observed_at"`
}
