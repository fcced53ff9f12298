package processing

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"commentflow/internal/db"
	"commentflow/internal/models"
)

// FieldKind is the reserved submission field that selects the item type.
const FieldKind = "kind"

// ItemStore is the slice of the keyed store the processor writes through.
type ItemStore interface {
	CreateItem(ctx context.Context, item models.StoredItem) error
}

// DedupCache is an optional fast path in front of the store's conditional
// write. It only ever short-circuits duplicates; it never admits a write.
type DedupCache interface {
	IsProcessed(ctx context.Context, itemType, requestID string) bool
	MarkProcessed(ctx context.Context, itemType, requestID string) error
}

type Processor struct {
	store ItemStore
	cache DedupCache
}

// NewProcessor builds a processor. cache may be nil, in which case every
// envelope goes straight to the conditional write.
func NewProcessor(store ItemStore, cache DedupCache) *Processor {
	return &Processor{store: store, cache: cache}
}

// ProcessEnvelope validates and persists one delivered envelope. The
// outcome classifies as: nil (stored, or duplicate no-op), *ValidationError
// (permanent, drop), or *TransientError (store trouble, redeliver).
func (p *Processor) ProcessEnvelope(ctx context.Context, env models.Envelope) error {
	item, err := DeriveItem(env.Submission)
	if err != nil {
		return err
	}

	if p.cache != nil && p.cache.IsProcessed(ctx, item.ItemType, item.ItemID) {
		slog.Info("[Processor] Duplicate delivery short-circuited by cache",
			slog.String("item_type", item.ItemType),
			slog.String("item_id", item.ItemID))
		return nil
	}

	if err := p.store.CreateItem(ctx, item); err != nil {
		if errors.Is(err, db.ErrItemExists) {
			slog.Info("[Processor] Duplicate delivery, item already stored",
				slog.String("item_type", item.ItemType),
				slog.String("item_id", item.ItemID))
			return nil
		}
		return &TransientError{Err: err}
	}

	if p.cache != nil {
		if err := p.cache.MarkProcessed(ctx, item.ItemType, item.ItemID); err != nil {
			slog.Warn("[Processor] Failed to mark item processed in cache",
				slog.String("item_id", item.ItemID),
				slog.String("error", err.Error()))
		}
	}

	return nil
}

// DeriveItem turns a submission into the record to persist: validates the
// idempotency key, normalizes the fields, and picks the item type from the
// reserved kind field. Every new item starts out pending.
func DeriveItem(sub models.Submission) (models.StoredItem, error) {
	requestID := strings.TrimSpace(sub.RequestID)
	if requestID == "" {
		return models.StoredItem{}, &ValidationError{Reason: "missing request_id"}
	}

	payload := NormalizeFields(sub.Fields)

	itemType := models.ItemTypeComment
	if payload[FieldKind] == models.ItemTypeSubscription {
		itemType = models.ItemTypeSubscription
	}

	createdAt := sub.ReceivedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return models.StoredItem{
		ItemType:  itemType,
		ItemID:    requestID,
		Payload:   payload,
		Status:    models.StatusPending,
		CreatedAt: createdAt,
	}, nil
}

// NormalizeFields trims whitespace and drops empty keys and values. No
// further validation happens here: the submission schema is free-form and
// only the identifier is load-bearing.
func NormalizeFields(fields map[string]string) map[string]string {
	normalized := make(map[string]string, len(fields))
	for k, v := range fields {
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		normalized[k] = v
	}
	return normalized
}
