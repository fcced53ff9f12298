package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/valkey-io/valkey-go"
)

var (
	valkeyInstance *ValkeyClient
	valkeyOnce     sync.Once
)

// ValkeyClient keeps a per-item-type set of request IDs that already made
// it through the processor. The set is a fast-path only: the store's
// conditional write stays the authority on duplicates, so losing the cache
// loses nothing but a round trip.
type ValkeyClient struct {
	Client valkey.Client
}

const processedKeyTTL = 7 * 24 * 3600 // seconds

func InitValkey() *ValkeyClient {
	valkeyOnce.Do(func() {
		opts := valkey.ClientOption{
			InitAddress:      []string{os.Getenv("VALKEY_INIT_ADDRESS")},
			Password:         os.Getenv("VALKEY_PASSWORD"),
			ConnWriteTimeout: 5 * time.Second,
			SelectDB:         0,
		}
		if os.Getenv("VALKEY_TLS") == "true" {
			opts.TLSConfig = &tls.Config{}
		}

		client, err := valkey.NewClient(opts)
		if err != nil {
			panic(fmt.Errorf("[ValkeyClient] failed to create Valkey client: %w", err))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if res := client.Do(ctx, client.B().Ping().Build()); res.Error() != nil {
			panic(fmt.Errorf("[ValkeyClient] failed to ping Valkey: %w", res.Error()))
		}

		slog.Info("[ValkeyClient] Successfully connected to Valkey")
		valkeyInstance = &ValkeyClient{Client: client}
	})
	return valkeyInstance
}

func CloseValkey() {
	if valkeyInstance != nil {
		valkeyInstance.Client.Close()
	}
}

func GetValkeyClient() *ValkeyClient {
	if valkeyInstance == nil {
		panic("[ValkeyClient] Valkey client is not initialized")
	}
	return valkeyInstance
}

// MarkProcessed records a request ID as persisted. Best effort; callers
// ignore the error beyond logging.
func (vc *ValkeyClient) MarkProcessed(ctx context.Context, itemType, requestID string) error {
	key := processedKey(itemType)
	results := vc.Client.DoMulti(ctx,
		vc.Client.B().Sadd().Key(key).Member(requestID).Build(),
		vc.Client.B().Expire().Key(key).Seconds(processedKeyTTL).Build(),
	)
	for _, res := range results {
		if err := res.Error(); err != nil {
			return fmt.Errorf("[ValkeyClient] failed to mark %q processed: %w", requestID, err)
		}
	}
	return nil
}

// IsProcessed reports whether a request ID was already persisted. Any
// cache failure reads as "not processed" so the conditional write decides.
func (vc *ValkeyClient) IsProcessed(ctx context.Context, itemType, requestID string) bool {
	res := vc.Client.Do(ctx, vc.Client.B().Sismember().Key(processedKey(itemType)).Member(requestID).Build())
	if err := res.Error(); err != nil {
		slog.Warn("[ValkeyClient] Dedup lookup failed, falling through to store",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return false
	}

	ok, err := res.AsBool()
	if err != nil {
		return false
	}
	return ok
}

func processedKey(itemType string) string {
	return "processed:" + itemType
}
