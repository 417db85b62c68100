package quoteclient

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ajitpratap0/triarb/internal/domain"
	"github.com/ajitpratap0/triarb/internal/metrics"
)

// Cache de-duplicates identical (in, out, amount, slippage) quote calls
// issued within the same short window, purely to save a round trip against
// the aggregator's rate limit — never a system of record. A nil *Cache is
// valid and always misses.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache wraps an existing redis client. Pass a nil client (redisAddr ==
// "" in the caller's config loader) to skip constructing a working Cache;
// Get/Set are then no-ops.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(inAsset, outAsset domain.Asset, inAmount string, slippageBps int) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d", inAsset.Address, outAsset.Address, inAmount, slippageBps)
	return "triarb:quote:" + hex.EncodeToString(h.Sum(nil))
}

// Get returns a cached quote and true if present and unexpired, recording a
// cache hit or miss against the quote-cache's own Prometheus counters.
func (c *Cache) Get(ctx context.Context, inAsset, outAsset domain.Asset, inAmount string, slippageBps int) (*domain.Quote, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	key := cacheKey(inAsset, outAsset, inAmount, slippageBps)
	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		metrics.RecordQuoteCacheResult(false)
		return nil, false
	}

	var q domain.Quote
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		metrics.RecordQuoteCacheResult(false)
		return nil, false
	}

	metrics.RecordQuoteCacheResult(true)
	return &q, true
}

// Set stores a quote under the short TTL.
func (c *Cache) Set(ctx context.Context, inAsset, outAsset domain.Asset, inAmount string, slippageBps int, q *domain.Quote) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(q)
	if err != nil {
		return
	}
	key := cacheKey(inAsset, outAsset, inAmount, slippageBps)
	_ = c.client.Set(ctx, key, raw, c.ttl).Err()
}
