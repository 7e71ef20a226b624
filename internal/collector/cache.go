package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"RatioScope/internal/metrics"
	"RatioScope/internal/model"
)

// DefaultCacheTTL is used when CachedSource.TTL is zero.
const DefaultCacheTTL = 5 * time.Minute

// CachedSource stores successful provider responses in Redis.
// Lookup and store failures are logged and fall through to the provider.
type CachedSource struct {
	Client  *redis.Client
	TTL     time.Duration
	Metrics *metrics.Metrics
}

// NewCachedSource creates a response cache on the given client.
func NewCachedSource(client *redis.Client, ttl time.Duration, m *metrics.Metrics) *CachedSource {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedSource{Client: client, TTL: ttl, Metrics: m}
}

// Bars wraps a BarFetcher with the cache.
func (c *CachedSource) Bars(f BarFetcher) BarFetcher {
	return &cachedBarFetcher{cache: c, next: f}
}

// Quotes wraps a QuoteFetcher with the cache.
func (c *CachedSource) Quotes(f QuoteFetcher) QuoteFetcher {
	return &cachedQuoteFetcher{cache: c, next: f}
}

// CacheKey is the Redis key for one provider response.
func CacheKey(provider, kind, asset string, g model.Granularity, limit int) string {
	return fmt.Sprintf("ratioscope:%s:%s:%s:%s:%d", provider, kind, asset, g, limit)
}

func (c *CachedSource) get(ctx context.Context, key string, dst any) bool {
	data, err := c.Client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.Metrics.ObserveCache("miss")
		return false
	}
	if err != nil {
		log.Printf("[WARN] cache get %s: %v", key, err)
		c.Metrics.ObserveCache("error")
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		log.Printf("[WARN] cache decode %s: %v", key, err)
		c.Metrics.ObserveCache("error")
		return false
	}
	c.Metrics.ObserveCache("hit")
	return true
}

func (c *CachedSource) set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[WARN] cache encode %s: %v", key, err)
		return
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if err := c.Client.Set(ctx, key, data, ttl).Err(); err != nil {
		log.Printf("[WARN] cache set %s: %v", key, err)
	}
}

type cachedBarFetcher struct {
	cache *CachedSource
	next  BarFetcher
}

func (f *cachedBarFetcher) Name() string { return f.next.Name() }

func (f *cachedBarFetcher) FetchBars(ctx context.Context, symbol string, g model.Granularity, limit int) ([]model.Bar, error) {
	key := CacheKey(f.next.Name(), "bars", symbol, g, limit)
	var bars []model.Bar
	if f.cache.get(ctx, key, &bars) {
		return bars, nil
	}
	bars, err := f.next.FetchBars(ctx, symbol, g, limit)
	if err != nil {
		return nil, err
	}
	f.cache.set(ctx, key, bars)
	return bars, nil
}

type cachedQuoteFetcher struct {
	cache *CachedSource
	next  QuoteFetcher
}

func (f *cachedQuoteFetcher) Name() string { return f.next.Name() }

func (f *cachedQuoteFetcher) FetchQuotes(ctx context.Context, id string, days int) ([]model.Quote, error) {
	key := CacheKey(f.next.Name(), "quotes", id, model.GranularityDay, days)
	var quotes []model.Quote
	if f.cache.get(ctx, key, &quotes) {
		return quotes, nil
	}
	quotes, err := f.next.FetchQuotes(ctx, id, days)
	if err != nil {
		return nil, err
	}
	f.cache.set(ctx, key, quotes)
	return quotes, nil
}
