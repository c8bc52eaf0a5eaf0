// Package cache holds the Redis-backed cache for sector performance
// summaries. The summary query aggregates the latest snapshot of every
// tracked stock, which is too expensive to run on every dashboard poll.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sector-view-api/internal/models"
)

// DefaultSummaryTTL matches the refresh cadence of the underlying data
const DefaultSummaryTTL = 15 * time.Minute

// staleRetention keeps an expired copy around for fallback reads
const staleRetention = 24 * time.Hour

// SummaryCache caches sector summaries per universe
type SummaryCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// Config represents Redis connection configuration
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// NewSummaryCache connects to Redis and verifies the connection
func NewSummaryCache(config *Config, ttl time.Duration) (*SummaryCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultSummaryTTL
	}
	return &SummaryCache{client: client, ttl: ttl}, nil
}

func summaryKey(universe string) string {
	return fmt.Sprintf("sectors:summary:%s", universe)
}

func staleKey(universe string) string {
	return fmt.Sprintf("sectors:summary:%s:stale", universe)
}

// Get returns the cached summaries for a universe, or false on miss
func (c *SummaryCache) Get(ctx context.Context, universe string) ([]models.SectorSummary, bool) {
	data, err := c.client.Get(ctx, summaryKey(universe)).Bytes()
	if err != nil {
		return nil, false
	}

	var summaries []models.SectorSummary
	if err := json.Unmarshal(data, &summaries); err != nil {
		return nil, false
	}
	return summaries, true
}

// GetStale returns the last known summaries even past their TTL. Used as a
// fallback when the aggregate query fails.
func (c *SummaryCache) GetStale(ctx context.Context, universe string) ([]models.SectorSummary, bool) {
	data, err := c.client.Get(ctx, staleKey(universe)).Bytes()
	if err != nil {
		return nil, false
	}

	var summaries []models.SectorSummary
	if err := json.Unmarshal(data, &summaries); err != nil {
		return nil, false
	}
	return summaries, true
}

// Set stores summaries under both the TTL'd key and the stale fallback key
func (c *SummaryCache) Set(ctx context.Context, universe string, summaries []models.SectorSummary) error {
	data, err := json.Marshal(summaries)
	if err != nil {
		return fmt.Errorf("marshal summaries: %w", err)
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, summaryKey(universe), data, c.ttl)
	pipe.Set(ctx, staleKey(universe), data, staleRetention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache summaries: %w", err)
	}
	return nil
}

// Invalidate drops the fresh copy for a universe, keeping the stale fallback
func (c *SummaryCache) Invalidate(ctx context.Context, universe string) error {
	return c.client.Del(ctx, summaryKey(universe)).Err()
}

// Close releases the Redis connection pool
func (c *SummaryCache) Close() error {
	return c.client.Close()
}
