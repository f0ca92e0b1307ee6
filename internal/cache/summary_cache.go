// Package cache keeps per-student progress summaries in Redis
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coursehub/progress-service/internal/models"
	"github.com/go-redis/redis/v8"
)

const summaryKeyPrefix = "progress:summary:"

// minGenerationTTL keeps a generation counter alive far longer than any summary stored under it.
// A counter that expires falls back to generation 0, which is only safe once every entry
// written under the old generations is gone.
const minGenerationTTL = 24 * time.Hour

// redisStore is the subset of *redis.Client the cache uses
type redisStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

type summaryCache struct {
	client        redisStore
	ttl           time.Duration
	generationTTL time.Duration
}

// NewSummaryCache creates a Redis backed summary cache with the given TTL
func NewSummaryCache(client redisStore, ttl time.Duration) *summaryCache {
	return &summaryCache{
		client:        client,
		ttl:           ttl,
		generationTTL: max(minGenerationTTL, 10*ttl),
	}
}

// Get returns the cached summary of a student, or nil when nothing is cached under the current generation.
// The generation is returned in both cases.
func (c *summaryCache) Get(ctx context.Context, studentID int) (*models.ProgressSummary, int64, error) {
	generation, err := c.client.Get(ctx, generationKey(studentID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, fmt.Errorf("failed to read summary generation: %w", err)
	}

	data, err := c.client.Get(ctx, summaryKey(studentID, generation)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, generation, nil
	}
	if err != nil {
		return nil, generation, fmt.Errorf("failed to read cached summary: %w", err)
	}

	var summary models.ProgressSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, generation, fmt.Errorf("failed to decode cached summary: %w", err)
	}

	return &summary, generation, nil
}

// Set stores a summary under the generation read before it was computed, until the TTL expires
func (c *summaryCache) Set(ctx context.Context, summary *models.ProgressSummary, generation int64) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	if err := c.client.Set(ctx, summaryKey(summary.StudentID, generation), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache summary: %w", err)
	}

	return nil
}

// Invalidate advances the generation of a student, leaving older entries to expire unread
func (c *summaryCache) Invalidate(ctx context.Context, studentID int) error {
	key := generationKey(studentID)
	if err := c.client.Incr(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached summary: %w", err)
	}
	if err := c.client.Expire(ctx, key, c.generationTTL).Err(); err != nil {
		return fmt.Errorf("failed to refresh summary generation: %w", err)
	}
	return nil
}

func generationKey(studentID int) string {
	return fmt.Sprintf("%s%d:gen", summaryKeyPrefix, studentID)
}

func summaryKey(studentID int, generation int64) string {
	return fmt.Sprintf("%s%d:%d", summaryKeyPrefix, studentID, generation)
}

// NoopSummaryCache never caches, summaries are always computed from the store
type NoopSummaryCache struct{}

func (NoopSummaryCache) Get(ctx context.Context, studentID int) (*models.ProgressSummary, int64, error) {
	return nil, 0, nil
}

func (NoopSummaryCache) Set(ctx context.Context, summary *models.ProgressSummary, generation int64) error {
	return nil
}

func (NoopSummaryCache) Invalidate(ctx context.Context, studentID int) error {
	return nil
}
