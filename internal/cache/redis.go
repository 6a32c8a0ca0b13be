package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/soaringjerry/Canvass/internal/services"
)

const summaryKeyPrefix = "canvass:summary:"

type Options struct {
	Addr     string
	Password string
	DB       int
}

func NewClient(opts Options) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// SummaryCache stores survey summaries as JSON under canvass:summary:<key>.
// Keys embed the survey revision, so entries are never invalidated explicitly; ttl bounds their lifetime.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewSummaryCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *SummaryCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SummaryCache{client: client, ttl: ttl, log: logger.Named("cache")}
}

func (c *SummaryCache) GetSummary(ctx context.Context, key string) (*services.SurveySummary, bool, error) {
	val, err := c.client.Get(ctx, summaryKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get summary: %w", err)
	}
	var s services.SurveySummary
	if err := json.Unmarshal(val, &s); err != nil {
		// a corrupt entry is a miss; the next write replaces it
		c.log.Warn("discarding undecodable summary", zap.String("key", key), zap.Error(err))
		return nil, false, nil
	}
	return &s, true, nil
}

func (c *SummaryCache) SetSummary(ctx context.Context, key string, s *services.SurveySummary) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := c.client.Set(ctx, summaryKeyPrefix+key, b, c.ttl).Err(); err != nil {
		return fmt.Errorf("set summary: %w", err)
	}
	return nil
}

var _ services.SummaryCache = (*SummaryCache)(nil)
