package templates

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fsh-formation/templater/internal/docgen"
)

const cacheKeyPrefix = "template:"

// CachedFetcher puts a Redis byte cache in front of another fetcher,
// keyed by template URL. Without a Redis client it degrades to a plain
// passthrough; cache failures never fail a request.
type CachedFetcher struct {
	next   docgen.TemplateFetcher
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedFetcher wraps next. client may be nil.
func NewCachedFetcher(next docgen.TemplateFetcher, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedFetcher {
	return &CachedFetcher{next: next, client: client, ttl: ttl, logger: logger}
}

// Fetch returns cached bytes when present, otherwise delegates and
// stores the result.
func (c *CachedFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if c.client == nil || c.ttl <= 0 {
		return c.next.Fetch(ctx, url)
	}
	key := cacheKeyPrefix + url
	cached, err := c.client.Get(ctx, key).Bytes()
	if err == nil && len(cached) > 0 {
		return cached, nil
	}
	if err != nil && !errors.Is(err, redis.Nil) && c.logger != nil {
		c.logger.Warn("template cache read", slog.Any("error", err))
	}

	raw, err := c.next.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.Warn("template cache write", slog.Any("error", err))
	}
	return raw, nil
}
