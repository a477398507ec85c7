package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/afftrack/linktrack/internal/domain"
)

// Key prefixes for the session cache.
const (
	sessionKeyPrefix = "lt:sess:"
	visitorKeyPrefix = "lt:visitor:"
)

// RedisCache is a Cache backed by Redis. Keys carry a TTL equal to the
// dedup window, so expiry enforces the window without date arithmetic.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a RedisCache whose entries expire after ttl.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// SessionClickID looks up the click identifier recorded for a browser
// session identifier.
func (c *RedisCache) SessionClickID(ctx context.Context, sessionID string) (string, bool, error) {
	val, err := c.client.Get(ctx, sessionKeyPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis session lookup: %w", err)
	}
	return val, true, nil
}

// RecentClickID looks up the click identifier recorded for an IP+campaign
// pair. TTL expiry bounds the lookback to the dedup window.
func (c *RedisCache) RecentClickID(ctx context.Context, affiliateID, campaignID, ipAddress string) (string, bool, error) {
	val, err := c.client.Get(ctx, visitorKey(affiliateID, campaignID, ipAddress)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis visitor lookup: %w", err)
	}
	return val, true, nil
}

// Remember stores both cache entries for a committed session.
func (c *RedisCache) Remember(ctx context.Context, sess *domain.UserSession) error {
	pipe := c.client.Pipeline()
	pipe.Set(ctx, sessionKeyPrefix+sess.SessionID, sess.ClickID, c.ttl)
	pipe.Set(ctx, visitorKey(sess.AffiliateID, sess.CampaignID, sess.IPAddress), sess.ClickID, c.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis remember session: %w", err)
	}
	return nil
}

func visitorKey(affiliateID, campaignID, ipAddress string) string {
	return visitorKeyPrefix + affiliateID + ":" + campaignID + ":" + ipAddress
}
