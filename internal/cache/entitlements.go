// Package cache keeps short-lived copies of lookups the scheduler repeats
// every tick.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// NewRedisClient connects and pings. An empty addr disables caching.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return client, nil
}

type EntitlementSource interface {
	IsEntitled(ctx context.Context, tenantID int64, now time.Time) (bool, error)
}

// Entitlements answers tenant entitlement checks from Redis and falls back
// to the source on a miss or a Redis failure.
type Entitlements struct {
	client *redis.Client
	source EntitlementSource
	ttl    time.Duration
}

func NewEntitlements(client *redis.Client, source EntitlementSource, ttl time.Duration) *Entitlements {
	return &Entitlements{client: client, source: source, ttl: ttl}
}

func entitlementKey(tenantID int64) string {
	return fmt.Sprintf("entitlement:%d", tenantID)
}

func (e *Entitlements) IsEntitled(ctx context.Context, tenantID int64, now time.Time) (bool, error) {
	if e.client == nil || e.ttl <= 0 {
		return e.source.IsEntitled(ctx, tenantID, now)
	}

	key := entitlementKey(tenantID)
	val, err := e.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		return val == "1", nil
	case !errors.Is(err, redis.Nil):
		log.Warnf("entitlement cache read %s: %v", key, err)
	}

	ok, err := e.source.IsEntitled(ctx, tenantID, now)
	if err != nil {
		return false, err
	}
	val = "0"
	if ok {
		val = "1"
	}
	if err := e.client.Set(ctx, key, val, e.ttl).Err(); err != nil {
		log.Warnf("entitlement cache write %s: %v", key, err)
	}
	return ok, nil
}
