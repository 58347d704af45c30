package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/freightdesk/rulelearn-backend/internal/platform/logger"
)

// RuleCache is a cache-aside layer in front of the active rule set. Misses
// and cache outages both fall through to the database.
type RuleCache interface {
	Get(ctx context.Context, sourceEntityID uuid.UUID) ([]byte, bool)
	Set(ctx context.Context, sourceEntityID uuid.UUID, payload []byte)
	Invalidate(ctx context.Context, sourceEntityID uuid.UUID)
	Close() error
}

type redisRuleCache struct {
	log *logger.Logger
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisRuleCache(baseLog *logger.Logger) (RuleCache, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisRuleCache{
		log: baseLog.With("service", "RedisRuleCache"),
		rdb: rdb,
		ttl: 5 * time.Minute,
	}, nil
}

func activeRulesKey(sourceEntityID uuid.UUID) string {
	return "rules:active:" + sourceEntityID.String()
}

func (c *redisRuleCache) Get(ctx context.Context, sourceEntityID uuid.UUID) ([]byte, bool) {
	raw, err := c.rdb.Get(ctx, activeRulesKey(sourceEntityID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.log.Warn("rule cache get failed", "error", err.Error())
		return nil, false
	}
	return raw, true
}

func (c *redisRuleCache) Set(ctx context.Context, sourceEntityID uuid.UUID, payload []byte) {
	if err := c.rdb.Set(ctx, activeRulesKey(sourceEntityID), payload, c.ttl).Err(); err != nil {
		c.log.Warn("rule cache set failed", "error", err.Error())
	}
}

func (c *redisRuleCache) Invalidate(ctx context.Context, sourceEntityID uuid.UUID) {
	if err := c.rdb.Del(ctx, activeRulesKey(sourceEntityID)).Err(); err != nil {
		c.log.Warn("rule cache invalidate failed", "error", err.Error())
	}
}

func (c *redisRuleCache) Close() error {
	return c.rdb.Close()
}

// noopRuleCache stands in when REDIS_ADDR is not configured.
type noopRuleCache struct{}

func NewNoopRuleCache() RuleCache { return noopRuleCache{} }

func (noopRuleCache) Get(context.Context, uuid.UUID) ([]byte, bool) { return nil, false }
func (noopRuleCache) Set(context.Context, uuid.UUID, []byte)        {}
func (noopRuleCache) Invalidate(context.Context, uuid.UUID)         {}
func (noopRuleCache) Close() error                                  { return nil }
