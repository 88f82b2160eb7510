package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreakCache 缓存每个用户的 StreakHistory。
// 每个用户有一个单调递增的代数：Invalidate 使代数加一，Set 写入时带上加载前读到的代数，
// Get 只返回与当前代数一致的条目，因此加载期间发生的写入不会被旧数据覆盖。
type StreakCache interface {
	Get(ctx context.Context, userID uint) (StreakHistory, bool, error)
	Generation(ctx context.Context, userID uint) (int64, error)
	Set(ctx context.Context, userID uint, generation int64, history StreakHistory) error
	Invalidate(ctx context.Context, userID uint) error
}

// NoopStreakCache 在未配置 Redis 时使用，所有读取都未命中
type NoopStreakCache struct{}

func (NoopStreakCache) Get(context.Context, uint) (StreakHistory, bool, error) {
	return StreakHistory{}, false, nil
}

func (NoopStreakCache) Generation(context.Context, uint) (int64, error) { return 0, nil }

func (NoopStreakCache) Set(context.Context, uint, int64, StreakHistory) error { return nil }

func (NoopStreakCache) Invalidate(context.Context, uint) error { return nil }

type cachedStreak struct {
	Generation int64         `json:"generation"`
	History    StreakHistory `json:"history"`
}

// RedisStreakCache 以 JSON 形式把 StreakHistory 与其代数存入 Redis
type RedisStreakCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// NewRedisStreakCache 构造 Redis 缓存，ttl<=0 时使用 24h
func NewRedisStreakCache(client redis.UniversalClient, ttl time.Duration) *RedisStreakCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStreakCache{client: client, ttl: ttl, prefix: "coursepulse:streak:"}
}

func (c *RedisStreakCache) key(userID uint) string {
	return fmt.Sprintf("%s%d", c.prefix, userID)
}

func (c *RedisStreakCache) generationKey(userID uint) string {
	return fmt.Sprintf("%sgen:%d", c.prefix, userID)
}

func (c *RedisStreakCache) Get(ctx context.Context, userID uint) (StreakHistory, bool, error) {
	values, err := c.client.MGet(ctx, c.generationKey(userID), c.key(userID)).Result()
	if err != nil {
		return StreakHistory{}, false, fmt.Errorf("redis get streak: %w", err)
	}
	if len(values) != 2 {
		return StreakHistory{}, false, fmt.Errorf("redis get streak: unexpected reply length %d", len(values))
	}
	return decodeCachedStreak(values[0], values[1])
}

func (c *RedisStreakCache) Generation(ctx context.Context, userID uint) (int64, error) {
	raw, err := c.client.Get(ctx, c.generationKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get streak generation: %w", err)
	}
	return parseGeneration(raw)
}

func (c *RedisStreakCache) Set(ctx context.Context, userID uint, generation int64, history StreakHistory) error {
	raw, err := json.Marshal(cachedStreak{Generation: generation, History: history})
	if err != nil {
		return fmt.Errorf("encode streak: %w", err)
	}
	if err := c.client.Set(ctx, c.key(userID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set streak: %w", err)
	}
	return nil
}

// Invalidate 递增代数并删除条目；代数键的过期时间长于条目，旧代数的条目总是先过期
func (c *RedisStreakCache) Invalidate(ctx context.Context, userID uint) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.generationKey(userID))
		pipe.Expire(ctx, c.generationKey(userID), 2*c.ttl)
		pipe.Del(ctx, c.key(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate streak: %w", err)
	}
	return nil
}

// decodeCachedStreak 解析 MGET 的结果，条目代数与当前代数不一致时视为未命中
func decodeCachedStreak(generationValue, entryValue interface{}) (StreakHistory, bool, error) {
	if entryValue == nil {
		return StreakHistory{}, false, nil
	}
	entryRaw, ok := entryValue.(string)
	if !ok {
		return StreakHistory{}, false, fmt.Errorf("decode streak: unexpected type %T", entryValue)
	}

	var current int64
	if generationValue != nil {
		raw, ok := generationValue.(string)
		if !ok {
			return StreakHistory{}, false, fmt.Errorf("decode streak generation: unexpected type %T", generationValue)
		}
		parsed, err := parseGeneration(raw)
		if err != nil {
			return StreakHistory{}, false, err
		}
		current = parsed
	}

	var entry cachedStreak
	if err := json.Unmarshal([]byte(entryRaw), &entry); err != nil {
		return StreakHistory{}, false, fmt.Errorf("decode streak: %w", err)
	}
	if entry.Generation != current {
		return StreakHistory{}, false, nil
	}
	return entry.History, true, nil
}

func parseGeneration(raw string) (int64, error) {
	generation, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode streak generation: %w", err)
	}
	return generation, nil
}
