package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper 基于 Redis SETNX 的幂等去重
type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduper{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// FormatDedupKey formats a dedup key for a handler and message ID
func FormatDedupKey(handler, messageID string) string {
	return fmt.Sprintf("dedup:%s:%s", handler, messageID)
}

// AcquireOnce 第一次处理返回 true，重复消息返回 false。Redis 不可用时放行
func (d *Deduper) AcquireOnce(ctx context.Context, handler, messageID string) bool {
	key := FormatDedupKey(handler, messageID)

	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		d.logger.Warn("Redis dedup check failed, allowing processing",
			zap.String("handler", handler),
			zap.String("message_id", messageID),
			zap.Error(err),
		)
		return true
	}

	if !ok {
		d.logger.Info("Skipped duplicated event",
			zap.String("handler", handler),
			zap.String("message_id", messageID),
			zap.String("dedup_key", key),
		)
	}
	return ok
}

// Release 处理失败时释放去重键，允许重新投递
func (d *Deduper) Release(ctx context.Context, handler, messageID string) {
	if err := d.rdb.Del(ctx, FormatDedupKey(handler, messageID)).Err(); err != nil {
		d.logger.Warn("Failed to release dedup key",
			zap.String("handler", handler),
			zap.String("message_id", messageID),
			zap.Error(err),
		)
	}
}
