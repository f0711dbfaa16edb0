package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"forgewatch/internal/aggregate"

	"go.uber.org/zap"
)

// DashboardCache 仪表盘汇总缓存管理器
// 汇总结果按工厂缓存短 TTL，避免每次仪表盘请求都全量扫描读数。
type DashboardCache struct {
	kv        KVStore
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewDashboardCache 创建仪表盘缓存管理器
func NewDashboardCache(kv KVStore, keyPrefix string, ttlSeconds int, logger *zap.Logger) *DashboardCache {
	if keyPrefix == "" {
		keyPrefix = "forgewatch:dashboard:"
	}
	if ttlSeconds <= 0 {
		ttlSeconds = 30
	}
	return &DashboardCache{
		kv:        kv,
		keyPrefix: keyPrefix,
		ttl:       time.Duration(ttlSeconds) * time.Second,
		logger:    logger,
	}
}

func (c *DashboardCache) key(factoryID string) string {
	return c.keyPrefix + factoryID
}

// Get 读取工厂的缓存汇总（缓存不存在返回 ErrCacheMiss）
func (c *DashboardCache) Get(ctx context.Context, factoryID string) (*aggregate.Rollup, error) {
	val, err := c.kv.Get(ctx, c.key(factoryID))
	if err != nil {
		if err == ErrCacheMiss {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get dashboard cache: %w", err)
	}

	var rollup aggregate.Rollup
	if err := json.Unmarshal([]byte(val), &rollup); err != nil {
		// 缓存内容损坏按缓存缺失处理，由调用方重算
		c.logger.Warn("Corrupt dashboard cache entry, treating as miss",
			zap.String("factory_id", factoryID),
			zap.Error(err),
		)
		return nil, ErrCacheMiss
	}

	return &rollup, nil
}

// Set 写入工厂的汇总缓存
func (c *DashboardCache) Set(ctx context.Context, factoryID string, rollup *aggregate.Rollup) error {
	data, err := json.Marshal(rollup)
	if err != nil {
		return fmt.Errorf("failed to marshal rollup: %w", err)
	}

	if err := c.kv.Set(ctx, c.key(factoryID), string(data), c.ttl); err != nil {
		return fmt.Errorf("failed to set dashboard cache: %w", err)
	}

	return nil
}
