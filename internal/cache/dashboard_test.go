package cache

import (
	"context"
	"testing"
	"time"

	"forgewatch/internal/aggregate"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestCache(t *testing.T) (*miniredis.Miniredis, *DashboardCache) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	kv := NewRedisKVStore(client)
	dc := NewDashboardCache(kv, "forgewatch:dashboard:", 30, zap.NewNop())

	return mr, dc
}

func TestDashboardCache_SetAndGet(t *testing.T) {
	_, dc := setupTestCache(t)
	ctx := context.Background()

	score := 62.0
	rollup := &aggregate.Rollup{
		FactoryID:            "factory-1",
		TotalDevices:         5,
		ActiveDevices:        4,
		TotalSignals:         12,
		NewSignals:           3,
		BySeverity:           map[string]int{"warning": 8, "critical": 4},
		VibrationHealthScore: &score,
		GeneratedAt:          time.Now().UTC(),
	}

	err := dc.Set(ctx, "factory-1", rollup)
	require.NoError(t, err)

	got, err := dc.Get(ctx, "factory-1")
	require.NoError(t, err)
	assert.Equal(t, "factory-1", got.FactoryID)
	assert.Equal(t, 5, got.TotalDevices)
	assert.Equal(t, 3, got.NewSignals)
	require.NotNil(t, got.VibrationHealthScore)
	assert.Equal(t, 62.0, *got.VibrationHealthScore)
	assert.Equal(t, map[string]int{"warning": 8, "critical": 4}, got.BySeverity)
}

func TestDashboardCache_Miss(t *testing.T) {
	_, dc := setupTestCache(t)

	_, err := dc.Get(context.Background(), "factory-unknown")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestDashboardCache_Expiry(t *testing.T) {
	mr, dc := setupTestCache(t)
	ctx := context.Background()

	err := dc.Set(ctx, "factory-1", &aggregate.Rollup{FactoryID: "factory-1"})
	require.NoError(t, err)

	// 超过 TTL 后缓存失效
	mr.FastForward(31 * time.Second)

	_, err = dc.Get(ctx, "factory-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestDashboardCache_CorruptEntryTreatedAsMiss(t *testing.T) {
	mr, dc := setupTestCache(t)

	mr.Set("forgewatch:dashboard:factory-1", "{not-json")

	_, err := dc.Get(context.Background(), "factory-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
