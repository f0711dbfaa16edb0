package engine

import (
	"context"
	"testing"
	"time"

	"forgewatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func f(v float64) *float64 {
	return &v
}

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testDevice() *models.Device {
	return &models.Device{
		DeviceID:    "dev-1",
		DeviceCode:  "ESP32-001",
		DeviceName:  "Furnace Sensor 1",
		FactoryID:   "factory-1",
		MachineName: "Blast Furnace A",
		IsActive:    true,
	}
}

type testEnv struct {
	engine   *Engine
	signals  *fakeSignalStore
	readings *fakeReadingStore
	devices  *fakeDeviceStore
	analyzer *fakeAnalyzer
}

func setupEngine(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		signals:  newFakeSignalStore(),
		readings: newFakeReadingStore(),
		devices:  newFakeDeviceStore(testDevice()),
		analyzer: &fakeAnalyzer{},
	}
	env.engine = NewEngine(env.readings, env.signals, env.devices, env.analyzer, zap.NewNop(), func() time.Time { return testNow })
	return env
}

// ============================================
// 实时评估路径
// ============================================

func TestEvaluateReading_EndToEnd(t *testing.T) {
	env := setupEngine(t)

	// temperature=925.5，其余通道正常 → 恰好一个 warning 的 threshold_breach
	reading := &models.Reading{
		DeviceID:         "dev-1",
		Timestamp:        testNow.Add(-time.Minute),
		Temperature:      f(925.5),
		GasIndex:         f(200),
		VibrationX:       f(1.5),
		PowerConsumption: f(30),
	}

	signals, err := env.engine.EvaluateReading(context.Background(), reading, testDevice())

	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, models.KindThresholdBreach, signals[0].Kind)
	assert.Equal(t, models.SeverityWarning, signals[0].Severity)
	assert.Equal(t, 95.0, signals[0].ConfidenceScore)
	assert.Equal(t, models.StatusCompleted, signals[0].Status)
	assert.Equal(t, "factory-1", signals[0].FactoryID)
	require.NotNil(t, signals[0].ProcessedAt)

	// 已持久化
	assert.Len(t, env.signals.all(), 1)
}

func TestEvaluateReading_EmptyReadingRejectedWithoutAI(t *testing.T) {
	env := setupEngine(t)
	env.analyzer.enabled = true

	reading := &models.Reading{DeviceID: "dev-1", Timestamp: testNow}

	_, err := env.engine.EvaluateReading(context.Background(), reading, testDevice())

	require.Error(t, err)
	assert.True(t, models.IsValidationError(err))
	// 全通道缺失的读数不触发 AI 协作方
	assert.Equal(t, 0, env.analyzer.calls)
}

func TestEvaluateReading_RuleHitSkipsAI(t *testing.T) {
	env := setupEngine(t)
	env.analyzer.enabled = true
	env.analyzer.analysis = &models.AIAnalysis{AnomalyDetected: true, Severity: "critical", Issue: "x"}

	reading := &models.Reading{
		DeviceID:    "dev-1",
		Timestamp:   testNow,
		Temperature: f(950),
	}

	signals, err := env.engine.EvaluateReading(context.Background(), reading, testDevice())

	require.NoError(t, err)
	require.Len(t, signals, 1)
	// 规则命中优先，AI 不做二次意见
	assert.Equal(t, 0, env.analyzer.calls)
}

func TestEvaluateReading_AIFallbackCreatesSignal(t *testing.T) {
	env := setupEngine(t)
	env.analyzer.enabled = true
	env.analyzer.analysis = &models.AIAnalysis{
		AnomalyDetected: true,
		Severity:        "warning",
		Issue:           "Subtle drift in gas readings",
		Recommendation:  "Recalibrate gas sensor",
	}

	reading := &models.Reading{
		DeviceID:  "dev-1",
		Timestamp: testNow,
		GasIndex:  f(300), // 规则不触发
	}

	signals, err := env.engine.EvaluateReading(context.Background(), reading, testDevice())

	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, 1, env.analyzer.calls)
	assert.Equal(t, models.KindAnomaly, signals[0].Kind)
	assert.Equal(t, 75.0, signals[0].ConfidenceScore)
	assert.Equal(t, "AI Detected: Subtle drift in gas readings", signals[0].Title)
}

func TestEvaluateReading_AIUnavailableDegradesToNoResult(t *testing.T) {
	env := setupEngine(t)
	env.analyzer.enabled = true
	env.analyzer.err = models.ErrCollaboratorUnavailable

	reading := &models.Reading{
		DeviceID:  "dev-1",
		Timestamp: testNow,
		GasIndex:  f(300),
	}

	signals, err := env.engine.EvaluateReading(context.Background(), reading, testDevice())

	// 协作方不可用不是错误，只是没有 AI 结果
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestEvaluateReading_AINonAnomalyCreatesNothing(t *testing.T) {
	env := setupEngine(t)
	env.analyzer.enabled = true
	env.analyzer.analysis = &models.AIAnalysis{AnomalyDetected: false, Severity: "info"}

	reading := &models.Reading{
		DeviceID:  "dev-1",
		Timestamp: testNow,
		GasIndex:  f(300),
	}

	signals, err := env.engine.EvaluateReading(context.Background(), reading, testDevice())

	require.NoError(t, err)
	assert.Empty(t, signals)
	assert.Equal(t, 1, env.analyzer.calls)
}
