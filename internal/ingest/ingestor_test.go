package ingest

import (
	"context"
	"fmt"
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

// fakeDeviceResolver 内存设备解析器
type fakeDeviceResolver struct {
	byCode   map[string]*models.Device
	lastSeen map[string]time.Time
}

func newFakeDeviceResolver(devices ...*models.Device) *fakeDeviceResolver {
	r := &fakeDeviceResolver{
		byCode:   make(map[string]*models.Device),
		lastSeen: make(map[string]time.Time),
	}
	for _, d := range devices {
		r.byCode[d.DeviceCode] = d
	}
	return r
}

func (r *fakeDeviceResolver) GetDeviceByCode(_ context.Context, deviceCode string) (*models.Device, error) {
	device, ok := r.byCode[deviceCode]
	if !ok {
		return nil, models.ErrDeviceNotFound
	}
	return device, nil
}

func (r *fakeDeviceResolver) UpdateLastSeen(_ context.Context, deviceID string, seenAt time.Time) error {
	r.lastSeen[deviceID] = seenAt
	return nil
}

// fakeReadingWriter 内存读数写入器
type fakeReadingWriter struct {
	readings []models.Reading
	err      error
}

func (w *fakeReadingWriter) InsertReading(_ context.Context, reading *models.Reading) error {
	if w.err != nil {
		return w.err
	}
	w.readings = append(w.readings, *reading)
	return nil
}

// fakeEvaluator 可编程的评估替身
type fakeEvaluator struct {
	signals []models.Signal
	err     error
	calls   int
}

func (e *fakeEvaluator) EvaluateReading(_ context.Context, _ *models.Reading, _ *models.Device) ([]models.Signal, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.signals, nil
}

func testDevice() *models.Device {
	return &models.Device{
		DeviceID:   "dev-1",
		DeviceCode: "ESP32-001",
		DeviceName: "Furnace Sensor 1",
		FactoryID:  "factory-1",
		IsActive:   true,
	}
}

type ingestEnv struct {
	ingestor  *Ingestor
	devices   *fakeDeviceResolver
	readings  *fakeReadingWriter
	evaluator *fakeEvaluator
}

func setupIngestor(t *testing.T) *ingestEnv {
	t.Helper()
	env := &ingestEnv{
		devices:   newFakeDeviceResolver(testDevice()),
		readings:  &fakeReadingWriter{},
		evaluator: &fakeEvaluator{},
	}
	env.ingestor = NewIngestor(env.devices, env.readings, env.evaluator, zap.NewNop(), func() time.Time { return testNow })
	return env
}

// ============================================
// 解析
// ============================================

func TestParseSample(t *testing.T) {
	payload := []byte(`{"device_code":"ESP32-001","timestamp":"2026-03-10T11:55:00Z","temperature":925.5,"gas_index":200}`)

	sample, err := ParseSample(payload)

	require.NoError(t, err)
	assert.Equal(t, "ESP32-001", sample.DeviceCode)
	require.NotNil(t, sample.Timestamp)
	assert.Equal(t, time.Date(2026, 3, 10, 11, 55, 0, 0, time.UTC), sample.Timestamp.UTC())
	require.NotNil(t, sample.Temperature)
	assert.Equal(t, 925.5, *sample.Temperature)
	assert.Nil(t, sample.VibrationX)
}

func TestParseSample_InvalidJSON(t *testing.T) {
	_, err := ParseSample([]byte(`not json`))
	assert.Error(t, err)
}

func TestDeviceCodeFromTopic(t *testing.T) {
	assert.Equal(t, "ESP32-001", DeviceCodeFromTopic("telemetry/ESP32-001/readings"))
	assert.Equal(t, "", DeviceCodeFromTopic("telemetry/readings"))
	assert.Equal(t, "", DeviceCodeFromTopic("other/ESP32-001/readings"))
}

// ============================================
// 单条接入
// ============================================

func TestIngestSample(t *testing.T) {
	env := setupIngestor(t)
	env.evaluator.signals = []models.Signal{{SignalID: "sig-1"}}

	ts := testNow.Add(-5 * time.Minute)
	result, err := env.ingestor.IngestSample(context.Background(), &TelemetrySample{
		DeviceCode:  "ESP32-001",
		Timestamp:   &ts,
		Temperature: f(925.5),
	})

	require.NoError(t, err)
	assert.Equal(t, "dev-1", result.DeviceID)
	assert.NotEmpty(t, result.ReadingID)
	assert.Len(t, result.SignalsCreated, 1)

	// 读数落库，通道与时间戳保留
	require.Len(t, env.readings.readings, 1)
	stored := env.readings.readings[0]
	assert.Equal(t, "dev-1", stored.DeviceID)
	assert.Equal(t, ts, stored.Timestamp)
	require.NotNil(t, stored.Temperature)
	assert.Equal(t, 925.5, *stored.Temperature)

	// 设备心跳前移
	assert.Equal(t, ts, env.devices.lastSeen["dev-1"])
}

func TestIngestSample_MissingTimestampDefaultsToNow(t *testing.T) {
	env := setupIngestor(t)

	_, err := env.ingestor.IngestSample(context.Background(), &TelemetrySample{
		DeviceCode: "ESP32-001",
		GasIndex:   f(200),
	})

	require.NoError(t, err)
	require.Len(t, env.readings.readings, 1)
	assert.Equal(t, testNow, env.readings.readings[0].Timestamp)
}

func TestIngestSample_UnknownDevice(t *testing.T) {
	env := setupIngestor(t)

	_, err := env.ingestor.IngestSample(context.Background(), &TelemetrySample{
		DeviceCode:  "UNKNOWN",
		Temperature: f(100),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrDeviceNotFound)
	assert.Empty(t, env.readings.readings)
	assert.Equal(t, 0, env.evaluator.calls)
}

func TestIngestSample_StoreFailure(t *testing.T) {
	env := setupIngestor(t)
	env.readings.err = fmt.Errorf("connection refused")

	_, err := env.ingestor.IngestSample(context.Background(), &TelemetrySample{
		DeviceCode:  "ESP32-001",
		Temperature: f(100),
	})

	require.Error(t, err)
	// 落库失败不触发评估
	assert.Equal(t, 0, env.evaluator.calls)
}

// ============================================
// 批量接入
// ============================================

func TestIngestBatch_ContinuesPastFailures(t *testing.T) {
	env := setupIngestor(t)

	result, err := env.ingestor.IngestBatch(context.Background(), []TelemetrySample{
		{DeviceCode: "ESP32-001", Temperature: f(500)},
		{DeviceCode: "UNKNOWN", Temperature: f(500)},
		{DeviceCode: "ESP32-001", GasIndex: f(200)},
	})

	require.NoError(t, err)
	assert.Equal(t, 2, result.Accepted)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.Errors[0].Index)
	assert.Equal(t, "UNKNOWN", result.Errors[0].DeviceCode)
	assert.Len(t, env.readings.readings, 2)
}

// ============================================
// MQTT 消费者
// ============================================

func TestConsumer_HandleMessage_DeviceCodeFromTopic(t *testing.T) {
	env := setupIngestor(t)
	consumer := NewConsumer(nil, nil, env.ingestor, zap.NewNop())

	err := consumer.handleMessage("telemetry/ESP32-001/readings", []byte(`{"temperature":925.5}`))

	require.NoError(t, err)
	require.Len(t, env.readings.readings, 1)
	assert.Equal(t, "dev-1", env.readings.readings[0].DeviceID)
}

func TestConsumer_HandleMessage_BadPayload(t *testing.T) {
	env := setupIngestor(t)
	consumer := NewConsumer(nil, nil, env.ingestor, zap.NewNop())

	err := consumer.handleMessage("telemetry/ESP32-001/readings", []byte(`garbage`))

	assert.Error(t, err)
	assert.Empty(t, env.readings.readings)
}
