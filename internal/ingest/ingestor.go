package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"forgewatch/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeviceResolver 接入路径需要的设备操作
type DeviceResolver interface {
	GetDeviceByCode(ctx context.Context, deviceCode string) (*models.Device, error)
	UpdateLastSeen(ctx context.Context, deviceID string, seenAt time.Time) error
}

// ReadingWriter 读数持久化
type ReadingWriter interface {
	InsertReading(ctx context.Context, reading *models.Reading) error
}

// ReadingEvaluator 实时评估入口
type ReadingEvaluator interface {
	EvaluateReading(ctx context.Context, reading *models.Reading, device *models.Device) ([]models.Signal, error)
}

// TelemetrySample 一条上报的遥测采样（MQTT 消息体 / 批量接入的元素）
// 设备用外部编号标识，时间戳缺省为接收时间。
type TelemetrySample struct {
	DeviceCode       string     `json:"device_code"`
	Timestamp        *time.Time `json:"timestamp,omitempty"`
	Temperature      *float64   `json:"temperature,omitempty"`
	GasIndex         *float64   `json:"gas_index,omitempty"`
	VibrationX       *float64   `json:"vibration_x,omitempty"`
	VibrationY       *float64   `json:"vibration_y,omitempty"`
	VibrationZ       *float64   `json:"vibration_z,omitempty"`
	Humidity         *float64   `json:"humidity,omitempty"`
	Pressure         *float64   `json:"pressure,omitempty"`
	PowerConsumption *float64   `json:"power_consumption,omitempty"`
}

// IngestResult 单条接入的结果
type IngestResult struct {
	ReadingID      string          `json:"reading_id"`
	DeviceID       string          `json:"device_id"`
	SignalsCreated []models.Signal `json:"signals_created,omitempty"`
}

// BatchError 批量接入中单条样本的失败记录
type BatchError struct {
	Index      int    `json:"index"`
	DeviceCode string `json:"device_code"`
	Message    string `json:"message"`
}

// BatchResult 批量接入的汇总结果
type BatchResult struct {
	Accepted       int          `json:"accepted"`
	SignalsCreated int          `json:"signals_created"`
	Errors         []BatchError `json:"errors,omitempty"`
}

// Ingestor 遥测接入器：解析样本、落库、更新设备心跳、触发实时评估
type Ingestor struct {
	devices   DeviceResolver
	readings  ReadingWriter
	evaluator ReadingEvaluator
	logger    *zap.Logger
	now       func() time.Time
}

// NewIngestor 创建接入器
// clock 为 nil 时使用 time.Now。
func NewIngestor(devices DeviceResolver, readings ReadingWriter, evaluator ReadingEvaluator, logger *zap.Logger, clock func() time.Time) *Ingestor {
	if clock == nil {
		clock = time.Now
	}
	return &Ingestor{
		devices:   devices,
		readings:  readings,
		evaluator: evaluator,
		logger:    logger,
		now:       clock,
	}
}

// ParseSample 解析一条遥测消息体
func ParseSample(payload []byte) (*TelemetrySample, error) {
	var sample TelemetrySample
	if err := json.Unmarshal(payload, &sample); err != nil {
		return nil, fmt.Errorf("failed to unmarshal telemetry sample: %w", err)
	}
	return &sample, nil
}

// IngestSample 接入一条样本：解析设备、写入读数、更新 last_seen、实时评估
func (in *Ingestor) IngestSample(ctx context.Context, sample *TelemetrySample) (*IngestResult, error) {
	if sample == nil {
		return nil, fmt.Errorf("sample is required")
	}
	if sample.DeviceCode == "" {
		return nil, models.NewValidationError("device_code is required")
	}

	device, err := in.devices.GetDeviceByCode(ctx, sample.DeviceCode)
	if err != nil {
		return nil, fmt.Errorf("unknown device %s: %w", sample.DeviceCode, err)
	}

	reading := sample.toReading(device, in.now())

	if err := in.readings.InsertReading(ctx, reading); err != nil {
		return nil, fmt.Errorf("failed to store reading: %w", err)
	}

	// 心跳前移失败不影响接入结果
	if err := in.devices.UpdateLastSeen(ctx, device.DeviceID, reading.Timestamp); err != nil {
		in.logger.Warn("Failed to update device last_seen",
			zap.String("device_id", device.DeviceID),
			zap.Error(err),
		)
	}

	signals, err := in.evaluator.EvaluateReading(ctx, reading, device)
	if err != nil {
		// 读数已持久化；评估失败只记录，不回滚接入
		if models.IsValidationError(err) {
			return nil, err
		}
		in.logger.Error("Live evaluation failed after ingest",
			zap.String("device_id", device.DeviceID),
			zap.String("reading_id", reading.ReadingID),
			zap.Error(err),
		)
	}

	return &IngestResult{
		ReadingID:      reading.ReadingID,
		DeviceID:       device.DeviceID,
		SignalsCreated: signals,
	}, nil
}

// IngestBatch 批量接入：单条失败收集到结果里，批次继续
func (in *Ingestor) IngestBatch(ctx context.Context, samples []TelemetrySample) (*BatchResult, error) {
	result := &BatchResult{}

	for i := range samples {
		ingested, err := in.IngestSample(ctx, &samples[i])
		if err != nil {
			result.Errors = append(result.Errors, BatchError{
				Index:      i,
				DeviceCode: samples[i].DeviceCode,
				Message:    err.Error(),
			})
			continue
		}
		result.Accepted++
		result.SignalsCreated += len(ingested.SignalsCreated)
	}

	in.logger.Info("Batch ingest finished",
		zap.Int("total", len(samples)),
		zap.Int("accepted", result.Accepted),
		zap.Int("failed", len(result.Errors)),
		zap.Int("signals_created", result.SignalsCreated),
	)

	return result, nil
}

func (s *TelemetrySample) toReading(device *models.Device, now time.Time) *models.Reading {
	timestamp := now
	if s.Timestamp != nil && !s.Timestamp.IsZero() {
		timestamp = *s.Timestamp
	}

	return &models.Reading{
		ReadingID:        uuid.New().String(),
		DeviceID:         device.DeviceID,
		Timestamp:        timestamp,
		Temperature:      s.Temperature,
		GasIndex:         s.GasIndex,
		VibrationX:       s.VibrationX,
		VibrationY:       s.VibrationY,
		VibrationZ:       s.VibrationZ,
		Humidity:         s.Humidity,
		Pressure:         s.Pressure,
		PowerConsumption: s.PowerConsumption,
	}
}
