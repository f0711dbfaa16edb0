package engine

import (
	"context"
	"fmt"
	"time"

	"forgewatch/internal/evaluator"
	"forgewatch/internal/models"

	"go.uber.org/zap"
)

// SweepScope 扫描范围：单个设备，或一个工厂下的全部活跃设备
type SweepScope struct {
	FactoryID string
	DeviceID  string
}

// SweepOptions 扫描选项
type SweepOptions struct {
	Window               time.Duration // 回溯窗口
	MaxReadingsPerDevice int           // 每设备读数上限（有界扫描）
	UseAI                bool
}

// DeviceSweepResult 单设备的扫描结果
type DeviceSweepResult struct {
	DeviceID         string `json:"device_id"`
	DeviceCode       string `json:"device_code"`
	DeviceName       string `json:"device_name"`
	ReadingsAnalyzed int    `json:"readings_analyzed"`
	ReadingsSkipped  int    `json:"readings_skipped"`
	SignalsCreated   int    `json:"signals_created"`
}

// SweepResult 一次批量扫描的汇总结果
type SweepResult struct {
	SignalsCreated    int                 `json:"signals_created"`
	DuplicatesSkipped int                 `json:"duplicates_skipped"`
	Devices           []DeviceSweepResult `json:"devices"`
}

// Sweep 批量路径：对范围内设备的近期读数做有界扫描
// 产生的信号落为 new 并做去重；读数校验失败只跳过该读数，
// 存储失败中止整次扫描并带出已成功创建的数量。
func (e *Engine) Sweep(ctx context.Context, scope SweepScope, opts SweepOptions) (*SweepResult, error) {
	devices, err := e.resolveScope(ctx, scope)
	if err != nil {
		return nil, err
	}

	if opts.Window <= 0 {
		opts.Window = time.Hour
	}
	if opts.MaxReadingsPerDevice <= 0 {
		opts.MaxReadingsPerDevice = 10
	}

	since := e.now().Add(-opts.Window)
	result := &SweepResult{}

	for i := range devices {
		device := &devices[i]

		deviceResult, err := e.sweepDevice(ctx, device, since, opts, result)
		result.Devices = append(result.Devices, *deviceResult)
		if err != nil {
			return result, fmt.Errorf("sweep aborted after %d signals created: %w", result.SignalsCreated, err)
		}
	}

	e.logger.Info("Sweep finished",
		zap.Int("devices", len(devices)),
		zap.Int("signals_created", result.SignalsCreated),
		zap.Int("duplicates_skipped", result.DuplicatesSkipped),
	)

	return result, nil
}

func (e *Engine) resolveScope(ctx context.Context, scope SweepScope) ([]models.Device, error) {
	if scope.DeviceID != "" {
		device, err := e.devices.GetDevice(ctx, scope.DeviceID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve sweep device: %w", err)
		}
		return []models.Device{*device}, nil
	}

	if scope.FactoryID == "" {
		return nil, fmt.Errorf("sweep scope requires a device or factory")
	}

	devices, err := e.devices.ListActiveDevices(ctx, scope.FactoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sweep devices: %w", err)
	}
	return devices, nil
}

func (e *Engine) sweepDevice(ctx context.Context, device *models.Device, since time.Time, opts SweepOptions, result *SweepResult) (*DeviceSweepResult, error) {
	deviceResult := &DeviceSweepResult{
		DeviceID:   device.DeviceID,
		DeviceCode: device.DeviceCode,
		DeviceName: device.DeviceName,
	}

	readings, err := e.readings.ListRecentByDevice(ctx, device.DeviceID, since, opts.MaxReadingsPerDevice)
	if err != nil {
		return deviceResult, err
	}

	for i := range readings {
		reading := &readings[i]

		if err := evaluator.ValidateReading(reading, device, e.now()); err != nil {
			if models.IsValidationError(err) {
				deviceResult.ReadingsSkipped++
				e.logger.Debug("Skipping invalid reading",
					zap.String("device_id", device.DeviceID),
					zap.String("reading_id", reading.ReadingID),
					zap.Error(err),
				)
				continue
			}
			return deviceResult, err
		}
		deviceResult.ReadingsAnalyzed++

		built, err := e.buildSignals(ctx, reading, device, evaluator.OriginSweep, opts.UseAI)
		if err != nil {
			return deviceResult, err
		}

		for _, signal := range built {
			// 积压重处理去重：(device, title, detected_at) 精确匹配
			// 尽力而为的检查，并发扫描仍可能竞争（信号是建议性的，可接受）
			existing, err := e.signals.FindByDedupKey(ctx, signal.DeviceID, signal.Title, signal.DetectedAt)
			if err != nil {
				return deviceResult, err
			}
			if existing != nil {
				result.DuplicatesSkipped++
				continue
			}

			if err := e.signals.CreateSignal(ctx, signal); err != nil {
				return deviceResult, err
			}
			deviceResult.SignalsCreated++
			result.SignalsCreated++
		}
	}

	return deviceResult, nil
}
