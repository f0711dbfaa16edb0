package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"forgewatch/internal/evaluator"
	"forgewatch/internal/models"

	"go.uber.org/zap"
)

// ReadingStore 引擎需要的读数查询操作
type ReadingStore interface {
	ListRecentByDevice(ctx context.Context, deviceID string, since time.Time, limit int) ([]models.Reading, error)
}

// SignalStore 引擎需要的信号存取操作
type SignalStore interface {
	CreateSignal(ctx context.Context, signal *models.Signal) error
	GetSignal(ctx context.Context, signalID string) (*models.Signal, error)
	FindByDedupKey(ctx context.Context, deviceID, title string, detectedAt time.Time) (*models.Signal, error)
	UpdateStatus(ctx context.Context, signalID string, status models.SignalStatus, processedAt *time.Time) error
}

// DeviceStore 引擎需要的设备查询操作
type DeviceStore interface {
	GetDevice(ctx context.Context, deviceID string) (*models.Device, error)
	ListActiveDevices(ctx context.Context, factoryID string) ([]models.Device, error)
}

// Analyzer AI 兜底分析协作方
type Analyzer interface {
	Enabled() bool
	AnalyzeAnomaly(ctx context.Context, snapshot *models.ChannelSnapshot) (*models.AIAnalysis, error)
}

// Engine 信号引擎：评估、去重、生命周期
// 引擎自身无持久状态，所有耐久状态都在外部存储里。
type Engine struct {
	readings ReadingStore
	signals  SignalStore
	devices  DeviceStore
	analyzer Analyzer
	builder  *evaluator.SignalBuilder
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine 创建信号引擎
// clock 为 nil 时使用 time.Now。
func NewEngine(readings ReadingStore, signals SignalStore, devices DeviceStore, analyzer Analyzer, logger *zap.Logger, clock func() time.Time) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		readings: readings,
		signals:  signals,
		devices:  devices,
		analyzer: analyzer,
		builder:  evaluator.NewSignalBuilder(clock),
		logger:   logger,
		now:      clock,
	}
}

// EvaluateReading 实时路径：评估一条读数并立即持久化产生的信号
// 信号直接落为 completed（没有后续处理环节）。
func (e *Engine) EvaluateReading(ctx context.Context, reading *models.Reading, device *models.Device) ([]models.Signal, error) {
	if err := evaluator.ValidateReading(reading, device, e.now()); err != nil {
		return nil, err
	}

	built, err := e.buildSignals(ctx, reading, device, evaluator.OriginLive, true)
	if err != nil {
		return nil, err
	}

	var created []models.Signal
	for _, signal := range built {
		if err := e.signals.CreateSignal(ctx, signal); err != nil {
			return created, fmt.Errorf("failed to persist signal after %d created: %w", len(created), err)
		}
		created = append(created, *signal)

		e.logger.Info("Signal created",
			zap.String("signal_id", signal.SignalID),
			zap.String("device_id", signal.DeviceID),
			zap.String("kind", string(signal.Kind)),
			zap.String("severity", string(signal.Severity)),
		)
	}

	return created, nil
}

// buildSignals 共用的评估核心：规则优先，未命中且允许时走 AI 兜底
func (e *Engine) buildSignals(ctx context.Context, reading *models.Reading, device *models.Device, origin evaluator.Origin, useAI bool) ([]*models.Signal, error) {
	var built []*models.Signal

	candidates := evaluator.Evaluate(reading, device)
	for _, candidate := range candidates {
		signal, err := e.builder.FromCandidate(candidate, reading, device, origin)
		if err != nil {
			return nil, fmt.Errorf("failed to build signal: %w", err)
		}
		built = append(built, signal)
	}

	// AI 只在静态规则一条都没命中时兜底，不对已确认的越限做二次意见
	if len(candidates) == 0 && useAI && e.analyzer != nil && e.analyzer.Enabled() {
		if signal := e.analyzeWithAI(ctx, reading, device, origin); signal != nil {
			built = append(built, signal)
		}
	}

	return built, nil
}

// analyzeWithAI AI 兜底分析；任何失败都退化为"无结果"
func (e *Engine) analyzeWithAI(ctx context.Context, reading *models.Reading, device *models.Device, origin evaluator.Origin) *models.Signal {
	analysis, err := e.analyzer.AnalyzeAnomaly(ctx, reading.Snapshot(device))
	if err != nil {
		if errors.Is(err, models.ErrCollaboratorUnavailable) {
			e.logger.Debug("AI collaborator unavailable, skipping fallback analysis",
				zap.String("device_id", device.DeviceID),
			)
		} else {
			e.logger.Warn("AI fallback analysis failed",
				zap.String("device_id", device.DeviceID),
				zap.Error(err),
			)
		}
		return nil
	}

	if analysis == nil || !analysis.AnomalyDetected {
		return nil
	}

	signal, err := e.builder.FromAnalysis(analysis, reading, device, origin)
	if err != nil {
		e.logger.Warn("Failed to build signal from AI analysis",
			zap.String("device_id", device.DeviceID),
			zap.Error(err),
		)
		return nil
	}

	return signal
}
