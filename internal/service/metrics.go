package service

import (
	"context"
	"fmt"
	"time"

	"forgewatch/internal/aggregate"
	"forgewatch/internal/cache"

	"go.uber.org/zap"
)

// 设备视为活跃的心跳宽限：last_seen 在此宽限内算在线
const activeDeviceGrace = 5 * time.Minute

// ComputeUptime 计算设备滚动24小时的上报覆盖率
// 窗口内没有任何读数时返回 nil（无数据，不等于 0%）。
func (s *SignalService) ComputeUptime(ctx context.Context, deviceID string) (*float64, error) {
	if _, err := s.deviceRepo.GetDevice(ctx, deviceID); err != nil {
		return nil, err
	}

	now := time.Now()
	timestamps, err := s.readingRepo.ListTimestampsByDevice(ctx, deviceID, now.Add(-aggregate.UptimeWindow), now)
	if err != nil {
		return nil, fmt.Errorf("failed to load reading timestamps: %w", err)
	}

	return aggregate.UptimeLast24h(timestamps, now), nil
}

// ComputeRollup 计算工厂的仪表盘汇总（带短 TTL 缓存）
// 缓存命中直接返回；未命中时全量重算并回写缓存。
func (s *SignalService) ComputeRollup(ctx context.Context, factoryID string) (*aggregate.Rollup, error) {
	if factoryID == "" {
		return nil, fmt.Errorf("factory_id is required")
	}

	if cached, err := s.dashboardCache.Get(ctx, factoryID); err == nil {
		return cached, nil
	} else if err != cache.ErrCacheMiss {
		// 缓存故障退化为直接重算
		s.logger.Warn("Dashboard cache lookup failed, recomputing",
			zap.String("factory_id", factoryID),
			zap.Error(err),
		)
	}

	rollup, err := s.computeRollup(ctx, factoryID)
	if err != nil {
		return nil, err
	}

	if err := s.dashboardCache.Set(ctx, factoryID, rollup); err != nil {
		s.logger.Warn("Failed to cache dashboard rollup",
			zap.String("factory_id", factoryID),
			zap.Error(err),
		)
	}

	return rollup, nil
}

func (s *SignalService) computeRollup(ctx context.Context, factoryID string) (*aggregate.Rollup, error) {
	now := time.Now()
	windowStart := now.Add(-24 * time.Hour)

	totalDevices, activeDevices, err := s.deviceRepo.CountDevices(ctx, factoryID, now.Add(-activeDeviceGrace))
	if err != nil {
		return nil, err
	}

	totalSignals, newSignals, err := s.signalRepo.CountSignals(ctx, factoryID)
	if err != nil {
		return nil, err
	}

	bySeverity, err := s.signalRepo.CountBySeverity(ctx, factoryID, windowStart, now)
	if err != nil {
		return nil, err
	}
	byKind, err := s.signalRepo.CountByKind(ctx, factoryID, windowStart, now)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.signalRepo.CountByStatus(ctx, factoryID, windowStart, now)
	if err != nil {
		return nil, err
	}

	readings, err := s.readingRepo.ListByFactoryRange(ctx, factoryID, windowStart, now)
	if err != nil {
		return nil, err
	}

	return &aggregate.Rollup{
		FactoryID:            factoryID,
		TotalDevices:         totalDevices,
		ActiveDevices:        activeDevices,
		TotalSignals:         totalSignals,
		NewSignals:           newSignals,
		BySeverity:           bySeverity,
		ByKind:               byKind,
		ByStatus:             byStatus,
		ReadingStats:         aggregate.ComputeReadingStats(readings),
		VibrationHealthScore: aggregate.VibrationScore(readings),
		WindowStart:          windowStart,
		WindowEnd:            now,
		GeneratedAt:          now,
	}, nil
}

// reportPeriods 各报告类型的回溯时长
var reportPeriods = map[string]time.Duration{
	"weekly":     7 * 24 * time.Hour,
	"monthly":    30 * 24 * time.Hour,
	"compliance": 24 * time.Hour,
}

// BuildReport 构建工厂的周期报告汇总
// reportType 为 weekly、monthly 或 compliance。
func (s *SignalService) BuildReport(ctx context.Context, factoryID, reportType string) (*aggregate.ReportSummary, error) {
	if factoryID == "" {
		return nil, fmt.Errorf("factory_id is required")
	}
	period, ok := reportPeriods[reportType]
	if !ok {
		return nil, fmt.Errorf("unsupported report type: %s", reportType)
	}

	now := time.Now()
	start := now.Add(-period)

	devices, err := s.deviceRepo.ListActiveDevices(ctx, factoryID)
	if err != nil {
		return nil, err
	}

	readings, err := s.readingRepo.ListByFactoryRange(ctx, factoryID, start, now)
	if err != nil {
		return nil, err
	}

	bySeverity, err := s.signalRepo.CountBySeverity(ctx, factoryID, start, now)
	if err != nil {
		return nil, err
	}

	return aggregate.BuildReportSummary(factoryID, reportType, start, now, len(devices), readings, bySeverity), nil
}
