package engine

import (
	"context"
	"fmt"

	"forgewatch/internal/models"
)

// 生命周期状态机：
//   new → processing → completed
//   new → processing → failed
//   new → completed（实时路径的直接完成）
// completed/failed 为终态，终态之间不再迁移。
var lifecycleTransitions = map[models.SignalStatus][]models.SignalStatus{
	models.StatusNew:        {models.StatusProcessing, models.StatusCompleted},
	models.StatusProcessing: {models.StatusCompleted, models.StatusFailed},
}

// CanTransition 判断一次状态迁移是否合法
func CanTransition(from, to models.SignalStatus) bool {
	for _, allowed := range lifecycleTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition 对信号施加一次状态迁移
// completed 迁移会打上 processed_at；失败不打。
func (e *Engine) Transition(ctx context.Context, signalID string, to models.SignalStatus) (*models.Signal, error) {
	signal, err := e.signals.GetSignal(ctx, signalID)
	if err != nil {
		return nil, err
	}

	if !CanTransition(signal.Status, to) {
		return nil, fmt.Errorf("invalid signal transition %s -> %s", signal.Status, to)
	}

	signal.Status = to
	if to == models.StatusCompleted {
		now := e.now()
		signal.ProcessedAt = &now
	}

	if err := e.signals.UpdateStatus(ctx, signalID, signal.Status, signal.ProcessedAt); err != nil {
		return nil, err
	}

	return signal, nil
}

// Acknowledge 确认一个信号：任意状态 → completed，processed_at = now
// 对已 completed 的信号是幂等空操作（状态与时间戳都不变）；
// failed 允许被确认关闭（操作员了结一次失败的分析）。
func (e *Engine) Acknowledge(ctx context.Context, signalID string) (*models.Signal, error) {
	signal, err := e.signals.GetSignal(ctx, signalID)
	if err != nil {
		return nil, err
	}

	if signal.Status == models.StatusCompleted {
		return signal, nil
	}

	now := e.now()
	signal.Status = models.StatusCompleted
	signal.ProcessedAt = &now

	if err := e.signals.UpdateStatus(ctx, signalID, signal.Status, signal.ProcessedAt); err != nil {
		return nil, err
	}

	return signal, nil
}
