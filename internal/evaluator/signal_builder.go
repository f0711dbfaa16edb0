package evaluator

import (
	"encoding/json"
	"fmt"
	"time"

	"forgewatch/internal/models"

	"github.com/google/uuid"
)

// Origin 评估来源：同一套评估逻辑的两类调用方
// 只影响新信号的初始生命周期状态，不影响评估本身。
type Origin string

const (
	// OriginLive 实时逐条评估：没有后续处理，信号直接落为 completed
	OriginLive Origin = "live"
	// OriginSweep 批量扫描：信号落为 new，等待后续处理
	OriginSweep Origin = "sweep"
)

// SignalBuilder 信号构建器
type SignalBuilder struct {
	now func() time.Time
}

// NewSignalBuilder 创建信号构建器
// clock 为 nil 时使用 time.Now（测试中注入固定时钟）。
func NewSignalBuilder(clock func() time.Time) *SignalBuilder {
	if clock == nil {
		clock = time.Now
	}
	return &SignalBuilder{now: clock}
}

// FromCandidate 由规则候选构建信号
func (b *SignalBuilder) FromCandidate(c CandidateSignal, reading *models.Reading, device *models.Device, origin Origin) (*models.Signal, error) {
	signal, err := b.base(reading, device, origin)
	if err != nil {
		return nil, err
	}

	signal.Kind = c.Kind
	signal.Severity = c.Severity
	signal.Title = c.Title
	signal.Description = c.Description
	signal.Recommendation = c.Recommendation
	signal.ConfidenceScore = RuleConfidence

	return signal, nil
}

// FromAnalysis 由 AI 分析结果构建信号
// 置信度固定为 75，低于规则信号，反映较低的来源可信度。
func (b *SignalBuilder) FromAnalysis(a *models.AIAnalysis, reading *models.Reading, device *models.Device, origin Origin) (*models.Signal, error) {
	if a == nil {
		return nil, fmt.Errorf("analysis is required")
	}
	if !models.ValidSeverity(a.Severity) {
		return nil, fmt.Errorf("invalid analysis severity: %q", a.Severity)
	}

	signal, err := b.base(reading, device, origin)
	if err != nil {
		return nil, err
	}

	issue := a.Issue
	if issue == "" {
		issue = "Anomaly"
	}
	recommendation := a.Recommendation
	if recommendation == "" {
		recommendation = "Review sensor data"
	}

	analysisJSON, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analysis result: %w", err)
	}

	signal.Kind = models.KindAnomaly
	signal.Severity = models.Severity(a.Severity)
	signal.Title = "AI Detected: " + issue
	signal.Description = issue
	signal.Recommendation = recommendation
	signal.AnalysisResult = analysisJSON
	signal.ConfidenceScore = AIConfidence

	return signal, nil
}

// base 构建公共字段并施加创建期不变量：
//   - factory_id 取自设备（不信任调用方传入）
//   - detected_at = 触发读数的时间戳，且不晚于当前时间
//   - live 来源直接落为 completed 并打上 processed_at
func (b *SignalBuilder) base(reading *models.Reading, device *models.Device, origin Origin) (*models.Signal, error) {
	if reading == nil {
		return nil, fmt.Errorf("reading is required")
	}
	if device == nil {
		return nil, fmt.Errorf("device is required")
	}

	now := b.now()

	detectedAt := reading.Timestamp
	if detectedAt.IsZero() || detectedAt.After(now) {
		detectedAt = now
	}

	inputJSON, err := json.Marshal(reading.Snapshot(device))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input snapshot: %w", err)
	}

	signal := &models.Signal{
		SignalID:   uuid.New().String(),
		DeviceID:   device.DeviceID,
		FactoryID:  device.FactoryID,
		Status:     models.StatusNew,
		InputData:  inputJSON,
		DetectedAt: detectedAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if origin == OriginLive {
		processedAt := now
		signal.Status = models.StatusCompleted
		signal.ProcessedAt = &processedAt
	}

	return signal, nil
}
