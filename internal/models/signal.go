package models

import (
	"encoding/json"
	"time"
)

// SignalKind 信号类型（闭集）
type SignalKind string

const (
	KindAnomaly         SignalKind = "anomaly"
	KindThresholdBreach SignalKind = "threshold_breach"
	KindPredictive      SignalKind = "predictive"
	KindMaintenance     SignalKind = "maintenance"
	KindEfficiency      SignalKind = "efficiency"
)

// Severity 严重级别（闭集）
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ValidSeverity 校验严重级别是否在闭集内
func ValidSeverity(s string) bool {
	switch Severity(s) {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

// SignalStatus 信号生命周期状态
// new → processing → completed|failed（completed/failed 为终态）
type SignalStatus string

const (
	StatusNew        SignalStatus = "new"
	StatusProcessing SignalStatus = "processing"
	StatusCompleted  SignalStatus = "completed"
	StatusFailed     SignalStatus = "failed"
)

// IsTerminal 判断是否为终态
func (s SignalStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Signal 检测到的信号（对应 signals 表）
// Created by the evaluator / AI adapter, mutated only by the lifecycle
// manager, never deleted by the engine.
type Signal struct {
	SignalID  string `json:"signal_id" db:"signal_id"`
	DeviceID  string `json:"device_id" db:"device_id"`
	FactoryID string `json:"factory_id" db:"factory_id"` // denormalized from device; must match device.factory_id

	Kind     SignalKind   `json:"kind" db:"kind"`
	Severity Severity     `json:"severity" db:"severity"`
	Status   SignalStatus `json:"status" db:"status"`

	Title          string `json:"title" db:"title"`
	Description    string `json:"description" db:"description"`
	Recommendation string `json:"recommendation" db:"recommendation"`

	InputData      json.RawMessage `json:"input_data" db:"input_data"`                     // JSONB，触发时的通道快照
	AnalysisResult json.RawMessage `json:"analysis_result,omitempty" db:"analysis_result"` // JSONB，AI 分析结果（可空）

	ConfidenceScore float64 `json:"confidence_score" db:"confidence_score"` // [0,100]

	DetectedAt  time.Time  `json:"detected_at" db:"detected_at"` // = 触发 reading 的时间戳
	ProcessedAt *time.Time `json:"processed_at,omitempty" db:"processed_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
