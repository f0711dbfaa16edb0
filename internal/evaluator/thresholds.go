package evaluator

import (
	"fmt"

	"forgewatch/internal/models"
)

// 运行阈值（与振动健康评分的分段边界保持数值一致，调整时需同步）
const (
	TemperatureHigh      = 900.0
	TemperatureOvershoot = 1.1 // 超出阈值10%升级为 critical
	GasIndexHigh         = 400.0
	VibrationCritical    = 8.0
	VibrationWarning     = 5.0
	PowerHigh            = 50.0
)

// 置信度：规则命中为高置信度，AI 兜底为较低置信度
const (
	RuleConfidence = 95.0
	AIConfidence   = 75.0
)

// CandidateSignal 评估产生的候选信号（未持久化）
type CandidateSignal struct {
	Kind           models.SignalKind
	Severity       models.Severity
	Title          string
	Description    string
	Recommendation string
}

// thresholdRule 一条声明式阈值规则
// 每条规则是 (reading) 的纯函数：取值 → 判断 → 定级 → 描述。
// 新增规则是往表里加一行，不改控制流。
type thresholdRule struct {
	// value 提取该规则关心的通道值；第二个返回值为 false 表示通道缺失（跳过）
	value func(r *models.Reading) (float64, bool)
	// triggers 判断取值是否触发
	triggers func(v float64) bool
	// severity 由取值决定严重级别（升级逻辑挂在具体规则上，不做全局策略）
	severity func(v float64) models.Severity

	kind           models.SignalKind
	title          string
	describe       func(v float64) string
	recommendation string
}

func channelValue(get func(r *models.Reading) *float64) func(r *models.Reading) (float64, bool) {
	return func(r *models.Reading) (float64, bool) {
		if v := get(r); v != nil {
			return *v, true
		}
		return 0, false
	}
}

func flatSeverity(s models.Severity) func(float64) models.Severity {
	return func(float64) models.Severity { return s }
}

// thresholdRules 固定规则表，进程级只读
// 表的顺序决定输出顺序；各规则互相独立，命中的全部触发
// （两个振动档位通过条件区间互斥）。
var thresholdRules = []thresholdRule{
	{
		value:    channelValue(func(r *models.Reading) *float64 { return r.Temperature }),
		triggers: func(v float64) bool { return v > TemperatureHigh },
		severity: func(v float64) models.Severity {
			if v > TemperatureHigh*TemperatureOvershoot {
				return models.SeverityCritical
			}
			return models.SeverityWarning
		},
		kind:  models.KindThresholdBreach,
		title: "High Temperature Alert",
		describe: func(v float64) string {
			return fmt.Sprintf("Temperature %g°C exceeds threshold of %g°C", v, TemperatureHigh)
		},
		recommendation: "Check cooling systems and reduce furnace load if safe to do so.",
	},
	{
		value:    channelValue(func(r *models.Reading) *float64 { return r.GasIndex }),
		triggers: func(v float64) bool { return v > GasIndexHigh },
		severity: flatSeverity(models.SeverityWarning),
		kind:     models.KindAnomaly,
		title:    "Elevated Gas Index",
		describe: func(v float64) string {
			return fmt.Sprintf("Gas index %g exceeds threshold of %g", v, GasIndexHigh)
		},
		recommendation: "Check ventilation systems and air quality. May indicate process issues.",
	},
	{
		value:    vibrationValue,
		triggers: func(v float64) bool { return v > VibrationCritical },
		severity: flatSeverity(models.SeverityCritical),
		kind:     models.KindMaintenance,
		title:    "Critical Vibration Detected",
		describe: func(v float64) string {
			return fmt.Sprintf("Vibration level %g exceeds critical threshold of %g", v, VibrationCritical)
		},
		recommendation: "Immediate maintenance required. Check for bearing wear, misalignment, or loose components.",
	},
	{
		value:    vibrationValue,
		triggers: func(v float64) bool { return v > VibrationWarning && v <= VibrationCritical },
		severity: flatSeverity(models.SeverityWarning),
		kind:     models.KindPredictive,
		title:    "Elevated Vibration Warning",
		describe: func(v float64) string {
			return fmt.Sprintf("Vibration level %g exceeds warning threshold of %g", v, VibrationWarning)
		},
		recommendation: "Schedule preventive maintenance within 48 hours.",
	},
	{
		value:    channelValue(func(r *models.Reading) *float64 { return r.PowerConsumption }),
		triggers: func(v float64) bool { return v > PowerHigh },
		severity: flatSeverity(models.SeverityInfo),
		kind:     models.KindEfficiency,
		title:    "High Power Consumption",
		describe: func(v float64) string {
			return fmt.Sprintf("Power consumption %g kWh exceeds threshold of %g kWh", v, PowerHigh)
		},
		recommendation: "Review process efficiency. Consider load balancing or equipment optimization.",
	},
}

// vibrationValue 取三轴最大值；三轴全缺失视为通道缺失
func vibrationValue(r *models.Reading) (float64, bool) {
	if !r.HasVibration() {
		return 0, false
	}
	return r.MaxVibration(), true
}
