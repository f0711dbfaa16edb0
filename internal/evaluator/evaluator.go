package evaluator

import (
	"forgewatch/internal/models"
)

// Evaluate 用固定规则表评估一条读数，返回有序的候选信号列表
// 纯函数：只依赖读数与设备元数据，不触碰外部状态。
// 缺失的通道直接跳过（不触发也不报错）。
func Evaluate(reading *models.Reading, device *models.Device) []CandidateSignal {
	var candidates []CandidateSignal

	for i := range thresholdRules {
		rule := &thresholdRules[i]

		v, present := rule.value(reading)
		if !present || !rule.triggers(v) {
			continue
		}

		candidates = append(candidates, CandidateSignal{
			Kind:           rule.kind,
			Severity:       rule.severity(v),
			Title:          rule.title,
			Description:    rule.describe(v),
			Recommendation: rule.recommendation,
		})
	}

	return candidates
}
