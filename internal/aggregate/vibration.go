package aggregate

import (
	"forgewatch/internal/models"
)

// VibrationScore 计算振动健康评分（0-100，越高越健康）
// 取窗口内每条读数三轴的均值（缺失轴按0），再对窗口取平均，
// 最后套用分段线性衰减。没有任何振动数据时返回 nil。
func VibrationScore(readings []models.Reading) *float64 {
	var sum float64
	var count int

	for i := range readings {
		r := &readings[i]
		if !r.HasVibration() {
			continue
		}
		var x, y, z float64
		if r.VibrationX != nil {
			x = *r.VibrationX
		}
		if r.VibrationY != nil {
			y = *r.VibrationY
		}
		if r.VibrationZ != nil {
			z = *r.VibrationZ
		}
		sum += (x + y + z) / 3
		count++
	}

	if count == 0 {
		return nil
	}

	score := ScoreFromAverage(sum / float64(count))
	return &score
}

// ScoreFromAverage 分段线性衰减：正常区间缓慢下降，
// 超过临界振动阈值（8.0）所在区段后快速坍缩。
// 分段边界连续：avg=5 时两段都是 70，avg=10 时两段都是 30。
func ScoreFromAverage(avgVibration float64) float64 {
	switch {
	case avgVibration > 10:
		score := 30 - (avgVibration-10)*3
		if score < 0 {
			return 0
		}
		return score
	case avgVibration > 5:
		return 70 - (avgVibration-5)*8
	default:
		return 100 - avgVibration*6
	}
}
