package aggregate

import (
	"time"
)

// 在线率计算的固定窗口参数：滚动24小时按5分钟分桶，共288桶
const (
	UptimeWindow = 24 * time.Hour
	UptimeBucket = 5 * time.Minute
)

// Uptime 按固定宽度时间桶计算设备上报覆盖率（百分比）
// 桶对齐到窗口起点；一个桶内只要有一条读数即视为覆盖。
// 窗口内没有任何读数时返回 nil（"无数据"，不等于确认离线的 0）。
func Uptime(timestamps []time.Time, windowStart time.Time, window, bucket time.Duration) *float64 {
	if window <= 0 || bucket <= 0 || bucket > window {
		return nil
	}

	totalBuckets := int(window / bucket)
	windowEnd := windowStart.Add(window)

	covered := make(map[int]struct{})
	for _, ts := range timestamps {
		if ts.Before(windowStart) || !ts.Before(windowEnd) {
			continue
		}
		idx := int(ts.Sub(windowStart) / bucket)
		covered[idx] = struct{}{}
	}

	if len(covered) == 0 {
		return nil
	}

	pct := float64(len(covered)) / float64(totalBuckets) * 100
	return &pct
}

// UptimeLast24h 计算截止 now 的24小时在线率（288个5分钟桶）
func UptimeLast24h(timestamps []time.Time, now time.Time) *float64 {
	return Uptime(timestamps, now.Add(-UptimeWindow), UptimeWindow, UptimeBucket)
}
