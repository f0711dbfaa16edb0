package aggregate

import (
	"math"
	"time"

	"forgewatch/internal/models"
)

// ReadingStats 一个时间窗口内读数的流式聚合结果
type ReadingStats struct {
	DataPoints     int      `json:"data_points"`
	AvgTemperature *float64 `json:"avg_temperature,omitempty"`
	MinTemperature *float64 `json:"min_temperature,omitempty"`
	MaxTemperature *float64 `json:"max_temperature,omitempty"`
	AvgGasIndex    *float64 `json:"avg_gas_index,omitempty"`
	MaxGasIndex    *float64 `json:"max_gas_index,omitempty"`
	TotalPower     *float64 `json:"total_power_kwh,omitempty"`
}

// ComputeReadingStats 流式聚合读数指标（不保留逐条状态）
func ComputeReadingStats(readings []models.Reading) ReadingStats {
	stats := ReadingStats{DataPoints: len(readings)}

	var tempSum, gasSum, powerSum float64
	var tempCount, gasCount, powerCount int
	var tempMin, tempMax, gasMax float64

	for i := range readings {
		r := &readings[i]
		if r.Temperature != nil {
			t := *r.Temperature
			if tempCount == 0 || t < tempMin {
				tempMin = t
			}
			if tempCount == 0 || t > tempMax {
				tempMax = t
			}
			tempSum += t
			tempCount++
		}
		if r.GasIndex != nil {
			g := *r.GasIndex
			if gasCount == 0 || g > gasMax {
				gasMax = g
			}
			gasSum += g
			gasCount++
		}
		if r.PowerConsumption != nil {
			powerSum += *r.PowerConsumption
			powerCount++
		}
	}

	if tempCount > 0 {
		avg := round1(tempSum / float64(tempCount))
		stats.AvgTemperature = &avg
		stats.MinTemperature = &tempMin
		stats.MaxTemperature = &tempMax
	}
	if gasCount > 0 {
		avg := round1(gasSum / float64(gasCount))
		stats.AvgGasIndex = &avg
		stats.MaxGasIndex = &gasMax
	}
	if powerCount > 0 {
		total := round2(powerSum)
		stats.TotalPower = &total
	}

	return stats
}

// Rollup 工厂级汇总指标（仪表盘）
type Rollup struct {
	FactoryID string `json:"factory_id"`

	TotalDevices  int `json:"total_devices"`
	ActiveDevices int `json:"active_devices"`

	TotalSignals int            `json:"total_signals"`
	NewSignals   int            `json:"new_signals"`
	BySeverity   map[string]int `json:"by_severity"`
	ByKind       map[string]int `json:"by_kind"`
	ByStatus     map[string]int `json:"by_status"`

	ReadingStats         ReadingStats `json:"reading_stats"`
	VibrationHealthScore *float64     `json:"vibration_health_score,omitempty"`

	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ReportSummary 周/月/合规报告的汇总对象
// 只负责数值，不负责报告文件的生成与格式化。
type ReportSummary struct {
	FactoryID   string    `json:"factory_id"`
	ReportType  string    `json:"report_type"` // weekly, monthly, compliance
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`

	DeviceCount       int            `json:"device_count"`
	ReadingStats      ReadingStats   `json:"reading_stats"`
	SignalsBySeverity map[string]int `json:"signals_by_severity"`

	// 合规视角的附加指标
	OperationalHours float64  `json:"operational_hours"`
	AvgPowerPerHour  *float64 `json:"avg_power_per_hour_kwh,omitempty"`
}

// BuildReportSummary 从窗口读数与信号计数构建报告汇总
func BuildReportSummary(factoryID, reportType string, start, end time.Time, deviceCount int, readings []models.Reading, signalsBySeverity map[string]int) *ReportSummary {
	summary := &ReportSummary{
		FactoryID:         factoryID,
		ReportType:        reportType,
		PeriodStart:       start,
		PeriodEnd:         end,
		DeviceCount:       deviceCount,
		ReadingStats:      ComputeReadingStats(readings),
		SignalsBySeverity: signalsBySeverity,
		OperationalHours:  end.Sub(start).Hours(),
	}

	if summary.ReadingStats.TotalPower != nil && summary.OperationalHours > 0 {
		avg := round2(*summary.ReadingStats.TotalPower / summary.OperationalHours)
		summary.AvgPowerPerHour = &avg
	}

	return summary
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
