package models

import (
	"time"
)

// Reading 一条遥测采样（对应 sensor_readings 表）
// Immutable once ingested; signals reference it by device + timestamp.
type Reading struct {
	ReadingID string    `json:"reading_id" db:"reading_id"`
	DeviceID  string    `json:"device_id" db:"device_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`

	// Sensor channels (all optional; nil = channel absent on this sample)
	Temperature      *float64 `json:"temperature,omitempty" db:"temperature"`             // Celsius
	GasIndex         *float64 `json:"gas_index,omitempty" db:"gas_index"`                 // air quality proxy
	VibrationX       *float64 `json:"vibration_x,omitempty" db:"vibration_x"`
	VibrationY       *float64 `json:"vibration_y,omitempty" db:"vibration_y"`
	VibrationZ       *float64 `json:"vibration_z,omitempty" db:"vibration_z"`
	Humidity         *float64 `json:"humidity,omitempty" db:"humidity"`
	Pressure         *float64 `json:"pressure,omitempty" db:"pressure"`
	PowerConsumption *float64 `json:"power_consumption,omitempty" db:"power_consumption"` // kWh

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// HasChannelData 判断是否至少有一个通道有值
func (r *Reading) HasChannelData() bool {
	return r.Temperature != nil ||
		r.GasIndex != nil ||
		r.VibrationX != nil ||
		r.VibrationY != nil ||
		r.VibrationZ != nil ||
		r.Humidity != nil ||
		r.Pressure != nil ||
		r.PowerConsumption != nil
}

// MaxVibration 取三轴振动的最大值（缺失的轴按 0 处理）
func (r *Reading) MaxVibration() float64 {
	max := 0.0
	for _, v := range []*float64{r.VibrationX, r.VibrationY, r.VibrationZ} {
		if v != nil && *v > max {
			max = *v
		}
	}
	return max
}

// HasVibration 判断是否至少有一个振动轴有值
func (r *Reading) HasVibration() bool {
	return r.VibrationX != nil || r.VibrationY != nil || r.VibrationZ != nil
}

// ChannelSnapshot 通道快照（signals.input_data 的 JSONB 结构，
// 也是 AI 协作方请求体）
type ChannelSnapshot struct {
	Temperature      *float64 `json:"temperature"`
	GasIndex         *float64 `json:"gas_index"`
	VibrationX       *float64 `json:"vibration_x"`
	VibrationY       *float64 `json:"vibration_y"`
	VibrationZ       *float64 `json:"vibration_z"`
	Humidity         *float64 `json:"humidity,omitempty"`
	Pressure         *float64 `json:"pressure,omitempty"`
	PowerConsumption *float64 `json:"power_consumption,omitempty"`
	DeviceName       string   `json:"device_name,omitempty"`
	MachineName      string   `json:"machine_name,omitempty"`
}

// Snapshot 构建通道快照
func (r *Reading) Snapshot(device *Device) *ChannelSnapshot {
	snap := &ChannelSnapshot{
		Temperature:      r.Temperature,
		GasIndex:         r.GasIndex,
		VibrationX:       r.VibrationX,
		VibrationY:       r.VibrationY,
		VibrationZ:       r.VibrationZ,
		Humidity:         r.Humidity,
		Pressure:         r.Pressure,
		PowerConsumption: r.PowerConsumption,
	}
	if device != nil {
		snap.DeviceName = device.DeviceName
		snap.MachineName = device.MachineName
	}
	return snap
}
