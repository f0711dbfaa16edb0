package evaluator

import (
	"time"

	"forgewatch/internal/models"
)

// ValidateReading 校验一条待评估的读数
// 规则：
//  1. 设备引用必须可解析，且与读数的 device_id 一致
//  2. 时间戳缺失时由校验器赋值为 now
//  3. 所有通道都缺失的读数没有可评估的内容，拒绝
//
// 纯检查，除补齐时间戳外无副作用。
func ValidateReading(reading *models.Reading, device *models.Device, now time.Time) error {
	if reading == nil {
		return models.NewValidationError("reading is nil")
	}
	if device == nil {
		return models.NewValidationError("device reference does not resolve")
	}
	if reading.DeviceID != "" && reading.DeviceID != device.DeviceID {
		return models.NewValidationError("reading device %s does not match device %s", reading.DeviceID, device.DeviceID)
	}

	if reading.Timestamp.IsZero() {
		reading.Timestamp = now
	}

	if !reading.HasChannelData() {
		return models.NewValidationError("all sensor channels are absent")
	}

	return nil
}
