package models

import (
	"time"
)

// Device 监测设备（对应 devices 表）
type Device struct {
	DeviceID    string     `json:"device_id" db:"device_id"`       // 内部 UUID
	DeviceCode  string     `json:"device_code" db:"device_code"`   // 外部设备编号（如 ESP32 MAC）
	DeviceName  string     `json:"device_name" db:"device_name"`
	DeviceType  string     `json:"device_type" db:"device_type"`
	FactoryID   string     `json:"factory_id" db:"factory_id"`
	MachineName string     `json:"machine_name" db:"machine_name"` // 安装在哪台机器上
	Location    string     `json:"location" db:"location"`
	IsActive    bool       `json:"is_active" db:"is_active"`
	LastSeen    *time.Time `json:"last_seen,omitempty" db:"last_seen"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// Factory 工厂（对应 factories 表）
type Factory struct {
	FactoryID string    `json:"factory_id" db:"factory_id"`
	Name      string    `json:"name" db:"name"`
	Location  string    `json:"location" db:"location"`
	Industry  string    `json:"industry" db:"industry"` // steel, foundry, chemicals, etc.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
