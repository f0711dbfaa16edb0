package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"forgewatch/internal/models"

	"go.uber.org/zap"
)

// DeviceRepository 设备仓库
type DeviceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDeviceRepository 创建设备仓库
func NewDeviceRepository(db *sql.DB, logger *zap.Logger) *DeviceRepository {
	return &DeviceRepository{
		db:     db,
		logger: logger,
	}
}

const deviceColumns = `
	device_id,
	device_code,
	device_name,
	device_type,
	factory_id,
	machine_name,
	location,
	is_active,
	last_seen,
	created_at,
	updated_at
`

func scanDevice(scanner interface{ Scan(...interface{}) error }) (*models.Device, error) {
	var device models.Device
	var deviceType, machineName, location sql.NullString
	var lastSeen sql.NullTime

	err := scanner.Scan(
		&device.DeviceID,
		&device.DeviceCode,
		&device.DeviceName,
		&deviceType,
		&device.FactoryID,
		&machineName,
		&location,
		&device.IsActive,
		&lastSeen,
		&device.CreatedAt,
		&device.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	device.DeviceType = deviceType.String
	device.MachineName = machineName.String
	device.Location = location.String
	if lastSeen.Valid {
		device.LastSeen = &lastSeen.Time
	}

	return &device, nil
}

// GetDevice 根据内部 ID 获取设备
func (r *DeviceRepository) GetDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device_id is required")
	}

	query := `SELECT ` + deviceColumns + ` FROM devices WHERE device_id = $1`

	device, err := scanDevice(r.db.QueryRowContext(ctx, query, deviceID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	return device, nil
}

// GetDeviceByCode 根据外部设备编号获取设备（接入路径使用）
func (r *DeviceRepository) GetDeviceByCode(ctx context.Context, deviceCode string) (*models.Device, error) {
	if deviceCode == "" {
		return nil, fmt.Errorf("device_code is required")
	}

	query := `SELECT ` + deviceColumns + ` FROM devices WHERE device_code = $1`

	device, err := scanDevice(r.db.QueryRowContext(ctx, query, deviceCode))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device by code: %w", err)
	}

	return device, nil
}

// ListActiveDevices 列出工厂下的活跃设备
func (r *DeviceRepository) ListActiveDevices(ctx context.Context, factoryID string) ([]models.Device, error) {
	if factoryID == "" {
		return nil, fmt.Errorf("factory_id is required")
	}

	query := `SELECT ` + deviceColumns + ` FROM devices WHERE factory_id = $1 AND is_active = true ORDER BY device_name`

	rows, err := r.db.QueryContext(ctx, query, factoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active devices: %w", err)
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, *device)
	}

	return devices, rows.Err()
}

// ListFactories 列出所有工厂
func (r *DeviceRepository) ListFactories(ctx context.Context) ([]models.Factory, error) {
	query := `
		SELECT factory_id, name, location, industry, created_at, updated_at
		FROM factories
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list factories: %w", err)
	}
	defer rows.Close()

	var factories []models.Factory
	for rows.Next() {
		var f models.Factory
		var location, industry sql.NullString
		if err := rows.Scan(&f.FactoryID, &f.Name, &location, &industry, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan factory: %w", err)
		}
		f.Location = location.String
		f.Industry = industry.String
		factories = append(factories, f)
	}

	return factories, rows.Err()
}

// CountDevices 统计工厂的设备数（total）与活跃设备数（active）
// active = is_active 且 last_seen 晚于给定截止时间（通常为 now-5min）
func (r *DeviceRepository) CountDevices(ctx context.Context, factoryID string, activeSince time.Time) (total int, active int, err error) {
	if factoryID == "" {
		return 0, 0, fmt.Errorf("factory_id is required")
	}

	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_active = true AND last_seen >= $2)
		FROM devices
		WHERE factory_id = $1
	`

	err = r.db.QueryRowContext(ctx, query, factoryID, activeSince).Scan(&total, &active)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count devices: %w", err)
	}

	return total, active, nil
}

// UpdateLastSeen 更新设备最近上报时间（只允许前移）
func (r *DeviceRepository) UpdateLastSeen(ctx context.Context, deviceID string, seenAt time.Time) error {
	if deviceID == "" {
		return fmt.Errorf("device_id is required")
	}

	query := `
		UPDATE devices
		SET last_seen = $2, updated_at = NOW()
		WHERE device_id = $1
		  AND (last_seen IS NULL OR last_seen < $2)
	`

	if _, err := r.db.ExecContext(ctx, query, deviceID, seenAt); err != nil {
		return fmt.Errorf("failed to update last_seen: %w", err)
	}

	return nil
}
