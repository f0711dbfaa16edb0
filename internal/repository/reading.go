package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"forgewatch/internal/models"

	"go.uber.org/zap"
)

// ReadingRepository 遥测读数仓库
// 读数一经写入不再修改；所有时间区间查询按 timestamp 排序返回。
type ReadingRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReadingRepository 创建读数仓库
func NewReadingRepository(db *sql.DB, logger *zap.Logger) *ReadingRepository {
	return &ReadingRepository{
		db:     db,
		logger: logger,
	}
}

const readingColumns = `
	reading_id,
	device_id,
	timestamp,
	temperature,
	gas_index,
	vibration_x,
	vibration_y,
	vibration_z,
	humidity,
	pressure,
	power_consumption,
	created_at
`

func scanReading(scanner interface{ Scan(...interface{}) error }) (*models.Reading, error) {
	var reading models.Reading
	var temperature, gasIndex, vibX, vibY, vibZ, humidity, pressure, power sql.NullFloat64

	err := scanner.Scan(
		&reading.ReadingID,
		&reading.DeviceID,
		&reading.Timestamp,
		&temperature,
		&gasIndex,
		&vibX,
		&vibY,
		&vibZ,
		&humidity,
		&pressure,
		&power,
		&reading.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	assign := func(dst **float64, src sql.NullFloat64) {
		if src.Valid {
			v := src.Float64
			*dst = &v
		}
	}
	assign(&reading.Temperature, temperature)
	assign(&reading.GasIndex, gasIndex)
	assign(&reading.VibrationX, vibX)
	assign(&reading.VibrationY, vibY)
	assign(&reading.VibrationZ, vibZ)
	assign(&reading.Humidity, humidity)
	assign(&reading.Pressure, pressure)
	assign(&reading.PowerConsumption, power)

	return &reading, nil
}

// InsertReading 写入一条读数
func (r *ReadingRepository) InsertReading(ctx context.Context, reading *models.Reading) error {
	if reading == nil {
		return fmt.Errorf("reading is required")
	}
	if reading.ReadingID == "" {
		return fmt.Errorf("reading_id is required")
	}
	if reading.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}

	query := `
		INSERT INTO sensor_readings (
			reading_id,
			device_id,
			timestamp,
			temperature,
			gas_index,
			vibration_x,
			vibration_y,
			vibration_z,
			humidity,
			pressure,
			power_consumption,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
	`

	_, err := r.db.ExecContext(ctx, query,
		reading.ReadingID,
		reading.DeviceID,
		reading.Timestamp,
		reading.Temperature,
		reading.GasIndex,
		reading.VibrationX,
		reading.VibrationY,
		reading.VibrationZ,
		reading.Humidity,
		reading.Pressure,
		reading.PowerConsumption,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}

	return nil
}

// ListRecentByDevice 获取设备在 since 之后的最近读数（按时间倒序，最多 limit 条）
// Sweep 的有界扫描使用。
func (r *ReadingRepository) ListRecentByDevice(ctx context.Context, deviceID string, since time.Time, limit int) ([]models.Reading, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device_id is required")
	}
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT ` + readingColumns + `
		FROM sensor_readings
		WHERE device_id = $1
		  AND timestamp >= $2
		ORDER BY timestamp DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, deviceID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent readings: %w", err)
	}
	defer rows.Close()

	var readings []models.Reading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, *reading)
	}

	return readings, rows.Err()
}

// ListByFactoryRange 获取工厂下所有设备在时间区间内的读数（按时间升序）
// 聚合引擎的单次快照读取使用。
func (r *ReadingRepository) ListByFactoryRange(ctx context.Context, factoryID string, start, end time.Time) ([]models.Reading, error) {
	if factoryID == "" {
		return nil, fmt.Errorf("factory_id is required")
	}

	query := `
		SELECT ` + readingColumnsPrefixed + `
		FROM sensor_readings sr
		JOIN devices d ON d.device_id = sr.device_id
		WHERE d.factory_id = $1
		  AND sr.timestamp >= $2
		  AND sr.timestamp <= $3
		ORDER BY sr.timestamp
	`

	rows, err := r.db.QueryContext(ctx, query, factoryID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list factory readings: %w", err)
	}
	defer rows.Close()

	var readings []models.Reading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, *reading)
	}

	return readings, rows.Err()
}

const readingColumnsPrefixed = `
	sr.reading_id,
	sr.device_id,
	sr.timestamp,
	sr.temperature,
	sr.gas_index,
	sr.vibration_x,
	sr.vibration_y,
	sr.vibration_z,
	sr.humidity,
	sr.pressure,
	sr.power_consumption,
	sr.created_at
`

// ListTimestampsByDevice 获取设备在时间区间内的读数时间戳（按时间升序）
// 在线率分桶计算使用，避免拉取整行。
func (r *ReadingRepository) ListTimestampsByDevice(ctx context.Context, deviceID string, start, end time.Time) ([]time.Time, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device_id is required")
	}

	query := `
		SELECT timestamp
		FROM sensor_readings
		WHERE device_id = $1
		  AND timestamp >= $2
		  AND timestamp <= $3
		ORDER BY timestamp
	`

	rows, err := r.db.QueryContext(ctx, query, deviceID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list reading timestamps: %w", err)
	}
	defer rows.Close()

	var timestamps []time.Time
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("failed to scan timestamp: %w", err)
		}
		timestamps = append(timestamps, ts)
	}

	return timestamps, rows.Err()
}
