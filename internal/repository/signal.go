package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"forgewatch/internal/models"

	"go.uber.org/zap"
)

// SignalRepository 信号仓库
type SignalRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSignalRepository 创建信号仓库
func NewSignalRepository(db *sql.DB, logger *zap.Logger) *SignalRepository {
	return &SignalRepository{
		db:     db,
		logger: logger,
	}
}

const signalColumns = `
	signal_id,
	device_id,
	factory_id,
	kind,
	severity,
	status,
	title,
	description,
	recommendation,
	input_data,
	analysis_result,
	confidence_score,
	detected_at,
	processed_at,
	created_at,
	updated_at
`

func scanSignal(scanner interface{ Scan(...interface{}) error }) (*models.Signal, error) {
	var signal models.Signal
	var description, recommendation sql.NullString
	var inputData, analysisResult []byte
	var processedAt sql.NullTime
	var kind, severity, status string

	err := scanner.Scan(
		&signal.SignalID,
		&signal.DeviceID,
		&signal.FactoryID,
		&kind,
		&severity,
		&status,
		&signal.Title,
		&description,
		&recommendation,
		&inputData,
		&analysisResult,
		&signal.ConfidenceScore,
		&signal.DetectedAt,
		&processedAt,
		&signal.CreatedAt,
		&signal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	signal.Kind = models.SignalKind(kind)
	signal.Severity = models.Severity(severity)
	signal.Status = models.SignalStatus(status)
	signal.Description = description.String
	signal.Recommendation = recommendation.String
	if processedAt.Valid {
		signal.ProcessedAt = &processedAt.Time
	}

	// 处理 JSONB 字段
	if len(inputData) > 0 {
		signal.InputData = inputData
	} else {
		signal.InputData = json.RawMessage("{}")
	}
	if len(analysisResult) > 0 {
		signal.AnalysisResult = analysisResult
	}

	return &signal, nil
}

// ============================================
// 基础 CRUD 操作
// ============================================

// GetSignal 根据 signal_id 获取单个信号
func (r *SignalRepository) GetSignal(ctx context.Context, signalID string) (*models.Signal, error) {
	if signalID == "" {
		return nil, fmt.Errorf("signal_id is required")
	}

	query := `SELECT ` + signalColumns + ` FROM signals WHERE signal_id = $1`

	signal, err := scanSignal(r.db.QueryRowContext(ctx, query, signalID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrSignalNotFound
		}
		return nil, fmt.Errorf("failed to get signal: %w", err)
	}

	return signal, nil
}

// CreateSignal 创建信号
func (r *SignalRepository) CreateSignal(ctx context.Context, signal *models.Signal) error {
	if signal == nil {
		return fmt.Errorf("signal is required")
	}
	if signal.SignalID == "" {
		return fmt.Errorf("signal_id is required")
	}
	if signal.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}
	if signal.FactoryID == "" {
		return fmt.Errorf("factory_id is required")
	}

	query := `
		INSERT INTO signals (
			signal_id,
			device_id,
			factory_id,
			kind,
			severity,
			status,
			title,
			description,
			recommendation,
			input_data,
			analysis_result,
			confidence_score,
			detected_at,
			processed_at,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
	`

	inputData := signal.InputData
	if len(inputData) == 0 {
		inputData = json.RawMessage("{}")
	}
	var analysisResult interface{}
	if len(signal.AnalysisResult) > 0 {
		analysisResult = []byte(signal.AnalysisResult)
	}

	_, err := r.db.ExecContext(ctx, query,
		signal.SignalID,
		signal.DeviceID,
		signal.FactoryID,
		string(signal.Kind),
		string(signal.Severity),
		string(signal.Status),
		signal.Title,
		signal.Description,
		signal.Recommendation,
		[]byte(inputData),
		analysisResult,
		signal.ConfidenceScore,
		signal.DetectedAt,
		signal.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create signal: %w", err)
	}

	return nil
}

// FindByDedupKey 按 (device, title, detected_at) 精确三元组查找已存在的信号
// 积压重处理的去重检查使用；未找到返回 (nil, nil)。
func (r *SignalRepository) FindByDedupKey(ctx context.Context, deviceID, title string, detectedAt time.Time) (*models.Signal, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device_id is required")
	}
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}

	query := `
		SELECT ` + signalColumns + `
		FROM signals
		WHERE device_id = $1
		  AND title = $2
		  AND detected_at = $3
		LIMIT 1
	`

	signal, err := scanSignal(r.db.QueryRowContext(ctx, query, deviceID, title, detectedAt))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to check duplicate signal: %w", err)
	}

	return signal, nil
}

// UpdateStatus 更新信号状态（生命周期管理器专用）
func (r *SignalRepository) UpdateStatus(ctx context.Context, signalID string, status models.SignalStatus, processedAt *time.Time) error {
	if signalID == "" {
		return fmt.Errorf("signal_id is required")
	}

	query := `
		UPDATE signals
		SET status = $2,
		    processed_at = COALESCE($3, processed_at),
		    updated_at = NOW()
		WHERE signal_id = $1
	`

	result, err := r.db.ExecContext(ctx, query, signalID, string(status), processedAt)
	if err != nil {
		return fmt.Errorf("failed to update signal status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return models.ErrSignalNotFound
	}

	return nil
}

// ============================================
// 汇总查询
// ============================================

// CountSignals 统计工厂的信号总数与 new 状态数量
func (r *SignalRepository) CountSignals(ctx context.Context, factoryID string) (total int, newCount int, err error) {
	if factoryID == "" {
		return 0, 0, fmt.Errorf("factory_id is required")
	}

	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'new')
		FROM signals
		WHERE factory_id = $1
	`

	err = r.db.QueryRowContext(ctx, query, factoryID).Scan(&total, &newCount)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count signals: %w", err)
	}

	return total, newCount, nil
}

// CountsByColumn 按指定维度分组统计时间窗口内的信号数量
// column 只允许白名单内的列名，避免拼接任意 SQL。
func (r *SignalRepository) countsByColumn(ctx context.Context, factoryID, column string, start, end time.Time) (map[string]int, error) {
	query := fmt.Sprintf(`
		SELECT %s, COUNT(*)
		FROM signals
		WHERE factory_id = $1
		  AND detected_at >= $2
		  AND detected_at <= $3
		GROUP BY %s
	`, column, column)

	rows, err := r.db.QueryContext(ctx, query, factoryID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to count signals by %s: %w", column, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts[key] = count
	}

	return counts, rows.Err()
}

// CountBySeverity 按严重级别分组统计
func (r *SignalRepository) CountBySeverity(ctx context.Context, factoryID string, start, end time.Time) (map[string]int, error) {
	if factoryID == "" {
		return nil, fmt.Errorf("factory_id is required")
	}
	return r.countsByColumn(ctx, factoryID, "severity", start, end)
}

// CountByKind 按信号类型分组统计
func (r *SignalRepository) CountByKind(ctx context.Context, factoryID string, start, end time.Time) (map[string]int, error) {
	if factoryID == "" {
		return nil, fmt.Errorf("factory_id is required")
	}
	return r.countsByColumn(ctx, factoryID, "kind", start, end)
}

// CountByStatus 按生命周期状态分组统计
func (r *SignalRepository) CountByStatus(ctx context.Context, factoryID string, start, end time.Time) (map[string]int, error) {
	if factoryID == "" {
		return nil, fmt.Errorf("factory_id is required")
	}
	return r.countsByColumn(ctx, factoryID, "status", start, end)
}
