package ai

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"forgewatch/internal/config"
	"forgewatch/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Client 外部异常分类协作方的客户端
// 只作为规则评估未命中时的兜底；协作方不可达、超时或响应
// 不可解析都退化为"无结果"，绝不让一次 sweep 失败。
type Client struct {
	httpClient *resty.Client
	enabled    bool
	logger     *zap.Logger
}

// NewClient 创建 AI 客户端
// BaseURL 为空表示协作方未配置，所有调用短路为不可用。
func NewClient(cfg *config.AIConfig, logger *zap.Logger) *Client {
	if cfg == nil || cfg.BaseURL == "" {
		return &Client{enabled: false, logger: logger}
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: httpClient,
		enabled:    true,
		logger:     logger,
	}
}

// Enabled 协作方是否已配置
func (c *Client) Enabled() bool {
	return c.enabled
}

// AnalyzeAnomaly 发送通道快照给协作方做异常分析
// 返回值约定：
//   - 协作方未配置/不可达/超时 → (nil, models.ErrCollaboratorUnavailable)
//   - 响应不可解析或 severity 不在闭集内 → 退化为非异常结果，
//     原始文本放进 Recommendation（低置信度 "unparsed" 路径）
func (c *Client) AnalyzeAnomaly(ctx context.Context, snapshot *models.ChannelSnapshot) (*models.AIAnalysis, error) {
	if !c.enabled {
		return nil, models.ErrCollaboratorUnavailable
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(snapshot).
		Post("/analyze")

	if err != nil {
		c.logger.Warn("AI collaborator call failed",
			zap.String("device_name", snapshot.DeviceName),
			zap.Error(err),
		)
		return nil, models.ErrCollaboratorUnavailable
	}

	if resp.StatusCode() != 200 {
		c.logger.Warn("AI collaborator returned non-200",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("device_name", snapshot.DeviceName),
		)
		return nil, models.ErrCollaboratorUnavailable
	}

	return parseAnalysis(resp.Body(), c.logger), nil
}

// parseAnalysis 解析协作方响应，失败时退化而不是报错
func parseAnalysis(body []byte, logger *zap.Logger) *models.AIAnalysis {
	var analysis models.AIAnalysis
	if err := json.Unmarshal(body, &analysis); err != nil {
		logger.Warn("AI collaborator response is not valid JSON",
			zap.Error(err),
		)
		return unparsed(body)
	}

	if !models.ValidSeverity(analysis.Severity) {
		logger.Warn("AI collaborator returned severity outside the closed set",
			zap.String("severity", analysis.Severity),
		)
		return unparsed(body)
	}

	return &analysis
}

func unparsed(body []byte) *models.AIAnalysis {
	return &models.AIAnalysis{
		AnomalyDetected: false,
		Severity:        string(models.SeverityInfo),
		Issue:           "Unable to parse AI response",
		Recommendation:  strings.TrimSpace(string(body)),
	}
}
