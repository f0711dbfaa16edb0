package ingest

import (
	"context"
	"fmt"
	"strings"

	"forgewatch/internal/config"

	"go.uber.org/zap"
)

// Subscriber 消费者依赖的订阅能力
type Subscriber interface {
	Subscribe(topic string, qos byte, handler MessageHandler) error
	Unsubscribe(topics ...string) error
}

// Consumer MQTT 遥测消费者
// 主题约定 telemetry/<device_code>/readings；消息体里的
// device_code 优先于主题段。
type Consumer struct {
	config   *config.MQTTConfig
	client   Subscriber
	ingestor *Ingestor
	logger   *zap.Logger
}

// NewConsumer 创建MQTT消费者
func NewConsumer(cfg *config.MQTTConfig, client Subscriber, ingestor *Ingestor, logger *zap.Logger) *Consumer {
	return &Consumer{
		config:   cfg,
		client:   client,
		ingestor: ingestor,
		logger:   logger,
	}
}

// Start 启动消费者，阻塞到上下文取消
func (c *Consumer) Start(ctx context.Context) error {
	topic := c.config.Topic
	if topic == "" {
		return fmt.Errorf("telemetry MQTT topic not configured")
	}

	if err := c.client.Subscribe(topic, c.config.QoS, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to telemetry topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", topic),
	)

	<-ctx.Done()
	return nil
}

// Stop 停止消费者
func (c *Consumer) Stop(ctx context.Context) error {
	if c.config.Topic != "" {
		if err := c.client.Unsubscribe(c.config.Topic); err != nil {
			c.logger.Error("Failed to unsubscribe", zap.Error(err))
		}
	}

	c.logger.Info("MQTT consumer stopped")
	return nil
}

// handleMessage 处理一条MQTT消息
func (c *Consumer) handleMessage(topic string, payload []byte) error {
	c.logger.Debug("Received MQTT message",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	sample, err := ParseSample(payload)
	if err != nil {
		c.logger.Error("Failed to unmarshal telemetry message",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return err
	}

	if sample.DeviceCode == "" {
		sample.DeviceCode = DeviceCodeFromTopic(topic)
	}

	result, err := c.ingestor.IngestSample(context.Background(), sample)
	if err != nil {
		return err
	}

	if len(result.SignalsCreated) > 0 {
		c.logger.Info("Telemetry reading produced signals",
			zap.String("device_id", result.DeviceID),
			zap.String("reading_id", result.ReadingID),
			zap.Int("signals", len(result.SignalsCreated)),
		)
	}

	return nil
}

// DeviceCodeFromTopic 从主题 telemetry/<device_code>/readings 提取设备编号
// 不符合约定时返回空串。
func DeviceCodeFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) == 3 && parts[0] == "telemetry" && parts[2] == "readings" {
		return parts[1]
	}
	return ""
}
